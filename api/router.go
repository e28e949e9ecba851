package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/datatrails/go-datatrails-sequencer/massifs"
	"github.com/datatrails/go-datatrails-sequencer/problem"
	"github.com/datatrails/go-datatrails-sequencer/queue"
)

// ServiceDescriptor is the JSON body of GET /.well-known/scitt-configuration.
type ServiceDescriptor struct {
	Issuer       string `json:"issuer"`
	MassifHeight uint8  `json:"massifHeight"`
}

// NewRouter wires the full HTTP surface: ingress (C7), registration (C8),
// status (C9), and receipt (C10) onto one gorilla/mux router.
func NewRouter(router *queue.Router, store *massifs.ObjectStore, massifHeight uint8, maxBodyBytes int64, issuer string) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	(&Ingress{Router: router}).RegisterRoutes(r)
	(&Registration{Router: router, MaxBodyBytes: maxBodyBytes}).RegisterRoutes(r)
	(&Status{Router: router, Store: store, MassifHeight: massifHeight}).RegisterRoutes(r)
	(&Receipt{Store: store}).RegisterRoutes(r)

	r.HandleFunc("/.well-known/scitt-configuration", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ServiceDescriptor{Issuer: issuer, MassifHeight: massifHeight})
	}).Methods(http.MethodGet)

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, problem.NotFound("no such route"))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, problem.MethodNotAllowed("method not allowed for this route"))
}
