package api

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/datatrails/go-datatrails-sequencer/problem"
	"github.com/datatrails/go-datatrails-sequencer/queue"
)

const (
	coseSign1ContentType = `application/cose; cose-type="cose-sign1"`
	cborCoseContentType  = "application/cbor"
	maxBodyBytesDefault  = 4 << 20
)

// cborSignedStatement mirrors {signedStatement: bstr} for the
// application/cbor registration variant.
type cborSignedStatement struct {
	SignedStatement []byte `cbor:"signedStatement"`
}

// Registration implements C8: POST /logs/{logId}/entries.
type Registration struct {
	Router       *queue.Router
	MaxBodyBytes int64
}

func (reg *Registration) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/logs/{logId}/entries", reg.handleRegister).Methods(http.MethodPost)
}

func (reg *Registration) handleRegister(w http.ResponseWriter, r *http.Request) {
	logIDStr := mux.Vars(r)["logId"]
	logID, err := uuid.Parse(logIDStr)
	if err != nil {
		problem.Write(w, problem.InvalidRequest("logId must be a UUID"))
		return
	}

	maxBody := reg.MaxBodyBytes
	if maxBody == 0 {
		maxBody = maxBodyBytesDefault
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	cose, err := extractCOSEBytes(r)
	if err != nil {
		if err == errBodyTooLarge {
			problem.Write(w, problem.PayloadTooLarge("request body exceeds the configured limit"))
			return
		}
		if err == errUnsupportedMediaType {
			problem.Write(w, problem.UnsupportedMedia("expected application/cose or application/cbor"))
			return
		}
		problem.Write(w, problem.InvalidRequest(err.Error()))
		return
	}

	if len(cose) == 0 || cose[0] != 0x84 {
		problem.Write(w, problem.InvalidRequest("Invalid COSE Sign1 structure"))
		return
	}

	sum := sha256.Sum256(cose)

	shard := reg.Router.Shard(logIDKey(logID))
	seq, err := shard.Enqueue(r.Context(), logIDKey(logID), sum[:], [4][]byte{})
	if err != nil {
		if err == queue.ErrQueueFull {
			problem.Write(w, problem.QueueFull("shard is at capacity, retry later"))
			return
		}
		problem.Write(w, problem.Internal(err.Error()))
		return
	}
	_ = seq

	location := fmt.Sprintf("%s/%x", r.URL.String(), sum)
	w.Header().Set("Location", location)
	w.Header().Set("Retry-After", "5")
	w.WriteHeader(http.StatusSeeOther)
}

var (
	errBodyTooLarge         = fmt.Errorf("registration: body too large")
	errUnsupportedMediaType = fmt.Errorf("registration: unsupported media type")
)

func extractCOSEBytes(r *http.Request) ([]byte, error) {
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "application/cose"):
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, bodyReadErr(err)
		}
		return body, nil
	case strings.HasPrefix(ct, cborCoseContentType):
		var wrapper cborSignedStatement
		if err := cbor.NewDecoder(r.Body).Decode(&wrapper); err != nil {
			return nil, bodyReadErr(err)
		}
		return wrapper.SignedStatement, nil
	default:
		return nil, errUnsupportedMediaType
	}
}

func bodyReadErr(err error) error {
	if strings.Contains(err.Error(), "http: request body too large") {
		return errBodyTooLarge
	}
	return fmt.Errorf("registration: reading body: %w", err)
}
