// Package problem formats the RFC7807 problem-details bodies the HTTP edge
// returns on error (spec.md §7). No example in this codebase's tradition
// pulls in a dedicated problem-details library; the payload shape is four
// JSON fields, so this stays on encoding/json rather than adding a
// dependency for it.
package problem

import (
	"encoding/json"
	"net/http"
)

const ContentType = "application/problem+json"

// Details is the RFC7807 problem-details document.
type Details struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const typeBase = "https://github.com/datatrails/go-datatrails-sequencer/problems"

func New(status int, title, detail string) Details {
	slug := title
	return Details{Type: typeBase + "/" + slug, Title: title, Status: status, Detail: detail}
}

var (
	QueueFull           = func(detail string) Details { return New(http.StatusServiceUnavailable, "queue-full", detail) }
	InvalidRequest      = func(detail string) Details { return New(http.StatusBadRequest, "invalid-request", detail) }
	UnsupportedMedia    = func(detail string) Details { return New(http.StatusUnsupportedMediaType, "unsupported-media-type", detail) }
	MethodNotAllowed    = func(detail string) Details { return New(http.StatusMethodNotAllowed, "method-not-allowed", detail) }
	NotFound            = func(detail string) Details { return New(http.StatusNotFound, "not-found", detail) }
	PayloadTooLarge     = func(detail string) Details { return New(http.StatusRequestEntityTooLarge, "payload-too-large", detail) }
	Internal            = func(detail string) Details { return New(http.StatusInternalServerError, "internal", detail) }
)

// Write serializes d as the HTTP response body, setting status and
// content-type appropriately.
func Write(w http.ResponseWriter, d Details) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(d)
}
