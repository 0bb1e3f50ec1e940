package web

// errors.go maps handler errors to JSON responses. The full error is logged
// with the request id; the client gets a short message and a stable code.

import (
	"errors"
	"net/http"

	"github.com/leonkenneth/RNB-coeur/internal/area"
	"github.com/leonkenneth/RNB-coeur/internal/logging"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeUnknownArea  = "UNKNOWN_AREA"
	CodeEnqueueError = "ENQUEUE_FAILED"
	CodeInternal     = "INTERNAL"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify picks the status and code for err.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, area.ErrUnknownArea):
		return http.StatusBadRequest, CodeUnknownArea
	case errors.Is(err, errEnqueue):
		return http.StatusServiceUnavailable, CodeEnqueueError
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

var errEnqueue = errors.New("task queue unavailable")

// respondError logs err and writes its JSON form. Client errors carry the
// underlying message; server errors only the generic one.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", code,
		"error", err.Error(),
	)

	msg := http.StatusText(status)
	if status < http.StatusInternalServerError {
		msg = err.Error()
	} else if errors.Is(err, errEnqueue) {
		msg = errEnqueue.Error()
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
