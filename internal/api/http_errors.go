package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/signalsfoundry/skywatch/internal/engine"
	"github.com/signalsfoundry/skywatch/internal/weather"
)

// ErrInvalidRequest is the package-level sentinel for malformed request
// payloads and query parameters.
var ErrInvalidRequest = errors.New("invalid request")

// errorEnvelope is the JSON error body every failed request gets.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// StatusFromError maps engine and catalog errors onto HTTP status
// codes. Unknown errors are treated as internal.
func StatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, engine.ErrInvalidObserver),
		errors.Is(err, engine.ErrTargetInvalid):
		return http.StatusBadRequest

	case errors.Is(err, engine.ErrTargetNotFound):
		return http.StatusNotFound

	case errors.Is(err, engine.ErrTargetExists):
		return http.StatusConflict

	case errors.Is(err, engine.ErrNoSolution),
		errors.Is(err, weather.ErrUnavailable):
		// Degraded upstream data: the request was fine, the answer is
		// temporarily not computable.
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the standard JSON envelope with its mapped
// status code.
func writeError(w http.ResponseWriter, err error) {
	status := StatusFromError(err)
	msg := "internal error"
	if err != nil && status != http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{Status: status, Message: msg}})
}

// writeJSON renders v with the given status. Encoding failures are
// unrecoverable at this point; the status line has already gone out.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
