// Package shared holds the JSON envelope helpers every HTTP handler uses, so
// error translation and response encoding stay consistent across features.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "sightline/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError translates a domain error into an HTTP status and a JSON body.
// Only the caller-safe message is exposed; wrapped internals stay in the logs.
func WriteError(w http.ResponseWriter, err error) {
	status := dErrors.ToHTTPStatus(dErrors.CodeOf(err))
	WriteJSON(w, status, ErrorResponse{Error: dErrors.Message(err)})
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
