// Package httputil centralizes JSON response writing so every handler emits the
// same envelopes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "coalition/pkg/domain-errors"
)

// WriteJSON encodes v with the given status. Encoding failures are ignored
// because the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorEnvelope is the uniform error response body.
type errorEnvelope struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteError translates a domain error into the JSON error envelope. Unknown
// errors map to internal_error without leaking details.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	env := errorEnvelope{Error: string(code)}
	var de *dErrors.Error
	if errors.As(err, &de) {
		env.Message = de.Message
		env.Fields = de.Fields
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), env)
}
