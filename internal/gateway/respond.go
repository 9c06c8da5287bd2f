package gateway

import (
	"encoding/json"
	"net/http"

	"loomos.org/internal/obs"
)

type errorBody struct {
	Error     string       `json:"error"`
	Code      Code         `json:"code"`
	Details   []FieldError `json:"details,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteRejection normalizes a rejection into the wire error format. Internal
// failures must already have been reduced to a generic message by the caller;
// nothing here inspects or echoes lower-layer errors.
func WriteRejection(w http.ResponseWriter, r *http.Request, rej *Rejection) {
	body := errorBody{
		Error:     rej.Message,
		Code:      rej.Code,
		Details:   rej.Details,
		RequestID: obs.RequestIDFromContext(r.Context()),
	}
	if rej.Code == CodeUnauthenticated {
		w.Header().Set("WWW-Authenticate", `Bearer realm="loomos"`)
	}
	WriteJSON(w, rej.Code.Status(), body)
}

// WriteError is shorthand for WriteRejection with a fresh rejection.
func WriteError(w http.ResponseWriter, r *http.Request, code Code, message string) {
	WriteRejection(w, r, Reject(code, message))
}
