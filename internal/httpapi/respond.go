package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"loomos.org/internal/gateway"
)

// decodeJSON strictly decodes a request body into dst. Unknown fields and
// trailing garbage are validation errors.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	gateway.WriteJSON(w, code, v)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	gateway.WriteError(w, r, gateway.CodeValidation, msg)
}
