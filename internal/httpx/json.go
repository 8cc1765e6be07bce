// Package httpx holds the small JSON request/response helpers shared by the
// HTTP handlers.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

type apiError struct {
	Error string `json:"error"`
}

// ReadJSON decodes the request body into v. Validates Content-Type and caps
// the body at 1MB. Returns false when it already wrote an error response.
// Unknown fields are tolerated.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, "expected application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error body with the given status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, apiError{Error: message})
}
