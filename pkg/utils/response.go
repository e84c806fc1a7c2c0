package utils

import (
	"encoding/json"
	"log"
	"net/http"

	"leads-backend/internal/apperr"
)

// JSON writes data as a JSON response with the given status
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[HTTP] encode response: %v", err)
	}
}

type errorBody struct {
	Error *apperr.Error `json:"error"`
}

// Error renders any error as {"error": {...}} with the status its kind maps to.
// Internal causes are logged, never returned to the client.
func Error(w http.ResponseWriter, err error) {
	ae := apperr.From(err)
	status := ae.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("[HTTP] %v", err)
		if ae.Kind == apperr.KindInternal {
			ae = &apperr.Error{Kind: apperr.KindInternal, Message: "internal error"}
		}
	}
	JSON(w, status, errorBody{Error: ae})
}

// DecodeJSON reads a request body into v, mapping malformed input to a
// validation error.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("body", "invalid JSON: "+err.Error())
	}
	return nil
}
