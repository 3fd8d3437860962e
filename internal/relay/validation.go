package relay

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lcrostarosa/vigil/internal/middleware"
)

// Validator interface for request body validation
type Validator interface {
	Validate() error
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// decodeAndValidate decodes a bounded JSON body and validates it
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v Validator) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body")
	}
	return v.Validate()
}

// required returns an error if value is empty
func required(field, value string) error {
	if value == "" {
		return ValidationError{Field: field, Message: field + " is required"}
	}
	return nil
}

// requirePathParam extracts a path parameter or writes a 400
func requirePathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := r.PathValue(name)
	if value == "" {
		middleware.WriteError(w, http.StatusBadRequest, name+" required")
		return "", false
	}
	return value, true
}
