package errors

import "net/http"

// Validation builds a field-specific input error.
func Validation(message string) *Exception {
	return &Exception{
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}
