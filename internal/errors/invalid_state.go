package errors

import "net/http"

var ErrInvalidState = &Exception{
	Message:    "errand is not in a valid state for this operation",
	StatusCode: http.StatusConflict,
}
