package errors

import "net/http"

var ErrTransient = &Exception{
	Message:    "a collaborator service is unavailable",
	StatusCode: http.StatusServiceUnavailable,
}
