package errors

import "net/http"

var ErrErrandNotFound = &Exception{
	Message:    "errand not found",
	StatusCode: http.StatusNotFound,
}
