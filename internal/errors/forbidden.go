package errors

import "net/http"

var ErrForbidden = &Exception{
	Message:    "caller is not allowed to perform this operation",
	StatusCode: http.StatusForbidden,
}
