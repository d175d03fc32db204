package services

import "net/http"

// Result is the status/message pair every user-facing operation returns.
// Status uses HTTP status codes so the transport can render it directly.
type Result struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// OK reports whether the operation succeeded.
func (r *Result) OK() bool {
	return r != nil && r.Status == http.StatusOK
}

func success(msg string) *Result {
	return &Result{Status: http.StatusOK, Message: msg}
}

func forbidden(msg string) *Result {
	return &Result{Status: http.StatusForbidden, Message: msg}
}

func unauthorized(msg string) *Result {
	return &Result{Status: http.StatusUnauthorized, Message: msg}
}
