package transport

import (
	"errors"
	"fmt"
	"net/http"
)

const maxErrorBody = 256

// StatusError is returned for HTTP responses with status >= 400
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func newStatusError(method, url string, status int, body []byte) *StatusError {
	snippet := string(body)
	if len(snippet) > maxErrorBody {
		snippet = snippet[:maxErrorBody]
	}
	return &StatusError{Method: method, URL: url, StatusCode: status, Body: snippet}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
