package client

import (
	"net/http"

	"github.com/pkg/errors"
)

// apiError is the API error envelope.
type apiError struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

// Error is returned for non 2xx responses.
type Error struct {
	Status  int
	Message string
	// Fields holds the per field messages of a validation failure.
	Fields map[string]string
}

func (err *Error) Error() string {
	return err.Message
}

// StatusMessage returns the message shown for a status when the server did not send one.
func StatusMessage(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "Invalid request"
	case status == http.StatusUnauthorized:
		return "Please log in again"
	case status == http.StatusForbidden:
		return "You do not have permission"
	case status == http.StatusNotFound:
		return "Resource not found"
	case status == http.StatusTooManyRequests:
		return "Too many requests"
	case status >= http.StatusInternalServerError:
		return "Server error, please try again later"
	default:
		return "Something went wrong"
	}
}

// StatusCode returns the response status carried by err, or 0 when the request never got one.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
