package errs

import (
	"net/http"
)

// Client-facing messages. They are part of the public contract, so handlers and the
// dispatcher share these instead of spelling their own.
const (
	MessageInvalidJSON    = "Invalid JSON"
	MessageInvalidInput   = "Invalid input"
	MessageRouteNotFound  = "Route not found"
	MessageInternalServer = "Internal server error"
)

func newHTTPError(status int, message string) *HTTPError {
	return &HTTPError{
		// http.StatusText(400) => "Bad Request" => "BAD_REQUEST"
		Code:    MakeUpperCaseWithUnderscores(http.StatusText(status)),
		Message: message,
		Status:  status,
	}
}

// NewBadRequestError creates a 400 Bad Request HTTPError.
//
// details is optional; pass the validator violations for "Invalid input" responses.
func NewBadRequestError(message string, details []FieldError) *HTTPError {
	err := newHTTPError(http.StatusBadRequest, message)
	err.Details = details
	return err
}

// NewInvalidJSONError is the MalformedRequest case: the body was not parseable JSON.
func NewInvalidJSONError() *HTTPError {
	return NewBadRequestError(MessageInvalidJSON, nil)
}

// NewValidationError is the ValidationFailure case, carrying the violation list.
func NewValidationError(details []FieldError) *HTTPError {
	return NewBadRequestError(MessageInvalidInput, details)
}

// NewNotFoundError creates a 404 Not Found HTTPError.
func NewNotFoundError(message string) *HTTPError {
	return newHTTPError(http.StatusNotFound, message)
}

// NewRouteNotFoundError is returned for every request no route matches,
// including requests outside the API prefix.
func NewRouteNotFoundError() *HTTPError {
	return NewNotFoundError(MessageRouteNotFound)
}

// NewInternalServerError creates a 500 Internal Server Error HTTPError.
//
// message must be generic: the real cause goes to the logs, never to the client.
// An empty message falls back to MessageInternalServer.
func NewInternalServerError(message string) *HTTPError {
	if message == "" {
		message = MessageInternalServer
	}
	return newHTTPError(http.StatusInternalServerError, message)
}

// NewServiceUnavailableError creates a 503 HTTPError.
func NewServiceUnavailableError(message string) *HTTPError {
	return newHTTPError(http.StatusServiceUnavailable, message)
}

// NewPayloadTooLargeError is returned when the body exceeds server.body_limit.
func NewPayloadTooLargeError() *HTTPError {
	return newHTTPError(http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
}
