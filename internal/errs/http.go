package errs

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FieldError represents one schema violation in a request body.
// Example:
//
//	{ "path": "options.quality", "code": "too_big", "message": "must not exceed 1" }
type FieldError struct {
	// Path is the dotted field path the violation relates to (empty for the root value).
	Path string `json:"path"`

	// Code is a machine-friendly violation kind (required, invalid_type, too_small, ...).
	Code string `json:"code"`

	// Message is the human-readable reason.
	Message string `json:"message"`
}

// HTTPError is the main custom error type for API responses.
//
// It implements the `error` interface via Error() and serializes to the public
// error envelope. Code and Status are kept out of the JSON body: the status travels
// on the response line and the code is only used for logs and tracing.
type HTTPError struct {
	Code    string `json:"-"`
	Message string `json:"error"`
	Status  int    `json:"-"`

	// Details holds field-level violations, only present for validation failures.
	Details []FieldError `json:"details,omitempty"`
}

// Error makes *HTTPError satisfy the built-in `error` interface.
func (e *HTTPError) Error() string {
	return e.Message
}

// Is reports whether target is also an *HTTPError.
//
// This does NOT compare Code/Status; it only matches the type.
func (e *HTTPError) Is(target error) bool {
	_, ok := target.(*HTTPError)
	return ok
}

// WithMessage returns a *copy* of this HTTPError with Message replaced.
func (e *HTTPError) WithMessage(message string) *HTTPError {
	return &HTTPError{
		Code:    e.Code,
		Message: message,
		Status:  e.Status,
		Details: e.Details,
	}
}

// MakeUpperCaseWithUnderscores converts a string into an UPPER_CASE_WITH_UNDERSCORES format.
//
// Example:
//
//	"Bad Request" -> "BAD_REQUEST"
func MakeUpperCaseWithUnderscores(str string) string {
	// A Caser is stateful and must not be shared between goroutines.
	return cases.Upper(language.Und).String(strings.ReplaceAll(str, " ", "_"))
}
