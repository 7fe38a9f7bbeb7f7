// Package errs define custom error types and utilities.
//
// Its purpose is to create specific error structures
// (e.g. FieldError for request validation or HTTPError for API responses)
// so every failure reaches the client in the same envelope:
//
//	{ "error": "<message>", "details": [ ...field violations... ] }
package errs
