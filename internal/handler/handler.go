// Package handler is the first layer. The first entry point
// for rendering logic after the dispatcher.
//
// It parses requests, handles input validation using the
// validation package, and calls the appropriate service.
// It acts as the interface between the HTTP request and the
// renderers, and it builds every response with the response package.
package handler
