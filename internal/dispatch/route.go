// Package dispatch resolves requests to routes and runs their handlers.
//
// A RouteTable is filled once at startup and sealed; the Dispatcher then reads it
// from every request goroutine. The Dispatcher is the last error boundary: whatever
// a handler does, exactly one response envelope goes back to the client.
package dispatch

import (
	"net/http"

	"github.com/deppfellow/render-api/internal/response"
	"github.com/labstack/echo/v4"
)

// Method is an HTTP method a route can be registered for.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
	MethodPatch  Method = http.MethodPatch
)

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return true
	}
	return false
}

func (m Method) String() string {
	return string(m)
}

// HandlerFunc handles one request and returns its response envelope.
//
// Expected failures (bad input, renderer errors) are returned as error responses
// built with the response package. A non-nil error means something unexpected
// happened; the dispatcher logs it and answers with a generic 500.
type HandlerFunc func(c echo.Context) (*response.Response, error)

// Route maps a method and a path relative to the API prefix to a handler.
type Route struct {
	Method  Method
	Path    string
	Handler HandlerFunc
}
