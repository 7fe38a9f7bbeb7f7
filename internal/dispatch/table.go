package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

var (
	ErrTableSealed    = errors.New("route table is sealed")
	ErrInvalidMethod  = errors.New("unsupported HTTP method")
	ErrInvalidPath    = errors.New("route path must start with '/'")
	ErrNilHandler     = errors.New("route handler is nil")
	ErrDuplicateRoute = errors.New("route already registered")
)

// RouteTable is an ordered, append-only list of routes under a fixed prefix.
//
// Routes are registered during startup; Seal is called before serving, after which
// Register fails and the table is only read.
type RouteTable struct {
	prefix string
	routes []Route
	sealed atomic.Bool
}

// NewRouteTable creates an empty table for the given prefix (e.g. "/api/v1").
// A trailing slash on the prefix is ignored; an empty prefix matches every path.
func NewRouteTable(prefix string) *RouteTable {
	return &RouteTable{prefix: strings.TrimRight(prefix, "/")}
}

// Prefix returns the normalized API prefix.
func (t *RouteTable) Prefix() string {
	return t.prefix
}

// Register appends a route.
func (t *RouteTable) Register(route Route) error {
	if t.sealed.Load() {
		return fmt.Errorf("register %s %s: %w", route.Method, route.Path, ErrTableSealed)
	}
	if !route.Method.Valid() {
		return fmt.Errorf("register %q %s: %w", route.Method, route.Path, ErrInvalidMethod)
	}
	if !strings.HasPrefix(route.Path, "/") {
		return fmt.Errorf("register %s %q: %w", route.Method, route.Path, ErrInvalidPath)
	}
	if route.Handler == nil {
		return fmt.Errorf("register %s %s: %w", route.Method, route.Path, ErrNilHandler)
	}
	for _, existing := range t.routes {
		if existing.Method == route.Method && existing.Path == route.Path {
			return fmt.Errorf("register %s %s: %w", route.Method, route.Path, ErrDuplicateRoute)
		}
	}

	t.routes = append(t.routes, route)
	return nil
}

// Seal freezes the table. It is called once, before the first request.
func (t *RouteTable) Seal() {
	t.sealed.Store(true)
}

// Sealed reports whether Seal has been called.
func (t *RouteTable) Sealed() bool {
	return t.sealed.Load()
}

// Find returns the first route whose method equals method and whose path equals
// pathname with the prefix removed.
//
// Matching is exact and case-sensitive. A pathname outside the prefix never matches,
// and the bare prefix is looked up as "/".
func (t *RouteTable) Find(method, pathname string) (Route, bool) {
	relative, ok := t.relativePath(pathname)
	if !ok {
		return Route{}, false
	}

	for _, route := range t.routes {
		if string(route.Method) == method && route.Path == relative {
			return route, true
		}
	}
	return Route{}, false
}

// Routes returns a copy of the registered routes in registration order.
func (t *RouteTable) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

func (t *RouteTable) relativePath(pathname string) (string, bool) {
	if !strings.HasPrefix(pathname, t.prefix) {
		return "", false
	}
	relative := pathname[len(t.prefix):]
	if relative == "" {
		relative = "/"
	}
	return relative, true
}
