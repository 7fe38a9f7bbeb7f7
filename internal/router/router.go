// Package router initializes the HTTP router (using Echo).
//
// It registers the middlewares, builds the route table served under the
// API prefix and mounts the dispatcher that answers every request.
package router

import (
	"fmt"

	"github.com/deppfellow/render-api/internal/dispatch"
	"github.com/deppfellow/render-api/internal/handler"
	"github.com/deppfellow/render-api/internal/middleware"
	"github.com/deppfellow/render-api/internal/server"
	"github.com/labstack/echo/v4"
)

// NewRouter builds the echo instance.
//
// Middleware order matters:
//  1. request id, so every later log line carries it
//  2. New Relic transaction, then custom attributes on it
//  3. request-scoped logger (reads request id and trace ids)
//  4. access log, panic recovery, secure headers, body limit, CORS
//
// The body limit and CORS preflights only apply to registered routes.
//
// Every request then reaches the dispatcher through a catch-all route.
func NewRouter(s *server.Server, h *handler.Handlers) (*echo.Echo, error) {
	table, err := NewRouteTable(s, h)
	if err != nil {
		return nil, err
	}

	d := dispatch.NewDispatcher(table,
		dispatch.WithTimeout(s.Config.API.HandlerTimeout),
		dispatch.WithMetrics(s.Metrics),
	)

	middlewares := middleware.NewMiddlewares(s)
	routeExists := func(method, path string) bool {
		_, ok := table.Find(method, path)
		return ok
	}

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	router.Use(
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.RequestLogger(),
		middlewares.Global.Recover(),
		middlewares.Global.Secure(),
		middlewares.Global.BodyLimit(routeExists),
		middlewares.Global.CORS(routeExists),
	)

	// Methods echo does not route end up as 405 in GlobalErrorHandler, which
	// answers them with the same 404 envelope as the dispatcher.
	router.Any("/*", d.Serve)

	s.Logger.Info().
		Str("prefix", table.Prefix()).
		Int("routes", len(table.Routes())).
		Msg("routes registered")

	return router, nil
}

// NewRouteTable registers every API route under the configured prefix.
func NewRouteTable(s *server.Server, h *handler.Handlers) (*dispatch.RouteTable, error) {
	table := dispatch.NewRouteTable(s.Config.API.Prefix)

	routes := systemRoutes(h)
	routes = append(routes, renderRoutes(h)...)

	for _, route := range routes {
		if err := table.Register(route); err != nil {
			return nil, fmt.Errorf("failed to register %s %s: %w", route.Method, route.Path, err)
		}
	}
	return table, nil
}

func renderRoutes(h *handler.Handlers) []dispatch.Route {
	routes := []dispatch.Route{
		{
			Method:  dispatch.MethodPost,
			Path:    "/latex-html",
			Handler: handler.Handle(h.Latex.Handler, "latex_html", handler.LatexShape, h.Latex.RenderLatex),
		},
	}

	if h.Image != nil {
		routes = append(routes, dispatch.Route{
			Method:  dispatch.MethodPost,
			Path:    "/html-image",
			Handler: handler.Handle(h.Image.Handler, "html_image", handler.ImageShape, h.Image.RenderImage),
		})
	}
	return routes
}
