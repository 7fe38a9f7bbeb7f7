package router

import (
	"github.com/deppfellow/render-api/internal/dispatch"
	"github.com/deppfellow/render-api/internal/handler"
)

// systemRoutes are endpoints that are not part of the rendering API:
//  1. Health endpoint
//  2. OpenAPI document
//  3. Prometheus metrics
func systemRoutes(h *handler.Handlers) []dispatch.Route {
	return []dispatch.Route{
		{Method: dispatch.MethodGet, Path: "/health", Handler: h.Health.CheckHealth},
		{Method: dispatch.MethodGet, Path: "/openapi.json", Handler: h.OpenAPI.ServeOpenAPI},
		{Method: dispatch.MethodGet, Path: "/metrics", Handler: h.Metrics.ServeMetrics},
	}
}
