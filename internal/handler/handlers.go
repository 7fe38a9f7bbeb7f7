package handler

import (
	"github.com/deppfellow/render-api/internal/server"
	"github.com/deppfellow/render-api/internal/service"
)

// Handlers is a container that groups all HTTP handlers.
//
// This keeps router setup clean: you pass one object around instead of many.
type Handlers struct {
	Latex   *LatexHandler
	Image   *ImageHandler // nil when the image backend is disabled
	Health  *HealthHandler
	OpenAPI *OpenAPIHandler
	Metrics *MetricsHandler
}

// NewHandlers constructs the handler container.
func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	h := &Handlers{
		Latex:   NewLatexHandler(s, services.Latex),
		Health:  NewHealthHandler(s),
		OpenAPI: NewOpenAPIHandler(s),
		Metrics: NewMetricsHandler(s),
	}
	if services.Image != nil {
		h.Image = NewImageHandler(s, services.Image)
	}
	return h
}
