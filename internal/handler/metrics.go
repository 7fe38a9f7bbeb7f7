package handler

import (
	"fmt"
	"net/http"

	"github.com/deppfellow/render-api/internal/response"
	"github.com/deppfellow/render-api/internal/server"
	"github.com/labstack/echo/v4"
)

// MetricsHandler exposes the prometheus registry in the text exposition format.
type MetricsHandler struct {
	Handler
}

func NewMetricsHandler(s *server.Server) *MetricsHandler {
	return &MetricsHandler{
		Handler: NewHandler(s),
	}
}

func (h *MetricsHandler) ServeMetrics(c echo.Context) (*response.Response, error) {
	body, contentType, err := h.server.Metrics.Exposition()
	if err != nil {
		return nil, fmt.Errorf("failed to expose metrics: %w", err)
	}
	return response.Blob(http.StatusOK, contentType, body), nil
}
