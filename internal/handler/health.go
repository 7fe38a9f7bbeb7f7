package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/deppfellow/render-api/internal/config"
	"github.com/deppfellow/render-api/internal/middleware"
	"github.com/deppfellow/render-api/internal/render"
	"github.com/deppfellow/render-api/internal/response"
	"github.com/deppfellow/render-api/internal/server"
	"github.com/labstack/echo/v4"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDisabled  = "disabled"

	// messageCheckFailed is the public error of a failed check. The cause is
	// only logged.
	messageCheckFailed = "check failed"
)

// HealthHandler exposes a "system" endpoint that external systems can use to verify
// the service is alive and its renderers respond.
type HealthHandler struct {
	Handler
}

// NewHealthHandler constructs a HealthHandler with access to shared app dependencies.
func NewHealthHandler(s *server.Server) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
	}
}

type HealthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Environment string                 `json:"environment"`
	Checks      map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// CheckHealth runs the configured renderer checks.
//
// It returns:
// - 200 OK if all checks pass
// - 503 Service Unavailable if any check fails
func (h *HealthHandler) CheckHealth(c echo.Context) (*response.Response, error) {
	start := time.Now()

	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	resp := HealthResponse{
		Status:      statusHealthy,
		Timestamp:   time.Now().UTC(),
		Environment: h.server.Config.Primary.Env,
		Checks:      map[string]CheckResult{},
	}

	hc := h.healthChecks()
	if hc.Enabled {
		for _, name := range hc.Checks {
			result, err := h.runCheck(c.Request().Context(), name, hc.Timeout)
			resp.Checks[name] = result

			if err == nil {
				logger.Debug().Str("check", name).Str("status", result.Status).Msg("health check passed")
				continue
			}

			resp.Status = statusUnhealthy
			logger.Error().
				Err(err).
				Str("check", name).
				Msg("health check failed")

			if app := h.server.LoggerService.GetApplication(); app != nil {
				app.RecordCustomEvent("HealthCheckError", map[string]any{
					"check_type":    name,
					"operation":     "health_check",
					"error_type":    name + "_unhealthy",
					"error_message": err.Error(),
				})
			}
		}
	}

	status := http.StatusOK
	if resp.Status == statusUnhealthy {
		status = http.StatusServiceUnavailable
		logger.Warn().
			Dur("total_duration", time.Since(start)).
			Msg("health check failed")
	}

	return response.JSON(status, resp), nil
}

func (h *HealthHandler) healthChecks() config.HealthChecksConfig {
	if obs := h.server.Config.Observability; obs != nil {
		return obs.HealthChecks
	}
	return config.DefaultObservabilityConfig().HealthChecks
}

func (h *HealthHandler) runCheck(ctx context.Context, name string, timeout time.Duration) (CheckResult, error) {
	var target any
	switch name {
	case config.CheckLatex:
		target = h.server.Markup
	case config.CheckImage:
		target = h.server.Raster
	}
	if target == nil {
		return CheckResult{Status: statusDisabled}, nil
	}

	pinger, ok := target.(render.Pinger)
	if !ok {
		return CheckResult{Status: statusHealthy}, nil
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if err := pinger.Ping(ctx); err != nil {
		return CheckResult{
			Status:       statusUnhealthy,
			ResponseTime: time.Since(start).String(),
			Error:        messageCheckFailed,
		}, err
	}
	return CheckResult{
		Status:       statusHealthy,
		ResponseTime: time.Since(start).String(),
	}, nil
}
