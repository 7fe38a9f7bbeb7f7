package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deppfellow/render-api/internal/dispatch"
	"github.com/deppfellow/render-api/internal/errs"
	"github.com/deppfellow/render-api/internal/middleware"
	"github.com/deppfellow/render-api/internal/response"
	"github.com/deppfellow/render-api/internal/server"
	"github.com/deppfellow/render-api/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
)

// Handler is the base handler type that holds shared application dependencies.
//
// It is embedded by concrete handlers (e.g., LatexHandler, HealthHandler) so they can
// access shared resources via *server.Server (config, logger, renderers, metrics).
type Handler struct {
	server *server.Server
}

// NewHandler constructs a base Handler.
func NewHandler(s *server.Server) Handler {
	return Handler{server: s}
}

// --- Generic typed handler plumbing -----------------------------------------

// HandlerFunc is a typed endpoint function that receives a validated, decoded
// request payload and returns the response to send.
type HandlerFunc[Req any] func(c echo.Context, req *Req) (*response.Response, error)

// Handle wraps a typed handler with body parsing, validation, logging and tracing.
//
// The returned function is registered in the route table:
//
//	table.Register(dispatch.Route{Method: dispatch.MethodPost, Path: "/latex-html",
//		Handler: handler.Handle(h, "latex_html", latexShape, h.RenderLatex)})
//
// Steps, each of which may end the request:
//  1. the body is parsed as JSON, or 400 "Invalid JSON"
//  2. the value is validated against shape, or 400 "Invalid input" with details
//  3. the valid value is decoded into Req and handler runs
func Handle[Req any](h Handler, name string, shape validation.Shape, handler HandlerFunc[Req]) dispatch.HandlerFunc {
	return func(c echo.Context) (*response.Response, error) {
		return handleRequest(c, name, shape, handler)
	}
}

// handleRequest is the shared execution pipeline for all JSON endpoints.
func handleRequest[Req any](c echo.Context, name string, shape validation.Shape, handler HandlerFunc[Req]) (*response.Response, error) {
	start := time.Now()

	// New Relic transaction is set by the New Relic Echo middleware (nrecho).
	txn := newrelic.FromContext(c.Request().Context())
	if txn != nil {
		txn.AddAttribute("handler.name", name)
	}

	logger := middleware.GetLogger(c).With().
		Str("operation", "handler").
		Str("handler", name).
		Logger()

	logger.Debug().Msg("handling request")

	// ---------------- Parse phase --------------------------------------------
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) && echoErr.Code == http.StatusRequestEntityTooLarge {
			logger.Warn().Err(err).Msg("request body too large")
			return response.Error(errs.NewPayloadTooLargeError()), nil
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	var input any
	if err := json.Unmarshal(body, &input); err != nil {
		logger.Warn().
			Err(err).
			Int("body_bytes", len(body)).
			Msg("request body is not valid JSON")

		if txn != nil {
			txn.AddAttribute("validation.status", "invalid_json")
		}
		return response.Error(errs.NewInvalidJSONError()), nil
	}

	// ---------------- Validation phase ---------------------------------------
	validationStart := time.Now()

	var req Req
	result, err := validation.ValidateInto(c.Request().Context(), shape, input, &req)
	validationDuration := time.Since(validationStart)
	if err != nil {
		return nil, err
	}

	if txn != nil {
		txn.AddAttribute("validation.duration_ms", validationDuration.Milliseconds())
	}

	if !result.Valid() {
		logger.Warn().
			Int("violations", len(result.Violations)).
			Str("first_violation", result.Violations[0].Path).
			Dur("validation_duration", validationDuration).
			Msg("request validation failed")

		if txn != nil {
			txn.AddAttribute("validation.status", "failed")
		}
		return response.Error(errs.NewValidationError(result.Violations)), nil
	}

	if txn != nil {
		txn.AddAttribute("validation.status", "success")
	}

	// ---------------- Handler execution phase --------------------------------
	handlerStart := time.Now()
	res, err := handler(c, &req)
	handlerDuration := time.Since(handlerStart)

	if txn != nil {
		txn.AddAttribute("handler.duration_ms", handlerDuration.Milliseconds())
		txn.AddAttribute("total.duration_ms", time.Since(start).Milliseconds())
	}

	if err != nil {
		// The dispatcher logs the failure and answers with the generic 500.
		return nil, err
	}

	event := logger.Info()
	if res != nil && res.Status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	if res != nil {
		event = event.Int("status", res.Status)
	}
	event.
		Dur("validation_duration", validationDuration).
		Dur("handler_duration", handlerDuration).
		Dur("total_duration", time.Since(start)).
		Msg("request completed")

	return res, nil
}
