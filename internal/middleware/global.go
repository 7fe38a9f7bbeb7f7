package middleware

import (
	"net/http"

	"github.com/deppfellow/render-api/internal/errs"
	"github.com/deppfellow/render-api/internal/response"
	"github.com/deppfellow/render-api/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// GlobalMiddlewares groups "global" middleware and the global error handler.
//
// A struct lets every middleware read config values (CORS origins, body limit,
// slow request threshold) from the shared *server.Server.
type GlobalMiddlewares struct {
	server *server.Server
}

// NewGlobalMiddlewares constructs the middleware bundle.
func NewGlobalMiddlewares(s *server.Server) *GlobalMiddlewares {
	return &GlobalMiddlewares{
		server: s,
	}
}

// RouteMatcher reports whether a route is registered for method and path.
type RouteMatcher func(method, path string) bool

// CORS returns Echo's CORS middleware configured by your server config.
//
// With no configured origins every origin is allowed, which is echo's default.
// Echo answers preflights itself, so an OPTIONS request is only handed to it
// when it is a real preflight for a registered route. Any other OPTIONS
// request goes on to the dispatcher and gets "Route not found".
func (global *GlobalMiddlewares) CORS(routes RouteMatcher) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: global.server.Config.Server.CORSAllowedOrigins,
		Skipper: func(c echo.Context) bool {
			return !corsApplies(c.Request(), routes)
		},
	})
}

func corsApplies(r *http.Request, routes RouteMatcher) bool {
	if r.Method != http.MethodOptions {
		// Plain requests only get the CORS response headers.
		return true
	}
	method := r.Header.Get(echo.HeaderAccessControlRequestMethod)
	if r.Header.Get(echo.HeaderOrigin) == "" || method == "" {
		return false
	}
	return routes != nil && routes(method, r.URL.Path)
}

// BodyLimit rejects request bodies above server.body_limit (e.g. "2M") with 413.
//
// Only requests for a registered route are limited. Unmatched requests are
// answered with "Route not found" without their body being read.
func (global *GlobalMiddlewares) BodyLimit(routes RouteMatcher) echo.MiddlewareFunc {
	return middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: global.server.Config.Server.BodyLimit,
		Skipper: func(c echo.Context) bool {
			r := c.Request()
			return routes != nil && !routes(r.Method, r.URL.Path)
		},
	})
}

// RequestLogger returns Echo's request logger middleware with a zerolog LogValuesFunc.
//
// It produces one "API" log line per request, with severity based on status.
// Requests slower than observability.logging.slow_request_threshold are flagged.
func (global *GlobalMiddlewares) RequestLogger() echo.MiddlewareFunc {
	var slowThreshold int64
	if obs := global.server.Config.Observability; obs != nil {
		slowThreshold = int64(obs.Logging.SlowRequestThreshold)
	}

	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogLatency: true,
		LogHost:    true,
		LogMethod:  true,
		LogURIPath: true,

		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			statusCode := v.Status

			// When a handler returns an error, Echo may not have written the final status yet.
			// The GlobalErrorHandler decides it later, so derive it from the error here.
			// Reference: https://github.com/labstack/echo/issues/2310#issuecomment-1288196898
			if v.Error != nil {
				statusCode = errorStatus(v.Error)
			}

			logger := GetLogger(c)
			slow := slowThreshold > 0 && int64(v.Latency) > slowThreshold

			var e *zerolog.Event
			switch {
			case statusCode >= 500:
				e = logger.Error().Err(v.Error)
			case statusCode >= 400, slow:
				e = logger.Warn()
			default:
				e = logger.Info()
			}

			if requestID := GetRequestID(c); requestID != "" {
				e = e.Str("request_id", requestID)
			}
			if slow {
				e = e.Bool("slow", true)
			}

			e.
				Dur("latency", v.Latency).
				Int("status", statusCode).
				Str("method", v.Method).
				Str("uri", v.URI).
				Str("host", v.Host).
				Str("ip", c.RealIP()).
				Str("user_agent", c.Request().UserAgent()).
				Msg("API")

			return nil
		},
	})
}

// Recover returns Echo's panic recovery middleware.
//
// Handler panics are already contained by the dispatcher; this catches panics
// raised by middleware.
func (global *GlobalMiddlewares) Recover() echo.MiddlewareFunc {
	return middleware.Recover()
}

// Secure returns Echo's secure headers middleware.
func (global *GlobalMiddlewares) Secure() echo.MiddlewareFunc {
	return middleware.Secure()
}

// GlobalErrorHandler is the final error funnel for the entire HTTP server.
//
// The dispatcher answers every request it sees, so what lands here comes from
// echo itself or from middleware: unknown methods and paths outside the catch-all
// become "Route not found", oversized bodies keep 413 and anything else is a
// generic 500. The client always gets the standard error envelope.
func (global *GlobalMiddlewares) GlobalErrorHandler(err error, c echo.Context) {
	httpErr := toHTTPError(err)

	logger := GetLogger(c)
	var e *zerolog.Event
	if httpErr.Status >= http.StatusInternalServerError {
		e = logger.Error().Stack()
	} else {
		e = logger.Warn()
	}
	e.Err(err).
		Int("status", httpErr.Status).
		Str("error_code", httpErr.Code).
		Msg(httpErr.Message)

	if c.Response().Committed {
		return
	}
	if err := response.Error(httpErr).Write(c); err != nil {
		logger.Error().Err(err).Msg("failed to write error response")
	}
}

// toHTTPError maps any error onto the public error taxonomy.
func toHTTPError(err error) *errs.HTTPError {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		switch echoErr.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			return errs.NewRouteNotFoundError()
		case http.StatusRequestEntityTooLarge:
			return errs.NewPayloadTooLargeError()
		}
	}

	return errs.NewInternalServerError("")
}

// errorStatus is the status GlobalErrorHandler will answer err with.
func errorStatus(err error) int {
	return toHTTPError(err).Status
}
