package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deppfellow/render-api/internal/errs"
	"github.com/deppfellow/render-api/internal/metrics"
	"github.com/deppfellow/render-api/internal/middleware"
	"github.com/deppfellow/render-api/internal/response"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
)

// unmatchedRoute labels metrics for requests no route answered.
const unmatchedRoute = "unmatched"

// Dispatcher resolves each request against a sealed RouteTable and runs the
// matching handler inside a failure boundary.
//
// States per request:
//
//	Received -> Parsed -> Matched -> Handling -> Responded
//
// with a direct jump to Responded(error) from any of them. Whatever branch is
// taken, exactly one response envelope is written.
type Dispatcher struct {
	table   *RouteTable
	timeout time.Duration
	metrics *metrics.Metrics
}

// Option configures a Dispatcher.
type Option func(d *Dispatcher)

// WithTimeout installs a deadline on the request context before the handler
// runs. Zero or negative disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher seals table and returns a dispatcher serving from it.
func NewDispatcher(table *RouteTable, opts ...Option) *Dispatcher {
	table.Seal()

	d := &Dispatcher{table: table}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Table returns the route table the dispatcher serves from.
func (d *Dispatcher) Table() *RouteTable {
	return d.table
}

// Serve is an echo.HandlerFunc. It always writes the response itself and only
// returns the error of the final write, if any.
func (d *Dispatcher) Serve(c echo.Context) error {
	start := time.Now()

	// Received -> Parsed
	method := c.Request().Method
	pathname := c.Request().URL.Path

	// Parsed -> Matched
	route, ok := d.table.Find(method, pathname)
	if !ok {
		middleware.GetLogger(c).Debug().
			Str("pathname", pathname).
			Msg("no route matched")

		return d.respond(c, method, unmatchedRoute, response.Error(errs.NewRouteNotFoundError()), start)
	}

	// Matched -> Handling
	res, err := d.invoke(c, route)
	if err == nil && res == nil {
		err = fmt.Errorf("handler for %s %s returned no response", route.Method, route.Path)
	}
	if err != nil {
		d.reportFailure(c, route, err)
		res = response.Error(errs.NewInternalServerError(""))
	}

	// Handling -> Responded
	return d.respond(c, method, route.Path, res, start)
}

// invoke runs the handler, turning a panic into an error. http.ErrAbortHandler
// is re-raised so net/http can abort the connection as requested.
func (d *Dispatcher) invoke(c echo.Context, route Route) (res *response.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			if r == http.ErrAbortHandler {
				panic(r)
			}

			if e, ok := r.(error); ok {
				err = errors.WithStack(e)
			} else {
				err = errors.Errorf("panic: %v", r)
			}
			res = nil
		}
	}()

	if d.timeout > 0 {
		ctx, cancel := context.WithTimeout(c.Request().Context(), d.timeout)
		defer cancel()
		c.SetRequest(c.Request().WithContext(ctx))
	}

	return route.Handler(c)
}

func (d *Dispatcher) reportFailure(c echo.Context, route Route, err error) {
	middleware.GetLogger(c).Error().Stack().
		Err(err).
		Str("route", route.Path).
		Msg("handler failed")

	if txn := newrelic.FromContext(c.Request().Context()); txn != nil {
		txn.NoticeError(nrpkgerrors.Wrap(err))
	}
}

func (d *Dispatcher) respond(c echo.Context, method, routeLabel string, res *response.Response, start time.Time) error {
	if c.Response().Committed {
		// Something upstream already wrote; a second envelope would corrupt the stream.
		middleware.GetLogger(c).Warn().
			Str("route", routeLabel).
			Int("status", res.Status).
			Msg("response already committed, dropping envelope")
		d.metrics.ObserveRequest(method, routeLabel, c.Response().Status, time.Since(start))
		return nil
	}

	err := res.Write(c)
	d.metrics.ObserveRequest(method, routeLabel, res.Status, time.Since(start))
	return err
}
