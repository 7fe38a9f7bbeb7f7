// Package service contains the business logic.
//
// It sits between the handler layer and the renderers.
// It receives validated options from the handler, calls the
// renderer once, and records the outcome in logs, traces and metrics.
// Renderer failures are reported upstream as ErrRenderFailed so
// nothing renderer-specific reaches the client.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/deppfellow/render-api/internal/server"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

// ErrRenderFailed wraps every renderer failure returned by a service.
var ErrRenderFailed = errors.New("render failed")

// Render kinds, used as the metrics label and in log fields.
const (
	KindLatex = "latex"
	KindImage = "image"
)

type Services struct {
	Latex *LatexService

	// Image is nil when the HTML-to-image backend is disabled.
	Image *ImageService
}

func NewServices(s *server.Server) (*Services, error) {
	if s == nil {
		return nil, errors.New("server is required")
	}

	services := &Services{
		Latex: NewLatexService(s),
	}
	if s.Raster != nil {
		services.Image = NewImageService(s)
	}
	return services, nil
}

// observe closes out one renderer call: it ends the segment, records metrics,
// logs the outcome and maps a failure to ErrRenderFailed.
func observe(s *server.Server, logger *zerolog.Logger, txn *newrelic.Transaction, segment *newrelic.Segment, kind string, start time.Time, err error) error {
	elapsed := time.Since(start)
	if segment != nil {
		segment.End()
	}
	s.Metrics.ObserveRender(kind, err, elapsed)

	if err != nil {
		logger.Error().
			Err(err).
			Str("render_kind", kind).
			Dur("render_duration", elapsed).
			Msg("renderer failed")

		if txn != nil {
			txn.NoticeError(nrpkgerrors.Wrap(err))
			txn.AddAttribute("render.status", "failed")
		}
		return fmt.Errorf("%w: %s: %w", ErrRenderFailed, kind, err)
	}

	logger.Debug().
		Str("render_kind", kind).
		Dur("render_duration", elapsed).
		Msg("renderer succeeded")

	if txn != nil {
		txn.AddAttribute("render.status", "success")
		txn.AddAttribute("render.duration_ms", elapsed.Milliseconds())
	}
	return nil
}

func startSegment(txn *newrelic.Transaction, kind string) *newrelic.Segment {
	if txn == nil {
		return nil
	}
	return txn.StartSegment("render/" + kind)
}
