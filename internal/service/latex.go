package service

import (
	"context"
	"time"

	"github.com/deppfellow/render-api/internal/render/latex"
	"github.com/deppfellow/render-api/internal/server"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

type LatexService struct {
	server *server.Server
}

func NewLatexService(s *server.Server) *LatexService {
	return &LatexService{server: s}
}

// DefaultOptions returns the renderer defaults with the configured expansion limit.
func (s *LatexService) DefaultOptions() latex.Options {
	opts := latex.DefaultOptions()
	if limit := s.server.Config.Render.Latex.MaxExpand; limit > 0 {
		opts.MaxExpand = limit
	}
	return opts
}

// RenderToString renders expr with opts. Strict-mode warnings go to the request logger.
func (s *LatexService) RenderToString(ctx context.Context, expr string, opts latex.Options) (string, error) {
	logger := zerolog.Ctx(ctx)
	txn := newrelic.FromContext(ctx)
	if txn != nil {
		txn.AddAttribute("render.kind", KindLatex)
		txn.AddAttribute("latex.length", len(expr))
		txn.AddAttribute("latex.display_mode", opts.DisplayMode)
	}

	if opts.OnWarning == nil {
		opts.OnWarning = func(msg string) {
			logger.Warn().Str("render_kind", KindLatex).Msg(msg)
		}
	}

	start := time.Now()
	segment := startSegment(txn, KindLatex)
	markup, err := s.server.Markup.RenderToString(ctx, expr, opts)
	if err := observe(s.server, logger, txn, segment, KindLatex, start, err); err != nil {
		return "", err
	}
	return markup, nil
}
