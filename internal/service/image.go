package service

import (
	"context"
	"errors"
	"time"

	"github.com/deppfellow/render-api/internal/render/raster"
	"github.com/deppfellow/render-api/internal/server"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

type ImageService struct {
	server *server.Server
}

func NewImageService(s *server.Server) *ImageService {
	return &ImageService{server: s}
}

// Rasterize converts an HTML fragment to an image encoded as opts.MimeType.
func (s *ImageService) Rasterize(ctx context.Context, html string, opts raster.Options) ([]byte, error) {
	logger := zerolog.Ctx(ctx)
	txn := newrelic.FromContext(ctx)
	if txn != nil {
		txn.AddAttribute("render.kind", KindImage)
		txn.AddAttribute("image.mime_type", opts.MimeTypeOrDefault())
		txn.AddAttribute("html.length", len(html))
	}

	start := time.Now()
	segment := startSegment(txn, KindImage)

	var (
		data []byte
		err  error
	)
	if s.server.Raster == nil {
		err = errors.New("image rendering is disabled")
	} else {
		data, err = s.server.Raster.Rasterize(ctx, html, opts)
	}
	if err == nil && len(data) == 0 {
		err = errors.New("rasterizer returned no data")
	}

	if err := observe(s.server, logger, txn, segment, KindImage, start, err); err != nil {
		return nil, err
	}
	return data, nil
}
