// Package render declares the renderer collaborators the HTTP layer depends on.
//
// Handlers and services only see these interfaces; the concrete backends live
// in the latex and raster subpackages and are chosen in server.New.
package render

import (
	"context"

	"github.com/deppfellow/render-api/internal/render/latex"
	"github.com/deppfellow/render-api/internal/render/raster"
)

// MarkupRenderer turns a LaTeX expression into HTML/MathML markup.
type MarkupRenderer interface {
	RenderToString(ctx context.Context, expr string, opts latex.Options) (string, error)
}

// Rasterizer turns an HTML fragment into an encoded image.
type Rasterizer interface {
	Rasterize(ctx context.Context, html string, opts raster.Options) ([]byte, error)
}

// Pinger is implemented by renderers that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Closer is implemented by renderers that hold external resources.
type Closer interface {
	Close() error
}

var (
	_ MarkupRenderer = (*latex.Renderer)(nil)
	_ Rasterizer     = (*raster.Rasterizer)(nil)
	_ Pinger         = (*latex.Renderer)(nil)
	_ Pinger         = (*raster.Rasterizer)(nil)
	_ Closer         = (*raster.Rasterizer)(nil)
)
