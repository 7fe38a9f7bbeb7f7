// Package latex renders a LaTeX math subset to KaTeX-compatible markup.
//
// The output pairs a MathML tree (for assistive technology and copy/paste)
// with an HTML tree that KaTeX's stylesheet can lay out, so clients that
// already ship katex.css can display results without running KaTeX.
package latex

import (
	"context"
	"errors"
	"html"
	"strings"
)

// Renderer renders expressions with RenderToString. It holds no state and is
// safe for concurrent use.
type Renderer struct{}

// New returns a Renderer.
func New() *Renderer {
	return &Renderer{}
}

// RenderToString renders expr according to opts.
//
// With ThrowOnError set, a malformed expression returns a *ParseError. Without
// it the error is rendered in place as a katex-error span and err is nil.
// Context errors are always returned.
func (r *Renderer) RenderToString(ctx context.Context, expr string, opts Options) (string, error) {
	return RenderToString(ctx, expr, opts)
}

// Ping renders a fixed expression, proving the renderer is usable.
func (r *Renderer) Ping(ctx context.Context) error {
	_, err := r.RenderToString(ctx, `x^2`, DefaultOptions())
	return err
}

// RenderToString is the package-level form of Renderer.RenderToString.
func RenderToString(ctx context.Context, expr string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	opts = opts.normalized()

	body, err := parse(ctx, expr, opts)
	if err != nil {
		var perr *ParseError
		if !errors.As(err, &perr) {
			return "", err
		}
		perr.Input = expr
		if opts.ThrowOnError {
			return "", perr
		}
		return renderError(expr, perr, opts), nil
	}

	return render(expr, body, opts), nil
}

func render(expr string, body []node, opts Options) string {
	var b strings.Builder

	if opts.DisplayMode {
		class := "katex-display"
		if opts.Leqno {
			class += " leqno"
		}
		if opts.Fleqn {
			class += " fleqn"
		}
		b.WriteString(`<span class="` + class + `">`)
	}

	b.WriteString(`<span class="katex">`)
	switch opts.Output {
	case OutputMathML:
		b.WriteString(buildMathML(expr, body, opts))
	case OutputHTML:
		b.WriteString(buildHTML(body, opts, false))
	default:
		b.WriteString(`<span class="katex-mathml">`)
		b.WriteString(buildMathML(expr, body, opts))
		b.WriteString(`</span>`)
		b.WriteString(buildHTML(body, opts, true))
	}
	b.WriteString(`</span>`)

	if opts.DisplayMode {
		b.WriteString(`</span>`)
	}
	return b.String()
}

// renderError shows the raw expression in the error color with the message as
// a tooltip.
func renderError(expr string, perr *ParseError, opts Options) string {
	return `<span class="katex-error" title="` + html.EscapeString(perr.Error()) +
		`" style="color:` + html.EscapeString(opts.ErrorColor) + `">` +
		html.EscapeString(expr) + `</span>`
}
