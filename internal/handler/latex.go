package handler

import (
	"math"
	"net/http"

	"github.com/deppfellow/render-api/internal/errs"
	"github.com/deppfellow/render-api/internal/render/latex"
	"github.com/deppfellow/render-api/internal/response"
	"github.com/deppfellow/render-api/internal/server"
	"github.com/deppfellow/render-api/internal/service"
	"github.com/deppfellow/render-api/internal/validation"
	"github.com/labstack/echo/v4"
	g "github.com/reoring/goskema/dsl"
)

// MessageLatexFailed is the 500 message for any LaTeX renderer failure.
const MessageLatexFailed = "Failed to render LaTeX"

// macroShape is a macro body, or a body with an argument count.
var macroShape = validation.OneOf(
	validation.Alt(validation.String()),
	validation.Alt(g.Object().
		Field("definition", g.SchemaOf(validation.String())).Required().
		Field("numArgs", g.SchemaOf(validation.Number())).
		UnknownStrip().
		MustBuild()),
)

// LatexShape is the request body of POST /latex-html.
var LatexShape = g.Object().
	Field("latex", g.SchemaOf(validation.String(validation.Rule{Tag: "min=1", Message: "LaTeX string cannot be empty"}))).Required().
	Field("options", g.SchemaOf(latexOptionsShape)).
	UnknownStrip().
	MustBuild()

var latexOptionsShape = g.Object().
	Field("displayMode", g.SchemaOf(validation.Bool())).
	Field("output", g.SchemaOf(validation.String(validation.Rule{Tag: "oneof=html mathml htmlAndMathml"}))).
	Field("leqno", g.SchemaOf(validation.Bool())).
	Field("fleqn", g.SchemaOf(validation.Bool())).
	Field("throwOnError", g.SchemaOf(validation.Bool())).
	Field("errorColor", g.SchemaOf(validation.String())).
	Field("macros", g.MapOf(macroShape)).
	Field("minRuleThickness", g.SchemaOf(validation.Number())).
	Field("colorIsTextColor", g.SchemaOf(validation.Bool())).
	Field("maxSize", g.SchemaOf(validation.Number())).
	Field("maxExpand", g.SchemaOf(validation.Number())).
	Field("strict", g.SchemaOf(validation.OneOf(
		validation.Alt(validation.Bool()),
		validation.Alt(validation.String(validation.Rule{Tag: "oneof=ignore warn error"})),
	))).
	Field("trust", g.SchemaOf(validation.Bool())).
	Field("globalGroup", g.SchemaOf(validation.Bool())).
	UnknownStrip().
	MustBuild()

type LatexRequest struct {
	Latex   string        `json:"latex"`
	Options *LatexOptions `json:"options"`
}

// LatexOptions uses pointers so "absent" keeps the server default.
type LatexOptions struct {
	DisplayMode      *bool          `json:"displayMode"`
	Output           *string        `json:"output"`
	Leqno            *bool          `json:"leqno"`
	Fleqn            *bool          `json:"fleqn"`
	ThrowOnError     *bool          `json:"throwOnError"`
	ErrorColor       *string        `json:"errorColor"`
	Macros           map[string]any `json:"macros"`
	MinRuleThickness *float64       `json:"minRuleThickness"`
	ColorIsTextColor *bool          `json:"colorIsTextColor"`
	MaxSize          *float64       `json:"maxSize"`
	MaxExpand        *float64       `json:"maxExpand"`
	Strict           any            `json:"strict"`
	Trust            *bool          `json:"trust"`
	GlobalGroup      *bool          `json:"globalGroup"`
}

type LatexResponse struct {
	HTML string `json:"html"`
}

type LatexHandler struct {
	Handler
	latexService *service.LatexService
}

func NewLatexHandler(s *server.Server, latexService *service.LatexService) *LatexHandler {
	return &LatexHandler{
		Handler:      NewHandler(s),
		latexService: latexService,
	}
}

// RenderLatex renders the expression and answers {"html": "..."}.
func (h *LatexHandler) RenderLatex(c echo.Context, req *LatexRequest) (*response.Response, error) {
	opts := req.Options.apply(h.latexService.DefaultOptions())

	markup, err := h.latexService.RenderToString(c.Request().Context(), req.Latex, opts)
	if err != nil {
		return response.Error(errs.NewInternalServerError(MessageLatexFailed)), nil
	}

	return response.JSON(http.StatusOK, LatexResponse{HTML: markup}), nil
}

// apply overlays the request options on base.
func (o *LatexOptions) apply(base latex.Options) latex.Options {
	if o == nil {
		return base
	}

	opts := base
	setIf(&opts.DisplayMode, o.DisplayMode)
	setIf(&opts.Leqno, o.Leqno)
	setIf(&opts.Fleqn, o.Fleqn)
	setIf(&opts.ThrowOnError, o.ThrowOnError)
	setIf(&opts.ErrorColor, o.ErrorColor)
	setIf(&opts.MinRuleThickness, o.MinRuleThickness)
	setIf(&opts.ColorIsTextColor, o.ColorIsTextColor)
	setIf(&opts.MaxSize, o.MaxSize)
	setIf(&opts.Trust, o.Trust)
	setIf(&opts.GlobalGroup, o.GlobalGroup)

	if o.Output != nil {
		opts.Output = latex.Output(*o.Output)
	}
	if o.MaxExpand != nil {
		opts.MaxExpand = clampExpand(*o.MaxExpand, base.MaxExpand)
	}

	switch strict := o.Strict.(type) {
	case bool:
		if strict {
			opts.Strict = latex.StrictError
		} else {
			opts.Strict = latex.StrictIgnore
		}
	case string:
		opts.Strict = latex.Strict(strict)
	}

	if len(o.Macros) > 0 {
		opts.Macros = make(map[string]latex.Macro, len(o.Macros))
		for name, def := range o.Macros {
			opts.Macros[name] = toMacro(def)
		}
	}

	return opts
}

// toMacro accepts the two validated macro forms: "definition" or
// {"definition": "...", "numArgs": n}.
func toMacro(def any) latex.Macro {
	switch v := def.(type) {
	case string:
		return latex.Macro{Definition: v}
	case map[string]any:
		m := latex.Macro{}
		m.Definition, _ = v["definition"].(string)
		if n, ok := v["numArgs"].(float64); ok {
			m.NumArgs = int(n)
		}
		return m
	}
	return latex.Macro{}
}

// clampExpand keeps a requested maxExpand within [0, ceiling]. Out of range
// values fall back to the ceiling.
func clampExpand(v float64, ceiling int) int {
	if math.IsNaN(v) || v < 0 || v > float64(ceiling) {
		return ceiling
	}
	return int(v)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
