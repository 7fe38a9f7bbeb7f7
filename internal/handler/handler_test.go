package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deppfellow/render-api/internal/config"
	"github.com/deppfellow/render-api/internal/dispatch"
	"github.com/deppfellow/render-api/internal/metrics"
	"github.com/deppfellow/render-api/internal/render/latex"
	"github.com/deppfellow/render-api/internal/render/raster"
	"github.com/deppfellow/render-api/internal/server"
	"github.com/deppfellow/render-api/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarkup struct {
	calls   int
	expr    string
	opts    latex.Options
	out     string
	err     error
	pingErr error
}

func (f *fakeMarkup) RenderToString(_ context.Context, expr string, opts latex.Options) (string, error) {
	f.calls++
	f.expr = expr
	f.opts = opts
	return f.out, f.err
}

func (f *fakeMarkup) Ping(context.Context) error { return f.pingErr }

type fakeRaster struct {
	calls   int
	html    string
	opts    raster.Options
	data    []byte
	err     error
	pingErr error
}

func (f *fakeRaster) Rasterize(_ context.Context, html string, opts raster.Options) ([]byte, error) {
	f.calls++
	f.html = html
	f.opts = opts
	return f.data, f.err
}

func (f *fakeRaster) Ping(context.Context) error { return f.pingErr }

type fixture struct {
	server   *server.Server
	handlers *Handlers
	markup   *fakeMarkup
	raster   *fakeRaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	obs := config.DefaultObservabilityConfig()
	obs.HealthChecks.Checks = []string{config.CheckLatex, config.CheckImage}

	f := &fixture{
		markup: &fakeMarkup{out: `<span class="katex">x</span>`},
		raster: &fakeRaster{data: []byte("\x89PNG\r\n")},
	}
	f.server = &server.Server{
		Config: &config.Config{
			Primary:       config.Primary{Env: "test"},
			API:           config.APIConfig{Prefix: "/api/v1"},
			Render:        config.RenderConfig{Latex: config.LatexConfig{MaxExpand: 200}},
			Observability: obs,
		},
		Markup:  f.markup,
		Raster:  f.raster,
		Metrics: metrics.New("test"),
	}

	services, err := service.NewServices(f.server)
	require.NoError(t, err)
	f.handlers = NewHandlers(f.server, services)
	return f
}

// call runs fn like the dispatcher would and writes its response to a recorder.
func call(t *testing.T, fn dispatch.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	res, err := fn(c)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NoError(t, res.Write(c))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (f *fixture) latex() dispatch.HandlerFunc {
	return Handle(f.handlers.Latex.Handler, "latex_html", LatexShape, f.handlers.Latex.RenderLatex)
}

func (f *fixture) image() dispatch.HandlerFunc {
	return Handle(f.handlers.Image.Handler, "html_image", ImageShape, f.handlers.Image.RenderImage)
}

func TestHandleInvalidJSON(t *testing.T) {
	for _, body := range []string{"", "{", "latex=x", `{"latex":"x"`} {
		f := newFixture(t)
		rec := call(t, f.latex(), http.MethodPost, body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.JSONEq(t, `{"error":"Invalid JSON"}`, rec.Body.String())
		assert.Zero(t, f.markup.calls)
	}
}

func TestLatexValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing latex",
			body: `{}`,
			want: `{"error":"Invalid input","details":[{"path":"latex","code":"required","message":"Required"}]}`,
		},
		{
			name: "empty latex",
			body: `{"latex":""}`,
			want: `{"error":"Invalid input","details":[{"path":"latex","code":"too_small","message":"LaTeX string cannot be empty"}]}`,
		},
		{
			name: "bad output enum",
			body: `{"latex":"x","options":{"output":"svg"}}`,
			want: `{"error":"Invalid input","details":[{"path":"options.output","code":"invalid_enum_value","message":"must be one of: html, mathml, htmlAndMathml"}]}`,
		},
		{
			name: "bad strict",
			body: `{"latex":"x","options":{"strict":1}}`,
			want: `{"error":"Invalid input","details":[{"path":"options.strict","code":"invalid_union","message":"Invalid input"}]}`,
		},
		{
			name: "non-object body",
			body: `["x"]`,
			want: `{"error":"Invalid input","details":[{"path":"","code":"invalid_type","message":"Expected object, received array"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := call(t, f.latex(), http.MethodPost, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
			assert.Zero(t, f.markup.calls)
		})
	}
}

func TestLatexRender(t *testing.T) {
	f := newFixture(t)
	rec := call(t, f.latex(), http.MethodPost, `{"latex":"x^2"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))
	assert.JSONEq(t, `{"html":"<span class=\"katex\">x</span>"}`, rec.Body.String())
	assert.Equal(t, 1, f.markup.calls)
	assert.Equal(t, "x^2", f.markup.expr)

	// Server defaults apply when no options are given.
	assert.Equal(t, 200, f.markup.opts.MaxExpand)
	assert.True(t, f.markup.opts.ThrowOnError)
	assert.Equal(t, latex.OutputHTMLAndMathML, f.markup.opts.Output)
}

func TestLatexOptionsMapping(t *testing.T) {
	f := newFixture(t)
	body := `{"latex":"\\R","options":{
		"displayMode":true,"output":"mathml","leqno":true,"fleqn":true,"throwOnError":false,
		"errorColor":"#00f","minRuleThickness":0.08,"colorIsTextColor":true,"maxSize":10,
		"maxExpand":-1,"strict":true,"trust":true,"globalGroup":true,
		"macros":{"\\RR":"\\mathbb{R}","\\sq":{"definition":"#1^2","numArgs":1}}}}`

	rec := call(t, f.latex(), http.MethodPost, body)
	require.Equal(t, http.StatusOK, rec.Code)

	opts := f.markup.opts
	assert.True(t, opts.DisplayMode)
	assert.Equal(t, latex.OutputMathML, opts.Output)
	assert.True(t, opts.Leqno)
	assert.True(t, opts.Fleqn)
	assert.False(t, opts.ThrowOnError)
	assert.Equal(t, "#00f", opts.ErrorColor)
	assert.Equal(t, 0.08, opts.MinRuleThickness)
	assert.True(t, opts.ColorIsTextColor)
	assert.Equal(t, 10.0, opts.MaxSize)
	assert.Equal(t, 200, opts.MaxExpand)
	assert.Equal(t, latex.StrictError, opts.Strict)
	assert.True(t, opts.Trust)
	assert.True(t, opts.GlobalGroup)
	assert.Equal(t, map[string]latex.Macro{
		`\RR`: {Definition: `\mathbb{R}`},
		`\sq`: {Definition: "#1^2", NumArgs: 1},
	}, opts.Macros)
}

func TestLatexMaxExpandClamped(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want int
	}{
		{`0`, 0},
		{`50`, 50},
		{`50.9`, 50},
		{`200`, 200},
		{`201`, 200},
		{`-1`, 200},
		{`1e20`, 200},
		{`-1e20`, 200},
	} {
		f := newFixture(t)
		rec := call(t, f.latex(), http.MethodPost, `{"latex":"x","options":{"maxExpand":`+tt.in+`}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tt.want, f.markup.opts.MaxExpand, tt.in)
	}
}

func TestLatexStrictStrings(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want latex.Strict
	}{
		{`false`, latex.StrictIgnore},
		{`"ignore"`, latex.StrictIgnore},
		{`"warn"`, latex.StrictWarn},
		{`"error"`, latex.StrictError},
	} {
		f := newFixture(t)
		rec := call(t, f.latex(), http.MethodPost, `{"latex":"x","options":{"strict":`+tt.in+`}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tt.want, f.markup.opts.Strict, tt.in)
	}
}

func TestLatexRendererFailure(t *testing.T) {
	f := newFixture(t)
	f.markup.err = &latex.ParseError{Message: "Undefined control sequence: \\frc", Position: 1}

	rec := call(t, f.latex(), http.MethodPost, `{"latex":"\\frc{1}{2}"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to render LaTeX"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "Undefined")
	assert.Equal(t, 1, f.markup.calls)
}

func TestLatexWithRealRenderer(t *testing.T) {
	f := newFixture(t)
	f.server.Markup = latex.New()

	rec := call(t, f.latex(), http.MethodPost, `{"latex":"\\frac{a}{b}","options":{"output":"mathml"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	html, _ := body["html"].(string)
	assert.Contains(t, html, "<mfrac>")
	assert.Contains(t, html, `<annotation encoding="application/x-tex">\frac{a}{b}</annotation>`)

	// Same input, same output.
	again := call(t, f.latex(), http.MethodPost, `{"latex":"\\frac{a}{b}","options":{"output":"mathml"}}`)
	assert.Equal(t, rec.Body.String(), again.Body.String())

	rec = call(t, f.latex(), http.MethodPost, `{"latex":"\\frac{a}"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to render LaTeX"}`, rec.Body.String())
}

func TestImageRender(t *testing.T) {
	f := newFixture(t)
	rec := call(t, f.image(), http.MethodPost, `{"html":"<p>hi</p>","options":{"width":320.7,"height":200,"quality":0.5,"pixelRatio":2,"style":{"fontSize":"20px"},"backgroundColor":"#fff"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Empty(t, rec.Header().Get(echo.HeaderContentDisposition))
	assert.Equal(t, "\x89PNG\r\n", rec.Body.String())

	assert.Equal(t, "<p>hi</p>", f.raster.html)
	assert.Equal(t, 320, f.raster.opts.Width)
	assert.Equal(t, 200, f.raster.opts.Height)
	assert.Equal(t, 2.0, f.raster.opts.PixelRatio)
	require.NotNil(t, f.raster.opts.Quality)
	assert.Equal(t, 0.5, *f.raster.opts.Quality)
	assert.Equal(t, map[string]any{"fontSize": "20px"}, f.raster.opts.Style)
	assert.Equal(t, "#fff", f.raster.opts.BackgroundColor)
}

func TestImageDownload(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		wantType        string
		wantDisposition string
	}{
		{
			name:            "named jpeg",
			body:            `{"html":"x","download":true,"filename":"chart","options":{"mimeType":"image/jpeg"}}`,
			wantType:        "image/jpeg",
			wantDisposition: `attachment; filename="chart.jpeg"`,
		},
		{
			name:            "default name",
			body:            `{"html":"x","download":true}`,
			wantType:        "image/png",
			wantDisposition: `attachment; filename="image.png"`,
		},
		{
			name:            "filename without download",
			body:            `{"html":"x","filename":"chart","options":{"mimeType":"image/webp"}}`,
			wantType:        "image/webp",
			wantDisposition: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := call(t, f.image(), http.MethodPost, tt.body)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantType, rec.Header().Get(echo.HeaderContentType))
			assert.Equal(t, tt.wantDisposition, rec.Header().Get(echo.HeaderContentDisposition))
		})
	}
}

func TestImageValidation(t *testing.T) {
	f := newFixture(t)
	rec := call(t, f.image(), http.MethodPost, `{"html":"x","options":{"quality":2,"foreignObjectRendering":"always"}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid input","details":[
		{"path":"options.foreignObjectRendering","code":"invalid_enum_value","message":"must be one of: auto, user"},
		{"path":"options.quality","code":"too_big","message":"must not exceed 1"}
	]}`, rec.Body.String())
	assert.Zero(t, f.raster.calls)
}

func TestImageRendererFailure(t *testing.T) {
	f := newFixture(t)
	f.raster.err = errors.New("chrome crashed at 0xdeadbeef")

	rec := call(t, f.image(), http.MethodPost, `{"html":"<p>x</p>"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to convert HTML to image"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "chrome")
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := call(t, f.handlers.Health.CheckHealth, http.MethodGet, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["environment"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["latex"].(map[string]any)["status"])
	assert.Equal(t, "healthy", checks["image"].(map[string]any)["status"])
}

func TestHealthUnhealthy(t *testing.T) {
	f := newFixture(t)
	f.raster.pingErr = errors.New("browser unreachable: /usr/bin/chromium")

	rec := call(t, f.handlers.Health.CheckHealth, http.MethodGet, "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "unhealthy", body["status"])
	image := body["checks"].(map[string]any)["image"].(map[string]any)
	assert.Equal(t, "unhealthy", image["status"])
	assert.Equal(t, "check failed", image["error"])
	assert.NotContains(t, rec.Body.String(), "browser unreachable")
}

func TestHealthImageDisabled(t *testing.T) {
	f := newFixture(t)
	f.server.Raster = nil

	rec := call(t, f.handlers.Health.CheckHealth, http.MethodGet, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	image := decode(t, rec)["checks"].(map[string]any)["image"].(map[string]any)
	assert.Equal(t, "disabled", image["status"])
}

func TestOpenAPI(t *testing.T) {
	f := newFixture(t)
	rec := call(t, f.handlers.OpenAPI.ServeOpenAPI, http.MethodGet, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get(echo.HeaderCacheControl))
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))

	body := decode(t, rec)
	assert.Equal(t, "3.0.3", body["openapi"])
	assert.Equal(t, []any{map[string]any{"url": "/api/v1"}}, body["servers"])
	paths := body["paths"].(map[string]any)
	assert.Contains(t, paths, "/latex-html")
	assert.Contains(t, paths, "/html-image")
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	call(t, f.latex(), http.MethodPost, `{"latex":"x"}`)

	rec := call(t, f.handlers.Metrics.ServeMetrics, http.MethodGet, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/plain"))
	assert.Contains(t, rec.Body.String(), `test_render_operations_total{kind="latex",outcome="success"} 1`)
}

func TestNewHandlersWithoutImage(t *testing.T) {
	f := newFixture(t)
	f.server.Raster = nil

	services, err := service.NewServices(f.server)
	require.NoError(t, err)
	assert.Nil(t, NewHandlers(f.server, services).Image)
}
