package raster

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestScreenshotFormat(t *testing.T) {
	tests := []struct {
		mime string
		want proto.PageCaptureScreenshotFormat
	}{
		{"", proto.PageCaptureScreenshotFormatPng},
		{MimePNG, proto.PageCaptureScreenshotFormatPng},
		{MimeJPEG, proto.PageCaptureScreenshotFormatJpeg},
		{MimeWebP, proto.PageCaptureScreenshotFormatWebp},
	}
	for _, tt := range tests {
		got, err := screenshotFormat(tt.mime)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := screenshotFormat("image/gif")
	assert.Error(t, err)
}

func TestScreenshotQuality(t *testing.T) {
	assert.Equal(t, 100, screenshotQuality(nil))
	assert.Equal(t, 0, screenshotQuality(ptr(0.0)))
	assert.Equal(t, 85, screenshotQuality(ptr(0.85)))
	assert.Equal(t, 100, screenshotQuality(ptr(3.0)))
}

func TestViewport(t *testing.T) {
	vp := Options{}.viewport(800, 600)
	assert.Equal(t, viewport{width: 800, height: 600, scale: 1}, vp)

	vp = Options{Width: 300, Height: 200, PixelRatio: 2}.viewport(800, 600)
	assert.Equal(t, viewport{width: 300, height: 200, scale: 2}, vp)

	vp = Options{Width: 300, CanvasWidth: 1024, CanvasHeight: 768}.viewport(800, 600)
	assert.Equal(t, viewport{width: 1024, height: 768, scale: 1}, vp)
}

func TestWrapperStyle(t *testing.T) {
	opts := Options{
		Width:           320,
		Height:          240,
		BackgroundColor: "#fafafa",
		Style: map[string]any{
			"fontSize":   "20px",
			"padding":    8,
			"color":      "red;position:fixed",
			"bad key!":   "x",
			"lineHeight": "",
		},
	}

	assert.Equal(t,
		"width:320px;height:240px;background-color:#fafafa;color:redposition:fixed;font-size:20px;padding:8",
		opts.wrapperStyle())
}

func TestWrapperStyleJPEGBackground(t *testing.T) {
	assert.Equal(t, "background-color:#ffffff", Options{MimeType: MimeJPEG}.wrapperStyle())
	assert.Equal(t, "", Options{MimeType: MimePNG}.wrapperStyle())
}

func TestBuildDocument(t *testing.T) {
	doc := buildDocument(`<p class="x">Hello</p>`, Options{Width: 100, BackgroundColor: `"><script>`})

	assert.Contains(t, doc, `<div id="render-root" style="width:100px;background-color:script">`)
	assert.Contains(t, doc, `<p class="x">Hello</p></div>`)
	assert.NotContains(t, doc, `"><script>`)
}

func TestBuildDocumentContentPolicy(t *testing.T) {
	doc := buildDocument(`<img src="http://10.0.0.1/">`, Options{})

	assert.Contains(t, doc, `<meta http-equiv="Content-Security-Policy" content="default-src 'none'; img-src data:;`)
	assert.Less(t, strings.Index(doc, "Content-Security-Policy"), strings.Index(doc, `<img`))
}

func TestAllowedURL(t *testing.T) {
	tests := map[string]bool{
		"data:image/png;base64,AAAA":    true,
		"DATA:text/css,b{}":             true,
		"http://169.254.169.254/latest": false,
		"https://example.com/a.png":     false,
		"file:///etc/passwd":            false,
		"ws://localhost:9222":           false,
		"about:blank":                   false,
	}
	for u, want := range tests {
		assert.Equal(t, want, allowedURL(u), u)
	}
}

func TestDiscardOnlyDropsCachedBrowser(t *testing.T) {
	r := New(Config{}, nil)
	cached := rod.New()
	r.browser = cached

	r.discard(rod.New())
	assert.Same(t, cached, r.browser)

	r.discard(cached)
	assert.Nil(t, r.browser)
	assert.Nil(t, r.launcher)
}

func TestMimeTypeOrDefault(t *testing.T) {
	assert.Equal(t, MimePNG, Options{}.MimeTypeOrDefault())
	assert.Equal(t, MimeWebP, Options{MimeType: MimeWebP}.MimeTypeOrDefault())
}

func TestRasterizeAfterClose(t *testing.T) {
	r := New(Config{}, nil)
	require.NoError(t, r.Close())

	_, err := r.Rasterize(context.Background(), "<p>x</p>", Options{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.Ping(context.Background()), ErrClosed)
}

func TestRasterizeRejectsUnknownFormat(t *testing.T) {
	r := New(Config{}, nil)
	defer r.Close()

	_, err := r.Rasterize(context.Background(), "<p>x</p>", Options{MimeType: "image/bmp"})
	assert.Error(t, err)
}

// TestRasterizeBrowser needs a Chromium binary; set RENDERAPI_TEST_BROWSER=1 to run it.
func TestRasterizeBrowser(t *testing.T) {
	if os.Getenv("RENDERAPI_TEST_BROWSER") == "" {
		t.Skip("RENDERAPI_TEST_BROWSER not set")
	}

	r := New(Config{NoSandbox: true, DefaultWidth: 200, DefaultHeight: 100}, nil)
	defer r.Close()

	require.NoError(t, r.Ping(context.Background()))

	png, err := r.Rasterize(context.Background(), `<b>hello</b>`, Options{Width: 120, Height: 40})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	jpeg, err := r.Rasterize(context.Background(), `<b>hello</b>`, Options{MimeType: MimeJPEG, Quality: ptr(0.5)})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(jpeg, []byte{0xff, 0xd8}))
}

func TestRasterizeBrowserIsolation(t *testing.T) {
	if os.Getenv("RENDERAPI_TEST_BROWSER") == "" {
		t.Skip("RENDERAPI_TEST_BROWSER not set")
	}

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	r := New(Config{NoSandbox: true, DefaultWidth: 200, DefaultHeight: 100}, nil)
	defer r.Close()

	content := `<img src="` + srv.URL + `/a.png">` +
		`<link rel="stylesheet" href="` + srv.URL + `/a.css">` +
		`<script>fetch("` + srv.URL + `/script")</script>` +
		`<img src="data:image/gif;base64,R0lGODlhAQABAAAAACw=">`

	png, err := r.Rasterize(context.Background(), content, Options{Width: 50, Height: 50})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	assert.Zero(t, hits.Load())
}

func TestRasterizeRestartsLostBrowser(t *testing.T) {
	if os.Getenv("RENDERAPI_TEST_BROWSER") == "" {
		t.Skip("RENDERAPI_TEST_BROWSER not set")
	}

	r := New(Config{NoSandbox: true, DefaultWidth: 200, DefaultHeight: 100}, nil)
	defer r.Close()

	require.NoError(t, r.Ping(context.Background()))
	r.mu.Lock()
	r.launcher.Kill()
	r.mu.Unlock()

	assert.Error(t, r.Ping(context.Background()))
	assert.NoError(t, r.Ping(context.Background()))

	_, err := r.Rasterize(context.Background(), `<b>again</b>`, Options{})
	assert.NoError(t, err)
}
