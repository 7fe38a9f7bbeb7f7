// Package raster renders HTML fragments to images with a headless Chromium
// driven through the DevTools protocol.
package raster

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// rootID is the id of the element wrapping the caller's HTML; only this
// element ends up in the image.
const rootID = "render-root"

// contentPolicy keeps the document from loading anything but inline data.
const contentPolicy = `default-src 'none'; img-src data:; font-src data:; style-src 'unsafe-inline' data:`

// aliveTimeout bounds the check that decides whether a failing browser is gone.
const aliveTimeout = 2 * time.Second

// ErrClosed is returned by Rasterize after Close.
var ErrClosed = errors.New("rasterizer is closed")

// Config selects and sizes the browser.
type Config struct {
	// ControlURL connects to a running browser instead of launching one.
	ControlURL string

	// BrowserBin is the browser executable to launch. Empty lets the launcher
	// find (or download) one.
	BrowserBin string

	NoSandbox bool

	DefaultWidth  int
	DefaultHeight int
}

// Rasterizer owns one browser, started on first use and shared by all calls.
// Each call renders in its own page.
type Rasterizer struct {
	cfg    Config
	logger *zerolog.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	closed   bool
}

// New returns a Rasterizer. No browser is started until the first call.
func New(cfg Config, logger *zerolog.Logger) *Rasterizer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Rasterizer{cfg: cfg, logger: logger}
}

// Rasterize renders content inside a sized wrapper element and returns the
// wrapper's screenshot encoded as opts.MimeType.
func (r *Rasterizer) Rasterize(ctx context.Context, content string, opts Options) ([]byte, error) {
	format, err := screenshotFormat(opts.MimeType)
	if err != nil {
		return nil, err
	}

	browser, err := r.connect()
	if err != nil {
		return nil, err
	}

	data, err := r.render(ctx, browser, content, opts, format)
	if err != nil {
		r.recoverBrowser(browser)
		return nil, err
	}
	return data, nil
}

func (r *Rasterizer) render(ctx context.Context, browser *rod.Browser, content string, opts Options, format proto.PageCaptureScreenshotFormat) ([]byte, error) {
	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer func() {
		// ctx may be done by now; the page must be closed regardless.
		if err := page.Context(context.Background()).Close(); err != nil {
			r.logger.Debug().Err(err).Msg("failed to close page")
		}
	}()

	release, err := isolate(page)
	if err != nil {
		return nil, err
	}
	defer release()

	vp := opts.viewport(r.cfg.DefaultWidth, r.cfg.DefaultHeight)
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.width,
		Height:            vp.height,
		DeviceScaleFactor: vp.scale,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if err := page.SetDocumentContent(buildDocument(content, opts)); err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to wait for document load: %w", err)
	}

	root, err := page.Element("#" + rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to find render root: %w", err)
	}

	data, err := root.Screenshot(format, screenshotQuality(opts.Quality))
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return data, nil
}

// Ping checks that the browser is reachable, starting it if needed.
func (r *Rasterizer) Ping(ctx context.Context) error {
	browser, err := r.connect()
	if err != nil {
		return err
	}
	if _, err := (proto.BrowserGetVersion{}).Call(browser.Context(ctx)); err != nil {
		r.recoverBrowser(browser)
		return fmt.Errorf("browser not responding: %w", err)
	}
	return nil
}

// isolate stops page scripts and fails every request that is not for inline
// data: content. The returned func releases the request interception.
func isolate(page *rod.Page) (func(), error) {
	if err := (proto.EmulationSetScriptExecutionDisabled{Value: true}).Call(page); err != nil {
		return nil, fmt.Errorf("failed to disable scripts: %w", err)
	}

	router := page.HijackRequests()
	if err := router.Add("*", "", blockRequest); err != nil {
		return nil, fmt.Errorf("failed to intercept requests: %w", err)
	}
	go router.Run()

	return func() {
		_ = router.Stop()
	}, nil
}

func blockRequest(h *rod.Hijack) {
	if allowedURL(h.Request.URL().String()) {
		h.ContinueRequest(&proto.FetchContinueRequest{})
		return
	}
	h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
}

func allowedURL(u string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(u)), "data:")
}

// recoverBrowser forgets browser when it no longer answers, so the next call
// launches or reconnects a fresh one. A browser that still answers is kept.
func (r *Rasterizer) recoverBrowser(browser *rod.Browser) {
	ctx, cancel := context.WithTimeout(context.Background(), aliveTimeout)
	defer cancel()

	if _, err := (proto.BrowserGetVersion{}).Call(browser.Context(ctx)); err == nil {
		return
	}
	r.discard(browser)
}

// discard drops browser if it is still the cached one. A launched process is
// killed and its profile removed.
func (r *Rasterizer) discard(browser *rod.Browser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil || r.browser != browser {
		return
	}
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher.Cleanup()
	}
	r.browser = nil
	r.launcher = nil

	r.logger.Warn().Msg("headless browser lost, a new one starts on next use")
}

// Close shuts the browser down. A launched browser process is killed; a
// browser reached through ControlURL is only disconnected.
func (r *Rasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.browser == nil {
		return nil
	}

	var err error
	if r.launcher != nil {
		err = r.browser.Close()
		r.launcher.Cleanup()
	}
	r.browser = nil
	r.launcher = nil
	return err
}

func (r *Rasterizer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if r.browser != nil {
		return r.browser, nil
	}

	controlURL := r.cfg.ControlURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().Headless(true).NoSandbox(r.cfg.NoSandbox)
		if r.cfg.BrowserBin != "" {
			l = l.Bin(r.cfg.BrowserBin)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	r.logger.Info().
		Bool("launched", l != nil).
		Msg("headless browser ready")

	r.browser = browser
	r.launcher = l
	return browser, nil
}

// buildDocument wraps content in a page whose only visible element is the
// render root.
func buildDocument(content string, opts Options) string {
	return `<!DOCTYPE html><html><head><meta charset="utf-8">` +
		`<meta http-equiv="Content-Security-Policy" content="` + contentPolicy + `"><style>` +
		`html,body{margin:0;padding:0;background:transparent;}` +
		`#` + rootID + `{display:inline-block;box-sizing:border-box;}` +
		`</style></head><body><div id="` + rootID + `" style="` + html.EscapeString(opts.wrapperStyle()) + `">` +
		content +
		`</div></body></html>`
}
