package raster

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-rod/rod/lib/proto"
)

// MIME types the rasterizer can encode.
const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"
)

// Options control the rendered image. Zero values mean "use the default".
type Options struct {
	// Width and Height size the wrapper element around the HTML, in CSS pixels.
	Width  int
	Height int

	// CanvasWidth and CanvasHeight size the browser viewport. They default to
	// Width and Height, then to the rasterizer's configured defaults.
	CanvasWidth  int
	CanvasHeight int

	// PixelRatio is the device scale factor. Defaults to 1.
	PixelRatio float64

	BackgroundColor string

	// Style holds extra CSS properties for the wrapper element, keyed in
	// camelCase or kebab-case ({"fontSize": "20px"}).
	Style map[string]any

	// Quality in [0,1] applies to JPEG and WebP. Nil means best quality.
	Quality *float64

	// MimeType is one of MimePNG, MimeJPEG or MimeWebP. Defaults to PNG.
	MimeType string
}

// MimeTypeOrDefault returns the requested MIME type, or PNG when none was set.
func (o Options) MimeTypeOrDefault() string {
	if o.MimeType == "" {
		return MimePNG
	}
	return o.MimeType
}

func screenshotFormat(mimeType string) (proto.PageCaptureScreenshotFormat, error) {
	switch mimeType {
	case "", MimePNG:
		return proto.PageCaptureScreenshotFormatPng, nil
	case MimeJPEG:
		return proto.PageCaptureScreenshotFormatJpeg, nil
	case MimeWebP:
		return proto.PageCaptureScreenshotFormatWebp, nil
	}
	return "", fmt.Errorf("unsupported image type %q", mimeType)
}

// screenshotQuality maps a 0..1 quality onto the 0..100 scale Chrome expects.
func screenshotQuality(q *float64) int {
	if q == nil {
		return 100
	}
	v := math.Max(0, math.Min(1, *q))
	return int(math.Round(v * 100))
}

type viewport struct {
	width  int
	height int
	scale  float64
}

func (o Options) viewport(defaultWidth, defaultHeight int) viewport {
	vp := viewport{
		width:  firstPositive(o.CanvasWidth, o.Width, defaultWidth),
		height: firstPositive(o.CanvasHeight, o.Height, defaultHeight),
		scale:  o.PixelRatio,
	}
	if vp.scale <= 0 {
		vp.scale = 1
	}
	return vp
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// wrapperStyle renders the inline style of the element that gets captured.
func (o Options) wrapperStyle() string {
	var decls []string

	if o.Width > 0 {
		decls = append(decls, "width:"+strconv.Itoa(o.Width)+"px")
	}
	if o.Height > 0 {
		decls = append(decls, "height:"+strconv.Itoa(o.Height)+"px")
	}

	background := cssValue(o.BackgroundColor)
	if background == "" && o.MimeTypeOrDefault() == MimeJPEG {
		// JPEG has no alpha channel; transparent pixels would come out black.
		background = "#ffffff"
	}
	if background != "" {
		decls = append(decls, "background-color:"+background)
	}

	for _, key := range slices.Sorted(maps.Keys(o.Style)) {
		prop := cssProperty(key)
		value := cssValue(fmt.Sprint(o.Style[key]))
		if prop == "" || value == "" {
			continue
		}
		decls = append(decls, prop+":"+value)
	}

	return strings.Join(decls, ";")
}

// cssProperty turns fontSize into font-size and drops anything that is not a
// plain property name.
func cssProperty(key string) string {
	var b strings.Builder
	for i, r := range key {
		switch {
		case unicode.IsUpper(r) && r < unicode.MaxASCII:
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			return ""
		}
	}
	return b.String()
}

// cssValue strips characters that could end the declaration or the attribute.
func cssValue(v string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '"', '\\':
			return -1
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, v))
}
