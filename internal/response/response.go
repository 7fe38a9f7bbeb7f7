// Package response builds the outbound response envelope.
//
// Every request produces exactly one *Response. Handlers build it with JSON, Blob
// or Error, and the dispatcher writes it once with Write. Content-Type is always
// set; extra headers are added next to it, never over it.
package response

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/deppfellow/render-api/internal/errs"
	"github.com/labstack/echo/v4"
)

const (
	// ContentTypeJSON is used for every JSON body, success or error.
	ContentTypeJSON = echo.MIMEApplicationJSON

	// ContentTypeBinary is the fallback when a caller gives no MIME type.
	ContentTypeBinary = echo.MIMEOctetStream

	// DefaultAttachmentName is used when a download is requested without a filename.
	DefaultAttachmentName = "image"
)

// Response is the complete outbound HTTP response: status, headers and body.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Option customizes a Response after its body and Content-Type are set.
type Option func(r *Response)

// ContentType returns the Content-Type the response will be written with.
func (r *Response) ContentType() string {
	return r.Header.Get(echo.HeaderContentType)
}

// Write sends the envelope on c. Headers other than Content-Type are copied first
// so nothing the builder set gets lost; the body goes out through c.Blob.
func (r *Response) Write(c echo.Context) error {
	header := c.Response().Header()
	for key, values := range r.Header {
		if key == echo.HeaderContentType {
			continue
		}
		for _, v := range values {
			header.Add(key, v)
		}
	}
	return c.Blob(r.Status, r.ContentType(), r.Body)
}

// JSON builds a JSON response. If v cannot be marshaled the result is the generic
// 500 envelope instead, so callers always get a writable response back.
func JSON(status int, v any, opts ...Option) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		return internalError()
	}
	return build(status, ContentTypeJSON, body, opts)
}

// Blob builds a raw binary response with the given MIME type.
func Blob(status int, mimeType string, data []byte, opts ...Option) *Response {
	if mimeType == "" {
		mimeType = ContentTypeBinary
	}
	return build(status, mimeType, data, opts)
}

// Error builds the error envelope for err, using its status.
func Error(err *errs.HTTPError) *Response {
	if err == nil {
		return internalError()
	}
	return JSON(err.Status, err)
}

// WithHeader adds a header value. Content-Type cannot be replaced this way.
func WithHeader(key, value string) Option {
	return func(r *Response) {
		if http.CanonicalHeaderKey(key) == echo.HeaderContentType {
			return
		}
		r.Header.Add(key, value)
	}
}

// WithAttachment marks the response as a download:
//
//	Content-Disposition: attachment; filename="<name>.<subtype>"
//
// The extension is the MIME subtype (image/jpeg -> jpeg). An empty name falls back
// to DefaultAttachmentName.
func WithAttachment(filename, mimeType string) Option {
	return func(r *Response) {
		r.Header.Set(echo.HeaderContentDisposition, AttachmentDisposition(filename, mimeType))
	}
}

// AttachmentDisposition renders the Content-Disposition value used by WithAttachment.
func AttachmentDisposition(filename, mimeType string) string {
	name := sanitizeFilename(filename)
	if name == "" {
		name = DefaultAttachmentName
	}
	if ext := mimeSubtype(mimeType); ext != "" {
		name += "." + ext
	}
	return `attachment; filename="` + name + `"`
}

func build(status int, contentType string, body []byte, opts []Option) *Response {
	r := &Response{
		Status: status,
		Header: http.Header{},
		Body:   body,
	}
	r.Header.Set(echo.HeaderContentType, contentType)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func internalError() *Response {
	body, _ := json.Marshal(errs.NewInternalServerError(""))
	return build(http.StatusInternalServerError, ContentTypeJSON, body, nil)
}

func mimeSubtype(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = mimeType
	}
	_, subtype, found := strings.Cut(mediaType, "/")
	if !found {
		return ""
	}
	return subtype
}

// sanitizeFilename drops characters that would break out of the quoted
// filename parameter or inject header lines.
func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '"', r == '\\', r == '/':
			return -1
		case r < 0x20, r == 0x7f:
			return -1
		}
		return r
	}, strings.TrimSpace(name))
}
