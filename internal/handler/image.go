package handler

import (
	"net/http"

	"github.com/deppfellow/render-api/internal/errs"
	"github.com/deppfellow/render-api/internal/render/raster"
	"github.com/deppfellow/render-api/internal/response"
	"github.com/deppfellow/render-api/internal/server"
	"github.com/deppfellow/render-api/internal/service"
	"github.com/deppfellow/render-api/internal/validation"
	"github.com/labstack/echo/v4"
	g "github.com/reoring/goskema/dsl"
)

// MessageImageFailed is the 500 message for any rasterizer failure.
const MessageImageFailed = "Failed to convert HTML to image"

// ImageShape is the request body of POST /html-image.
var ImageShape = g.Object().
	Field("html", g.SchemaOf(validation.String(validation.Rule{Tag: "min=1", Message: "HTML string cannot be empty"}))).Required().
	Field("options", g.SchemaOf(imageOptionsShape)).
	Field("download", g.SchemaOf(validation.Bool())).Default(false).
	Field("filename", g.SchemaOf(validation.String())).
	UnknownStrip().
	MustBuild()

var imageOptionsShape = g.Object().
	Field("width", g.SchemaOf(validation.Number())).
	Field("height", g.SchemaOf(validation.Number())).
	Field("style", g.SchemaOf(validation.Any())).
	Field("backgroundColor", g.SchemaOf(validation.String())).
	Field("canvasWidth", g.SchemaOf(validation.Number())).
	Field("canvasHeight", g.SchemaOf(validation.Number())).
	Field("quality", g.SchemaOf(validation.Number(validation.Rule{Tag: "gte=0,lte=1"}))).
	Field("pixelRatio", g.SchemaOf(validation.Number())).
	Field("foreignObjectRendering", g.SchemaOf(validation.String(validation.Rule{Tag: "oneof=auto user"}))).
	Field("imagePlaceholder", g.SchemaOf(validation.String())).
	Field("mimeType", g.SchemaOf(validation.String(validation.Rule{Tag: "oneof=image/png image/jpeg image/webp"}))).
	UnknownStrip().
	MustBuild()

type ImageRequest struct {
	HTML     string        `json:"html"`
	Options  *ImageOptions `json:"options"`
	Download bool          `json:"download"`
	Filename string        `json:"filename"`
}

// ImageOptions are the accepted rasterization options. ForeignObjectRendering
// and ImagePlaceholder are accepted but have no effect with a real browser.
type ImageOptions struct {
	Width                  *float64 `json:"width"`
	Height                 *float64 `json:"height"`
	Style                  any      `json:"style"`
	BackgroundColor        *string  `json:"backgroundColor"`
	CanvasWidth            *float64 `json:"canvasWidth"`
	CanvasHeight           *float64 `json:"canvasHeight"`
	Quality                *float64 `json:"quality"`
	PixelRatio             *float64 `json:"pixelRatio"`
	ForeignObjectRendering *string  `json:"foreignObjectRendering"`
	ImagePlaceholder       *string  `json:"imagePlaceholder"`
	MimeType               *string  `json:"mimeType"`
}

type ImageHandler struct {
	Handler
	imageService *service.ImageService
}

func NewImageHandler(s *server.Server, imageService *service.ImageService) *ImageHandler {
	return &ImageHandler{
		Handler:      NewHandler(s),
		imageService: imageService,
	}
}

// RenderImage rasterizes the HTML and answers with the raw image bytes.
// With download set, Content-Disposition names the file after filename
// (default "image") and the MIME subtype.
func (h *ImageHandler) RenderImage(c echo.Context, req *ImageRequest) (*response.Response, error) {
	opts := req.Options.toRaster()
	mimeType := opts.MimeTypeOrDefault()

	data, err := h.imageService.Rasterize(c.Request().Context(), req.HTML, opts)
	if err != nil {
		return response.Error(errs.NewInternalServerError(MessageImageFailed)), nil
	}

	var respOpts []response.Option
	if req.Download {
		respOpts = append(respOpts, response.WithAttachment(req.Filename, mimeType))
	}
	return response.Blob(http.StatusOK, mimeType, data, respOpts...), nil
}

func (o *ImageOptions) toRaster() raster.Options {
	var opts raster.Options
	if o == nil {
		return opts
	}

	opts.Width = intOf(o.Width)
	opts.Height = intOf(o.Height)
	opts.CanvasWidth = intOf(o.CanvasWidth)
	opts.CanvasHeight = intOf(o.CanvasHeight)
	opts.Quality = o.Quality
	setIf(&opts.PixelRatio, o.PixelRatio)
	setIf(&opts.BackgroundColor, o.BackgroundColor)
	setIf(&opts.MimeType, o.MimeType)

	// Only an object of CSS properties is meaningful; anything else is ignored.
	if style, ok := o.Style.(map[string]any); ok {
		opts.Style = style
	}
	return opts
}

func intOf(v *float64) int {
	if v == nil {
		return 0
	}
	return int(*v)
}
