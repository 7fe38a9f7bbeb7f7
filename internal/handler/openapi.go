package handler

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/deppfellow/render-api/internal/response"
	"github.com/deppfellow/render-api/internal/server"
	"github.com/labstack/echo/v4"
)

//go:embed openapi.json
var openAPIDocument []byte

// OpenAPIHandler serves the OpenAPI document describing the API.
//
// The document is embedded in the binary; its server URL is rewritten to the
// configured API prefix once, at construction.
type OpenAPIHandler struct {
	Handler
	document []byte
	err      error
}

// NewOpenAPIHandler constructs an OpenAPIHandler with access to shared dependencies.
func NewOpenAPIHandler(s *server.Server) *OpenAPIHandler {
	doc, err := withServerURL(openAPIDocument, s.Config.API.Prefix)
	return &OpenAPIHandler{
		Handler:  NewHandler(s),
		document: doc,
		err:      err,
	}
}

// ServeOpenAPI writes the OpenAPI JSON document.
//
// Cache-Control is set to "no-cache" so clients do not reuse old docs.
func (h *OpenAPIHandler) ServeOpenAPI(c echo.Context) (*response.Response, error) {
	if h.err != nil {
		return nil, h.err
	}
	return response.Blob(http.StatusOK, echo.MIMEApplicationJSON, h.document,
		response.WithHeader(echo.HeaderCacheControl, "no-cache"),
	), nil
}

func withServerURL(doc []byte, prefix string) ([]byte, error) {
	var document map[string]any
	if err := json.Unmarshal(doc, &document); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	url := prefix
	if url == "" {
		url = "/"
	}
	document["servers"] = []map[string]string{{"url": url}}

	out, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to encode OpenAPI document: %w", err)
	}
	return out, nil
}
