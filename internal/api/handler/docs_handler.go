package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/swaggo/swag"
)

// DocsHandler serves the registered OpenAPI document and the landing page.
// The rendered document is kept for the life of the process unless
// bypassCache is set, which re-renders it on every request.
type DocsHandler struct {
	apiPrefix   string
	bypassCache bool
	read        func() (string, error)

	mu     sync.Mutex
	cached []byte
}

func NewDocsHandler(apiPrefix string, bypassCache bool) *DocsHandler {
	return &DocsHandler{
		apiPrefix:   apiPrefix,
		bypassCache: bypassCache,
		read:        func() (string, error) { return swag.ReadDoc() },
	}
}

var errMissingVersion = errors.New("docs: document declares no swagger or openapi version")

type rootResponse struct {
	Status string `json:"status"`
	Docs   string `json:"docs"`
	Spec   string `json:"spec"`
	API    string `json:"api"`
}

// Root handles GET /.
func (h *DocsHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, rootResponse{
		Status: "ok",
		Docs:   "/docs/index.html",
		Spec:   "/docs-json",
		API:    h.apiPrefix,
	})
}

// Spec handles GET /docs-json.
func (h *DocsHandler) Spec(c echo.Context) error {
	doc, err := h.load()
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, doc)
}

func (h *DocsHandler) load() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cached != nil && !h.bypassCache {
		return h.cached, nil
	}
	raw, err := h.read()
	if err != nil {
		return nil, err
	}
	var probe struct {
		Swagger string `json:"swagger"`
		OpenAPI string `json:"openapi"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, err
	}
	if probe.Swagger == "" && probe.OpenAPI == "" {
		return nil, errMissingVersion
	}
	h.cached = []byte(raw)
	return h.cached, nil
}
