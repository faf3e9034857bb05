package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
)

type MediaHandler struct {
	media ports.MediaService
}

func NewMediaHandler(media ports.MediaService) *MediaHandler {
	return &MediaHandler{media: media}
}

type createMediaRequest struct {
	URL    string  `json:"url" validate:"omitempty,url"`
	Type   string  `json:"type"`
	Tags   any     `json:"tags" swaggertype:"object"`
	SHA256 *string `json:"sha256" validate:"omitempty,hexadecimal,len=64"`
}

// List handles GET /installations/:id/media.
//
// @Summary      List media of an installation
// @Tags         media
// @Produce      json
// @Param        id      path      string  true   "Installation id"
// @Param        type    query     string  false  "photo or signature"
// @Param        limit   query     int     false  "Page size (default 50)"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {object}  domain.List[domain.MediaAsset]
// @Failure      404     {object}  errorBody
// @Router       /installations/{id}/media [get]
func (h *MediaHandler) List(c echo.Context) error {
	p, err := page(c, defaultLongLimit)
	if err != nil {
		return err
	}
	out, err := h.media.List(c.Request().Context(), c.Param("id"), c.QueryParam("type"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Create handles POST /installations/:id/media.
//
// @Summary      Attach media to an installation
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        id    path      string              true  "Installation id"
// @Param        body  body      createMediaRequest  true  "Media reference"
// @Success      201   {object}  domain.MediaAsset
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /installations/{id}/media [post]
func (h *MediaHandler) Create(c echo.Context) error {
	var req createMediaRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	var tags map[string]any
	if req.Tags != nil {
		m, ok := req.Tags.(map[string]any)
		if !ok {
			return domain.Invalid("tags must be an object (JSON)")
		}
		tags = m
	}
	m, err := h.media.Create(c.Request().Context(), c.Param("id"), ports.CreateMediaInput{
		URL:    req.URL,
		Type:   req.Type,
		Tags:   tags,
		SHA256: req.SHA256,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

// Get handles GET /media/:id.
//
// @Summary      Get a media asset
// @Tags         media
// @Produce      json
// @Param        id   path      string  true  "Media id"
// @Success      200  {object}  domain.MediaAsset
// @Failure      404  {object}  errorBody
// @Router       /media/{id} [get]
func (h *MediaHandler) Get(c echo.Context) error {
	m, err := h.media.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

// Delete handles DELETE /media/:id.
//
// @Summary      Delete a media asset
// @Tags         media
// @Param        id   path  string  true  "Media id"
// @Success      204
// @Failure      404  {object}  errorBody
// @Router       /media/{id} [delete]
func (h *MediaHandler) Delete(c echo.Context) error {
	if err := h.media.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
