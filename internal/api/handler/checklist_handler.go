package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/installation-api/internal/core/ports"
)

type ChecklistHandler struct {
	checklists ports.ChecklistService
}

func NewChecklistHandler(checklists ports.ChecklistService) *ChecklistHandler {
	return &ChecklistHandler{checklists: checklists}
}

type createTemplateRequest struct {
	Name        string  `json:"name"`
	Version     *int    `json:"version"`
	Description *string `json:"description"`
	Rules       any     `json:"rules"`
}

type updateTemplateRequest struct {
	Name        ports.Patch[string] `json:"name" swaggertype:"string"`
	Version     ports.Patch[int]    `json:"version" swaggertype:"integer"`
	Description ports.Patch[string] `json:"description" swaggertype:"string"`
	Rules       ports.Patch[any]    `json:"rules" swaggertype:"object"`
}

type createChecklistItemRequest struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Type       string  `json:"type"`
	Required   bool    `json:"required"`
	OrderIndex *int    `json:"order_index"`
	Rules      any     `json:"rules"`
	HelpText   *string `json:"help_text"`
	Options    any     `json:"options"`
}

type updateChecklistItemRequest struct {
	Key        ports.Patch[string] `json:"key" swaggertype:"string"`
	Label      ports.Patch[string] `json:"label" swaggertype:"string"`
	Type       ports.Patch[string] `json:"type" swaggertype:"string"`
	Required   ports.Patch[bool]   `json:"required" swaggertype:"boolean"`
	OrderIndex ports.Patch[int]    `json:"order_index" swaggertype:"integer"`
	Rules      ports.Patch[any]    `json:"rules" swaggertype:"object"`
	HelpText   ports.Patch[string] `json:"help_text" swaggertype:"string"`
	Options    ports.Patch[any]    `json:"options" swaggertype:"object"`
}

type upsertResponseRequest struct {
	ItemID      string                 `json:"item_id"`
	Value       ports.Patch[any]       `json:"value" swaggertype:"object"`
	CompletedAt ports.Patch[time.Time] `json:"completed_at" swaggertype:"string" format:"date-time"`
}

type updateResponseRequest struct {
	Value       ports.Patch[any]       `json:"value" swaggertype:"object"`
	CompletedAt ports.Patch[time.Time] `json:"completed_at" swaggertype:"string" format:"date-time"`
}

// ListTemplates handles GET /checklist-templates.
//
// @Summary      List checklist templates
// @Tags         checklists
// @Produce      json
// @Param        q       query     string  false  "Name contains"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {object}  domain.List[domain.ChecklistTemplate]
// @Router       /checklist-templates [get]
func (h *ChecklistHandler) ListTemplates(c echo.Context) error {
	p, err := page(c, defaultLimit)
	if err != nil {
		return err
	}
	out, err := h.checklists.ListTemplates(c.Request().Context(), c.QueryParam("q"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// GetTemplate handles GET /checklist-templates/:id.
//
// @Summary      Get a template with its items
// @Tags         checklists
// @Produce      json
// @Param        id   path      string  true  "Template id"
// @Success      200  {object}  domain.ChecklistTemplate
// @Failure      404  {object}  errorBody
// @Router       /checklist-templates/{id} [get]
func (h *ChecklistHandler) GetTemplate(c echo.Context) error {
	t, err := h.checklists.GetTemplate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// CreateTemplate handles POST /checklist-templates.
//
// @Summary      Create a template
// @Tags         checklists
// @Accept       json
// @Produce      json
// @Param        body  body      createTemplateRequest  true  "Template"
// @Success      201   {object}  domain.ChecklistTemplate
// @Failure      400   {object}  errorBody
// @Router       /checklist-templates [post]
func (h *ChecklistHandler) CreateTemplate(c echo.Context) error {
	var req createTemplateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := h.checklists.CreateTemplate(c.Request().Context(), ports.CreateTemplateInput{
		Name:        req.Name,
		Version:     req.Version,
		Description: req.Description,
		Rules:       req.Rules,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

// UpdateTemplate handles PATCH /checklist-templates/:id.
//
// @Summary      Update a template
// @Tags         checklists
// @Accept       json
// @Produce      json
// @Param        id    path      string                 true  "Template id"
// @Param        body  body      updateTemplateRequest  true  "Fields to change"
// @Success      200   {object}  domain.ChecklistTemplate
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /checklist-templates/{id} [patch]
func (h *ChecklistHandler) UpdateTemplate(c echo.Context) error {
	var req updateTemplateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := h.checklists.UpdateTemplate(c.Request().Context(), c.Param("id"), ports.TemplatePatch{
		Name:        req.Name,
		Version:     req.Version,
		Description: req.Description,
		Rules:       req.Rules,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// ListItems handles GET /checklist-templates/:id/items.
//
// @Summary      List template items
// @Tags         checklists
// @Produce      json
// @Param        id      path      string  true   "Template id"
// @Param        limit   query     int     false  "Page size (default 50)"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {object}  domain.List[domain.ChecklistItem]
// @Failure      404     {object}  errorBody
// @Router       /checklist-templates/{id}/items [get]
func (h *ChecklistHandler) ListItems(c echo.Context) error {
	p, err := page(c, defaultLongLimit)
	if err != nil {
		return err
	}
	out, err := h.checklists.ListItems(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// CreateItem handles POST /checklist-templates/:id/items.
//
// @Summary      Add an item to a template
// @Tags         checklists
// @Accept       json
// @Produce      json
// @Param        id    path      string                      true  "Template id"
// @Param        body  body      createChecklistItemRequest  true  "Item"
// @Success      201   {object}  domain.ChecklistItem
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /checklist-templates/{id}/items [post]
func (h *ChecklistHandler) CreateItem(c echo.Context) error {
	var req createChecklistItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.checklists.CreateItem(c.Request().Context(), c.Param("id"), ports.CreateChecklistItemInput{
		Key:        req.Key,
		Label:      req.Label,
		Type:       req.Type,
		Required:   req.Required,
		OrderIndex: req.OrderIndex,
		Rules:      req.Rules,
		HelpText:   req.HelpText,
		Options:    req.Options,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

// UpdateItem handles PATCH /checklist-items/:itemId.
//
// @Summary      Update a checklist item
// @Tags         checklists
// @Accept       json
// @Produce      json
// @Param        itemId  path      string                      true  "Item id"
// @Param        body    body      updateChecklistItemRequest  true  "Fields to change"
// @Success      200     {object}  domain.ChecklistItem
// @Failure      400     {object}  errorBody
// @Failure      404     {object}  errorBody
// @Router       /checklist-items/{itemId} [patch]
func (h *ChecklistHandler) UpdateItem(c echo.Context) error {
	var req updateChecklistItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.checklists.UpdateItem(c.Request().Context(), c.Param("itemId"), ports.ChecklistItemPatch{
		Key:        req.Key,
		Label:      req.Label,
		Type:       req.Type,
		Required:   req.Required,
		OrderIndex: req.OrderIndex,
		Rules:      req.Rules,
		HelpText:   req.HelpText,
		Options:    req.Options,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// ListResponses handles GET /installations/:id/checklist-responses.
//
// @Summary      List checklist responses of an installation
// @Tags         checklists
// @Produce      json
// @Param        id      path      string  true   "Installation id"
// @Param        limit   query     int     false  "Page size (default 50)"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {object}  domain.List[domain.ChecklistResponse]
// @Failure      404     {object}  errorBody
// @Router       /installations/{id}/checklist-responses [get]
func (h *ChecklistHandler) ListResponses(c echo.Context) error {
	p, err := page(c, defaultLongLimit)
	if err != nil {
		return err
	}
	out, err := h.checklists.ListResponses(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// UpsertResponse handles POST /installations/:id/checklist-responses. The
// first answer for an item is created (201); later ones update it (200).
//
// @Summary      Create or update a checklist response
// @Tags         checklists
// @Accept       json
// @Produce      json
// @Param        id    path      string                 true  "Installation id"
// @Param        body  body      upsertResponseRequest  true  "Response"
// @Success      200   {object}  domain.ChecklistResponse
// @Success      201   {object}  domain.ChecklistResponse
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /installations/{id}/checklist-responses [post]
func (h *ChecklistHandler) UpsertResponse(c echo.Context) error {
	var req upsertResponseRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, created, err := h.checklists.UpsertResponse(c.Request().Context(), c.Param("id"), req.ItemID, ports.ResponsePatch{
		Value:       req.Value,
		CompletedAt: req.CompletedAt,
	})
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, resp)
}

// UpdateResponse handles PATCH /checklist-responses/:id.
//
// @Summary      Update a checklist response
// @Tags         checklists
// @Accept       json
// @Produce      json
// @Param        id    path      string                 true  "Response id"
// @Param        body  body      updateResponseRequest  true  "Fields to change"
// @Success      200   {object}  domain.ChecklistResponse
// @Failure      404   {object}  errorBody
// @Router       /checklist-responses/{id} [patch]
func (h *ChecklistHandler) UpdateResponse(c echo.Context) error {
	var req updateResponseRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.checklists.UpdateResponse(c.Request().Context(), c.Param("id"), ports.ResponsePatch{
		Value:       req.Value,
		CompletedAt: req.CompletedAt,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
