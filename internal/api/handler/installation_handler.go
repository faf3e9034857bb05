package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/installation-api/internal/core/ports"
)

type InstallationHandler struct {
	installations ports.InstallationService
}

func NewInstallationHandler(installations ports.InstallationService) *InstallationHandler {
	return &InstallationHandler{installations: installations}
}

type createInstallationRequest struct {
	ExternalOrderID string     `json:"external_order_id"`
	StoreID         string     `json:"store_id"`
	ScheduledStart  *time.Time `json:"scheduled_start"`
	ScheduledEnd    *time.Time `json:"scheduled_end"`
	Status          string     `json:"status"`
	Notes           *string    `json:"notes"`
}

// A key that is present with null clears the field; an absent key leaves it.
type updateInstallationRequest struct {
	ScheduledStart ports.Patch[time.Time] `json:"scheduled_start" swaggertype:"string" format:"date-time"`
	ScheduledEnd   ports.Patch[time.Time] `json:"scheduled_end" swaggertype:"string" format:"date-time"`
	Notes          ports.Patch[string]    `json:"notes" swaggertype:"string"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type addItemRequest struct {
	ExternalProductID   string  `json:"external_product_id"`
	Quantity            *int    `json:"quantity"`
	RoomTag             *string `json:"room_tag"`
	SpecialInstructions *string `json:"special_instructions"`
}

type updateItemRequest struct {
	Quantity            ports.Patch[int]    `json:"quantity" swaggertype:"integer"`
	RoomTag             ports.Patch[string] `json:"room_tag" swaggertype:"string"`
	SpecialInstructions ports.Patch[string] `json:"special_instructions" swaggertype:"string"`
}

type assignCrewRequest struct {
	CrewUserID string  `json:"crew_user_id"`
	Role       *string `json:"role"`
}

type updateAssignmentRequest struct {
	Role     ports.Patch[string] `json:"role" swaggertype:"string"`
	Accepted *bool               `json:"accepted"`
	Declined *bool               `json:"declined"`
}

// List handles GET /installations.
//
// @Summary      List installations
// @Tags         installations
// @Produce      json
// @Param        external_order_id  query     string  false  "External order id"
// @Param        store_id           query     string  false  "Store id"
// @Param        status             query     string  false  "Status"
// @Param        limit              query     int     false  "Page size"
// @Param        offset             query     int     false  "Offset"
// @Success      200                {object}  domain.List[domain.Installation]
// @Router       /installations [get]
func (h *InstallationHandler) List(c echo.Context) error {
	p, err := page(c, defaultLimit)
	if err != nil {
		return err
	}
	out, err := h.installations.List(c.Request().Context(), ports.InstallationFilter{
		ExternalOrderID: c.QueryParam("external_order_id"),
		StoreID:         c.QueryParam("store_id"),
		Status:          c.QueryParam("status"),
	}, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /installations/:id.
//
// @Summary      Get an installation with store, items and crew
// @Tags         installations
// @Produce      json
// @Param        id   path      string  true  "Installation id"
// @Success      200  {object}  domain.InstallationDetail
// @Failure      404  {object}  errorBody
// @Router       /installations/{id} [get]
func (h *InstallationHandler) Get(c echo.Context) error {
	d, err := h.installations.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// Create handles POST /installations.
//
// @Summary      Create an installation
// @Tags         installations
// @Accept       json
// @Produce      json
// @Param        body  body      createInstallationRequest  true  "Installation"
// @Success      201   {object}  domain.Installation
// @Failure      400   {object}  errorBody
// @Router       /installations [post]
func (h *InstallationHandler) Create(c echo.Context) error {
	var req createInstallationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	inst, err := h.installations.Create(c.Request().Context(), ports.CreateInstallationInput{
		ExternalOrderID: req.ExternalOrderID,
		StoreID:         req.StoreID,
		ScheduledStart:  req.ScheduledStart,
		ScheduledEnd:    req.ScheduledEnd,
		Status:          req.Status,
		Notes:           req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inst)
}

// Update handles PATCH /installations/:id (schedule window and notes).
//
// @Summary      Reschedule an installation
// @Tags         installations
// @Accept       json
// @Produce      json
// @Param        id    path      string                     true  "Installation id"
// @Param        body  body      updateInstallationRequest  true  "Schedule fields"
// @Success      200   {object}  domain.Installation
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /installations/{id} [patch]
func (h *InstallationHandler) Update(c echo.Context) error {
	var req updateInstallationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	inst, err := h.installations.UpdateSchedule(c.Request().Context(), c.Param("id"), ports.SchedulePatch{
		ScheduledStart: req.ScheduledStart,
		ScheduledEnd:   req.ScheduledEnd,
		Notes:          req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inst)
}

// UpdateStatus handles PATCH /installations/:id/status.
//
// @Summary      Change installation status
// @Tags         installations
// @Accept       json
// @Produce      json
// @Param        id    path      string               true  "Installation id"
// @Param        body  body      updateStatusRequest  true  "scheduled, in_progress, completed, failed or canceled"
// @Success      200   {object}  domain.Installation
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /installations/{id}/status [patch]
func (h *InstallationHandler) UpdateStatus(c echo.Context) error {
	var req updateStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	inst, err := h.installations.UpdateStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inst)
}

// AddItem handles POST /installations/:id/items.
//
// @Summary      Add an item
// @Tags         installations
// @Accept       json
// @Produce      json
// @Param        id    path      string          true  "Installation id"
// @Param        body  body      addItemRequest  true  "Item"
// @Success      201   {object}  domain.InstallationItem
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /installations/{id}/items [post]
func (h *InstallationHandler) AddItem(c echo.Context) error {
	var req addItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.installations.AddItem(c.Request().Context(), c.Param("id"), ports.AddItemInput{
		ExternalProductID:   req.ExternalProductID,
		Quantity:            req.Quantity,
		RoomTag:             req.RoomTag,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

// ListItems handles GET /installations/:id/items.
//
// @Summary      List items
// @Tags         installations
// @Produce      json
// @Param        id      path      string  true   "Installation id"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {object}  domain.List[domain.InstallationItem]
// @Failure      404     {object}  errorBody
// @Router       /installations/{id}/items [get]
func (h *InstallationHandler) ListItems(c echo.Context) error {
	p, err := page(c, defaultLimit)
	if err != nil {
		return err
	}
	out, err := h.installations.ListItems(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateItem handles PATCH /installations/:id/items/:itemId.
//
// @Summary      Update an item
// @Tags         installations
// @Accept       json
// @Produce      json
// @Param        id      path      string             true  "Installation id"
// @Param        itemId  path      string             true  "Item id"
// @Param        body    body      updateItemRequest  true  "Fields to change"
// @Success      200     {object}  domain.InstallationItem
// @Failure      400     {object}  errorBody
// @Failure      404     {object}  errorBody
// @Router       /installations/{id}/items/{itemId} [patch]
func (h *InstallationHandler) UpdateItem(c echo.Context) error {
	var req updateItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.installations.UpdateItem(c.Request().Context(), c.Param("id"), c.Param("itemId"), ports.ItemPatch{
		Quantity:            req.Quantity,
		RoomTag:             req.RoomTag,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// RemoveItem handles DELETE /installations/:id/items/:itemId.
//
// @Summary      Remove an item
// @Tags         installations
// @Param        id      path  string  true  "Installation id"
// @Param        itemId  path  string  true  "Item id"
// @Success      204
// @Failure      404     {object}  errorBody
// @Router       /installations/{id}/items/{itemId} [delete]
func (h *InstallationHandler) RemoveItem(c echo.Context) error {
	if err := h.installations.RemoveItem(c.Request().Context(), c.Param("id"), c.Param("itemId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AssignCrew handles POST /installations/:id/crew.
//
// @Summary      Assign a crew member
// @Tags         installations
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Installation id"
// @Param        body  body      assignCrewRequest  true  "Assignment"
// @Success      201   {object}  domain.CrewAssignment
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /installations/{id}/crew [post]
func (h *InstallationHandler) AssignCrew(c echo.Context) error {
	var req assignCrewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := h.installations.AssignCrew(c.Request().Context(), c.Param("id"), ports.AssignCrewInput{
		CrewUserID: req.CrewUserID,
		Role:       req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

// ListCrew handles GET /installations/:id/crew.
//
// @Summary      List crew assignments
// @Tags         installations
// @Produce      json
// @Param        id      path      string  true   "Installation id"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {object}  domain.List[domain.CrewAssignment]
// @Failure      404     {object}  errorBody
// @Router       /installations/{id}/crew [get]
func (h *InstallationHandler) ListCrew(c echo.Context) error {
	p, err := page(c, defaultLimit)
	if err != nil {
		return err
	}
	out, err := h.installations.ListCrew(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateAssignment handles PATCH /installations/:id/crew/:assignmentId.
// accepted=true wins over declined=true.
//
// @Summary      Accept, decline or re-role an assignment
// @Tags         installations
// @Accept       json
// @Produce      json
// @Param        id            path      string                   true  "Installation id"
// @Param        assignmentId  path      string                   true  "Assignment id"
// @Param        body          body      updateAssignmentRequest  true  "Decision"
// @Success      200           {object}  domain.CrewAssignment
// @Failure      404           {object}  errorBody
// @Router       /installations/{id}/crew/{assignmentId} [patch]
func (h *InstallationHandler) UpdateAssignment(c echo.Context) error {
	var req updateAssignmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := h.installations.UpdateAssignment(c.Request().Context(), c.Param("id"), c.Param("assignmentId"), ports.AssignmentPatch{
		Role:     req.Role,
		Accepted: req.Accepted,
		Declined: req.Declined,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// RemoveAssignment handles DELETE /installations/:id/crew/:assignmentId.
//
// @Summary      Remove a crew assignment
// @Tags         installations
// @Param        id            path  string  true  "Installation id"
// @Param        assignmentId  path  string  true  "Assignment id"
// @Success      204
// @Failure      404           {object}  errorBody
// @Router       /installations/{id}/crew/{assignmentId} [delete]
func (h *InstallationHandler) RemoveAssignment(c echo.Context) error {
	if err := h.installations.RemoveAssignment(c.Request().Context(), c.Param("id"), c.Param("assignmentId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
