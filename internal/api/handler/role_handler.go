package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
)

type RoleHandler struct {
	roles ports.RoleService
}

func NewRoleHandler(roles ports.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// Permissions are decoded loosely so a non-array can be answered with a
// precise message instead of a generic bind failure.
type createRoleRequest struct {
	Name        string `json:"name"`
	Permissions any    `json:"permissions" swaggertype:"array,string"`
}

type updateRoleRequest struct {
	Name        string           `json:"name"`
	Permissions ports.Patch[any] `json:"permissions" swaggertype:"array,string"`
}

// List handles GET /roles.
//
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Param        q       query     string  false  "Name contains"
// @Param        limit   query     int     false  "Page size (max 100)"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {object}  domain.List[domain.Role]
// @Router       /roles [get]
func (h *RoleHandler) List(c echo.Context) error {
	p, err := page(c, defaultLimit)
	if err != nil {
		return err
	}
	out, err := h.roles.List(c.Request().Context(), c.QueryParam("q"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /roles/:id.
//
// @Summary      Get a role
// @Tags         roles
// @Produce      json
// @Param        id   path      string  true  "Role id"
// @Success      200  {object}  domain.Role
// @Failure      404  {object}  errorBody
// @Router       /roles/{id} [get]
func (h *RoleHandler) Get(c echo.Context) error {
	r, err := h.roles.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Create handles POST /roles.
//
// @Summary      Create a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        body  body      createRoleRequest  true  "Role"
// @Success      201   {object}  domain.Role
// @Failure      400   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /roles [post]
func (h *RoleHandler) Create(c echo.Context) error {
	var req createRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	perms, err := permissionList(req.Permissions)
	if err != nil {
		return err
	}
	r, err := h.roles.Create(c.Request().Context(), ports.CreateRoleInput{Name: req.Name, Permissions: perms})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

// Update handles PATCH /roles/:id.
//
// @Summary      Update a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Role id"
// @Param        body  body      updateRoleRequest  true  "Fields to change"
// @Success      200   {object}  domain.Role
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /roles/{id} [patch]
func (h *RoleHandler) Update(c echo.Context) error {
	var req updateRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in := ports.UpdateRoleInput{Name: req.Name}
	if req.Permissions.Set {
		if req.Permissions.Null {
			in.Permissions = ports.Null[[]string]()
		} else {
			perms, err := permissionList(req.Permissions.Value)
			if err != nil {
				return err
			}
			in.Permissions = ports.Of(perms)
		}
	}
	r, err := h.roles.Update(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// permissionList accepts a JSON array (or nothing) and rejects other shapes.
func permissionList(raw any) ([]string, error) {
	if raw == nil {
		return []string{}, nil
	}
	if _, ok := raw.([]any); !ok {
		return nil, domain.Invalid("permissions must be an array")
	}
	return domain.NormalizePermissions(raw), nil
}
