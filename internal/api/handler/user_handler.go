package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/installation-api/internal/core/ports"
)

type UserHandler struct {
	users ports.UserService
}

func NewUserHandler(users ports.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
	RoleID   string `json:"role_id"`
}

type updateUserRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email" validate:"omitempty,email"`
	RoleID string `json:"role_id"`
	Status string `json:"status"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type passwordChangedResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// List handles GET /users.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Param        q        query     string  false  "Name or email contains"
// @Param        role_id  query     string  false  "Role id"
// @Param        status   query     string  false  "active or disabled"
// @Param        limit    query     int     false  "Page size (max 100)"
// @Param        offset   query     int     false  "Offset"
// @Success      200      {object}  domain.List[domain.User]
// @Failure      403      {object}  errorBody
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	p, err := page(c, defaultLimit)
	if err != nil {
		return err
	}
	out, err := h.users.List(c.Request().Context(), ports.UserFilter{
		Q:      c.QueryParam("q"),
		RoleID: c.QueryParam("role_id"),
		Status: c.QueryParam("status"),
	}, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /users/:id.
//
// @Summary      Get a user with its role
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  domain.User
// @Failure      404  {object}  errorBody
// @Router       /users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	u, err := h.users.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// Create handles POST /users.
//
// @Summary      Create a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      createUserRequest  true  "User"
// @Success      201   {object}  domain.User
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.users.Create(c.Request().Context(), ports.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		RoleID:   req.RoleID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

// Update handles PATCH /users/:id.
//
// @Summary      Update a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "User id"
// @Param        body  body      updateUserRequest  true  "Fields to change"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /users/{id} [patch]
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.users.Update(c.Request().Context(), c.Param("id"), ports.UpdateUserInput{
		Name:   req.Name,
		Email:  req.Email,
		RoleID: req.RoleID,
		Status: req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// ChangePassword handles PATCH /users/:id/password. Callers changing their
// own password must send current_password; anyone else needs users:write.
//
// @Summary      Change a password
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id    path      string                 true  "User id"
// @Param        body  body      changePasswordRequest  true  "Passwords"
// @Success      200   {object}  passwordChangedResponse
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Failure      403   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /users/{id}/password [patch]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id := c.Param("id")
	err := h.users.ChangePassword(c.Request().Context(), ports.ChangePasswordInput{
		TargetID:        id,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, passwordChangedResponse{Message: "password_updated", UserID: id})
}
