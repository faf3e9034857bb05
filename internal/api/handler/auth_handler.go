package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/installation-api/internal/api/session"
	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	codec       *session.Codec
}

func NewAuthHandler(authService ports.AuthService, codec *session.Codec) *AuthHandler {
	return &AuthHandler{authService: authService, codec: codec}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string               `json:"message"`
	User    domain.PublicProfile `json:"user"`
}

// Login authenticates with email and password and opens a fresh session.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Failure      429   {object}  errorBody
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	prev, _ := h.codec.Read(c.Request())
	res, err := h.authService.Login(c.Request().Context(), ports.LoginInput{
		Email:             req.Email,
		Password:          req.Password,
		PreviousSessionID: prev,
	})
	if err != nil {
		return err
	}

	return h.issue(c, http.StatusOK, "login_ok", res)
}

// Register creates the first account as administrator. It is refused once
// any user exists.
//
// @Summary      Bootstrap registration
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Administrator details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  errorBody
// @Failure      403   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	prev, _ := h.codec.Read(c.Request())
	res, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Name:              req.Name,
		Email:             req.Email,
		Password:          req.Password,
		PreviousSessionID: prev,
	})
	if err != nil {
		return err
	}

	return h.issue(c, http.StatusCreated, "register_ok", res)
}

// Logout destroys the current session and clears the cookie.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  errorBody
// @Failure      500  {object}  errorBody
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	sid, _ := h.codec.Read(c.Request())
	if err := h.authService.Logout(c.Request().Context(), sid); err != nil {
		return err
	}
	c.SetCookie(h.codec.Clear())
	return c.JSON(http.StatusOK, messageResponse{Message: "logged_out"})
}

// Me returns the identity snapshot held by the session.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  ports.MeResult
// @Failure      401  {object}  errorBody
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	me, err := h.authService.Me(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, me)
}

func (h *AuthHandler) issue(c echo.Context, status int, message string, res *ports.AuthResult) error {
	ck, err := h.codec.Cookie(res.SessionID)
	if err != nil {
		return err
	}
	c.SetCookie(ck)
	return c.JSON(status, authResponse{Message: message, User: res.Profile})
}

// errorBody documents the error envelope for the API docs.
type errorBody struct {
	Error     string `json:"error" example:"not_found"`
	Message   string `json:"message" example:"Installation not found"`
	RequestID string `json:"request_id,omitempty"`
}
