package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/reqctx"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Debug     string `json:"debug,omitempty"`
}

// kinds maps each domain error kind to its HTTP status.
var kinds = []struct {
	kind   error
	status int
}{
	{domain.ErrBadRequest, http.StatusBadRequest},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrTooManyRequests, http.StatusTooManyRequests},
	{domain.ErrInternal, http.StatusInternalServerError},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain error kinds to their HTTP status and error code.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders {"error", "message", "request_id"} plus "debug" when debug is on.
func NewHTTPErrorHandler(log zerolog.Logger, debug bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolveError(err, log, c)
		body.RequestID = requestID(c)
		if debug {
			body.Debug = err.Error()
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, errorResponse{Error: "validation_error", Message: ve.Message}
	}

	var de *domain.Error
	if errors.As(err, &de) {
		status := statusOf(de.Kind)
		if de.Status != 0 {
			status = de.Status
		}
		if status >= http.StatusInternalServerError {
			logUnhandled(log, c, err)
		}
		return status, errorResponse{Error: de.Kind.Error(), Message: de.Message}
	}

	// Echo's own errors (bind failures, 404 from router, body limit, timeouts).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			logUnhandled(log, c, err)
		}
		return he.Code, errorResponse{Error: codeOf(he.Code), Message: fmt.Sprintf("%v", he.Message)}
	}

	for _, k := range kinds {
		if errors.Is(err, k.kind) && k.status < http.StatusInternalServerError {
			return k.status, errorResponse{Error: k.kind.Error(), Message: err.Error()}
		}
	}

	// Unexpected error: log the real cause, return a generic message.
	logUnhandled(log, c, err)
	return http.StatusInternalServerError, errorResponse{
		Error:   domain.ErrInternal.Error(),
		Message: "Something went wrong",
	}
}

func statusOf(kind error) int {
	for _, k := range kinds {
		if errors.Is(kind, k.kind) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

func codeOf(status int) string {
	for _, k := range kinds {
		if k.status == status {
			return k.kind.Error()
		}
	}
	switch {
	case status == http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case status == http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case status == http.StatusServiceUnavailable:
		return "service_unavailable"
	case status >= http.StatusInternalServerError:
		return domain.ErrInternal.Error()
	default:
		return domain.ErrBadRequest.Error()
	}
}

func requestID(c echo.Context) string {
	if rid := reqctx.RequestID(c.Request().Context()); rid != "" {
		return rid
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func logUnhandled(log zerolog.Logger, c echo.Context, err error) {
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", requestID(c)).
		Msg("unhandled error")
}
