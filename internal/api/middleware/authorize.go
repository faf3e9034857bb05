package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/reqctx"
)

// Authorize lets the request through when the session holds any of the
// required permissions, or the admin wildcard. An empty list admits every
// session. Chain two Authorize calls to require all of a set.
func Authorize(required ...string) echo.MiddlewareFunc {
	perms := append([]string(nil), required...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := reqctx.IdentityFrom(c.Request().Context())
			if !ok {
				return domain.ErrNoSession
			}
			if !id.Allows(perms...) {
				return domain.ErrInsufficientPerms
			}
			return next(c)
		}
	}
}
