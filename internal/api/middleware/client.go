package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/installation-api/internal/core/reqctx"
)

// ClientContext copies the client address and the request id into the
// request context so services and the audit recorder can read them. It must
// run after echo's RequestID middleware.
func ClientContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := reqctx.WithClientIP(req.Context(), ClientIP(c))
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = req.Header.Get(echo.HeaderXRequestID)
			}
			ctx = reqctx.WithRequestID(ctx, rid)
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// ClientIP is the first X-Forwarded-For hop, else the connection address.
func ClientIP(c echo.Context) string {
	if xff := c.Request().Header.Get(echo.HeaderXForwardedFor); xff != "" {
		if first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); first != "" {
			return first
		}
	}
	return c.RealIP()
}
