package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
	"github.com/fieldops/installation-api/internal/pkg/metrics"
)

// LoginRateLimit caps login and registration attempts per client address.
// A limiter failure lets the attempt through.
func LoginRateLimit(limiter ports.AttemptLimiter, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := ClientIP(c)
			ok, err := limiter.Allow(c.Request().Context(), "login:"+ip)
			if err != nil {
				log.Warn().Err(err).Str("ip", ip).Msg("login limiter unavailable")
				return next(c)
			}
			if !ok {
				metrics.RateLimitedTotal.WithLabelValues("auth").Inc()
				return domain.ErrTooManyAttempts
			}
			return next(c)
		}
	}
}
