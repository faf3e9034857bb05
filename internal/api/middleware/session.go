package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fieldops/installation-api/internal/api/session"
	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
	"github.com/fieldops/installation-api/internal/core/reqctx"
)

const sessionIDKey = "session_id"

// Session resolves the signed sid cookie into an identity snapshot. Requests
// without a valid session pass through anonymously; RequireSession rejects
// them where a session is mandatory. Each authenticated request restarts the
// idle timeout and re-issues the cookie with a fresh Max-Age.
func Session(store ports.SessionStore, codec *session.Codec, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sid, ok := codec.Read(c.Request())
			if !ok {
				return next(c)
			}

			ctx := c.Request().Context()
			id, err := store.Get(ctx, sid)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					return next(c)
				}
				return err
			}
			c.Set(sessionIDKey, sid)

			if err := store.Touch(ctx, sid); err != nil {
				log.Warn().Err(err).Msg("session touch failed")
			} else if ck, err := codec.Cookie(sid); err == nil {
				c.SetCookie(ck)
			}

			c.SetRequest(c.Request().WithContext(reqctx.WithIdentity(ctx, *id)))
			return next(c)
		}
	}
}

// RequireSession answers 401 unless Session attached an identity.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := reqctx.IdentityFrom(c.Request().Context()); !ok {
				return domain.ErrNoSession
			}
			return next(c)
		}
	}
}

// SessionID returns the id of the session the request arrived with, if any.
func SessionID(c echo.Context) string {
	sid, _ := c.Get(sessionIDKey).(string)
	return sid
}
