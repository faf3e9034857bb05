// Package reqctx carries per-request values (session identity, client IP,
// request id) from the HTTP layer down to services.
package reqctx

import (
	"context"

	"github.com/fieldops/installation-api/internal/core/domain"
)

type identityKey struct{}
type clientIPKey struct{}
type requestIDKey struct{}

// WithIdentity attaches the session identity to ctx.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, &id)
}

// IdentityFrom returns the session identity, if the request is authenticated.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	if ctx == nil {
		return domain.Identity{}, false
	}
	v, ok := ctx.Value(identityKey{}).(*domain.Identity)
	if !ok || v == nil {
		return domain.Identity{}, false
	}
	return *v, true
}

// ActorID returns the authenticated user id, or "" for anonymous requests.
func ActorID(ctx context.Context) string {
	id, _ := IdentityFrom(ctx)
	return id.UserID
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(clientIPKey{}).(string)
	return v
}

func WithRequestID(ctx context.Context, rid string) context.Context {
	if rid == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, rid)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}
