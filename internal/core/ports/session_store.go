package ports

import (
	"context"

	"github.com/fieldops/installation-api/internal/core/domain"
)

// SessionStore maps opaque session ids to identity snapshots. Sessions expire
// after a period of inactivity; Touch restarts that period.
type SessionStore interface {
	// Create stores id under a freshly generated session id and returns it.
	Create(ctx context.Context, id domain.Identity) (string, error)
	// Get returns domain.ErrNoSession when sid is unknown, expired or its
	// snapshot is unreadable.
	Get(ctx context.Context, sid string) (*domain.Identity, error)
	Touch(ctx context.Context, sid string) error
	Destroy(ctx context.Context, sid string) error
}

// AttemptLimiter counts attempts per key within a rolling window.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
