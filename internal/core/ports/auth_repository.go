package ports

import (
	"context"
	"time"

	"github.com/fieldops/installation-api/internal/core/domain"
)

// UserFilter narrows user listings. Q matches name or email.
type UserFilter struct {
	Q      string
	RoleID string
	Status string
}

// UserRepository persists identities.
type UserRepository interface {
	Count(ctx context.Context) (int64, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, f UserFilter, p domain.Page) ([]domain.User, int64, error)
}

// RoleRepository persists roles. Permissions are normalized on read, whatever
// shape they were stored in.
type RoleRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Role, error)
	FindByName(ctx context.Context, name string) (*domain.Role, error)
	Create(ctx context.Context, role *domain.Role) error
	Update(ctx context.Context, role *domain.Role) error
	List(ctx context.Context, q string, p domain.Page) ([]domain.Role, int64, error)
}
