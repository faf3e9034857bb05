package ports

import (
	"context"

	"github.com/fieldops/installation-api/internal/core/domain"
)

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	RoleID   string
}

// UpdateUserInput holds the fields an admin may change. Empty values are left alone.
type UpdateUserInput struct {
	Name   string
	Email  string
	RoleID string
	Status string
}

type ChangePasswordInput struct {
	TargetID        string
	CurrentPassword string
	NewPassword     string
}

type UserService interface {
	List(ctx context.Context, f UserFilter, p domain.Page) (domain.List[domain.User], error)
	Get(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, in CreateUserInput) (*domain.User, error)
	Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error)
	ChangePassword(ctx context.Context, in ChangePasswordInput) error
}

type CreateRoleInput struct {
	Name        string
	Permissions []string
}

type UpdateRoleInput struct {
	Name        string
	Permissions Patch[[]string]
}

type RoleService interface {
	List(ctx context.Context, q string, p domain.Page) (domain.List[domain.Role], error)
	Get(ctx context.Context, id string) (*domain.Role, error)
	Create(ctx context.Context, in CreateRoleInput) (*domain.Role, error)
	Update(ctx context.Context, id string, in UpdateRoleInput) (*domain.Role, error)
}
