package ports

import (
	"context"

	"github.com/fieldops/installation-api/internal/core/domain"
)

type LoginInput struct {
	Email    string
	Password string
	// PreviousSessionID is destroyed before the new session is issued.
	PreviousSessionID string
}

type RegisterInput struct {
	Name              string
	Email             string
	Password          string
	PreviousSessionID string
}

// AuthResult is the outcome of a successful login or registration.
type AuthResult struct {
	SessionID string
	Profile   domain.PublicProfile
}

// MeResult describes the caller's session.
type MeResult struct {
	ID          string   `json:"id"`
	RoleID      *string  `json:"role_id"`
	Role        *string  `json:"role"`
	Permissions []string `json:"permissions"`
}

type AuthService interface {
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	Me(ctx context.Context) (*MeResult, error)
}
