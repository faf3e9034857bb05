package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
	"github.com/fieldops/installation-api/internal/core/reqctx"
	"github.com/fieldops/installation-api/internal/pkg/ids"
)

// UserService manages identities on behalf of administrators, plus the
// password change available to every user for their own account.
type UserService struct {
	users ports.UserRepository
	roles ports.RoleRepository
	audit ports.AuditRecorder
	log   zerolog.Logger
	cost  int
	now   func() time.Time
}

func NewUserService(users ports.UserRepository, roles ports.RoleRepository, audit ports.AuditRecorder, log zerolog.Logger) *UserService {
	return &UserService{users: users, roles: roles, audit: audit, log: log, cost: PasswordCost, now: time.Now}
}

func (s *UserService) List(ctx context.Context, f ports.UserFilter, p domain.Page) (domain.List[domain.User], error) {
	f.Q = strings.TrimSpace(f.Q)
	rows, total, err := s.users.List(ctx, f, p)
	if err != nil {
		return domain.List[domain.User]{}, fmt.Errorf("list users: %w", err)
	}
	return domain.NewList(rows, total, p), nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachRole(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) Create(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if name == "" || email == "" || in.Password == "" || in.RoleID == "" {
		return nil, domain.Invalid("name, email, password, role_id are required")
	}
	if len(in.Password) < domain.MinPasswordLength {
		return nil, domain.Invalid("password must be at least %d characters", domain.MinPasswordLength)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("create user: %w", err)
	}

	role, err := s.roles.FindByID(ctx, in.RoleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrRoleRefNotFound
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("create user: hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           ids.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		RoleID:       role.ID,
		Status:       domain.UserActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	user.Role = role

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "user.create",
		Entity:   "user",
		EntityID: user.ID,
		Data:     map[string]any{"name": user.Name, "email": user.Email, "role_id": user.RoleID},
	})
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id string, in ports.UpdateUserInput) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *user

	if in.Email != "" {
		email := domain.NormalizeEmail(in.Email)
		dup, err := s.users.FindByEmail(ctx, email)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("update user: %w", err)
		}
		if dup != nil && dup.ID != user.ID {
			return nil, domain.Conflict("email already in use")
		}
		user.Email = email
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
	}
	if in.RoleID != "" {
		if _, err := s.roles.FindByID(ctx, in.RoleID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrRoleRefNotFound
			}
			return nil, fmt.Errorf("update user: %w", err)
		}
		user.RoleID = in.RoleID
	}
	if in.Status != "" {
		st := domain.UserStatus(in.Status)
		if !st.Valid() {
			return nil, domain.Invalid("status must be one of: active, disabled")
		}
		user.Status = st
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := s.attachRole(ctx, user); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "user.update",
		Entity:   "user",
		EntityID: user.ID,
		Data:     domain.Change{Before: before, After: *user},
	})
	return user, nil
}

// ChangePassword changes the target's password. Acting on one's own account
// requires the current password; acting on another account requires
// users:write or the wildcard instead.
func (s *UserService) ChangePassword(ctx context.Context, in ports.ChangePasswordInput) error {
	actor, _ := reqctx.IdentityFrom(ctx)
	self := actor.UserID != "" && actor.UserID == in.TargetID
	if !self && !actor.HasPermission("users:write") && !actor.HasPermission(domain.PermissionWildcard) {
		return domain.ErrInsufficientPerms
	}

	if len(in.NewPassword) < domain.MinPasswordLength {
		return domain.Invalid("new_password must be at least %d characters", domain.MinPasswordLength)
	}

	user, err := s.users.FindByID(ctx, in.TargetID)
	if err != nil {
		return err
	}

	if self {
		if in.CurrentPassword == "" {
			return domain.Invalid("current_password is required for self-change")
		}
		if user.PasswordHash == "" ||
			bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.CurrentPassword)) != nil {
			return domain.ErrCurrentPasswordIncorrect
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.cost)
	if err != nil {
		return fmt.Errorf("change password: hash: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash), s.now().UTC()); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "user.password_change",
		Entity:   "user",
		EntityID: user.ID,
		Data:     map[string]any{"self": self},
	})
	return nil
}

func (s *UserService) attachRole(ctx context.Context, u *domain.User) error {
	if u.RoleID == "" {
		return nil
	}
	role, err := s.roles.FindByID(ctx, u.RoleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load role: %w", err)
	}
	u.Role = role
	return nil
}
