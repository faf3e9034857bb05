package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
	"github.com/fieldops/installation-api/internal/pkg/ids"
)

type RoleService struct {
	roles ports.RoleRepository
	audit ports.AuditRecorder
	now   func() time.Time
}

func NewRoleService(roles ports.RoleRepository, audit ports.AuditRecorder) *RoleService {
	return &RoleService{roles: roles, audit: audit, now: time.Now}
}

func (s *RoleService) List(ctx context.Context, q string, p domain.Page) (domain.List[domain.Role], error) {
	rows, total, err := s.roles.List(ctx, strings.TrimSpace(q), p)
	if err != nil {
		return domain.List[domain.Role]{}, fmt.Errorf("list roles: %w", err)
	}
	return domain.NewList(rows, total, p), nil
}

func (s *RoleService) Get(ctx context.Context, id string) (*domain.Role, error) {
	return s.roles.FindByID(ctx, id)
}

func (s *RoleService) Create(ctx context.Context, in ports.CreateRoleInput) (*domain.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Invalid("name is required")
	}
	if _, err := s.roles.FindByName(ctx, name); err == nil {
		return nil, domain.ErrRoleNameTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("create role: %w", err)
	}

	now := s.now().UTC()
	role := &domain.Role{
		ID:          ids.New(),
		Name:        name,
		Permissions: domain.NormalizePermissions(in.Permissions),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "role.create",
		Entity:   "role",
		EntityID: role.ID,
		Data:     map[string]any{"name": role.Name, "permissions": role.Permissions},
	})
	return role, nil
}

// Update renames a role and/or replaces its permissions. Sessions already
// issued keep the permissions they were created with.
func (s *RoleService) Update(ctx context.Context, id string, in ports.UpdateRoleInput) (*domain.Role, error) {
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *role

	if name := strings.TrimSpace(in.Name); name != "" && name != role.Name {
		dup, err := s.roles.FindByName(ctx, name)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("update role: %w", err)
		}
		if dup != nil && dup.ID != role.ID {
			return nil, domain.ErrRoleNameTaken
		}
		role.Name = name
	}
	if in.Permissions.Set {
		if in.Permissions.Null {
			return nil, domain.Invalid("permissions must be an array")
		}
		role.Permissions = domain.NormalizePermissions(in.Permissions.Value)
	}

	role.UpdatedAt = s.now().UTC()
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "role.update",
		Entity:   "role",
		EntityID: role.ID,
		Data:     domain.Change{Before: before, After: *role},
	})
	return role, nil
}
