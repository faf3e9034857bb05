package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
)

func newRoleFixture() (*RoleService, *stubRoleRepo, *recordingAudit) {
	roles := newStubRoleRepo(
		&domain.Role{ID: "role-admin", Name: "admin", Permissions: []string{domain.PermissionWildcard}},
		&domain.Role{ID: "role-tech", Name: "technician", Permissions: []string{"crew:*"}},
	)
	audit := &recordingAudit{}
	return NewRoleService(roles, audit), roles, audit
}

func TestRoleService_Create(t *testing.T) {
	svc, roles, audit := newRoleFixture()
	ctx := context.Background()

	role, err := svc.Create(ctx, ports.CreateRoleInput{Name: " dispatcher ", Permissions: []string{"installations:read", " ", "installations:read"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if role.Name != "dispatcher" {
		t.Fatalf("name not trimmed: %q", role.Name)
	}
	if !reflect.DeepEqual(role.Permissions, []string{"installations:read"}) {
		t.Fatalf("permissions not normalized: %v", role.Permissions)
	}
	if _, ok := roles.roles[role.ID]; !ok {
		t.Fatalf("role not stored")
	}
	if audit.count("role.create") != 1 {
		t.Fatalf("expected role.create audit, got %v", audit.actions())
	}

	empty, err := svc.Create(ctx, ports.CreateRoleInput{Name: "viewer"})
	if err != nil {
		t.Fatalf("create without permissions: %v", err)
	}
	if empty.Permissions == nil || len(empty.Permissions) != 0 {
		t.Fatalf("expected empty permission list, got %#v", empty.Permissions)
	}
}

func TestRoleService_CreateRejects(t *testing.T) {
	svc, _, audit := newRoleFixture()
	ctx := context.Background()

	if _, err := svc.Create(ctx, ports.CreateRoleInput{Name: "  "}); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected bad request for blank name, got %v", err)
	}
	if _, err := svc.Create(ctx, ports.CreateRoleInput{Name: "technician"}); !errors.Is(err, domain.ErrRoleNameTaken) {
		t.Fatalf("expected name conflict, got %v", err)
	}
	if n := len(audit.actions()); n != 0 {
		t.Fatalf("rejected creates must not be audited, got %v", audit.actions())
	}
}

func TestRoleService_Update(t *testing.T) {
	svc, _, audit := newRoleFixture()
	ctx := context.Background()

	role, err := svc.Update(ctx, "role-tech", ports.UpdateRoleInput{
		Name:        "field-tech",
		Permissions: ports.Of([]string{"crew:*", "checklists:read"}),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if role.Name != "field-tech" || len(role.Permissions) != 2 {
		t.Fatalf("unexpected role: %+v", role)
	}

	if audit.count("role.update") != 1 {
		t.Fatalf("expected role.update audit, got %v", audit.actions())
	}
	change, ok := audit.events[0].Data.(domain.Change)
	if !ok {
		t.Fatalf("update audit should carry before/after, got %T", audit.events[0].Data)
	}
	if change.Before.(domain.Role).Name != "technician" {
		t.Fatalf("before snapshot mutated: %+v", change.Before)
	}
}

func TestRoleService_UpdateRejects(t *testing.T) {
	svc, _, _ := newRoleFixture()
	ctx := context.Background()

	cases := []struct {
		name string
		id   string
		in   ports.UpdateRoleInput
		want error
	}{
		{"unknown role", "nope", ports.UpdateRoleInput{Name: "x"}, domain.ErrRoleNotFound},
		{"duplicate name", "role-tech", ports.UpdateRoleInput{Name: "admin"}, domain.ErrRoleNameTaken},
		{"null permissions", "role-tech", ports.UpdateRoleInput{Permissions: ports.Null[[]string]()}, domain.ErrBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Update(ctx, tc.id, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRoleService_UpdateKeepsSameName(t *testing.T) {
	svc, _, _ := newRoleFixture()
	if _, err := svc.Update(context.Background(), "role-tech", ports.UpdateRoleInput{Name: "technician"}); err != nil {
		t.Fatalf("renaming to the current name should succeed: %v", err)
	}
}
