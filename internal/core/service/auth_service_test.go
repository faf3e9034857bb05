package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
	"github.com/fieldops/installation-api/internal/core/reqctx"
)

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

type authFixture struct {
	svc      *AuthService
	users    *stubUserRepo
	roles    *stubRoleRepo
	sessions *stubSessions
	audit    *recordingAudit
}

func newAuthFixture(t *testing.T, users ...*domain.User) authFixture {
	t.Helper()
	f := authFixture{
		users: newStubUserRepo(users...),
		roles: newStubRoleRepo(&domain.Role{
			ID:          "role-tech",
			Name:        "technician",
			Permissions: []string{"installations:read", "checklists:write"},
		}),
		sessions: newStubSessions(),
		audit:    &recordingAudit{},
	}
	f.svc = NewAuthService(f.users, f.roles, f.sessions, f.audit, zerolog.Nop())
	f.svc.cost = bcrypt.MinCost
	return f
}

func techUser(t *testing.T) *domain.User {
	return &domain.User{
		ID:           "u-1",
		Name:         "Tess",
		Email:        "tess@example.com",
		PasswordHash: hashFor(t, "correct-horse"),
		RoleID:       "role-tech",
		Status:       domain.UserActive,
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	f := newAuthFixture(t, techUser(t))

	res, err := f.svc.Login(context.Background(), ports.LoginInput{Email: "  TESS@example.com ", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if res.SessionID == "" {
		t.Fatalf("expected session id")
	}
	if res.Profile.Role == nil || *res.Profile.Role != "technician" {
		t.Fatalf("unexpected profile role: %v", res.Profile.Role)
	}

	id, err := f.sessions.Get(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	want := []string{"installations:read", "checklists:write"}
	if id.UserID != "u-1" || id.Role != "technician" || !reflect.DeepEqual(id.Permissions, want) {
		t.Fatalf("unexpected identity snapshot: %+v", id)
	}
	if f.users.users["u-1"].LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
	if f.audit.count("auth.login") != 1 {
		t.Fatalf("expected one auth.login audit, got %v", f.audit.actions())
	}
	if got := f.audit.events[0].ActorID; got != "u-1" {
		t.Fatalf("login audit actor = %q", got)
	}
}

func TestAuthService_Login_Failures(t *testing.T) {
	disabled := techUser(t)
	disabled.ID, disabled.Email, disabled.Status = "u-2", "off@example.com", domain.UserDisabled

	cases := []struct {
		name, email, password, reason string
	}{
		{"unknown email", "nobody@example.com", "correct-horse", "unknown_email"},
		{"wrong password", "tess@example.com", "wrong-horse", "bad_password"},
		{"disabled user", "off@example.com", "correct-horse", "disabled"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAuthFixture(t, techUser(t), disabled)

			_, err := f.svc.Login(context.Background(), ports.LoginInput{Email: tc.email, Password: tc.password})
			if !errors.Is(err, domain.ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if len(f.sessions.sessions) != 0 {
				t.Fatalf("no session should be issued on failure")
			}
			if got := f.audit.actions(); !reflect.DeepEqual(got, []string{"auth.login_failed"}) {
				t.Fatalf("expected exactly one auth.login_failed, got %v", got)
			}
			data := f.audit.events[0].Data.(map[string]any)
			if data["reason"] != tc.reason {
				t.Fatalf("reason = %v, want %s", data["reason"], tc.reason)
			}
		})
	}
}

func TestAuthService_Login_RequiresFields(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.Login(context.Background(), ports.LoginInput{Email: "a@b.c"})
	if !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if len(f.audit.events) != 0 {
		t.Fatalf("validation failure should not be audited")
	}
}

func TestAuthService_Login_RotatesPreviousSession(t *testing.T) {
	f := newAuthFixture(t, techUser(t))
	f.sessions.sessions["old-sid"] = domain.Identity{UserID: "someone-else"}

	res, err := f.svc.Login(context.Background(), ports.LoginInput{
		Email:             "tess@example.com",
		Password:          "correct-horse",
		PreviousSessionID: "old-sid",
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if res.SessionID == "old-sid" {
		t.Fatalf("session id must change on login")
	}
	if _, err := f.sessions.Get(context.Background(), "old-sid"); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("previous session should be destroyed")
	}
}

func TestAuthService_Login_ToleratesLastLoginFailure(t *testing.T) {
	f := newAuthFixture(t, techUser(t))
	f.users.touchErr = errors.New("db down")

	if _, err := f.svc.Login(context.Background(), ports.LoginInput{Email: "tess@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("last login failure should not fail login: %v", err)
	}
}

func TestAuthService_Login_SessionFailure(t *testing.T) {
	f := newAuthFixture(t, techUser(t))
	f.sessions.createErr = errors.New("redis down")

	if _, err := f.svc.Login(context.Background(), ports.LoginInput{Email: "tess@example.com", Password: "correct-horse"}); err == nil {
		t.Fatalf("expected error when session cannot be created")
	}
	if f.audit.count("auth.login") != 0 {
		t.Fatalf("failed login must not be audited as success")
	}
}

func TestAuthService_Register_FirstUserBecomesAdmin(t *testing.T) {
	f := newAuthFixture(t)

	res, err := f.svc.Register(context.Background(), ports.RegisterInput{
		Name:     "Ada",
		Email:    "Ada@Example.com",
		Password: "longenough",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.Profile.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %s", res.Profile.Email)
	}
	if res.Profile.Role == nil || *res.Profile.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %v", res.Profile.Role)
	}

	admin, err := f.roles.FindByName(context.Background(), domain.RoleAdmin)
	if err != nil {
		t.Fatalf("admin role not created: %v", err)
	}
	stored := f.users.users[res.Profile.ID]
	if stored == nil || stored.RoleID != admin.ID {
		t.Fatalf("user not linked to admin role: %+v", stored)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("longenough")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}

	id, _ := f.sessions.Get(context.Background(), res.SessionID)
	if id == nil || !reflect.DeepEqual(id.Permissions, []string{domain.PermissionWildcard}) {
		t.Fatalf("unexpected session identity: %+v", id)
	}
	if f.audit.count("auth.register") != 1 {
		t.Fatalf("expected auth.register audit, got %v", f.audit.actions())
	}
}

func TestAuthService_Register_ClosedOnceUsersExist(t *testing.T) {
	f := newAuthFixture(t, techUser(t))

	_, err := f.svc.Register(context.Background(), ports.RegisterInput{Name: "Eve", Email: "eve@example.com", Password: "longenough"})
	if !errors.Is(err, domain.ErrRegistrationClosed) {
		t.Fatalf("expected ErrRegistrationClosed, got %v", err)
	}
	if got := f.audit.actions(); !reflect.DeepEqual(got, []string{"auth.register_forbidden"}) {
		t.Fatalf("expected exactly one auth.register_forbidden, got %v", got)
	}
	if len(f.users.users) != 1 {
		t.Fatalf("no user should be created")
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	f := newAuthFixture(t)

	for _, in := range []ports.RegisterInput{
		{Email: "a@example.com", Password: "longenough"},
		{Name: "A", Email: "a@example.com", Password: "short"},
	} {
		if _, err := f.svc.Register(context.Background(), in); !errors.Is(err, domain.ErrBadRequest) {
			t.Fatalf("expected bad request for %+v, got %v", in, err)
		}
	}
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture(t)
	f.sessions.sessions["sid"] = domain.Identity{UserID: "u-1"}
	ctx := reqctx.WithIdentity(context.Background(), domain.Identity{UserID: "u-1"})

	if err := f.svc.Logout(ctx, "sid"); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if len(f.sessions.sessions) != 0 {
		t.Fatalf("session not destroyed")
	}
	if f.audit.count("auth.logout") != 1 {
		t.Fatalf("expected auth.logout audit")
	}

	f.sessions.destroyErr = errors.New("redis down")
	if err := f.svc.Logout(ctx, "sid"); !errors.Is(err, domain.ErrSessionDestroy) {
		t.Fatalf("expected ErrSessionDestroy, got %v", err)
	}
}

func TestAuthService_Me(t *testing.T) {
	f := newAuthFixture(t)

	if _, err := f.svc.Me(context.Background()); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	ctx := reqctx.WithIdentity(context.Background(), domain.Identity{UserID: "u-1", RoleID: "r-1", Role: "technician"})
	me, err := f.svc.Me(ctx)
	if err != nil {
		t.Fatalf("Me returned error: %v", err)
	}
	if me.ID != "u-1" || *me.Role != "technician" || me.Permissions == nil {
		t.Fatalf("unexpected me: %+v", me)
	}
}

