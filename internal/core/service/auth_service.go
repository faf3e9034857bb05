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
	"github.com/fieldops/installation-api/internal/pkg/metrics"
)

// PasswordCost is the bcrypt work factor for every stored password.
const PasswordCost = 12

// AuthService verifies credentials and issues sessions.
type AuthService struct {
	users    ports.UserRepository
	roles    ports.RoleRepository
	sessions ports.SessionStore
	audit    ports.AuditRecorder
	log      zerolog.Logger
	cost     int
	now      func() time.Time
}

func NewAuthService(
	users ports.UserRepository,
	roles ports.RoleRepository,
	sessions ports.SessionStore,
	audit ports.AuditRecorder,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		roles:    roles,
		sessions: sessions,
		audit:    audit,
		log:      log,
		cost:     PasswordCost,
		now:      time.Now,
	}
}

// Login checks email and password. Every failure looks the same to the
// caller; the audit entry records which check failed.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.AuthResult, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, domain.Invalid("Email and password required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("login: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		s.loginFailed(ctx, email, "", "unknown_email")
		return nil, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		s.loginFailed(ctx, email, user.ID, "bad_password")
		return nil, domain.ErrInvalidCredentials
	}
	if user.Status == domain.UserDisabled {
		s.loginFailed(ctx, email, user.ID, "disabled")
		return nil, domain.ErrInvalidCredentials
	}

	identity, err := s.snapshot(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	sid, err := s.rotate(ctx, in.PreviousSessionID, identity)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "error").Inc()
		return nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to update last login")
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "auth.login",
		Entity:   "user",
		EntityID: user.ID,
		ActorID:  user.ID,
		Data:     map[string]any{"email": email},
	})
	metrics.AuthAttemptsTotal.WithLabelValues("login", "ok").Inc()

	return &ports.AuthResult{SessionID: sid, Profile: user.Profile(identity.Role)}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, userID, reason string) {
	metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid_credentials").Inc()
	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "auth.login_failed",
		Entity:   "user",
		EntityID: userID,
		ActorID:  userID,
		Data:     map[string]any{"email": email, "reason": reason},
	})
}

// Register creates the first user of the system as an administrator and
// signs them in. Once any user exists, registration is closed.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)

	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("register: count users: %w", err)
	}
	if count > 0 {
		metrics.AuthAttemptsTotal.WithLabelValues("register", "forbidden").Inc()
		s.audit.Record(ctx, domain.AuditEvent{
			Action: "auth.register_forbidden",
			Entity: "user",
			Data:   map[string]any{"email": email},
		})
		return nil, domain.ErrRegistrationClosed
	}

	if name == "" || email == "" || in.Password == "" {
		return nil, domain.Invalid("name, email, password are required")
	}
	if len(in.Password) < domain.MinPasswordLength {
		return nil, domain.Invalid("password must be at least %d chars", domain.MinPasswordLength)
	}

	role, err := s.ensureAdminRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("register: %w", err)
	}
	if existing != nil {
		return nil, s.registerConflict(ctx, email, existing.ID)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
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
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, s.registerConflict(ctx, email, "")
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	identity := domain.Identity{
		UserID:      user.ID,
		RoleID:      role.ID,
		Role:        domain.RoleAdmin,
		Permissions: []string{domain.PermissionWildcard},
	}
	sid, err := s.rotate(ctx, in.PreviousSessionID, identity)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("register", "error").Inc()
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "auth.register",
		Entity:   "user",
		EntityID: user.ID,
		ActorID:  user.ID,
		Data:     map[string]any{"email": email, "role": domain.RoleAdmin},
	})
	metrics.AuthAttemptsTotal.WithLabelValues("register", "ok").Inc()

	return &ports.AuthResult{SessionID: sid, Profile: user.Profile(domain.RoleAdmin)}, nil
}

func (s *AuthService) registerConflict(ctx context.Context, email, existingID string) error {
	metrics.AuthAttemptsTotal.WithLabelValues("register", "conflict").Inc()
	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "auth.register_conflict",
		Entity:   "user",
		EntityID: existingID,
		Data:     map[string]any{"email": email, "existing_id": existingID},
	})
	return domain.ErrEmailTaken
}

func (s *AuthService) ensureAdminRole(ctx context.Context) (*domain.Role, error) {
	role, err := s.roles.FindByName(ctx, domain.RoleAdmin)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find admin role: %w", err)
	}

	now := s.now().UTC()
	role = &domain.Role{
		ID:          ids.New(),
		Name:        domain.RoleAdmin,
		Permissions: []string{domain.PermissionWildcard},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, domain.ErrRoleNameTaken) {
			return s.roles.FindByName(ctx, domain.RoleAdmin)
		}
		return nil, fmt.Errorf("create admin role: %w", err)
	}
	return role, nil
}

// Logout destroys the caller's session. Without a session it is a no-op.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		s.log.Error().Err(err).Msg("failed to destroy session")
		return domain.ErrSessionDestroy
	}

	if actor := reqctx.ActorID(ctx); actor != "" {
		s.audit.Record(ctx, domain.AuditEvent{Action: "auth.logout", Entity: "user", EntityID: actor})
	}
	return nil
}

// Me reports the identity snapshot of the current session.
func (s *AuthService) Me(ctx context.Context) (*ports.MeResult, error) {
	id, ok := reqctx.IdentityFrom(ctx)
	if !ok {
		return nil, domain.ErrNoSession
	}
	perms := id.Permissions
	if perms == nil {
		perms = []string{}
	}
	return &ports.MeResult{
		ID:          id.UserID,
		RoleID:      optional(id.RoleID),
		Role:        optional(id.Role),
		Permissions: perms,
	}, nil
}

// snapshot builds the session identity from the user's current role. A
// missing role yields an identity without permissions.
func (s *AuthService) snapshot(ctx context.Context, user *domain.User) (domain.Identity, error) {
	identity := domain.Identity{UserID: user.ID, RoleID: user.RoleID, Permissions: []string{}}
	if user.RoleID == "" {
		return identity, nil
	}
	role, err := s.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return identity, nil
		}
		return domain.Identity{}, fmt.Errorf("load role: %w", err)
	}
	identity.Role = role.Name
	identity.Permissions = domain.NormalizePermissions(role.Permissions)
	return identity, nil
}

// rotate replaces the caller's previous session, if any, with a new one
// holding identity. Any failure aborts the login.
func (s *AuthService) rotate(ctx context.Context, previous string, identity domain.Identity) (string, error) {
	if previous != "" {
		if err := s.sessions.Destroy(ctx, previous); err != nil {
			return "", fmt.Errorf("regenerate session: destroy previous: %w", err)
		}
	}
	sid, err := s.sessions.Create(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("regenerate session: %w", err)
	}
	metrics.SessionsIssuedTotal.Inc()
	return sid, nil
}
