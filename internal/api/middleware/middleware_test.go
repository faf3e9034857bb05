package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fieldops/installation-api/internal/api/session"
	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/reqctx"
)

const testSecret = "0123456789abcdef-test"

type stubSessions struct {
	data    map[string]domain.Identity
	touched []string
	getErr  error
}

func (s *stubSessions) Create(context.Context, domain.Identity) (string, error) {
	return "", errors.New("not used")
}

func (s *stubSessions) Get(_ context.Context, sid string) (*domain.Identity, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	id, ok := s.data[sid]
	if !ok {
		return nil, domain.ErrNoSession
	}
	return &id, nil
}

func (s *stubSessions) Touch(_ context.Context, sid string) error {
	s.touched = append(s.touched, sid)
	return nil
}

func (s *stubSessions) Destroy(context.Context, string) error { return nil }

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func withIdentity(c echo.Context, perms ...string) {
	ctx := reqctx.WithIdentity(c.Request().Context(), domain.Identity{UserID: "u1", Permissions: perms})
	c.SetRequest(c.Request().WithContext(ctx))
}

func TestSession_ValidCookie(t *testing.T) {
	codec := session.NewCodec(testSecret, time.Hour, false, "none")
	store := &stubSessions{data: map[string]domain.Identity{
		"sid-1": {UserID: "u1", RoleID: "r1", Permissions: []string{"installations:read"}},
	}}
	ck, _ := codec.Cookie("sid-1")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(ck)
	c, rec := newContext(req)

	var got domain.Identity
	h := Session(store, codec, zerolog.Nop())(func(c echo.Context) error {
		got, _ = reqctx.IdentityFrom(c.Request().Context())
		if SessionID(c) != "sid-1" {
			t.Fatalf("session id not exposed")
		}
		return c.NoContent(http.StatusOK)
	})

	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got.UserID != "u1" {
		t.Fatalf("identity not attached: %+v", got)
	}
	if len(store.touched) != 1 || store.touched[0] != "sid-1" {
		t.Fatalf("expected touch of sid-1, got %v", store.touched)
	}
	if rec.Header().Get("Set-Cookie") == "" {
		t.Fatalf("expected cookie to be re-issued")
	}
}

func TestSession_AnonymousCases(t *testing.T) {
	codec := session.NewCodec(testSecret, time.Hour, false, "none")
	foreign := session.NewCodec("some-other-secret-value", time.Hour, false, "none")
	store := &stubSessions{data: map[string]domain.Identity{"sid-1": {UserID: "u1"}}}

	good, _ := codec.Cookie("unknown")
	forged, _ := foreign.Cookie("sid-1")

	for name, ck := range map[string]*http.Cookie{"unknown sid": good, "bad signature": forged, "no cookie": nil} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if ck != nil {
				req.AddCookie(ck)
			}
			c, _ := newContext(req)

			h := Session(store, codec, zerolog.Nop())(func(c echo.Context) error {
				if _, ok := reqctx.IdentityFrom(c.Request().Context()); ok {
					t.Fatalf("identity must not be attached")
				}
				return nil
			})
			if err := h(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
		})
	}
}

func TestSession_StoreFailure(t *testing.T) {
	codec := session.NewCodec(testSecret, time.Hour, false, "none")
	store := &stubSessions{getErr: errors.New("redis down")}
	ck, _ := codec.Cookie("sid-1")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(ck)
	c, _ := newContext(req)

	h := Session(store, codec, zerolog.Nop())(func(echo.Context) error {
		t.Fatalf("should not reach next handler")
		return nil
	})
	if err := h(c); err == nil {
		t.Fatalf("expected store error to propagate")
	}
}

func TestSession_UnreadableSnapshotIsAnonymous(t *testing.T) {
	codec := session.NewCodec(testSecret, time.Hour, false, "none")
	store := &stubSessions{getErr: fmt.Errorf("decode session: bad json: %w", domain.ErrNoSession)}
	ck, _ := codec.Cookie("sid-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.AddCookie(ck)
	c, _ := newContext(req)

	reached := false
	h := Session(store, codec, zerolog.Nop())(func(c echo.Context) error {
		reached = true
		if _, ok := reqctx.IdentityFrom(c.Request().Context()); ok {
			t.Fatalf("identity must not be attached")
		}
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unreadable session must not fail the request: %v", err)
	}
	if !reached || len(store.touched) != 0 {
		t.Fatalf("expected anonymous pass-through without touch")
	}
}

func TestRequireSession(t *testing.T) {
	c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	h := RequireSession()(func(echo.Context) error { return nil })

	if err := h(c); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	withIdentity(c)
	if err := h(c); err != nil {
		t.Fatalf("expected pass with session, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	cases := []struct {
		name     string
		perms    []string
		required []string
		allowed  bool
	}{
		{"any of required", []string{"checklists:write"}, []string{"checklists:write", "crew:*"}, true},
		{"second alternative", []string{"crew:*"}, []string{"checklists:write", "crew:*"}, true},
		{"wildcard", []string{"admin:*"}, []string{"audit:read"}, true},
		{"no requirement", nil, nil, true},
		{"missing", []string{"installations:read"}, []string{"installations:write"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
			withIdentity(c, tc.perms...)

			called := false
			err := Authorize(tc.required...)(func(echo.Context) error {
				called = true
				return nil
			})(c)

			if called != tc.allowed {
				t.Fatalf("expected allowed=%v, called=%v", tc.allowed, called)
			}
			if !tc.allowed && !errors.Is(err, domain.ErrForbidden) {
				t.Fatalf("expected forbidden, got %v", err)
			}
		})
	}
}

func TestAuthorize_ChainedIsAllOf(t *testing.T) {
	c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	withIdentity(c, "users:read")

	h := Authorize("users:read")(Authorize("users:write")(func(echo.Context) error { return nil }))
	if err := h(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden when one of two chained guards fails, got %v", err)
	}
}

func TestLoginRateLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set(echo.HeaderXForwardedFor, "203.0.113.9, 10.0.0.1")

	t.Run("allowed", func(t *testing.T) {
		l := &stubLimiter{allow: true}
		c, _ := newContext(req)
		if err := LoginRateLimit(l, zerolog.Nop())(func(echo.Context) error { return nil })(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(l.keys) != 1 || l.keys[0] != "login:203.0.113.9" {
			t.Fatalf("unexpected keys %v", l.keys)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		c, _ := newContext(req)
		err := LoginRateLimit(&stubLimiter{}, zerolog.Nop())(func(echo.Context) error {
			t.Fatalf("should not reach next handler")
			return nil
		})(c)
		if !errors.Is(err, domain.ErrTooManyRequests) {
			t.Fatalf("expected too many requests, got %v", err)
		}
	})

	t.Run("limiter down", func(t *testing.T) {
		c, _ := newContext(req)
		called := false
		_ = LoginRateLimit(&stubLimiter{err: errors.New("redis down")}, zerolog.Nop())(func(echo.Context) error {
			called = true
			return nil
		})(c)
		if !called {
			t.Fatalf("limiter failure should let the attempt through")
		}
	})
}

func TestClientContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXForwardedFor, "198.51.100.7, 10.0.0.1")
	c, _ := newContext(req)
	c.Response().Header().Set(echo.HeaderXRequestID, "01HX")

	err := ClientContext()(func(c echo.Context) error {
		ctx := c.Request().Context()
		if ip := reqctx.ClientIP(ctx); ip != "198.51.100.7" {
			t.Fatalf("expected first forwarded hop, got %q", ip)
		}
		if rid := reqctx.RequestID(ctx); rid != "01HX" {
			t.Fatalf("expected request id, got %q", rid)
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestClientIP_FallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:5555"
	c, _ := newContext(req)
	if ip := ClientIP(c); ip != "192.0.2.4" {
		t.Fatalf("expected remote address, got %q", ip)
	}
}
