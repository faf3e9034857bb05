package redis

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/fieldops/installation-api/internal/core/domain"
)

func TestNewSessionID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		sid, err := newSessionID()
		if err != nil {
			t.Fatalf("newSessionID: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(sid)
		if err != nil || len(raw) != sessionIDBytes {
			t.Fatalf("session id %q is not %d url-safe bytes", sid, sessionIDBytes)
		}
		if _, dup := seen[sid]; dup {
			t.Fatalf("duplicate session id")
		}
		seen[sid] = struct{}{}
	}
}

func TestKeys(t *testing.T) {
	if got := sessionKey("abc"); got != "sess:abc" {
		t.Fatalf("sessionKey = %q", got)
	}
	if got := rateLimitKey("login:1.2.3.4"); got != "ratelimit:login:1.2.3.4" {
		t.Fatalf("rateLimitKey = %q", got)
	}
}

func TestNewSessionStore_DefaultTTL(t *testing.T) {
	if got := NewSessionStore(nil, 0).TTL(); got != 12*time.Hour {
		t.Fatalf("default ttl = %v", got)
	}
	if got := NewSessionStore(nil, time.Minute).TTL(); got != time.Minute {
		t.Fatalf("ttl = %v", got)
	}
}

func TestDecodeSession(t *testing.T) {
	id, err := decodeSession([]byte(`{"user_id":"u1","role_id":"r1","role":"admin","permissions":["admin:*"]}`))
	if err != nil {
		t.Fatalf("decodeSession: %v", err)
	}
	if id.UserID != "u1" || len(id.Permissions) != 1 {
		t.Fatalf("unexpected identity: %+v", id)
	}

	for _, raw := range []string{"not json", `{"user_id":`, `{}`, `[]`} {
		if _, err := decodeSession([]byte(raw)); !errors.Is(err, domain.ErrNoSession) {
			t.Fatalf("%q: expected no session, got %v", raw, err)
		}
	}
}
