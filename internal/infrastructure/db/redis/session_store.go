package redis

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldops/installation-api/internal/core/domain"
)

const (
	defaultSessionTTL = 12 * time.Hour
	sessionIDBytes    = 32
)

// SessionStore keeps identity snapshots under opaque ids.
// Key format: sess:<id>, value is the JSON identity, TTL is the idle timeout.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a SessionStore whose sessions expire after ttl of
// inactivity. A non-positive ttl falls back to 12 hours.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{client: client, ttl: ttl}
}

// TTL reports the idle timeout applied to every session.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

func (s *SessionStore) Create(ctx context.Context, id domain.Identity) (string, error) {
	payload, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		sid, err := newSessionID()
		if err != nil {
			return "", err
		}
		ok, err := s.client.SetNX(ctx, sessionKey(sid), payload, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("store session: %w", err)
		}
		if ok {
			return sid, nil
		}
	}
	return "", errors.New("store session: id collision")
}

func (s *SessionStore) Get(ctx context.Context, sid string) (*domain.Identity, error) {
	if sid == "" {
		return nil, domain.ErrNoSession
	}
	raw, err := s.client.Get(ctx, sessionKey(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNoSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	id, err := decodeSession(raw)
	if err != nil {
		// An unreadable snapshot never becomes valid; drop it so the client
		// can log in again right away.
		_ = s.client.Del(ctx, sessionKey(sid)).Err()
		return nil, err
	}
	return id, nil
}

// decodeSession reports an unreadable or empty snapshot as ErrNoSession.
func decodeSession(raw []byte) (*domain.Identity, error) {
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("decode session: %v: %w", err, domain.ErrNoSession)
	}
	if id.UserID == "" {
		return nil, fmt.Errorf("decode session: no user: %w", domain.ErrNoSession)
	}
	return &id, nil
}

// Touch restarts the idle timeout of sid.
func (s *SessionStore) Touch(ctx context.Context, sid string) error {
	ok, err := s.client.Expire(ctx, sessionKey(sid), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if !ok {
		return domain.ErrNoSession
	}
	return nil
}

func (s *SessionStore) Destroy(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

func sessionKey(sid string) string {
	return "sess:" + sid
}

func newSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
