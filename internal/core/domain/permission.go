package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// PermissionWildcard grants every permission-guarded route.
const PermissionWildcard = "admin:*"

// RoleAdmin is the role created by first-user registration.
const RoleAdmin = "admin"

// Role groups permission tokens. Users reference a role by id.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NormalizePermissions turns whatever shape a role's permissions were stored
// in into an ordered list of tokens. Lists ([]string or []any) are taken as
// they are, strings are decoded as a JSON array. Anything else, including a
// string that is not a JSON array, yields an empty list. Blank and repeated
// tokens are dropped; the first occurrence keeps its position.
func NormalizePermissions(raw any) []string {
	var items []any
	switch v := raw.(type) {
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	case []any:
		items = v
	case string:
		if err := json.Unmarshal([]byte(v), &items); err != nil {
			return []string{}
		}
	case []byte:
		if err := json.Unmarshal(v, &items); err != nil {
			return []string{}
		}
	default:
		return []string{}
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Identity is the snapshot stored in a session at login. It is not refreshed
// when the underlying role changes; a new login picks up the change.
type Identity struct {
	UserID      string   `json:"user_id"`
	RoleID      string   `json:"role_id"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether the snapshot literally holds perm.
func (i Identity) HasPermission(perm string) bool {
	for _, p := range i.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Allows evaluates a route's required permissions. The wildcard and an empty
// requirement always pass; otherwise holding any one of required is enough.
func (i Identity) Allows(required ...string) bool {
	if i.HasPermission(PermissionWildcard) || len(required) == 0 {
		return true
	}
	for _, r := range required {
		if i.HasPermission(r) {
			return true
		}
	}
	return false
}
