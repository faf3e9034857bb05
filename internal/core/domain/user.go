package domain

import (
	"strings"
	"time"
)

// MinPasswordLength applies to registration, admin-created users and password changes.
const MinPasswordLength = 8

// UserStatus gates whether an identity may open a session.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserDisabled UserStatus = "disabled"
)

// Valid reports whether s is a known user status.
func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserDisabled
}

// User models an identity able to sign in.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	RoleID       string     `json:"role_id"`
	Status       UserStatus `json:"status"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Role is populated on reads that join the user's role.
	Role *Role `json:"role,omitempty"`
}

// PublicProfile is the subset of a user returned by login and register.
type PublicProfile struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Role  *string `json:"role"`
}

// Profile builds the public profile of u given the name of its role.
func (u *User) Profile(roleName string) PublicProfile {
	p := PublicProfile{ID: u.ID, Name: u.Name, Email: u.Email}
	if roleName != "" {
		p.Role = &roleName
	}
	return p
}

// NormalizeEmail trims and lower-cases an address. Emails are unique
// case-insensitively, so every lookup and write goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
