package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the service layer wraps exactly one of
// these so the HTTP layer can pick a status code and an error code.
var (
	ErrBadRequest      = errors.New("bad_request")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not_found")
	ErrConflict        = errors.New("conflict")
	ErrTooManyRequests = errors.New("too_many_requests")
	ErrInternal        = errors.New("internal_error")
)

// Error carries a client-facing message on top of an error kind.
// Status, when non-zero, overrides the status code implied by Kind.
type Error struct {
	Kind    error
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Invalid builds a bad_request error with the given message.
func Invalid(format string, args ...any) error {
	return &Error{Kind: ErrBadRequest, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not_found error for the named entity ("Installation not found").
func NotFound(entity string) error {
	return &Error{Kind: ErrNotFound, Message: entity + " not found"}
}

// Conflict builds a conflict error.
func Conflict(message string) error {
	return &Error{Kind: ErrConflict, Message: message}
}

var (
	ErrInvalidCredentials = &Error{Kind: ErrUnauthorized, Message: "Invalid credentials"}
	ErrNoSession          = &Error{Kind: ErrUnauthorized, Message: "Authentication required"}
	ErrInsufficientPerms  = &Error{Kind: ErrForbidden, Message: "Insufficient permissions"}
	ErrRegistrationClosed = &Error{Kind: ErrForbidden, Message: "registration disabled (use admin to create users)"}
	ErrEmailTaken         = &Error{Kind: ErrConflict, Message: "email already registered"}
	ErrRoleNameTaken      = &Error{Kind: ErrConflict, Message: "role name already exists"}
	ErrExternalStoreTaken = &Error{Kind: ErrConflict, Message: "external_store_id already exists"}
	ErrTooManyAttempts    = &Error{Kind: ErrTooManyRequests, Message: "Too many login attempts, please try later."}
	ErrSessionDestroy     = &Error{Kind: ErrInternal, Message: "Failed to destroy session"}

	// ErrDuplicateKey is returned by repositories when a unique index rejects a
	// write that the caller is expected to resolve, such as a concurrent upsert.
	ErrDuplicateKey = &Error{Kind: ErrConflict, Message: "duplicate key"}

	ErrUserNotFound             = NotFound("User")
	ErrRoleNotFound             = NotFound("Role")
	ErrInstallationNotFound     = NotFound("Installation")
	ErrItemNotFound             = NotFound("Item")
	ErrAssignmentNotFound       = NotFound("Assignment")
	ErrTemplateNotFound         = NotFound("Template")
	ErrChecklistItemNotFound    = NotFound("Checklist item")
	ErrResponseNotFound         = NotFound("Response")
	ErrMediaNotFound            = NotFound("Media")
	ErrStoreNotFound            = NotFound("Store")
	ErrAddressNotFound          = NotFound("Address")
	ErrAuditLogNotFound         = NotFound("Audit log")
	ErrCrewUserNotFound         = &Error{Kind: ErrNotFound, Message: "crew_user_id invalid"}
	ErrRoleRefNotFound          = &Error{Kind: ErrNotFound, Message: "role_id not found"}
	ErrCurrentPasswordIncorrect = &Error{Kind: ErrBadRequest, Message: "current_password is incorrect", Status: 401}
)

// ValidationError reports a request body that failed struct-tag validation.
// It is a bad request, but answered with its own error code.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrBadRequest }
