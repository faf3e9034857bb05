package domain

import (
	"strings"
	"time"
)

// InstallationStatus represents the lifecycle state of an installation.
type InstallationStatus string

const (
	StatusScheduled  InstallationStatus = "scheduled"
	StatusInProgress InstallationStatus = "in_progress"
	StatusCompleted  InstallationStatus = "completed"
	StatusFailed     InstallationStatus = "failed"
	StatusCanceled   InstallationStatus = "canceled"

	// StatusStaged is declared by the data model but reserved: no operation
	// moves an installation into or out of it.
	StatusStaged InstallationStatus = "staged"
)

// operationalStatuses are the values accepted by status transitions. Any of
// them may follow any other; ordering is not enforced.
var operationalStatuses = []InstallationStatus{
	StatusScheduled,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusCanceled,
}

// OperationalStatuses returns the statuses a transition may target, in display order.
func OperationalStatuses() []InstallationStatus {
	out := make([]InstallationStatus, len(operationalStatuses))
	copy(out, operationalStatuses)
	return out
}

// ParseOperationalStatus validates a requested status. The error message
// enumerates the accepted values.
func ParseOperationalStatus(s string) (InstallationStatus, error) {
	for _, st := range operationalStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	names := make([]string, len(operationalStatuses))
	for i, st := range operationalStatuses {
		names[i] = string(st)
	}
	return "", Invalid("status must be one of: %s", strings.Join(names, ", "))
}

// Installation is the aggregate root for a field job.
type Installation struct {
	ID              string             `json:"id"`
	ExternalOrderID string             `json:"external_order_id"`
	StoreID         string             `json:"store_id"`
	ScheduledStart  *time.Time         `json:"scheduled_start"`
	ScheduledEnd    *time.Time         `json:"scheduled_end"`
	Status          InstallationStatus `json:"status"`
	Notes           *string            `json:"notes"`
	CreatedBy       *string            `json:"created_by"`
	UpdatedBy       *string            `json:"updated_by"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// InstallationDetail is an installation with its store summary and owned sub-entities.
type InstallationDetail struct {
	Installation
	Store *StoreSummary      `json:"store,omitempty"`
	Items []InstallationItem `json:"items"`
	Crew  []CrewAssignment   `json:"crew"`
}

// ValidateSchedule enforces start <= end when both ends of the window are set.
func ValidateSchedule(start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		return Invalid("scheduled_start must be before or equal to scheduled_end")
	}
	return nil
}

// InstallationItem is a product line to install.
type InstallationItem struct {
	ID                  string    `json:"id"`
	InstallationID      string    `json:"installation_id"`
	ExternalProductID   string    `json:"external_product_id"`
	Quantity            int       `json:"quantity"`
	RoomTag             *string   `json:"room_tag"`
	SpecialInstructions *string   `json:"special_instructions"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DefaultItemQuantity applies when an item is added without a quantity.
const DefaultItemQuantity = 1

// ValidateQuantity rejects quantities below one.
func ValidateQuantity(q int) error {
	if q < 1 {
		return Invalid("quantity must be >= 1")
	}
	return nil
}

// CrewAssignment links a crew member to an installation. At most one of
// AcceptedAt and DeclinedAt is set at any time.
type CrewAssignment struct {
	ID             string     `json:"id"`
	InstallationID string     `json:"installation_id"`
	CrewUserID     string     `json:"crew_user_id"`
	Role           *string    `json:"role"`
	AcceptedAt     *time.Time `json:"accepted_at"`
	DeclinedAt     *time.Time `json:"declined_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Crew is populated on reads that join the assigned user.
	Crew *CrewMember `json:"crew,omitempty"`
}

// CrewMember is the user summary embedded in assignment reads.
type CrewMember struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ApplyDecision records an accept or decline. Accept is evaluated first, so
// when both flags are true the assignment ends up accepted. With neither flag
// set the timestamps are left alone.
func (a *CrewAssignment) ApplyDecision(accepted, declined bool, now time.Time) {
	switch {
	case accepted:
		a.AcceptedAt = &now
		a.DeclinedAt = nil
	case declined:
		a.DeclinedAt = &now
		a.AcceptedAt = nil
	}
}
