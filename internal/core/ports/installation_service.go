package ports

import (
	"context"
	"time"

	"github.com/fieldops/installation-api/internal/core/domain"
)

type CreateInstallationInput struct {
	ExternalOrderID string
	StoreID         string
	ScheduledStart  *time.Time
	ScheduledEnd    *time.Time
	Status          string
	Notes           *string
}

// SchedulePatch is a partial update of the schedule window and notes.
type SchedulePatch struct {
	ScheduledStart Patch[time.Time]
	ScheduledEnd   Patch[time.Time]
	Notes          Patch[string]
}

type AddItemInput struct {
	ExternalProductID   string
	Quantity            *int
	RoomTag             *string
	SpecialInstructions *string
}

type ItemPatch struct {
	Quantity            Patch[int]
	RoomTag             Patch[string]
	SpecialInstructions Patch[string]
}

type AssignCrewInput struct {
	CrewUserID string
	Role       *string
}

// AssignmentPatch updates a crew assignment. When Accepted and Declined are
// both true, accept wins.
type AssignmentPatch struct {
	Role     Patch[string]
	Accepted *bool
	Declined *bool
}

type InstallationService interface {
	List(ctx context.Context, f InstallationFilter, p domain.Page) (domain.List[domain.Installation], error)
	Get(ctx context.Context, id string) (*domain.InstallationDetail, error)
	Create(ctx context.Context, in CreateInstallationInput) (*domain.Installation, error)
	UpdateSchedule(ctx context.Context, id string, in SchedulePatch) (*domain.Installation, error)
	UpdateStatus(ctx context.Context, id, status string) (*domain.Installation, error)

	AddItem(ctx context.Context, installationID string, in AddItemInput) (*domain.InstallationItem, error)
	ListItems(ctx context.Context, installationID string, p domain.Page) (domain.List[domain.InstallationItem], error)
	UpdateItem(ctx context.Context, installationID, itemID string, in ItemPatch) (*domain.InstallationItem, error)
	RemoveItem(ctx context.Context, installationID, itemID string) error

	AssignCrew(ctx context.Context, installationID string, in AssignCrewInput) (*domain.CrewAssignment, error)
	ListCrew(ctx context.Context, installationID string, p domain.Page) (domain.List[domain.CrewAssignment], error)
	UpdateAssignment(ctx context.Context, installationID, assignmentID string, in AssignmentPatch) (*domain.CrewAssignment, error)
	RemoveAssignment(ctx context.Context, installationID, assignmentID string) error
}
