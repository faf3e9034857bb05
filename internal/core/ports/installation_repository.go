package ports

import (
	"context"
	"time"

	"github.com/fieldops/installation-api/internal/core/domain"
)

type InstallationFilter struct {
	ExternalOrderID string
	StoreID         string
	Status          string
}

// InstallationRepository persists installations and their owned items and
// crew assignments.
type InstallationRepository interface {
	Create(ctx context.Context, inst *domain.Installation) error
	FindByID(ctx context.Context, id string) (*domain.Installation, error)
	List(ctx context.Context, f InstallationFilter, p domain.Page) ([]domain.Installation, int64, error)
	// UpdateSchedule writes the schedule window, notes and updated_by of inst.
	UpdateSchedule(ctx context.Context, inst *domain.Installation) error
	// UpdateStatus sets status and updated_by in one atomic document write
	// and returns the updated installation.
	UpdateStatus(ctx context.Context, id string, status domain.InstallationStatus, updatedBy *string, at time.Time) (*domain.Installation, error)

	CreateItem(ctx context.Context, item *domain.InstallationItem) error
	FindItem(ctx context.Context, installationID, itemID string) (*domain.InstallationItem, error)
	ListItems(ctx context.Context, installationID string, p domain.Page) ([]domain.InstallationItem, int64, error)
	UpdateItem(ctx context.Context, item *domain.InstallationItem) error
	DeleteItem(ctx context.Context, installationID, itemID string) error

	CreateAssignment(ctx context.Context, a *domain.CrewAssignment) error
	FindAssignment(ctx context.Context, installationID, assignmentID string) (*domain.CrewAssignment, error)
	ListAssignments(ctx context.Context, installationID string, p domain.Page) ([]domain.CrewAssignment, int64, error)
	UpdateAssignment(ctx context.Context, a *domain.CrewAssignment) error
	DeleteAssignment(ctx context.Context, installationID, assignmentID string) error
}
