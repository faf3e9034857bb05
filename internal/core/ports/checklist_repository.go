package ports

import (
	"context"
	"time"

	"github.com/fieldops/installation-api/internal/core/domain"
)

type ChecklistTemplateRepository interface {
	CreateTemplate(ctx context.Context, t *domain.ChecklistTemplate) error
	FindTemplate(ctx context.Context, id string) (*domain.ChecklistTemplate, error)
	ListTemplates(ctx context.Context, q string, p domain.Page) ([]domain.ChecklistTemplate, int64, error)
	UpdateTemplate(ctx context.Context, t *domain.ChecklistTemplate) error

	CreateItem(ctx context.Context, item *domain.ChecklistItem) error
	FindItem(ctx context.Context, id string) (*domain.ChecklistItem, error)
	// ListItems orders by order_index, then created_at.
	ListItems(ctx context.Context, templateID string, p domain.Page) ([]domain.ChecklistItem, int64, error)
	UpdateItem(ctx context.Context, item *domain.ChecklistItem) error
}

// ChecklistResponseRepository stores responses under a unique
// (installation_id, item_id) key.
type ChecklistResponseRepository interface {
	FindByKey(ctx context.Context, installationID, itemID string) (*domain.ChecklistResponse, error)
	FindByID(ctx context.Context, id string) (*domain.ChecklistResponse, error)
	// Insert returns domain.ErrDuplicateKey when a response for the same key
	// already exists.
	Insert(ctx context.Context, r *domain.ChecklistResponse) error
	// ApplyPatch writes only the fields set in in, plus updated_at, in one
	// update and returns the stored response.
	ApplyPatch(ctx context.Context, id string, in ResponsePatch, at time.Time) (*domain.ChecklistResponse, error)
	ListByInstallation(ctx context.Context, installationID string, p domain.Page) ([]domain.ChecklistResponse, int64, error)
}
