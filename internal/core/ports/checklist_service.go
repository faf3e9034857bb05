package ports

import (
	"context"
	"time"

	"github.com/fieldops/installation-api/internal/core/domain"
)

type CreateTemplateInput struct {
	Name        string
	Version     *int
	Description *string
	Rules       any
}

type TemplatePatch struct {
	Name        Patch[string]
	Version     Patch[int]
	Description Patch[string]
	Rules       Patch[any]
}

type CreateChecklistItemInput struct {
	Key        string
	Label      string
	Type       string
	Required   bool
	OrderIndex *int
	Rules      any
	HelpText   *string
	Options    any
}

type ChecklistItemPatch struct {
	Key        Patch[string]
	Label      Patch[string]
	Type       Patch[string]
	Required   Patch[bool]
	OrderIndex Patch[int]
	Rules      Patch[any]
	HelpText   Patch[string]
	Options    Patch[any]
}

// ResponsePatch carries the fields of an upsert or a by-id update. Only set
// fields are applied to an existing response.
type ResponsePatch struct {
	Value       Patch[any]
	CompletedAt Patch[time.Time]
}

type ChecklistService interface {
	ListTemplates(ctx context.Context, q string, p domain.Page) (domain.List[domain.ChecklistTemplate], error)
	GetTemplate(ctx context.Context, id string) (*domain.ChecklistTemplate, error)
	CreateTemplate(ctx context.Context, in CreateTemplateInput) (*domain.ChecklistTemplate, error)
	UpdateTemplate(ctx context.Context, id string, in TemplatePatch) (*domain.ChecklistTemplate, error)

	ListItems(ctx context.Context, templateID string, p domain.Page) (domain.List[domain.ChecklistItem], error)
	CreateItem(ctx context.Context, templateID string, in CreateChecklistItemInput) (*domain.ChecklistItem, error)
	UpdateItem(ctx context.Context, itemID string, in ChecklistItemPatch) (*domain.ChecklistItem, error)

	ListResponses(ctx context.Context, installationID string, p domain.Page) (domain.List[domain.ChecklistResponse], error)
	// UpsertResponse reports created=true when a new response was stored.
	UpsertResponse(ctx context.Context, installationID, itemID string, in ResponsePatch) (resp *domain.ChecklistResponse, created bool, err error)
	UpdateResponse(ctx context.Context, id string, in ResponsePatch) (*domain.ChecklistResponse, error)
}
