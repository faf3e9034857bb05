package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
	"github.com/fieldops/installation-api/internal/core/reqctx"
	"github.com/fieldops/installation-api/internal/pkg/ids"
	"github.com/fieldops/installation-api/internal/pkg/metrics"
)

// ChecklistService manages checklist templates, their items, and the
// per-installation responses.
type ChecklistService struct {
	templates     ports.ChecklistTemplateRepository
	responses     ports.ChecklistResponseRepository
	installations ports.InstallationRepository
	audit         ports.AuditRecorder
	log           zerolog.Logger
	now           func() time.Time
}

func NewChecklistService(
	templates ports.ChecklistTemplateRepository,
	responses ports.ChecklistResponseRepository,
	installations ports.InstallationRepository,
	audit ports.AuditRecorder,
	log zerolog.Logger,
) *ChecklistService {
	return &ChecklistService{
		templates:     templates,
		responses:     responses,
		installations: installations,
		audit:         audit,
		log:           log,
		now:           time.Now,
	}
}

// ── Templates ─────────────────────────────────────────────────────────────────

func (s *ChecklistService) ListTemplates(ctx context.Context, q string, p domain.Page) (domain.List[domain.ChecklistTemplate], error) {
	rows, total, err := s.templates.ListTemplates(ctx, strings.TrimSpace(q), p)
	if err != nil {
		return domain.List[domain.ChecklistTemplate]{}, fmt.Errorf("list templates: %w", err)
	}
	return domain.NewList(rows, total, p), nil
}

// GetTemplate returns the template with its items in display order.
func (s *ChecklistService) GetTemplate(ctx context.Context, id string) (*domain.ChecklistTemplate, error) {
	t, err := s.templates.FindTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	items, _, err := s.templates.ListItems(ctx, id, detailPage)
	if err != nil {
		return nil, fmt.Errorf("get template: load items: %w", err)
	}
	if items == nil {
		items = []domain.ChecklistItem{}
	}
	t.Items = items
	return t, nil
}

func (s *ChecklistService) CreateTemplate(ctx context.Context, in ports.CreateTemplateInput) (*domain.ChecklistTemplate, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Invalid("name is required")
	}
	version := 1
	if in.Version != nil {
		version = *in.Version
	}

	now := s.now().UTC()
	t := &domain.ChecklistTemplate{
		ID:          ids.New(),
		Name:        name,
		Version:     version,
		Description: nonEmpty(in.Description),
		Rules:       in.Rules,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.templates.CreateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "checklist_template.create",
		Entity:   "checklist_template",
		EntityID: t.ID,
		Data:     map[string]any{"name": t.Name, "version": t.Version, "description": t.Description},
	})
	return t, nil
}

func (s *ChecklistService) UpdateTemplate(ctx context.Context, id string, in ports.TemplatePatch) (*domain.ChecklistTemplate, error) {
	t, err := s.templates.FindTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *t

	if in.Name.Set {
		name := strings.TrimSpace(in.Name.Value)
		if in.Name.Null || name == "" {
			return nil, domain.Invalid("name cannot be empty")
		}
		t.Name = name
	}
	if in.Version.Set && !in.Version.Null {
		t.Version = in.Version.Value
	}
	if in.Description.Set {
		t.Description = in.Description.Ptr()
	}
	if in.Rules.Set {
		t.Rules = in.Rules.Value
	}
	t.UpdatedAt = s.now().UTC()

	if err := s.templates.UpdateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "checklist_template.update",
		Entity:   "checklist_template",
		EntityID: t.ID,
		Data:     domain.Change{Before: before, After: *t},
	})
	return t, nil
}

// ── Template items ────────────────────────────────────────────────────────────

func (s *ChecklistService) ListItems(ctx context.Context, templateID string, p domain.Page) (domain.List[domain.ChecklistItem], error) {
	if _, err := s.templates.FindTemplate(ctx, templateID); err != nil {
		return domain.List[domain.ChecklistItem]{}, err
	}
	rows, total, err := s.templates.ListItems(ctx, templateID, p)
	if err != nil {
		return domain.List[domain.ChecklistItem]{}, fmt.Errorf("list checklist items: %w", err)
	}
	return domain.NewList(rows, total, p), nil
}

func (s *ChecklistService) CreateItem(ctx context.Context, templateID string, in ports.CreateChecklistItemInput) (*domain.ChecklistItem, error) {
	if _, err := s.templates.FindTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	key, label := strings.TrimSpace(in.Key), strings.TrimSpace(in.Label)
	if key == "" || label == "" {
		return nil, domain.Invalid("key and label are required")
	}

	itemType := strings.TrimSpace(in.Type)
	if itemType == "" {
		itemType = domain.DefaultChecklistItemType
	}
	order := 0
	if in.OrderIndex != nil {
		order = *in.OrderIndex
	}

	now := s.now().UTC()
	item := &domain.ChecklistItem{
		ID:         ids.New(),
		TemplateID: templateID,
		Key:        key,
		Label:      label,
		Type:       itemType,
		Required:   in.Required,
		OrderIndex: order,
		Rules:      in.Rules,
		HelpText:   nonEmpty(in.HelpText),
		Options:    in.Options,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.templates.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create checklist item: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "checklist_item.create",
		Entity:   "checklist_item",
		EntityID: item.ID,
		Data: map[string]any{
			"template_id": templateID,
			"key":         item.Key,
			"label":       item.Label,
			"type":        item.Type,
			"required":    item.Required,
			"order_index": item.OrderIndex,
		},
	})
	return item, nil
}

func (s *ChecklistService) UpdateItem(ctx context.Context, itemID string, in ports.ChecklistItemPatch) (*domain.ChecklistItem, error) {
	item, err := s.templates.FindItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	before := *item

	if in.Key.Set {
		if in.Key.Null || strings.TrimSpace(in.Key.Value) == "" {
			return nil, domain.Invalid("key cannot be empty")
		}
		item.Key = strings.TrimSpace(in.Key.Value)
	}
	if in.Label.Set {
		if in.Label.Null || strings.TrimSpace(in.Label.Value) == "" {
			return nil, domain.Invalid("label cannot be empty")
		}
		item.Label = strings.TrimSpace(in.Label.Value)
	}
	if in.Type.Set && !in.Type.Null && in.Type.Value != "" {
		item.Type = in.Type.Value
	}
	if in.Required.Set {
		item.Required = in.Required.Value
	}
	if in.OrderIndex.Set {
		item.OrderIndex = in.OrderIndex.Value
	}
	if in.Rules.Set {
		item.Rules = in.Rules.Value
	}
	if in.HelpText.Set {
		item.HelpText = in.HelpText.Ptr()
	}
	if in.Options.Set {
		item.Options = in.Options.Value
	}
	item.UpdatedAt = s.now().UTC()

	if err := s.templates.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("update checklist item: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "checklist_item.update",
		Entity:   "checklist_item",
		EntityID: item.ID,
		Data:     domain.Change{Before: before, After: *item},
	})
	return item, nil
}

// ── Responses ─────────────────────────────────────────────────────────────────

func (s *ChecklistService) ListResponses(ctx context.Context, installationID string, p domain.Page) (domain.List[domain.ChecklistResponse], error) {
	if _, err := s.installations.FindByID(ctx, installationID); err != nil {
		return domain.List[domain.ChecklistResponse]{}, err
	}
	rows, total, err := s.responses.ListByInstallation(ctx, installationID, p)
	if err != nil {
		return domain.List[domain.ChecklistResponse]{}, fmt.Errorf("list responses: %w", err)
	}
	return domain.NewList(rows, total, p), nil
}

// UpsertResponse stores the response for (installationID, itemID). A new
// response reports created=true; an existing one gets only the fields set in
// in. Two concurrent first writes are resolved by the unique index: the loser
// re-reads and applies its fields as an update.
func (s *ChecklistService) UpsertResponse(ctx context.Context, installationID, itemID string, in ports.ResponsePatch) (*domain.ChecklistResponse, bool, error) {
	if _, err := s.installations.FindByID(ctx, installationID); err != nil {
		return nil, false, err
	}
	if strings.TrimSpace(itemID) == "" {
		return nil, false, domain.Invalid("item_id required")
	}
	if _, err := s.templates.FindItem(ctx, itemID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, domain.ErrChecklistItemNotFound
		}
		return nil, false, err
	}

	existing, err := s.responses.FindByKey(ctx, installationID, itemID)
	if err == nil {
		r, err := s.applyResponse(ctx, existing, in)
		if err == nil {
			metrics.ChecklistUpsertsTotal.WithLabelValues("updated").Inc()
		}
		return r, false, err
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("upsert response: %w", err)
	}

	now := s.now().UTC()
	r := &domain.ChecklistResponse{
		ID:             ids.New(),
		InstallationID: installationID,
		ItemID:         itemID,
		CreatedBy:      optional(reqctx.ActorID(ctx)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.Value.Set {
		r.Value = in.Value.Value
	}
	if in.CompletedAt.Set {
		r.CompletedAt = utcPtr(in.CompletedAt.Ptr())
	}

	if err := s.responses.Insert(ctx, r); err != nil {
		if !errors.Is(err, domain.ErrDuplicateKey) {
			return nil, false, fmt.Errorf("upsert response: %w", err)
		}
		s.log.Debug().Str("installation_id", installationID).Str("item_id", itemID).Msg("response insert lost race, updating")
		existing, err := s.responses.FindByKey(ctx, installationID, itemID)
		if err != nil {
			return nil, false, fmt.Errorf("upsert response: reload: %w", err)
		}
		updated, err := s.applyResponse(ctx, existing, in)
		if err == nil {
			metrics.ChecklistUpsertsTotal.WithLabelValues("retried").Inc()
		}
		return updated, false, err
	}
	metrics.ChecklistUpsertsTotal.WithLabelValues("created").Inc()

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "checklist_response.create",
		Entity:   "checklist_response",
		EntityID: r.ID,
		Data: map[string]any{
			"installation_id": installationID,
			"item_id":         itemID,
			"value":           r.Value,
			"completed_at":    r.CompletedAt,
		},
	})
	return r, true, nil
}

// UpdateResponse applies a partial update to a response addressed by its own id.
func (s *ChecklistService) UpdateResponse(ctx context.Context, id string, in ports.ResponsePatch) (*domain.ChecklistResponse, error) {
	r, err := s.responses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.applyResponse(ctx, r, in)
}

// applyResponse writes only the fields set in in; before is the snapshot the
// audit entry reports.
func (s *ChecklistService) applyResponse(ctx context.Context, before *domain.ChecklistResponse, in ports.ResponsePatch) (*domain.ChecklistResponse, error) {
	r, err := s.responses.ApplyPatch(ctx, before.ID, in, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("update response: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "checklist_response.update",
		Entity:   "checklist_response",
		EntityID: r.ID,
		Data: map[string]any{
			"before":          *before,
			"after":           *r,
			"installation_id": r.InstallationID,
			"item_id":         r.ItemID,
		},
	})
	return r, nil
}
