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

// detailPage bounds the items and crew embedded in an installation detail.
var detailPage = domain.Page{Limit: 500}

// InstallationService drives the installation lifecycle and its owned items
// and crew assignments.
type InstallationService struct {
	repo   ports.InstallationRepository
	stores ports.StoreRepository
	users  ports.UserRepository
	audit  ports.AuditRecorder
	log    zerolog.Logger
	now    func() time.Time
}

func NewInstallationService(
	repo ports.InstallationRepository,
	stores ports.StoreRepository,
	users ports.UserRepository,
	audit ports.AuditRecorder,
	log zerolog.Logger,
) *InstallationService {
	return &InstallationService{repo: repo, stores: stores, users: users, audit: audit, log: log, now: time.Now}
}

func (s *InstallationService) List(ctx context.Context, f ports.InstallationFilter, p domain.Page) (domain.List[domain.Installation], error) {
	rows, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return domain.List[domain.Installation]{}, fmt.Errorf("list installations: %w", err)
	}
	return domain.NewList(rows, total, p), nil
}

// Get returns the installation with its store summary, items and crew.
func (s *InstallationService) Get(ctx context.Context, id string) (*domain.InstallationDetail, error) {
	inst, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &domain.InstallationDetail{Installation: *inst}

	store, err := s.stores.FindByID(ctx, inst.StoreID)
	switch {
	case err == nil:
		detail.Store = &domain.StoreSummary{ID: store.ID, Name: store.Name, ExternalStoreID: store.ExternalStoreID}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("get installation: load store: %w", err)
	}

	if detail.Items, _, err = s.repo.ListItems(ctx, id, detailPage); err != nil {
		return nil, fmt.Errorf("get installation: load items: %w", err)
	}
	if detail.Crew, _, err = s.repo.ListAssignments(ctx, id, detailPage); err != nil {
		return nil, fmt.Errorf("get installation: load crew: %w", err)
	}
	if detail.Items == nil {
		detail.Items = []domain.InstallationItem{}
	}
	if detail.Crew == nil {
		detail.Crew = []domain.CrewAssignment{}
	}
	return detail, nil
}

func (s *InstallationService) Create(ctx context.Context, in ports.CreateInstallationInput) (*domain.Installation, error) {
	in.ExternalOrderID = strings.TrimSpace(in.ExternalOrderID)
	if in.ExternalOrderID == "" || in.StoreID == "" {
		return nil, domain.Invalid("external_order_id and store_id are required")
	}

	status := domain.StatusScheduled
	if in.Status != "" {
		st, err := domain.ParseOperationalStatus(in.Status)
		if err != nil {
			return nil, err
		}
		status = st
	}
	if err := domain.ValidateSchedule(in.ScheduledStart, in.ScheduledEnd); err != nil {
		return nil, err
	}

	if _, err := s.stores.FindByID(ctx, in.StoreID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Invalid("store_id invalid")
		}
		return nil, fmt.Errorf("create installation: %w", err)
	}

	actor := optional(reqctx.ActorID(ctx))
	now := s.now().UTC()
	inst := &domain.Installation{
		ID:              ids.New(),
		ExternalOrderID: in.ExternalOrderID,
		StoreID:         in.StoreID,
		ScheduledStart:  utcPtr(in.ScheduledStart),
		ScheduledEnd:    utcPtr(in.ScheduledEnd),
		Status:          status,
		Notes:           in.Notes,
		CreatedBy:       actor,
		UpdatedBy:       actor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, inst); err != nil {
		return nil, fmt.Errorf("create installation: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "installation.create",
		Entity:   "installation",
		EntityID: inst.ID,
		Data:     inst,
	})
	return inst, nil
}

// UpdateSchedule applies a partial update of the schedule window and notes.
// The window is validated against the merged result before anything is written.
func (s *InstallationService) UpdateSchedule(ctx context.Context, id string, in ports.SchedulePatch) (*domain.Installation, error) {
	inst, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *inst

	start, end := inst.ScheduledStart, inst.ScheduledEnd
	if in.ScheduledStart.Set {
		start = utcPtr(in.ScheduledStart.Ptr())
	}
	if in.ScheduledEnd.Set {
		end = utcPtr(in.ScheduledEnd.Ptr())
	}
	if err := domain.ValidateSchedule(start, end); err != nil {
		return nil, err
	}

	inst.ScheduledStart, inst.ScheduledEnd = start, end
	if in.Notes.Set {
		inst.Notes = in.Notes.Ptr()
	}
	inst.UpdatedBy = optional(reqctx.ActorID(ctx))
	inst.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateSchedule(ctx, inst); err != nil {
		return nil, fmt.Errorf("update installation: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "installation.update",
		Entity:   "installation",
		EntityID: inst.ID,
		Data:     domain.Change{Before: before, After: *inst},
	})
	return inst, nil
}

// UpdateStatus moves the installation to one of the operational statuses.
// Any operational status may follow any other.
func (s *InstallationService) UpdateStatus(ctx context.Context, id, status string) (*domain.Installation, error) {
	next, err := domain.ParseOperationalStatus(status)
	if err != nil {
		return nil, err
	}

	before, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updatedBy := before.UpdatedBy
	if actor := reqctx.ActorID(ctx); actor != "" {
		updatedBy = &actor
	}
	inst, err := s.repo.UpdateStatus(ctx, id, next, updatedBy, s.now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.InstallationStatusChangesTotal.WithLabelValues(string(next)).Inc()

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "installation.update_status",
		Entity:   "installation",
		EntityID: inst.ID,
		Data:     map[string]any{"from": before.Status, "to": inst.Status},
	})
	return inst, nil
}

// ── Items ─────────────────────────────────────────────────────────────────────

func (s *InstallationService) AddItem(ctx context.Context, installationID string, in ports.AddItemInput) (*domain.InstallationItem, error) {
	if _, err := s.repo.FindByID(ctx, installationID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ExternalProductID) == "" {
		return nil, domain.Invalid("external_product_id is required")
	}

	qty := domain.DefaultItemQuantity
	if in.Quantity != nil {
		if err := domain.ValidateQuantity(*in.Quantity); err != nil {
			return nil, err
		}
		qty = *in.Quantity
	}

	now := s.now().UTC()
	item := &domain.InstallationItem{
		ID:                  ids.New(),
		InstallationID:      installationID,
		ExternalProductID:   strings.TrimSpace(in.ExternalProductID),
		Quantity:            qty,
		RoomTag:             nonEmpty(in.RoomTag),
		SpecialInstructions: nonEmpty(in.SpecialInstructions),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "installation_item.create",
		Entity:   "installation_item",
		EntityID: item.ID,
		Data:     item,
	})
	return item, nil
}

func (s *InstallationService) ListItems(ctx context.Context, installationID string, p domain.Page) (domain.List[domain.InstallationItem], error) {
	if _, err := s.repo.FindByID(ctx, installationID); err != nil {
		return domain.List[domain.InstallationItem]{}, err
	}
	rows, total, err := s.repo.ListItems(ctx, installationID, p)
	if err != nil {
		return domain.List[domain.InstallationItem]{}, fmt.Errorf("list items: %w", err)
	}
	return domain.NewList(rows, total, p), nil
}

func (s *InstallationService) UpdateItem(ctx context.Context, installationID, itemID string, in ports.ItemPatch) (*domain.InstallationItem, error) {
	if _, err := s.repo.FindByID(ctx, installationID); err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, installationID, itemID)
	if err != nil {
		return nil, err
	}
	before := *item

	if in.Quantity.Set {
		if in.Quantity.Null {
			return nil, domain.Invalid("quantity must be >= 1")
		}
		if err := domain.ValidateQuantity(in.Quantity.Value); err != nil {
			return nil, err
		}
		item.Quantity = in.Quantity.Value
	}
	if in.RoomTag.Set {
		item.RoomTag = nonEmpty(in.RoomTag.Ptr())
	}
	if in.SpecialInstructions.Set {
		item.SpecialInstructions = nonEmpty(in.SpecialInstructions.Ptr())
	}
	item.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "installation_item.update",
		Entity:   "installation_item",
		EntityID: item.ID,
		Data:     domain.Change{Before: before, After: *item},
	})
	return item, nil
}

// RemoveItem records the audit entry before the delete.
func (s *InstallationService) RemoveItem(ctx context.Context, installationID, itemID string) error {
	if _, err := s.repo.FindByID(ctx, installationID); err != nil {
		return err
	}
	item, err := s.repo.FindItem(ctx, installationID, itemID)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "installation_item.delete",
		Entity:   "installation_item",
		EntityID: item.ID,
		Data:     item,
	})
	return s.repo.DeleteItem(ctx, installationID, itemID)
}

// ── Crew ──────────────────────────────────────────────────────────────────────

// AssignCrew adds a crew member to an installation. New assignments start out accepted.
func (s *InstallationService) AssignCrew(ctx context.Context, installationID string, in ports.AssignCrewInput) (*domain.CrewAssignment, error) {
	if _, err := s.repo.FindByID(ctx, installationID); err != nil {
		return nil, err
	}
	if in.CrewUserID == "" {
		return nil, domain.Invalid("crew_user_id is required")
	}
	crew, err := s.users.FindByID(ctx, in.CrewUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCrewUserNotFound
		}
		return nil, fmt.Errorf("assign crew: %w", err)
	}

	now := s.now().UTC()
	a := &domain.CrewAssignment{
		ID:             ids.New(),
		InstallationID: installationID,
		CrewUserID:     crew.ID,
		Role:           nonEmpty(in.Role),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	a.ApplyDecision(true, false, now)

	if err := s.repo.CreateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("assign crew: %w", err)
	}
	a.Crew = &domain.CrewMember{ID: crew.ID, Name: crew.Name, Email: crew.Email}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "crew_assignment.create",
		Entity:   "crew_assignment",
		EntityID: a.ID,
		Data:     map[string]any{"installation_id": installationID, "crew_user_id": crew.ID, "role": a.Role},
	})
	return a, nil
}

func (s *InstallationService) ListCrew(ctx context.Context, installationID string, p domain.Page) (domain.List[domain.CrewAssignment], error) {
	if _, err := s.repo.FindByID(ctx, installationID); err != nil {
		return domain.List[domain.CrewAssignment]{}, err
	}
	rows, total, err := s.repo.ListAssignments(ctx, installationID, p)
	if err != nil {
		return domain.List[domain.CrewAssignment]{}, fmt.Errorf("list crew: %w", err)
	}
	return domain.NewList(rows, total, p), nil
}

// UpdateAssignment changes the role label and records an accept or decline.
func (s *InstallationService) UpdateAssignment(ctx context.Context, installationID, assignmentID string, in ports.AssignmentPatch) (*domain.CrewAssignment, error) {
	if _, err := s.repo.FindByID(ctx, installationID); err != nil {
		return nil, err
	}
	a, err := s.repo.FindAssignment(ctx, installationID, assignmentID)
	if err != nil {
		return nil, err
	}
	before := *a

	if in.Role.Set {
		a.Role = nonEmpty(in.Role.Ptr())
	}
	now := s.now().UTC()
	a.ApplyDecision(in.Accepted != nil && *in.Accepted, in.Declined != nil && *in.Declined, now)
	a.UpdatedAt = now

	if err := s.repo.UpdateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("update assignment: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "crew_assignment.update",
		Entity:   "crew_assignment",
		EntityID: a.ID,
		Data:     domain.Change{Before: before, After: *a},
	})
	return a, nil
}

func (s *InstallationService) RemoveAssignment(ctx context.Context, installationID, assignmentID string) error {
	if _, err := s.repo.FindByID(ctx, installationID); err != nil {
		return err
	}
	a, err := s.repo.FindAssignment(ctx, installationID, assignmentID)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "crew_assignment.delete",
		Entity:   "crew_assignment",
		EntityID: a.ID,
		Data:     a,
	})
	return s.repo.DeleteAssignment(ctx, installationID, assignmentID)
}

// nonEmpty maps "" to nil so clearing with an empty string and with null agree.
func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
