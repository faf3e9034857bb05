package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
)

type checklistFixture struct {
	svc       *ChecklistService
	templates *stubTemplateRepo
	responses *stubResponseRepo
	audit     *recordingAudit
}

func newChecklistFixture() checklistFixture {
	templates := newStubTemplateRepo(&domain.ChecklistItem{ID: "item-1", TemplateID: "tpl-1", Key: "photo_front", Label: "Front photo"})
	responses := newStubResponseRepo()
	installations := newStubInstallationRepo(&domain.Installation{ID: "inst-1", StoreID: "store-1", Status: domain.StatusScheduled})
	audit := &recordingAudit{}
	svc := NewChecklistService(templates, responses, installations, audit, zerolog.Nop())
	svc.now = func() time.Time { return t0 }
	return checklistFixture{svc: svc, templates: templates, responses: responses, audit: audit}
}

func TestChecklistService_UpsertResponse_CreateThenUpdate(t *testing.T) {
	f := newChecklistFixture()
	ctx := actorCtx("crew-1")

	first, created, err := f.svc.UpsertResponse(ctx, "inst-1", "item-1", ports.ResponsePatch{Value: ports.Of[any]("ok")})
	if err != nil {
		t.Fatalf("first upsert returned error: %v", err)
	}
	if !created {
		t.Fatalf("first upsert should create")
	}
	if first.CreatedBy == nil || *first.CreatedBy != "crew-1" {
		t.Fatalf("created_by not set")
	}

	done := t0.Add(time.Hour)
	second, created, err := f.svc.UpsertResponse(ctx, "inst-1", "item-1", ports.ResponsePatch{CompletedAt: ports.Of(done)})
	if err != nil {
		t.Fatalf("second upsert returned error: %v", err)
	}
	if created {
		t.Fatalf("second upsert should update")
	}
	if second.ID != first.ID {
		t.Fatalf("upsert must keep the same row")
	}
	if second.Value != "ok" {
		t.Fatalf("unset value must be preserved, got %v", second.Value)
	}
	if second.CompletedAt == nil || !second.CompletedAt.Equal(done) {
		t.Fatalf("completed_at not applied")
	}
	if len(f.responses.rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(f.responses.rows))
	}
	if f.audit.count("checklist_response.create") != 1 || f.audit.count("checklist_response.update") != 1 {
		t.Fatalf("unexpected audits: %v", f.audit.actions())
	}
}

func TestChecklistService_UpsertResponse_ClearsValueWithNull(t *testing.T) {
	f := newChecklistFixture()
	ctx := actorCtx("crew-1")

	if _, _, err := f.svc.UpsertResponse(ctx, "inst-1", "item-1", ports.ResponsePatch{Value: ports.Of[any]("x")}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	r, _, err := f.svc.UpsertResponse(ctx, "inst-1", "item-1", ports.ResponsePatch{Value: ports.Null[any]()})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if r.Value != nil {
		t.Fatalf("explicit null should clear value, got %v", r.Value)
	}
}

func TestChecklistService_UpsertResponse_LostInsertRace(t *testing.T) {
	f := newChecklistFixture()
	f.responses.raceOnInsert = &domain.ChecklistResponse{
		ID:             "winner",
		InstallationID: "inst-1",
		ItemID:         "item-1",
		Value:          "first",
	}

	r, created, err := f.svc.UpsertResponse(actorCtx("crew-2"), "inst-1", "item-1", ports.ResponsePatch{Value: ports.Of[any]("second")})
	if err != nil {
		t.Fatalf("upsert returned error: %v", err)
	}
	if created {
		t.Fatalf("losing writer must report an update")
	}
	if r.ID != "winner" || r.Value != "second" {
		t.Fatalf("loser should update the winning row: %+v", r)
	}
	if len(f.responses.rows) != 1 || f.responses.inserts != 0 {
		t.Fatalf("expected one row and no successful insert")
	}
}

func TestChecklistService_UpdateResponse_KeepsConcurrentFieldChanges(t *testing.T) {
	f := newChecklistFixture()
	ctx := actorCtx("crew-1")

	created, _, err := f.svc.UpsertResponse(ctx, "inst-1", "item-1", ports.ResponsePatch{Value: ports.Of[any]("draft")})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Another writer sets value after this update has read the row.
	f.responses.concurrentWrite = func(row *domain.ChecklistResponse) { row.Value = "final" }

	done := t0.Add(2 * time.Hour)
	r, err := f.svc.UpdateResponse(ctx, created.ID, ports.ResponsePatch{CompletedAt: ports.Of(done)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if r.Value != "final" {
		t.Fatalf("concurrent value change was overwritten: %v", r.Value)
	}
	if r.CompletedAt == nil || !r.CompletedAt.Equal(done) {
		t.Fatalf("completed_at not applied: %v", r.CompletedAt)
	}

	stored, _ := f.responses.FindByID(context.Background(), created.ID)
	if stored.Value != "final" || stored.CompletedAt == nil {
		t.Fatalf("stored row lost a field: %+v", stored)
	}
}

func TestChecklistService_UpdateResponse_NotFound(t *testing.T) {
	f := newChecklistFixture()
	if _, err := f.svc.UpdateResponse(actorCtx("crew-1"), "missing", ports.ResponsePatch{}); !errors.Is(err, domain.ErrResponseNotFound) {
		t.Fatalf("expected response not found, got %v", err)
	}
}

func TestChecklistService_UpsertResponse_Errors(t *testing.T) {
	f := newChecklistFixture()
	ctx := actorCtx("crew-1")

	if _, _, err := f.svc.UpsertResponse(ctx, "missing", "item-1", ports.ResponsePatch{}); !errors.Is(err, domain.ErrInstallationNotFound) {
		t.Fatalf("expected installation not found, got %v", err)
	}
	if _, _, err := f.svc.UpsertResponse(ctx, "inst-1", " ", ports.ResponsePatch{}); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if _, _, err := f.svc.UpsertResponse(ctx, "inst-1", "nope", ports.ResponsePatch{}); !errors.Is(err, domain.ErrChecklistItemNotFound) {
		t.Fatalf("expected checklist item not found, got %v", err)
	}
	if len(f.responses.rows) != 0 {
		t.Fatalf("no row should be written")
	}
}

func TestChecklistService_Templates(t *testing.T) {
	f := newChecklistFixture()
	ctx := actorCtx("u-admin")

	tpl, err := f.svc.CreateTemplate(ctx, ports.CreateTemplateInput{Name: "Standard"})
	if err != nil {
		t.Fatalf("CreateTemplate returned error: %v", err)
	}
	if tpl.Version != 1 {
		t.Fatalf("expected default version 1, got %d", tpl.Version)
	}

	item, err := f.svc.CreateItem(ctx, tpl.ID, ports.CreateChecklistItemInput{Key: "serial", Label: "Serial number"})
	if err != nil {
		t.Fatalf("CreateItem returned error: %v", err)
	}
	if item.Type != domain.DefaultChecklistItemType {
		t.Fatalf("expected default type, got %q", item.Type)
	}

	if _, err := f.svc.CreateItem(ctx, "missing", ports.CreateChecklistItemInput{Key: "k", Label: "l"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.CreateTemplate(ctx, ports.CreateTemplateInput{}); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestChecklistService_UpdateResponse(t *testing.T) {
	f := newChecklistFixture()
	ctx := actorCtx("crew-1")

	r, _, err := f.svc.UpsertResponse(ctx, "inst-1", "item-1", ports.ResponsePatch{Value: ports.Of[any](true)})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	updated, err := f.svc.UpdateResponse(context.Background(), r.ID, ports.ResponsePatch{Value: ports.Of[any](false)})
	if err != nil {
		t.Fatalf("UpdateResponse returned error: %v", err)
	}
	if updated.Value != false {
		t.Fatalf("value not updated")
	}
	if _, err := f.svc.UpdateResponse(context.Background(), "nope", ports.ResponsePatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
