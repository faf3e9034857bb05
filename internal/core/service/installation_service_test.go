package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
	"github.com/fieldops/installation-api/internal/core/reqctx"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type installationFixture struct {
	svc   *InstallationService
	repo  *stubInstallationRepo
	audit *recordingAudit
}

func newInstallationFixture() installationFixture {
	start, end := t0, t0.Add(2*time.Hour)
	repo := newStubInstallationRepo(&domain.Installation{
		ID:              "inst-1",
		ExternalOrderID: "ORD-1",
		StoreID:         "store-1",
		Status:          domain.StatusScheduled,
		ScheduledStart:  &start,
		ScheduledEnd:    &end,
	})
	stores := newStubStoreRepo(&domain.Store{ID: "store-1", Name: "Downtown"})
	users := newStubUserRepo(&domain.User{ID: "crew-1", Name: "Cris", Email: "cris@example.com"})
	audit := &recordingAudit{}
	svc := NewInstallationService(repo, stores, users, audit, zerolog.Nop())
	svc.now = func() time.Time { return t0 }
	return installationFixture{svc: svc, repo: repo, audit: audit}
}

func actorCtx(id string) context.Context {
	return reqctx.WithIdentity(context.Background(), domain.Identity{UserID: id})
}

func TestInstallationService_Create(t *testing.T) {
	f := newInstallationFixture()
	ctx := actorCtx("u-admin")

	inst, err := f.svc.Create(ctx, ports.CreateInstallationInput{ExternalOrderID: " ORD-2 ", StoreID: "store-1"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if inst.Status != domain.StatusScheduled || inst.ExternalOrderID != "ORD-2" {
		t.Fatalf("unexpected installation: %+v", inst)
	}
	if inst.CreatedBy == nil || *inst.CreatedBy != "u-admin" {
		t.Fatalf("created_by not set from session")
	}
	if f.audit.count("installation.create") != 1 {
		t.Fatalf("expected installation.create audit")
	}

	cases := []struct {
		name string
		in   ports.CreateInstallationInput
	}{
		{"missing store", ports.CreateInstallationInput{ExternalOrderID: "X"}},
		{"unknown store", ports.CreateInstallationInput{ExternalOrderID: "X", StoreID: "nope"}},
		{"staged status", ports.CreateInstallationInput{ExternalOrderID: "X", StoreID: "store-1", Status: "staged"}},
		{"inverted window", ports.CreateInstallationInput{ExternalOrderID: "X", StoreID: "store-1", ScheduledStart: ptrTime(t0.Add(time.Hour)), ScheduledEnd: ptrTime(t0)}},
	}
	for _, tc := range cases {
		if _, err := f.svc.Create(ctx, tc.in); !errors.Is(err, domain.ErrBadRequest) {
			t.Fatalf("%s: expected bad request, got %v", tc.name, err)
		}
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestInstallationService_UpdateSchedule_RejectsInvertedWindow(t *testing.T) {
	f := newInstallationFixture()

	// Only the end moves; the stored start is later than the new end.
	_, err := f.svc.UpdateSchedule(actorCtx("u-1"), "inst-1", ports.SchedulePatch{
		ScheduledEnd: ports.Of(t0.Add(-time.Hour)),
	})
	if !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if f.repo.scheduleWrites != 0 {
		t.Fatalf("no write should happen on a rejected schedule")
	}
	if len(f.audit.events) != 0 {
		t.Fatalf("no audit on a rejected schedule")
	}
}

func TestInstallationService_UpdateSchedule_ClearAndSet(t *testing.T) {
	f := newInstallationFixture()

	inst, err := f.svc.UpdateSchedule(actorCtx("u-1"), "inst-1", ports.SchedulePatch{
		ScheduledStart: ports.Null[time.Time](),
		ScheduledEnd:   ports.Of(t0.Add(-time.Hour)),
		Notes:          ports.Of("side door"),
	})
	if err != nil {
		t.Fatalf("UpdateSchedule returned error: %v", err)
	}
	if inst.ScheduledStart != nil || !inst.ScheduledEnd.Equal(t0.Add(-time.Hour)) {
		t.Fatalf("unexpected window: %v - %v", inst.ScheduledStart, inst.ScheduledEnd)
	}
	if inst.UpdatedBy == nil || *inst.UpdatedBy != "u-1" {
		t.Fatalf("updated_by not set")
	}
	if f.repo.scheduleWrites != 1 || f.audit.count("installation.update") != 1 {
		t.Fatalf("expected one write and one audit")
	}
}

func TestInstallationService_UpdateStatus(t *testing.T) {
	f := newInstallationFixture()

	inst, err := f.svc.UpdateStatus(actorCtx("u-9"), "inst-1", "in_progress")
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if inst.Status != domain.StatusInProgress || inst.UpdatedBy == nil || *inst.UpdatedBy != "u-9" {
		t.Fatalf("unexpected installation: %+v", inst)
	}
	data := f.audit.events[0].Data.(map[string]any)
	if data["from"] != domain.StatusScheduled || data["to"] != domain.StatusInProgress {
		t.Fatalf("unexpected audit data: %v", data)
	}

	// Any operational status may follow any other.
	if _, err := f.svc.UpdateStatus(actorCtx("u-9"), "inst-1", "scheduled"); err != nil {
		t.Fatalf("backwards transition rejected: %v", err)
	}

	if _, err := f.svc.UpdateStatus(actorCtx("u-9"), "inst-1", "staged"); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected bad request for staged, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(actorCtx("u-9"), "missing", "completed"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInstallationService_Items(t *testing.T) {
	f := newInstallationFixture()
	ctx := actorCtx("u-1")

	item, err := f.svc.AddItem(ctx, "inst-1", ports.AddItemInput{ExternalProductID: "SKU-1"})
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if item.Quantity != domain.DefaultItemQuantity {
		t.Fatalf("expected default quantity, got %d", item.Quantity)
	}

	zero := 0
	if _, err := f.svc.AddItem(ctx, "inst-1", ports.AddItemInput{ExternalProductID: "SKU-2", Quantity: &zero}); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected bad request for quantity 0, got %v", err)
	}
	if _, err := f.svc.UpdateItem(ctx, "inst-1", item.ID, ports.ItemPatch{Quantity: ports.Null[int]()}); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected bad request for null quantity, got %v", err)
	}
	if _, err := f.svc.UpdateItem(ctx, "inst-2", item.ID, ports.ItemPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for foreign installation, got %v", err)
	}

	if err := f.svc.RemoveItem(ctx, "inst-1", item.ID); err != nil {
		t.Fatalf("RemoveItem returned error: %v", err)
	}
	if _, ok := f.repo.items[item.ID]; ok {
		t.Fatalf("item not deleted")
	}
}

func TestInstallationService_Crew(t *testing.T) {
	f := newInstallationFixture()
	ctx := actorCtx("u-1")

	if _, err := f.svc.AssignCrew(ctx, "inst-1", ports.AssignCrewInput{CrewUserID: "ghost"}); !errors.Is(err, domain.ErrCrewUserNotFound) {
		t.Fatalf("expected ErrCrewUserNotFound, got %v", err)
	}

	a, err := f.svc.AssignCrew(ctx, "inst-1", ports.AssignCrewInput{CrewUserID: "crew-1"})
	if err != nil {
		t.Fatalf("AssignCrew returned error: %v", err)
	}
	if a.AcceptedAt == nil || a.DeclinedAt != nil || a.Crew == nil {
		t.Fatalf("new assignment should start accepted: %+v", a)
	}

	yes := true
	a, err = f.svc.UpdateAssignment(ctx, "inst-1", a.ID, ports.AssignmentPatch{Declined: &yes})
	if err != nil {
		t.Fatalf("UpdateAssignment returned error: %v", err)
	}
	if a.AcceptedAt != nil || a.DeclinedAt == nil {
		t.Fatalf("decline should clear accept: %+v", a)
	}

	a, err = f.svc.UpdateAssignment(ctx, "inst-1", a.ID, ports.AssignmentPatch{Accepted: &yes, Declined: &yes})
	if err != nil {
		t.Fatalf("UpdateAssignment returned error: %v", err)
	}
	if a.AcceptedAt == nil || a.DeclinedAt != nil {
		t.Fatalf("accept should win: %+v", a)
	}
}

func TestInstallationService_Get(t *testing.T) {
	f := newInstallationFixture()

	d, err := f.svc.Get(context.Background(), "inst-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if d.Store == nil || d.Store.Name != "Downtown" {
		t.Fatalf("store summary missing: %+v", d.Store)
	}
	if d.Items == nil || d.Crew == nil {
		t.Fatalf("items and crew must be non-nil")
	}
}
