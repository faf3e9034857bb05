package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
)

type memAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
	fail    bool
}

func (r *memAuditRepo) Insert(_ context.Context, e *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("insert failed")
	}
	r.entries = append(r.entries, *e)
	return nil
}

func (r *memAuditRepo) FindByID(context.Context, string) (*domain.AuditLog, error) {
	return nil, domain.ErrAuditLogNotFound
}

func (r *memAuditRepo) List(context.Context, ports.AuditFilter, domain.Page) ([]domain.AuditLog, int64, error) {
	return nil, 0, nil
}

func (r *memAuditRepo) snapshot() []domain.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuditLog(nil), r.entries...)
}

func entity(id string) *string { return &id }

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	repo := &memAuditRepo{}
	d := NewDispatcher(3, 64, repo, zerolog.Nop())
	d.Start(context.Background())

	for i := 0; i < 50; i++ {
		if !d.Enqueue(domain.AuditLog{ID: string(rune('a' + i%26)), Action: "x", Entity: "installation", EntityID: entity("inst-1")}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if got := len(repo.snapshot()); got != 50 {
		t.Fatalf("expected 50 persisted entries, got %d", got)
	}

	if d.Enqueue(domain.AuditLog{Action: "late"}) {
		t.Fatalf("enqueue after shutdown must be rejected")
	}
}

func TestDispatcher_PreservesPerEntityOrder(t *testing.T) {
	repo := &memAuditRepo{}
	d := NewDispatcher(4, 64, repo, zerolog.Nop())
	d.Start(context.Background())

	actions := []string{"installation.create", "installation.update", "installation.update_status"}
	for _, a := range actions {
		d.Enqueue(domain.AuditLog{Action: a, Entity: "installation", EntityID: entity("inst-9")})
	}
	_ = d.Shutdown(context.Background())

	var got []string
	for _, e := range repo.snapshot() {
		got = append(got, e.Action)
	}
	if len(got) != len(actions) {
		t.Fatalf("unexpected entries: %v", got)
	}
	for i := range actions {
		if got[i] != actions[i] {
			t.Fatalf("order not preserved: %v", got)
		}
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(1, 1, &memAuditRepo{}, zerolog.Nop())

	if !d.Enqueue(domain.AuditLog{Action: "a"}) {
		t.Fatalf("first entry should fit")
	}
	if d.Enqueue(domain.AuditLog{Action: "b"}) {
		t.Fatalf("second entry should be dropped")
	}
}

func TestDispatcher_WriteErrorsDoNotStopWorker(t *testing.T) {
	repo := &memAuditRepo{fail: true}
	d := NewDispatcher(1, 8, repo, zerolog.Nop())
	d.Start(context.Background())

	d.Enqueue(domain.AuditLog{Action: "a"})
	d.Enqueue(domain.AuditLog{Action: "b"})

	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if len(repo.snapshot()) != 0 {
		t.Fatalf("nothing should be persisted")
	}
}
