package ports

import (
	"context"
	"time"

	"github.com/fieldops/installation-api/internal/core/domain"
)

// AuditRecorder is the write side of the audit trail. Record never fails and
// never waits for persistence.
type AuditRecorder interface {
	Record(ctx context.Context, ev domain.AuditEvent)
}

// AuditSink accepts resolved entries for asynchronous persistence. Enqueue
// reports false when the entry was dropped.
type AuditSink interface {
	Enqueue(entry domain.AuditLog) bool
}

// AuditFilter narrows audit log queries. Q matches action, entity or ip.
type AuditFilter struct {
	ActorID  string
	Entity   string
	EntityID string
	Action   string
	From     *time.Time
	To       *time.Time
	Q        string
}

type AuditRepository interface {
	Insert(ctx context.Context, entry *domain.AuditLog) error
	FindByID(ctx context.Context, id string) (*domain.AuditLog, error)
	List(ctx context.Context, f AuditFilter, p domain.Page) ([]domain.AuditLog, int64, error)
}

type AuditQueryService interface {
	List(ctx context.Context, f AuditFilter, p domain.Page) (domain.List[domain.AuditLog], error)
	Get(ctx context.Context, id string) (*domain.AuditLog, error)
}
