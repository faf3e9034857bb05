package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
	"github.com/fieldops/installation-api/internal/core/reqctx"
	"github.com/fieldops/installation-api/internal/pkg/ids"
)

// AuditService resolves audit events against the request context and hands
// them to an asynchronous sink. It also serves the audit log read API.
type AuditService struct {
	sink ports.AuditSink
	repo ports.AuditRepository
	log  zerolog.Logger
	now  func() time.Time
}

func NewAuditService(sink ports.AuditSink, repo ports.AuditRepository, log zerolog.Logger) *AuditService {
	return &AuditService{sink: sink, repo: repo, log: log, now: time.Now}
}

// Record captures actor and source IP synchronously, then enqueues the entry.
// It returns immediately; a full queue drops the entry with a warning.
func (s *AuditService) Record(ctx context.Context, ev domain.AuditEvent) {
	entry := domain.AuditLog{
		ID:        ids.New(),
		Action:    ev.Action,
		Entity:    ev.Entity,
		EntityID:  optional(ev.EntityID),
		Data:      ev.Data,
		CreatedAt: s.now().UTC(),
	}

	actor := ev.ActorID
	if actor == "" {
		actor = reqctx.ActorID(ctx)
	}
	entry.ActorID = optional(actor)
	entry.IP = optional(reqctx.ClientIP(ctx))

	if !s.sink.Enqueue(entry) {
		s.log.Warn().
			Str("action", entry.Action).
			Str("entity", entry.Entity).
			Str("request_id", reqctx.RequestID(ctx)).
			Msg("audit queue full, entry dropped")
	}
}

func (s *AuditService) List(ctx context.Context, f ports.AuditFilter, p domain.Page) (domain.List[domain.AuditLog], error) {
	f.Q = strings.TrimSpace(f.Q)
	rows, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return domain.List[domain.AuditLog]{}, err
	}
	return domain.NewList(rows, total, p), nil
}

func (s *AuditService) Get(ctx context.Context, id string) (*domain.AuditLog, error) {
	return s.repo.FindByID(ctx, id)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
