package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
)

type auditDoc struct {
	ID        string    `bson:"_id"`
	ActorID   *string   `bson:"actor_id"`
	Action    string    `bson:"action"`
	Entity    string    `bson:"entity"`
	EntityID  *string   `bson:"entity_id"`
	Data      any       `bson:"data"`
	IP        *string   `bson:"ip"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d auditDoc) toDomain() domain.AuditLog {
	return domain.AuditLog{
		ID:        d.ID,
		ActorID:   d.ActorID,
		Action:    d.Action,
		Entity:    d.Entity,
		EntityID:  d.EntityID,
		Data:      d.Data,
		IP:        d.IP,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// AuditRepository implements ports.AuditRepository. Entries are append-only.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(colAuditLogs)}
}

func (r *AuditRepository) Insert(ctx context.Context, e *domain.AuditLog) error {
	data, err := jsonShape(e.Data)
	if err != nil {
		return fmt.Errorf("encode audit data: %w", err)
	}
	doc := auditDoc{
		ID:        e.ID,
		ActorID:   e.ActorID,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Data:      data,
		IP:        e.IP,
		CreatedAt: e.CreatedAt,
	}
	if err := insert(ctx, r.col, doc); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *AuditRepository) FindByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	doc, err := findOne[auditDoc](ctx, r.col, bson.M{"_id": id}, domain.ErrAuditLogNotFound)
	if err != nil {
		return nil, err
	}
	e := doc.toDomain()
	return &e, nil
}

func (r *AuditRepository) List(ctx context.Context, f ports.AuditFilter, p domain.Page) ([]domain.AuditLog, int64, error) {
	filter := bson.M{}
	if f.ActorID != "" {
		filter["actor_id"] = f.ActorID
	}
	if f.Entity != "" {
		filter["entity"] = f.Entity
	}
	if f.EntityID != "" {
		filter["entity_id"] = f.EntityID
	}
	if f.Action != "" {
		filter["action"] = f.Action
	}
	if f.From != nil || f.To != nil {
		window := bson.M{}
		if f.From != nil {
			window["$gte"] = f.From.UTC()
		}
		if f.To != nil {
			window["$lte"] = f.To.UTC()
		}
		filter["created_at"] = window
	}
	if f.Q != "" {
		filter["$or"] = bson.A{
			bson.M{"action": contains(f.Q)},
			bson.M{"entity": contains(f.Q)},
			bson.M{"ip": contains(f.Q)},
		}
	}

	docs, total, err := findPage[auditDoc](ctx, r.col, filter, sortNewestFirst, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	out := make([]domain.AuditLog, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}
