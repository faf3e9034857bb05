package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fieldops/installation-api/internal/core/domain"
)

type mediaDoc struct {
	ID             string    `bson:"_id"`
	InstallationID string    `bson:"installation_id"`
	URL            string    `bson:"url"`
	Type           string    `bson:"type"`
	Tags           any       `bson:"tags"`
	SHA256         *string   `bson:"sha256"`
	CreatedBy      *string   `bson:"created_by"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func (d mediaDoc) toDomain() domain.MediaAsset {
	m := domain.MediaAsset{
		ID:             d.ID,
		InstallationID: d.InstallationID,
		URL:            d.URL,
		Type:           domain.MediaType(d.Type),
		SHA256:         d.SHA256,
		CreatedBy:      d.CreatedBy,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	if tags, ok := d.Tags.(bson.M); ok {
		m.Tags = tags
	}
	return m
}

// MediaRepository implements ports.MediaRepository.
type MediaRepository struct {
	col *mongo.Collection
}

func NewMediaRepository(db *mongo.Database) *MediaRepository {
	return &MediaRepository{col: db.Collection(colMedia)}
}

func (r *MediaRepository) Create(ctx context.Context, m *domain.MediaAsset) error {
	tags, err := jsonShape(m.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	doc := mediaDoc{
		ID:             m.ID,
		InstallationID: m.InstallationID,
		URL:            m.URL,
		Type:           string(m.Type),
		Tags:           tags,
		SHA256:         m.SHA256,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if err := insert(ctx, r.col, doc); err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (r *MediaRepository) FindByID(ctx context.Context, id string) (*domain.MediaAsset, error) {
	doc, err := findOne[mediaDoc](ctx, r.col, bson.M{"_id": id}, domain.ErrMediaNotFound)
	if err != nil {
		return nil, err
	}
	m := doc.toDomain()
	return &m, nil
}

func (r *MediaRepository) ListByInstallation(ctx context.Context, installationID, mediaType string, p domain.Page) ([]domain.MediaAsset, int64, error) {
	filter := bson.M{"installation_id": installationID}
	if mediaType != "" {
		filter["type"] = mediaType
	}
	docs, total, err := findPage[mediaDoc](ctx, r.col, filter, sortNewestFirst, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list media: %w", err)
	}
	out := make([]domain.MediaAsset, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

func (r *MediaRepository) Delete(ctx context.Context, id string) error {
	return deleteOne(ctx, r.col, bson.M{"_id": id}, domain.ErrMediaNotFound)
}
