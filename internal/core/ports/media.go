package ports

import (
	"context"

	"github.com/fieldops/installation-api/internal/core/domain"
)

type MediaRepository interface {
	Create(ctx context.Context, m *domain.MediaAsset) error
	FindByID(ctx context.Context, id string) (*domain.MediaAsset, error)
	ListByInstallation(ctx context.Context, installationID, mediaType string, p domain.Page) ([]domain.MediaAsset, int64, error)
	Delete(ctx context.Context, id string) error
}

type CreateMediaInput struct {
	URL    string
	Type   string
	Tags   map[string]any
	SHA256 *string
}

type MediaService interface {
	List(ctx context.Context, installationID, mediaType string, p domain.Page) (domain.List[domain.MediaAsset], error)
	Create(ctx context.Context, installationID string, in CreateMediaInput) (*domain.MediaAsset, error)
	Get(ctx context.Context, id string) (*domain.MediaAsset, error)
	Delete(ctx context.Context, id string) error
}
