package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
	"github.com/fieldops/installation-api/internal/core/reqctx"
	"github.com/fieldops/installation-api/internal/pkg/ids"
)

type MediaService struct {
	media         ports.MediaRepository
	installations ports.InstallationRepository
	audit         ports.AuditRecorder
	now           func() time.Time
}

func NewMediaService(media ports.MediaRepository, installations ports.InstallationRepository, audit ports.AuditRecorder) *MediaService {
	return &MediaService{media: media, installations: installations, audit: audit, now: time.Now}
}

func (s *MediaService) List(ctx context.Context, installationID, mediaType string, p domain.Page) (domain.List[domain.MediaAsset], error) {
	if _, err := s.installations.FindByID(ctx, installationID); err != nil {
		return domain.List[domain.MediaAsset]{}, err
	}
	rows, total, err := s.media.ListByInstallation(ctx, installationID, mediaType, p)
	if err != nil {
		return domain.List[domain.MediaAsset]{}, fmt.Errorf("list media: %w", err)
	}
	return domain.NewList(rows, total, p), nil
}

func (s *MediaService) Create(ctx context.Context, installationID string, in ports.CreateMediaInput) (*domain.MediaAsset, error) {
	if _, err := s.installations.FindByID(ctx, installationID); err != nil {
		return nil, err
	}
	url := strings.TrimSpace(in.URL)
	if url == "" || in.Type == "" {
		return nil, domain.Invalid("url and type are required")
	}
	mt := domain.MediaType(in.Type)
	if !mt.Valid() {
		return nil, domain.Invalid("type must be one of: photo, signature")
	}

	now := s.now().UTC()
	m := &domain.MediaAsset{
		ID:             ids.New(),
		InstallationID: installationID,
		URL:            url,
		Type:           mt,
		Tags:           in.Tags,
		SHA256:         nonEmpty(in.SHA256),
		CreatedBy:      optional(reqctx.ActorID(ctx)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.media.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create media: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "media.create",
		Entity:   "media",
		EntityID: m.ID,
		Data:     map[string]any{"installation_id": installationID, "url": m.URL, "type": m.Type},
	})
	return m, nil
}

func (s *MediaService) Get(ctx context.Context, id string) (*domain.MediaAsset, error) {
	return s.media.FindByID(ctx, id)
}

// Delete records the audit entry before removing the asset.
func (s *MediaService) Delete(ctx context.Context, id string) error {
	m, err := s.media.FindByID(ctx, id)
	if err != nil {
		return err
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "media.delete",
		Entity:   "media",
		EntityID: m.ID,
		Data:     m,
	})
	return s.media.Delete(ctx, id)
}
