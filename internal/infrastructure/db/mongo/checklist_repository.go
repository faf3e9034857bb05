package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
)

type templateDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Version     int       `bson:"version"`
	Description *string   `bson:"description"`
	Rules       any       `bson:"rules"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toTemplateDoc(t *domain.ChecklistTemplate) (templateDoc, error) {
	rules, err := jsonShape(t.Rules)
	if err != nil {
		return templateDoc{}, fmt.Errorf("encode rules: %w", err)
	}
	return templateDoc{
		ID:          t.ID,
		Name:        t.Name,
		Version:     t.Version,
		Description: t.Description,
		Rules:       rules,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}, nil
}

func (d templateDoc) toDomain() domain.ChecklistTemplate {
	return domain.ChecklistTemplate{
		ID:          d.ID,
		Name:        d.Name,
		Version:     d.Version,
		Description: d.Description,
		Rules:       d.Rules,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type checklistItemDoc struct {
	ID         string    `bson:"_id"`
	TemplateID string    `bson:"template_id"`
	Key        string    `bson:"key"`
	Label      string    `bson:"label"`
	Type       string    `bson:"type"`
	Required   bool      `bson:"required"`
	OrderIndex int       `bson:"order_index"`
	Rules      any       `bson:"rules"`
	HelpText   *string   `bson:"help_text"`
	Options    any       `bson:"options"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func toChecklistItemDoc(it *domain.ChecklistItem) (checklistItemDoc, error) {
	rules, err := jsonShape(it.Rules)
	if err != nil {
		return checklistItemDoc{}, fmt.Errorf("encode rules: %w", err)
	}
	opts, err := jsonShape(it.Options)
	if err != nil {
		return checklistItemDoc{}, fmt.Errorf("encode options: %w", err)
	}
	return checklistItemDoc{
		ID:         it.ID,
		TemplateID: it.TemplateID,
		Key:        it.Key,
		Label:      it.Label,
		Type:       it.Type,
		Required:   it.Required,
		OrderIndex: it.OrderIndex,
		Rules:      rules,
		HelpText:   it.HelpText,
		Options:    opts,
		CreatedAt:  it.CreatedAt,
		UpdatedAt:  it.UpdatedAt,
	}, nil
}

func (d checklistItemDoc) toDomain() domain.ChecklistItem {
	return domain.ChecklistItem{
		ID:         d.ID,
		TemplateID: d.TemplateID,
		Key:        d.Key,
		Label:      d.Label,
		Type:       d.Type,
		Required:   d.Required,
		OrderIndex: d.OrderIndex,
		Rules:      d.Rules,
		HelpText:   d.HelpText,
		Options:    d.Options,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

// ChecklistTemplateRepository implements ports.ChecklistTemplateRepository.
type ChecklistTemplateRepository struct {
	templates *mongo.Collection
	items     *mongo.Collection
}

func NewChecklistTemplateRepository(db *mongo.Database) *ChecklistTemplateRepository {
	return &ChecklistTemplateRepository{
		templates: db.Collection(colTemplates),
		items:     db.Collection(colChecklistItems),
	}
}

func (r *ChecklistTemplateRepository) CreateTemplate(ctx context.Context, t *domain.ChecklistTemplate) error {
	doc, err := toTemplateDoc(t)
	if err != nil {
		return err
	}
	if err := insert(ctx, r.templates, doc); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (r *ChecklistTemplateRepository) FindTemplate(ctx context.Context, id string) (*domain.ChecklistTemplate, error) {
	doc, err := findOne[templateDoc](ctx, r.templates, bson.M{"_id": id}, domain.ErrTemplateNotFound)
	if err != nil {
		return nil, err
	}
	t := doc.toDomain()
	return &t, nil
}

func (r *ChecklistTemplateRepository) ListTemplates(ctx context.Context, q string, p domain.Page) ([]domain.ChecklistTemplate, int64, error) {
	filter := bson.M{}
	if q != "" {
		filter["name"] = contains(q)
	}
	docs, total, err := findPage[templateDoc](ctx, r.templates, filter, sortNewestFirst, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list templates: %w", err)
	}
	out := make([]domain.ChecklistTemplate, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

func (r *ChecklistTemplateRepository) UpdateTemplate(ctx context.Context, t *domain.ChecklistTemplate) error {
	doc, err := toTemplateDoc(t)
	if err != nil {
		return err
	}
	return replaceByID(ctx, r.templates, t.ID, doc, domain.ErrTemplateNotFound)
}

func (r *ChecklistTemplateRepository) CreateItem(ctx context.Context, item *domain.ChecklistItem) error {
	doc, err := toChecklistItemDoc(item)
	if err != nil {
		return err
	}
	if err := insert(ctx, r.items, doc); err != nil {
		return fmt.Errorf("insert checklist item: %w", err)
	}
	return nil
}

func (r *ChecklistTemplateRepository) FindItem(ctx context.Context, id string) (*domain.ChecklistItem, error) {
	doc, err := findOne[checklistItemDoc](ctx, r.items, bson.M{"_id": id}, domain.ErrChecklistItemNotFound)
	if err != nil {
		return nil, err
	}
	item := doc.toDomain()
	return &item, nil
}

func (r *ChecklistTemplateRepository) ListItems(ctx context.Context, templateID string, p domain.Page) ([]domain.ChecklistItem, int64, error) {
	docs, total, err := findPage[checklistItemDoc](ctx, r.items, bson.M{"template_id": templateID}, sortChecklistItems, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list checklist items: %w", err)
	}
	out := make([]domain.ChecklistItem, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

func (r *ChecklistTemplateRepository) UpdateItem(ctx context.Context, item *domain.ChecklistItem) error {
	doc, err := toChecklistItemDoc(item)
	if err != nil {
		return err
	}
	return replaceByID(ctx, r.items, item.ID, doc, domain.ErrChecklistItemNotFound)
}

type responseDoc struct {
	ID             string     `bson:"_id"`
	InstallationID string     `bson:"installation_id"`
	ItemID         string     `bson:"item_id"`
	Value          any        `bson:"value"`
	CompletedAt    *time.Time `bson:"completed_at"`
	CreatedBy      *string    `bson:"created_by"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`

	Item *checklistItemDoc `bson:"item,omitempty"`
}

func toResponseDoc(r *domain.ChecklistResponse) (responseDoc, error) {
	value, err := jsonShape(r.Value)
	if err != nil {
		return responseDoc{}, fmt.Errorf("encode value: %w", err)
	}
	return responseDoc{
		ID:             r.ID,
		InstallationID: r.InstallationID,
		ItemID:         r.ItemID,
		Value:          value,
		CompletedAt:    r.CompletedAt,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func (d responseDoc) toDomain() domain.ChecklistResponse {
	r := domain.ChecklistResponse{
		ID:             d.ID,
		InstallationID: d.InstallationID,
		ItemID:         d.ItemID,
		Value:          d.Value,
		CompletedAt:    utc(d.CompletedAt),
		CreatedBy:      d.CreatedBy,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	if d.Item != nil {
		item := d.Item.toDomain()
		r.Item = &item
	}
	return r
}

// ChecklistResponseRepository implements ports.ChecklistResponseRepository.
// The unique index on (installation_id, item_id) turns a concurrent second
// insert into domain.ErrDuplicateKey.
type ChecklistResponseRepository struct {
	col *mongo.Collection
}

func NewChecklistResponseRepository(db *mongo.Database) *ChecklistResponseRepository {
	return &ChecklistResponseRepository{col: db.Collection(colResponses)}
}

func (r *ChecklistResponseRepository) FindByKey(ctx context.Context, installationID, itemID string) (*domain.ChecklistResponse, error) {
	doc, err := findOne[responseDoc](ctx, r.col, bson.M{"installation_id": installationID, "item_id": itemID}, domain.ErrResponseNotFound)
	if err != nil {
		return nil, err
	}
	resp := doc.toDomain()
	return &resp, nil
}

func (r *ChecklistResponseRepository) FindByID(ctx context.Context, id string) (*domain.ChecklistResponse, error) {
	doc, err := findOne[responseDoc](ctx, r.col, bson.M{"_id": id}, domain.ErrResponseNotFound)
	if err != nil {
		return nil, err
	}
	resp := doc.toDomain()
	return &resp, nil
}

func (r *ChecklistResponseRepository) Insert(ctx context.Context, resp *domain.ChecklistResponse) error {
	doc, err := toResponseDoc(resp)
	if err != nil {
		return err
	}
	if err := insert(ctx, r.col, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (r *ChecklistResponseRepository) ApplyPatch(ctx context.Context, id string, in ports.ResponsePatch, at time.Time) (*domain.ChecklistResponse, error) {
	set, err := responseSet(in, at)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc responseDoc
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrResponseNotFound
		}
		return nil, fmt.Errorf("update response: %w", err)
	}
	resp := doc.toDomain()
	return &resp, nil
}

// responseSet builds the $set document of a partial update. Fields absent from
// in are left out so concurrent patches of other fields survive.
func responseSet(in ports.ResponsePatch, at time.Time) (bson.M, error) {
	set := bson.M{"updated_at": at}
	if in.Value.Set {
		value, err := jsonShape(in.Value.Value)
		if err != nil {
			return nil, fmt.Errorf("encode value: %w", err)
		}
		set["value"] = value
	}
	if in.CompletedAt.Set {
		set["completed_at"] = utc(in.CompletedAt.Ptr())
	}
	return set, nil
}

// ListByInstallation returns responses with their checklist item embedded.
func (r *ChecklistResponseRepository) ListByInstallation(ctx context.Context, installationID string, p domain.Page) ([]domain.ChecklistResponse, int64, error) {
	filter := bson.M{"installation_id": installationID}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count responses: %w", err)
	}

	cur, err := r.col.Aggregate(ctx, responsesPipeline(filter, p))
	if err != nil {
		return nil, 0, fmt.Errorf("list responses: %w", err)
	}
	var docs []responseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode responses: %w", err)
	}
	out := make([]domain.ChecklistResponse, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

// responsesPipeline lists responses newest first with their checklist item.
func responsesPipeline(match bson.M, p domain.Page) mongo.Pipeline {
	return append(pagedPipeline(match, sortNewestFirst, p),
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: colChecklistItems},
			{Key: "localField", Value: "item_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "item"},
		}}},
		bson.D{{Key: "$unwind", Value: bson.D{{Key: "path", Value: "$item"}, {Key: "preserveNullAndEmptyArrays", Value: true}}}},
	)
}
