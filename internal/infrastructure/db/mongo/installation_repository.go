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

type installationDoc struct {
	ID              string     `bson:"_id"`
	ExternalOrderID string     `bson:"external_order_id"`
	StoreID         string     `bson:"store_id"`
	ScheduledStart  *time.Time `bson:"scheduled_start"`
	ScheduledEnd    *time.Time `bson:"scheduled_end"`
	Status          string     `bson:"status"`
	Notes           *string    `bson:"notes"`
	CreatedBy       *string    `bson:"created_by"`
	UpdatedBy       *string    `bson:"updated_by"`
	CreatedAt       time.Time  `bson:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at"`
}

func toInstallationDoc(i *domain.Installation) installationDoc {
	return installationDoc{
		ID:              i.ID,
		ExternalOrderID: i.ExternalOrderID,
		StoreID:         i.StoreID,
		ScheduledStart:  i.ScheduledStart,
		ScheduledEnd:    i.ScheduledEnd,
		Status:          string(i.Status),
		Notes:           i.Notes,
		CreatedBy:       i.CreatedBy,
		UpdatedBy:       i.UpdatedBy,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	}
}

func (d installationDoc) toDomain() domain.Installation {
	return domain.Installation{
		ID:              d.ID,
		ExternalOrderID: d.ExternalOrderID,
		StoreID:         d.StoreID,
		ScheduledStart:  utc(d.ScheduledStart),
		ScheduledEnd:    utc(d.ScheduledEnd),
		Status:          domain.InstallationStatus(d.Status),
		Notes:           d.Notes,
		CreatedBy:       d.CreatedBy,
		UpdatedBy:       d.UpdatedBy,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

type itemDoc struct {
	ID                  string    `bson:"_id"`
	InstallationID      string    `bson:"installation_id"`
	ExternalProductID   string    `bson:"external_product_id"`
	Quantity            int       `bson:"quantity"`
	RoomTag             *string   `bson:"room_tag"`
	SpecialInstructions *string   `bson:"special_instructions"`
	CreatedAt           time.Time `bson:"created_at"`
	UpdatedAt           time.Time `bson:"updated_at"`
}

func toItemDoc(it *domain.InstallationItem) itemDoc {
	return itemDoc{
		ID:                  it.ID,
		InstallationID:      it.InstallationID,
		ExternalProductID:   it.ExternalProductID,
		Quantity:            it.Quantity,
		RoomTag:             it.RoomTag,
		SpecialInstructions: it.SpecialInstructions,
		CreatedAt:           it.CreatedAt,
		UpdatedAt:           it.UpdatedAt,
	}
}

func (d itemDoc) toDomain() domain.InstallationItem {
	return domain.InstallationItem{
		ID:                  d.ID,
		InstallationID:      d.InstallationID,
		ExternalProductID:   d.ExternalProductID,
		Quantity:            d.Quantity,
		RoomTag:             d.RoomTag,
		SpecialInstructions: d.SpecialInstructions,
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
	}
}

type crewDoc struct {
	ID    string `bson:"_id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
}

type assignmentDoc struct {
	ID             string     `bson:"_id"`
	InstallationID string     `bson:"installation_id"`
	CrewUserID     string     `bson:"crew_user_id"`
	Role           *string    `bson:"role"`
	AcceptedAt     *time.Time `bson:"accepted_at"`
	DeclinedAt     *time.Time `bson:"declined_at"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`

	Crew *crewDoc `bson:"crew,omitempty"`
}

func toAssignmentDoc(a *domain.CrewAssignment) assignmentDoc {
	return assignmentDoc{
		ID:             a.ID,
		InstallationID: a.InstallationID,
		CrewUserID:     a.CrewUserID,
		Role:           a.Role,
		AcceptedAt:     a.AcceptedAt,
		DeclinedAt:     a.DeclinedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func (d assignmentDoc) toDomain() domain.CrewAssignment {
	a := domain.CrewAssignment{
		ID:             d.ID,
		InstallationID: d.InstallationID,
		CrewUserID:     d.CrewUserID,
		Role:           d.Role,
		AcceptedAt:     utc(d.AcceptedAt),
		DeclinedAt:     utc(d.DeclinedAt),
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	if d.Crew != nil {
		a.Crew = &domain.CrewMember{ID: d.Crew.ID, Name: d.Crew.Name, Email: d.Crew.Email}
	}
	return a
}

// InstallationRepository implements ports.InstallationRepository. Items and
// crew assignments live in their own collections keyed by installation_id.
type InstallationRepository struct {
	installations *mongo.Collection
	items         *mongo.Collection
	assignments   *mongo.Collection
}

func NewInstallationRepository(db *mongo.Database) *InstallationRepository {
	return &InstallationRepository{
		installations: db.Collection(colInstallations),
		items:         db.Collection(colItems),
		assignments:   db.Collection(colAssignments),
	}
}

func (r *InstallationRepository) Create(ctx context.Context, inst *domain.Installation) error {
	if err := insert(ctx, r.installations, toInstallationDoc(inst)); err != nil {
		return fmt.Errorf("insert installation: %w", err)
	}
	return nil
}

func (r *InstallationRepository) FindByID(ctx context.Context, id string) (*domain.Installation, error) {
	doc, err := findOne[installationDoc](ctx, r.installations, bson.M{"_id": id}, domain.ErrInstallationNotFound)
	if err != nil {
		return nil, err
	}
	inst := doc.toDomain()
	return &inst, nil
}

func (r *InstallationRepository) List(ctx context.Context, f ports.InstallationFilter, p domain.Page) ([]domain.Installation, int64, error) {
	filter := bson.M{}
	if f.ExternalOrderID != "" {
		filter["external_order_id"] = f.ExternalOrderID
	}
	if f.StoreID != "" {
		filter["store_id"] = f.StoreID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	docs, total, err := findPage[installationDoc](ctx, r.installations, filter, sortNewestFirst, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list installations: %w", err)
	}
	out := make([]domain.Installation, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

func (r *InstallationRepository) UpdateSchedule(ctx context.Context, inst *domain.Installation) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.installations.UpdateOne(ctx, bson.M{"_id": inst.ID}, bson.M{"$set": bson.M{
		"scheduled_start": inst.ScheduledStart,
		"scheduled_end":   inst.ScheduledEnd,
		"notes":           inst.Notes,
		"updated_by":      inst.UpdatedBy,
		"updated_at":      inst.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update installation: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrInstallationNotFound
	}
	return nil
}

// UpdateStatus writes status and updated_by in a single document update, so
// either both change or neither does.
func (r *InstallationRepository) UpdateStatus(ctx context.Context, id string, status domain.InstallationStatus, updatedBy *string, at time.Time) (*domain.Installation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"status": string(status), "updated_by": updatedBy, "updated_at": at}}

	var doc installationDoc
	if err := r.installations.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInstallationNotFound
		}
		return nil, fmt.Errorf("update installation status: %w", err)
	}
	inst := doc.toDomain()
	return &inst, nil
}

// ── Items ─────────────────────────────────────────────────────────────────────

func (r *InstallationRepository) CreateItem(ctx context.Context, item *domain.InstallationItem) error {
	if err := insert(ctx, r.items, toItemDoc(item)); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r *InstallationRepository) FindItem(ctx context.Context, installationID, itemID string) (*domain.InstallationItem, error) {
	doc, err := findOne[itemDoc](ctx, r.items, bson.M{"_id": itemID, "installation_id": installationID}, domain.ErrItemNotFound)
	if err != nil {
		return nil, err
	}
	item := doc.toDomain()
	return &item, nil
}

func (r *InstallationRepository) ListItems(ctx context.Context, installationID string, p domain.Page) ([]domain.InstallationItem, int64, error) {
	docs, total, err := findPage[itemDoc](ctx, r.items, bson.M{"installation_id": installationID}, sortNewestFirst, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	out := make([]domain.InstallationItem, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

func (r *InstallationRepository) UpdateItem(ctx context.Context, item *domain.InstallationItem) error {
	return replaceByID(ctx, r.items, item.ID, toItemDoc(item), domain.ErrItemNotFound)
}

func (r *InstallationRepository) DeleteItem(ctx context.Context, installationID, itemID string) error {
	return deleteOne(ctx, r.items, bson.M{"_id": itemID, "installation_id": installationID}, domain.ErrItemNotFound)
}

// ── Crew assignments ──────────────────────────────────────────────────────────

func (r *InstallationRepository) CreateAssignment(ctx context.Context, a *domain.CrewAssignment) error {
	if err := insert(ctx, r.assignments, toAssignmentDoc(a)); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (r *InstallationRepository) FindAssignment(ctx context.Context, installationID, assignmentID string) (*domain.CrewAssignment, error) {
	docs, err := r.aggregateAssignments(ctx, bson.M{"_id": assignmentID, "installation_id": installationID}, domain.Page{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrAssignmentNotFound
	}
	a := docs[0].toDomain()
	return &a, nil
}

// ListAssignments joins each assignment with the crew member's name and email.
func (r *InstallationRepository) ListAssignments(ctx context.Context, installationID string, p domain.Page) ([]domain.CrewAssignment, int64, error) {
	filter := bson.M{"installation_id": installationID}

	countCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	total, err := r.assignments.CountDocuments(countCtx, filter)
	cancel()
	if err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}

	docs, err := r.aggregateAssignments(ctx, filter, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.CrewAssignment, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

func (r *InstallationRepository) aggregateAssignments(ctx context.Context, match bson.M, p domain.Page) ([]assignmentDoc, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.assignments.Aggregate(ctx, assignmentsPipeline(match, p))
	if err != nil {
		return nil, fmt.Errorf("aggregate assignments: %w", err)
	}
	var docs []assignmentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode assignments: %w", err)
	}
	return docs, nil
}

// assignmentsPipeline lists assignments newest first with the crew member's
// name and email.
func assignmentsPipeline(match bson.M, p domain.Page) mongo.Pipeline {
	return append(pagedPipeline(match, sortNewestFirst, p),
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: colUsers},
			{Key: "localField", Value: "crew_user_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "pipeline", Value: bson.A{bson.D{{Key: "$project", Value: bson.D{{Key: "name", Value: 1}, {Key: "email", Value: 1}}}}}},
			{Key: "as", Value: "crew"},
		}}},
		bson.D{{Key: "$unwind", Value: bson.D{{Key: "path", Value: "$crew"}, {Key: "preserveNullAndEmptyArrays", Value: true}}}},
	)
}

func (r *InstallationRepository) UpdateAssignment(ctx context.Context, a *domain.CrewAssignment) error {
	return replaceByID(ctx, r.assignments, a.ID, toAssignmentDoc(a), domain.ErrAssignmentNotFound)
}

func (r *InstallationRepository) DeleteAssignment(ctx context.Context, installationID, assignmentID string) error {
	return deleteOne(ctx, r.assignments, bson.M{"_id": assignmentID, "installation_id": installationID}, domain.ErrAssignmentNotFound)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
