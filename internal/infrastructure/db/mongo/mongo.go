package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fieldops/installation-api/internal/core/domain"
)

const defaultTimeout = 10 * time.Second

const (
	colUsers          = "users"
	colRoles          = "roles"
	colInstallations  = "installations"
	colItems          = "installation_items"
	colAssignments    = "crew_assignments"
	colTemplates      = "checklist_templates"
	colChecklistItems = "checklist_items"
	colResponses      = "checklist_responses"
	colMedia          = "media_assets"
	colStores         = "stores"
	colAddresses      = "addresses"
	colAuditLogs      = "audit_logs"
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return client, db, nil
}

// EnsureIndexes creates the indexes every repository relies on. The unique
// ones back the uniqueness rules of users, roles, stores and checklist
// responses.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	unique := options.Index().SetUnique(true)

	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "role_id", Value: 1}}},
		},
		colRoles: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique},
		},
		colInstallations: {
			{Keys: bson.D{{Key: "external_order_id", Value: 1}}},
			{Keys: bson.D{{Key: "store_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colItems: {
			{Keys: bson.D{{Key: "installation_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colAssignments: {
			{Keys: bson.D{{Key: "installation_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colChecklistItems: {
			{Keys: bson.D{{Key: "template_id", Value: 1}, {Key: "order_index", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colResponses: {
			{Keys: bson.D{{Key: "installation_id", Value: 1}, {Key: "item_id", Value: 1}}, Options: unique},
		},
		colMedia: {
			{Keys: bson.D{{Key: "installation_id", Value: 1}, {Key: "type", Value: 1}}},
		},
		colStores: {
			{Keys: bson.D{{Key: "external_store_id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		},
		colAddresses: {
			{Keys: bson.D{{Key: "city", Value: 1}, {Key: "region", Value: 1}, {Key: "country", Value: 1}}},
		},
		colAuditLogs: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "entity", Value: 1}, {Key: "entity_id", Value: 1}}},
			{Keys: bson.D{{Key: "actor_id", Value: 1}}},
		},
	}

	for col, models := range indexes {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", col, err)
		}
	}
	return nil
}

// findPage runs a paged find and a count over the same filter.
func findPage[D any](ctx context.Context, col *mongo.Collection, filter bson.M, sort bson.D, p domain.Page) ([]D, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(sort).SetSkip(int64(p.Offset))
	if p.Limit > 0 {
		opts.SetLimit(int64(p.Limit))
	}
	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// List orderings. created_at ties fall back to _id so pages do not overlap.
var (
	sortNewestFirst    = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	sortByName         = bson.D{{Key: "name", Value: 1}}
	sortChecklistItems = bson.D{{Key: "order_index", Value: 1}, {Key: "created_at", Value: 1}}
)

// pagedPipeline matches, orders and windows a collection. Joins are appended
// after it so they only run for the returned page.
func pagedPipeline(match bson.M, sort bson.D, p domain.Page) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: sort}},
		{{Key: "$skip", Value: int64(p.Offset)}},
	}
	if p.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(p.Limit)}})
	}
	return pipeline
}

// findOne decodes the single document matching filter, mapping a miss to notFound.
func findOne[D any](ctx context.Context, col *mongo.Collection, filter bson.M, notFound error) (*D, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc D
	if err := col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, err
	}
	return &doc, nil
}

// replaceByID overwrites the document with the given id, mapping a miss to notFound.
func replaceByID(ctx context.Context, col *mongo.Collection, id string, doc any, notFound error) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

func insert(ctx context.Context, col *mongo.Collection, doc any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := col.InsertOne(ctx, doc)
	return err
}

func deleteOne(ctx context.Context, col *mongo.Collection, filter bson.M, notFound error) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := col.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return notFound
	}
	return nil
}

// contains builds a case-insensitive substring match.
func contains(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}

// jsonShape re-encodes v through its JSON form so free-form payloads are
// stored with the same keys the API returns.
func jsonShape(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
