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

// storeDoc omits a null external_store_id so the sparse unique index only
// covers stores that carry one.
type storeDoc struct {
	ID              string    `bson:"_id"`
	Name            string    `bson:"name"`
	AddressID       *string   `bson:"address_id"`
	Timezone        *string   `bson:"timezone"`
	ExternalStoreID *string   `bson:"external_store_id,omitempty"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toStoreDoc(s *domain.Store) storeDoc {
	return storeDoc{
		ID:              s.ID,
		Name:            s.Name,
		AddressID:       s.AddressID,
		Timezone:        s.Timezone,
		ExternalStoreID: s.ExternalStoreID,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (d storeDoc) toDomain() domain.Store {
	return domain.Store{
		ID:              d.ID,
		Name:            d.Name,
		AddressID:       d.AddressID,
		Timezone:        d.Timezone,
		ExternalStoreID: d.ExternalStoreID,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

// StoreRepository implements ports.StoreRepository.
type StoreRepository struct {
	col *mongo.Collection
}

func NewStoreRepository(db *mongo.Database) *StoreRepository {
	return &StoreRepository{col: db.Collection(colStores)}
}

func (r *StoreRepository) Create(ctx context.Context, s *domain.Store) error {
	if err := insert(ctx, r.col, toStoreDoc(s)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrExternalStoreTaken
		}
		return fmt.Errorf("insert store: %w", err)
	}
	return nil
}

func (r *StoreRepository) FindByID(ctx context.Context, id string) (*domain.Store, error) {
	doc, err := findOne[storeDoc](ctx, r.col, bson.M{"_id": id}, domain.ErrStoreNotFound)
	if err != nil {
		return nil, err
	}
	s := doc.toDomain()
	return &s, nil
}

func (r *StoreRepository) List(ctx context.Context, f ports.StoreFilter, p domain.Page) ([]domain.Store, int64, error) {
	filter := bson.M{}
	if f.Q != "" {
		filter["name"] = contains(f.Q)
	}
	if f.ExternalID != "" {
		filter["external_store_id"] = f.ExternalID
	}
	docs, total, err := findPage[storeDoc](ctx, r.col, filter, sortNewestFirst, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list stores: %w", err)
	}
	out := make([]domain.Store, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

func (r *StoreRepository) Update(ctx context.Context, s *domain.Store) error {
	err := replaceByID(ctx, r.col, s.ID, toStoreDoc(s), domain.ErrStoreNotFound)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrExternalStoreTaken
	}
	return err
}

type addressDoc struct {
	ID         string    `bson:"_id"`
	Line1      string    `bson:"line1"`
	Line2      *string   `bson:"line2"`
	City       *string   `bson:"city"`
	Region     *string   `bson:"region"`
	PostalCode *string   `bson:"postal_code"`
	Country    *string   `bson:"country"`
	Lat        *float64  `bson:"lat"`
	Lng        *float64  `bson:"lng"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func toAddressDoc(a *domain.Address) addressDoc {
	return addressDoc{
		ID:         a.ID,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Lat:        a.Lat,
		Lng:        a.Lng,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func (d addressDoc) toDomain() domain.Address {
	return domain.Address{
		ID:         d.ID,
		Line1:      d.Line1,
		Line2:      d.Line2,
		City:       d.City,
		Region:     d.Region,
		PostalCode: d.PostalCode,
		Country:    d.Country,
		Lat:        d.Lat,
		Lng:        d.Lng,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

// AddressRepository implements ports.AddressRepository.
type AddressRepository struct {
	col *mongo.Collection
}

func NewAddressRepository(db *mongo.Database) *AddressRepository {
	return &AddressRepository{col: db.Collection(colAddresses)}
}

func (r *AddressRepository) Create(ctx context.Context, a *domain.Address) error {
	if err := insert(ctx, r.col, toAddressDoc(a)); err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (r *AddressRepository) FindByID(ctx context.Context, id string) (*domain.Address, error) {
	doc, err := findOne[addressDoc](ctx, r.col, bson.M{"_id": id}, domain.ErrAddressNotFound)
	if err != nil {
		return nil, err
	}
	a := doc.toDomain()
	return &a, nil
}

func (r *AddressRepository) List(ctx context.Context, f ports.AddressFilter, p domain.Page) ([]domain.Address, int64, error) {
	filter := bson.M{}
	if f.City != "" {
		filter["city"] = contains(f.City)
	}
	if f.Region != "" {
		filter["region"] = contains(f.Region)
	}
	if f.Country != "" {
		filter["country"] = f.Country
	}
	docs, total, err := findPage[addressDoc](ctx, r.col, filter, sortNewestFirst, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list addresses: %w", err)
	}
	out := make([]domain.Address, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

func (r *AddressRepository) Update(ctx context.Context, a *domain.Address) error {
	return replaceByID(ctx, r.col, a.ID, toAddressDoc(a), domain.ErrAddressNotFound)
}
