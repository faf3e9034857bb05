package ports

import (
	"context"

	"github.com/fieldops/installation-api/internal/core/domain"
)

type StoreFilter struct {
	Q          string
	ExternalID string
}

type StoreRepository interface {
	Create(ctx context.Context, s *domain.Store) error
	FindByID(ctx context.Context, id string) (*domain.Store, error)
	List(ctx context.Context, f StoreFilter, p domain.Page) ([]domain.Store, int64, error)
	Update(ctx context.Context, s *domain.Store) error
}

type AddressFilter struct {
	City    string
	Region  string
	Country string
}

type AddressRepository interface {
	Create(ctx context.Context, a *domain.Address) error
	FindByID(ctx context.Context, id string) (*domain.Address, error)
	List(ctx context.Context, f AddressFilter, p domain.Page) ([]domain.Address, int64, error)
	Update(ctx context.Context, a *domain.Address) error
}

type CreateStoreInput struct {
	Name            string
	AddressID       *string
	Timezone        *string
	ExternalStoreID *string
}

type StorePatch struct {
	Name            Patch[string]
	AddressID       Patch[string]
	Timezone        Patch[string]
	ExternalStoreID Patch[string]
}

type CreateAddressInput struct {
	Line1      string
	Line2      *string
	City       *string
	Region     *string
	PostalCode *string
	Country    *string
	Lat        *float64
	Lng        *float64
}

type AddressPatch struct {
	Line1      Patch[string]
	Line2      Patch[string]
	City       Patch[string]
	Region     Patch[string]
	PostalCode Patch[string]
	Country    Patch[string]
	Lat        Patch[float64]
	Lng        Patch[float64]
}

// ReferenceService manages stores and addresses.
type ReferenceService interface {
	ListStores(ctx context.Context, f StoreFilter, p domain.Page) (domain.List[domain.Store], error)
	GetStore(ctx context.Context, id string) (*domain.Store, error)
	CreateStore(ctx context.Context, in CreateStoreInput) (*domain.Store, error)
	UpdateStore(ctx context.Context, id string, in StorePatch) (*domain.Store, error)

	ListAddresses(ctx context.Context, f AddressFilter, p domain.Page) (domain.List[domain.Address], error)
	GetAddress(ctx context.Context, id string) (*domain.Address, error)
	CreateAddress(ctx context.Context, in CreateAddressInput) (*domain.Address, error)
	UpdateAddress(ctx context.Context, id string, in AddressPatch) (*domain.Address, error)
}
