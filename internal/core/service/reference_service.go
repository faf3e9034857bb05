package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
	"github.com/fieldops/installation-api/internal/pkg/ids"
)

// ReferenceService manages stores and their addresses.
type ReferenceService struct {
	stores    ports.StoreRepository
	addresses ports.AddressRepository
	audit     ports.AuditRecorder
	now       func() time.Time
}

func NewReferenceService(stores ports.StoreRepository, addresses ports.AddressRepository, audit ports.AuditRecorder) *ReferenceService {
	return &ReferenceService{stores: stores, addresses: addresses, audit: audit, now: time.Now}
}

// ── Stores ────────────────────────────────────────────────────────────────────

func (s *ReferenceService) ListStores(ctx context.Context, f ports.StoreFilter, p domain.Page) (domain.List[domain.Store], error) {
	f.Q, f.ExternalID = strings.TrimSpace(f.Q), strings.TrimSpace(f.ExternalID)
	rows, total, err := s.stores.List(ctx, f, p)
	if err != nil {
		return domain.List[domain.Store]{}, fmt.Errorf("list stores: %w", err)
	}
	for i := range rows {
		if err := s.attachAddress(ctx, &rows[i]); err != nil {
			return domain.List[domain.Store]{}, err
		}
	}
	return domain.NewList(rows, total, p), nil
}

func (s *ReferenceService) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	st, err := s.stores.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachAddress(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *ReferenceService) CreateStore(ctx context.Context, in ports.CreateStoreInput) (*domain.Store, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Invalid("name is required")
	}
	addressID := nonEmpty(in.AddressID)
	if err := s.checkAddress(ctx, addressID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	st := &domain.Store{
		ID:              ids.New(),
		Name:            name,
		AddressID:       addressID,
		Timezone:        nonEmpty(in.Timezone),
		ExternalStoreID: nonEmpty(in.ExternalStoreID),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.stores.Create(ctx, st); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditEvent{Action: "store.create", Entity: "store", EntityID: st.ID, Data: st})
	return st, nil
}

func (s *ReferenceService) UpdateStore(ctx context.Context, id string, in ports.StorePatch) (*domain.Store, error) {
	st, err := s.stores.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *st

	if in.AddressID.Set {
		addressID := nonEmpty(in.AddressID.Ptr())
		if err := s.checkAddress(ctx, addressID); err != nil {
			return nil, err
		}
		st.AddressID = addressID
	}
	if in.Name.Set {
		name := strings.TrimSpace(in.Name.Value)
		if in.Name.Null || name == "" {
			return nil, domain.Invalid("name cannot be empty")
		}
		st.Name = name
	}
	if in.Timezone.Set {
		st.Timezone = nonEmpty(in.Timezone.Ptr())
	}
	if in.ExternalStoreID.Set {
		st.ExternalStoreID = nonEmpty(in.ExternalStoreID.Ptr())
	}
	st.UpdatedAt = s.now().UTC()

	if err := s.stores.Update(ctx, st); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "store.update",
		Entity:   "store",
		EntityID: st.ID,
		Data:     domain.Change{Before: before, After: *st},
	})
	return st, nil
}

func (s *ReferenceService) checkAddress(ctx context.Context, id *string) error {
	if id == nil {
		return nil
	}
	if _, err := s.addresses.FindByID(ctx, *id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid("address_id invalid")
		}
		return fmt.Errorf("check address: %w", err)
	}
	return nil
}

func (s *ReferenceService) attachAddress(ctx context.Context, st *domain.Store) error {
	if st.AddressID == nil {
		return nil
	}
	addr, err := s.addresses.FindByID(ctx, *st.AddressID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load address: %w", err)
	}
	st.Address = addr
	return nil
}

// ── Addresses ─────────────────────────────────────────────────────────────────

func (s *ReferenceService) ListAddresses(ctx context.Context, f ports.AddressFilter, p domain.Page) (domain.List[domain.Address], error) {
	rows, total, err := s.addresses.List(ctx, f, p)
	if err != nil {
		return domain.List[domain.Address]{}, fmt.Errorf("list addresses: %w", err)
	}
	return domain.NewList(rows, total, p), nil
}

func (s *ReferenceService) GetAddress(ctx context.Context, id string) (*domain.Address, error) {
	return s.addresses.FindByID(ctx, id)
}

func (s *ReferenceService) CreateAddress(ctx context.Context, in ports.CreateAddressInput) (*domain.Address, error) {
	line1 := strings.TrimSpace(in.Line1)
	if line1 == "" {
		return nil, domain.Invalid("line1 is required")
	}
	country, err := countryPtr(in.Country)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a := &domain.Address{
		ID:         ids.New(),
		Line1:      line1,
		Line2:      nonEmpty(in.Line2),
		City:       nonEmpty(in.City),
		Region:     nonEmpty(in.Region),
		PostalCode: nonEmpty(in.PostalCode),
		Country:    country,
		Lat:        in.Lat,
		Lng:        in.Lng,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.addresses.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{Action: "address.create", Entity: "address", EntityID: a.ID, Data: a})
	return a, nil
}

func (s *ReferenceService) UpdateAddress(ctx context.Context, id string, in ports.AddressPatch) (*domain.Address, error) {
	a, err := s.addresses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *a

	if in.Country.Set {
		country, err := countryPtr(in.Country.Ptr())
		if err != nil {
			return nil, err
		}
		a.Country = country
	}
	if in.Line1.Set {
		line1 := strings.TrimSpace(in.Line1.Value)
		if in.Line1.Null || line1 == "" {
			return nil, domain.Invalid("line1 cannot be empty")
		}
		a.Line1 = line1
	}
	if in.Line2.Set {
		a.Line2 = in.Line2.Ptr()
	}
	if in.City.Set {
		a.City = in.City.Ptr()
	}
	if in.Region.Set {
		a.Region = in.Region.Ptr()
	}
	if in.PostalCode.Set {
		a.PostalCode = in.PostalCode.Ptr()
	}
	if in.Lat.Set {
		a.Lat = in.Lat.Ptr()
	}
	if in.Lng.Set {
		a.Lng = in.Lng.Ptr()
	}
	a.UpdatedAt = s.now().UTC()

	if err := s.addresses.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update address: %w", err)
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:   "address.update",
		Entity:   "address",
		EntityID: a.ID,
		Data:     domain.Change{Before: before, After: *a},
	})
	return a, nil
}

func countryPtr(c *string) (*string, error) {
	if c == nil || *c == "" {
		return nil, nil
	}
	norm, err := domain.NormalizeCountry(*c)
	if err != nil {
		return nil, err
	}
	return &norm, nil
}
