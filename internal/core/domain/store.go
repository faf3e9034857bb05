package domain

import (
	"strings"
	"time"
)

// Address is a postal location stores point at.
type Address struct {
	ID         string    `json:"id"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2"`
	City       *string   `json:"city"`
	Region     *string   `json:"region"`
	PostalCode *string   `json:"postal_code"`
	Country    *string   `json:"country"`
	Lat        *float64  `json:"lat"`
	Lng        *float64  `json:"lng"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NormalizeCountry validates a 2-letter ISO code and upper-cases it.
func NormalizeCountry(c string) (string, error) {
	if len(c) != 2 {
		return "", Invalid("country must be 2-letter ISO code")
	}
	return strings.ToUpper(c), nil
}

// Store is a retail location installations are tied to.
type Store struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	AddressID       *string   `json:"address_id"`
	Timezone        *string   `json:"timezone"`
	ExternalStoreID *string   `json:"external_store_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Address *Address `json:"address,omitempty"`
}

// StoreSummary is embedded in installation detail.
type StoreSummary struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	ExternalStoreID *string `json:"external_store_id"`
}
