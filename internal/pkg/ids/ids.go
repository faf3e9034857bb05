// Package ids generates identifiers for stored entities and requests.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a random UUID for entity primary keys.
func New() string {
	return uuid.NewString()
}

// NewRequestID returns a lexicographically sortable id for request tracing.
func NewRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
