package signedlink

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// ConsumptionTracker remembers which links were already used.
// Consume returns false when signature was consumed before.
type ConsumptionTracker interface {
	Consume(signature string, until time.Time) bool
}

// MemoryTracker keeps consumed signatures in process memory until the link
// they belong to expires. It does not survive restarts and is not shared
// between replicas.
type MemoryTracker struct {
	store *cache.Cache
	now   func() time.Time
}

// NewMemoryTracker creates a tracker that purges expired entries every
// cleanupInterval.
func NewMemoryTracker(cleanupInterval time.Duration) *MemoryTracker {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &MemoryTracker{
		store: cache.New(cache.NoExpiration, cleanupInterval),
		now:   time.Now,
	}
}

// Consume implements ConsumptionTracker.
func (t *MemoryTracker) Consume(signature string, until time.Time) bool {
	ttl := until.Sub(t.now())
	if ttl <= 0 {
		// keep it around briefly so a racing request on the boundary loses
		ttl = time.Second
	}
	return t.store.Add(signature, struct{}{}, ttl) == nil
}

// Len returns the number of tracked signatures, expired ones included until
// the next cleanup.
func (t *MemoryTracker) Len() int {
	return t.store.ItemCount()
}
