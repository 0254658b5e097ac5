package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/google/uuid"
)

// InMemorySnapshotCache is a process-local snapshot cache used when Redis
// is not configured. Suitable for single-instance deployments and tests.
type InMemorySnapshotCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]inMemoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type inMemoryEntry struct {
	services  []*billing.CustomerService
	expiresAt time.Time
}

// NewInMemorySnapshotCache creates an in-memory snapshot cache. A zero TTL
// means entries never expire.
func NewInMemorySnapshotCache(ttl time.Duration) *InMemorySnapshotCache {
	return &InMemorySnapshotCache{
		entries: make(map[uuid.UUID]inMemoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get fetches a cached snapshot, expiring stale entries lazily.
func (c *InMemorySnapshotCache) Get(_ context.Context, customerID uuid.UUID) ([]*billing.CustomerService, bool) {
	c.mu.RLock()
	entry, ok := c.entries[customerID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, customerID)
		c.mu.Unlock()
		return nil, false
	}
	return entry.services, true
}

// Set stores a snapshot.
func (c *InMemorySnapshotCache) Set(_ context.Context, customerID uuid.UUID, services []*billing.CustomerService) {
	entry := inMemoryEntry{services: services}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[customerID] = entry
	c.mu.Unlock()
}

// Invalidate drops a customer's cached snapshot.
func (c *InMemorySnapshotCache) Invalidate(_ context.Context, customerID uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, customerID)
	c.mu.Unlock()
}
