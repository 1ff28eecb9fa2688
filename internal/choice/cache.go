package choice

import (
	"context"
	"sync"

	"github.com/psds-microservice/problem-portal/internal/model"
)

// Key identifies the choice list of one field of one entity kind.
type Key struct {
	EntityKind string
	FieldName  string
}

func (k Key) String() string {
	return k.EntityKind + "." + k.FieldName
}

// Cache stores resolved choice lists for a session. Entries are added once
// and never evicted while the session lives.
type Cache interface {
	Get(ctx context.Context, key Key) ([]model.Choice, bool)
	Put(ctx context.Context, key Key, choices []model.Choice)
}

// MemoryCache is a process-local Cache. Create one per session.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key][]model.Choice
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[Key][]model.Choice{}}
}

func (c *MemoryCache) Get(_ context.Context, key Key) ([]model.Choice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	choices, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return clone(choices), true
}

func (c *MemoryCache) Put(_ context.Context, key Key, choices []model.Choice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = clone(choices)
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func clone(choices []model.Choice) []model.Choice {
	out := make([]model.Choice, len(choices))
	copy(out, choices)
	return out
}
