package campaign

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"coalition/pkg/sentinel"
)

// InMemoryDirectory holds campaigns in process. Production wires an adapter to
// the campaign management system instead.
type InMemoryDirectory struct {
	mu        sync.RWMutex
	campaigns map[uuid.UUID]*Campaign
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{campaigns: make(map[uuid.UUID]*Campaign)}
}

func (d *InMemoryDirectory) Get(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.campaigns[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

// Put inserts or replaces a campaign.
func (d *InMemoryDirectory) Put(c *Campaign) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := *c
	d.campaigns[c.ID] = &copied
}
