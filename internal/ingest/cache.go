package ingest

import (
	"sync"

	"github.com/shorewatch/shorewatch/internal/models"
)

// SnapshotCache keeps the latest snapshot per beach for read paths.
type SnapshotCache struct {
	mu     sync.RWMutex
	latest map[string]models.ConditionSnapshot
}

func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{latest: make(map[string]models.ConditionSnapshot)}
}

// Put stores snap unless a newer snapshot for the beach is already
// cached. Stream consumers can replay out of order.
func (c *SnapshotCache) Put(snap models.ConditionSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.latest[snap.BeachID]; ok && cur.Timestamp.After(snap.Timestamp) {
		return
	}
	c.latest[snap.BeachID] = snap
}

// Get returns the latest snapshot for the beach, if any.
func (c *SnapshotCache) Get(beachID string) (models.ConditionSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.latest[beachID]
	return snap, ok
}
