package membership

import (
	"context"
	"sync"
)

// MemoryCache is an in-process Cache implementation, for single-process deployments or tests. A single read-write
// mutex guards both maps; they are not lock-striped.
type MemoryCache struct {
	mu       sync.RWMutex
	groups   map[uint32][]uint32
	friends  map[uint32][]uint32
}

// NewMemoryCache creates an empty in-memory membership cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		groups:  make(map[uint32][]uint32),
		friends: make(map[uint32][]uint32),
	}
}

func (c *MemoryCache) GetGroupMembers(_ context.Context, groupID uint32) ([]uint32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	members, ok := c.groups[groupID]
	if !ok {
		return nil, false, nil
	}
	return append([]uint32(nil), members...), true, nil
}

func (c *MemoryCache) SetGroupMembers(_ context.Context, groupID uint32, members []uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[groupID] = append([]uint32(nil), members...)
	return nil
}

func (c *MemoryCache) InvalidateGroup(_ context.Context, groupID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.groups, groupID)
	return nil
}

func (c *MemoryCache) GetFriends(_ context.Context, userID uint32) ([]uint32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	friends, ok := c.friends[userID]
	if !ok {
		return nil, false, nil
	}
	return append([]uint32(nil), friends...), true, nil
}

func (c *MemoryCache) SetFriends(_ context.Context, userID uint32, friends []uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.friends[userID] = append([]uint32(nil), friends...)
	return nil
}

func (c *MemoryCache) InvalidateUser(_ context.Context, userID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.friends, userID)
	return nil
}
