package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShardCount = 32

type sessionEntry struct {
	info      Info
	expiresAt time.Time // zero when TTL is disabled
}

type sessionShard struct {
	mu      sync.Mutex
	entries map[string]sessionEntry
}

type userShard struct {
	mu      sync.Mutex
	byUser  map[uint32]map[string]struct{}
}

// MemoryRegistry is an in-process Registry implementation using lock-striped maps, with two independently striped
// indexes: one keyed by session id, one keyed by user id.
type MemoryRegistry struct {
	sessions [memoryShardCount]*sessionShard
	users    [memoryShardCount]*userShard
	ttl      time.Duration
}

// NewMemoryRegistry creates an in-memory session registry. ttl of zero disables sliding-window expiry.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	r := &MemoryRegistry{ttl: ttl}
	for i := 0; i < memoryShardCount; i++ {
		r.sessions[i] = &sessionShard{entries: make(map[string]sessionEntry)}
		r.users[i] = &userShard{byUser: make(map[uint32]map[string]struct{})}
	}
	return r
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % memoryShardCount
}

func (r *MemoryRegistry) sessionShardFor(id string) *sessionShard {
	return r.sessions[shardIndex(id)]
}

func (r *MemoryRegistry) userShardFor(userID uint32) *userShard {
	var buf [4]byte
	buf[0] = byte(userID)
	buf[1] = byte(userID >> 8)
	buf[2] = byte(userID >> 16)
	buf[3] = byte(userID >> 24)
	return r.users[shardIndex(string(buf[:]))]
}

func (r *MemoryRegistry) addToByUser(userID uint32, id string) {
	sh := r.userShardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set, ok := sh.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		sh.byUser[userID] = set
	}
	set[id] = struct{}{}
}

// removeFromByUser deletes id from user's bucket and evicts the bucket entirely if it becomes empty, so no empty
// buckets persist.
func (r *MemoryRegistry) removeFromByUser(userID uint32, id string) {
	sh := r.userShardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set, ok := sh.byUser[userID]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(sh.byUser, userID)
	}
}

func (r *MemoryRegistry) Insert(_ context.Context, userID uint32, id, peerIP string, role Role) error {
	var expires time.Time
	if r.ttl > 0 {
		expires = time.Now().Add(r.ttl)
	}

	sh := r.sessionShardFor(id)
	sh.mu.Lock()
	prev, hadPrev := sh.entries[id]
	sh.entries[id] = sessionEntry{
		info: Info{
			ID:           id,
			UserID:       userID,
			Role:         role,
			CreatedAtSec: time.Now().Unix(),
			PeerIP:       peerIP,
		},
		expiresAt: expires,
	}
	sh.mu.Unlock()

	if hadPrev && prev.info.UserID != userID {
		r.removeFromByUser(prev.info.UserID, id)
	}
	r.addToByUser(userID, id)
	return nil
}

// getLive returns the entry for id if present and not expired. An expired entry is deleted lazily, equivalent to an
// implicit delete, and treated as absent.
func (r *MemoryRegistry) getLive(id string) (Info, bool) {
	sh := r.sessionShardFor(id)
	sh.mu.Lock()
	entry, ok := sh.entries[id]
	if !ok {
		sh.mu.Unlock()
		return Info{}, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(sh.entries, id)
		sh.mu.Unlock()
		r.removeFromByUser(entry.info.UserID, id)
		return Info{}, false
	}
	if r.ttl > 0 {
		entry.expiresAt = time.Now().Add(r.ttl)
		sh.entries[id] = entry
	}
	sh.mu.Unlock()
	return entry.info, true
}

func (r *MemoryRegistry) LookupUser(_ context.Context, id string) (uint32, error) {
	info, ok := r.getLive(id)
	if !ok {
		return 0, ErrNotFound
	}
	return info.UserID, nil
}

func (r *MemoryRegistry) LookupRole(_ context.Context, id string) (Role, error) {
	info, ok := r.getLive(id)
	if !ok {
		return RoleInvalid, ErrNotFound
	}
	return info.Role, nil
}

func (r *MemoryRegistry) IDsOf(_ context.Context, userID uint32) ([]string, error) {
	sh := r.userShardFor(userID)
	sh.mu.Lock()
	set, ok := sh.byUser[userID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sh.mu.Unlock()
	if !ok {
		return []string{}, nil
	}
	return ids, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, id string) (uint32, bool, error) {
	sh := r.sessionShardFor(id)
	sh.mu.Lock()
	entry, ok := sh.entries[id]
	if ok {
		delete(sh.entries, id)
	}
	sh.mu.Unlock()

	if !ok {
		return 0, false, nil
	}
	// The per-id lock on the sessions shard has already been released above, so this cross-map update cannot
	// deadlock against a concurrent Insert for the same user touching a different id.
	r.removeFromByUser(entry.info.UserID, id)
	return entry.info.UserID, true, nil
}

func (r *MemoryRegistry) ClearAll(_ context.Context) error {
	for _, sh := range r.sessions {
		sh.mu.Lock()
		sh.entries = make(map[string]sessionEntry)
		sh.mu.Unlock()
	}
	for _, sh := range r.users {
		sh.mu.Lock()
		sh.byUser = make(map[uint32]map[string]struct{})
		sh.mu.Unlock()
	}
	return nil
}

func (r *MemoryRegistry) OnlineTree(_ context.Context) (map[uint32][]Info, error) {
	tree := make(map[uint32][]Info)
	for _, sh := range r.sessions {
		sh.mu.Lock()
		for _, entry := range sh.entries {
			tree[entry.info.UserID] = append(tree[entry.info.UserID], entry.info)
		}
		sh.mu.Unlock()
	}
	return tree, nil
}
