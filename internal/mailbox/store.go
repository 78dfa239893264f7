package mailbox

import (
	"hash/fnv"
	"sync"
)

// shardCount is the number of lock stripes in the store. Splitting the map into independent buckets means a slow
// operation on one connection's bucket cannot block unrelated connections.
const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	entries map[string]*Mailbox
}

// Store maps connection-id to Mailbox. It is safe for concurrent use from many goroutines.
type Store struct {
	shards [shardCount]*shard
}

// NewStore creates an empty Sender Store.
func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*Mailbox)}
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

// Insert stores mailbox under id, replacing and closing any previous entry for the same id. This is what makes a
// duplicate connection for the same id safe: the older mailbox's writer exits and closes its socket (no WebSocket
// close frame is sent), and the newer connection becomes the sole live mailbox.
func (s *Store) Insert(id string, mb *Mailbox) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	prev, ok := sh.entries[id]
	sh.entries[id] = mb
	sh.mu.Unlock()

	if ok {
		prev.Close()
	}
}

// Remove deletes and closes the mailbox registered for id, if any. It returns the removed mailbox, or nil if none was
// registered.
func (s *Store) Remove(id string) *Mailbox {
	sh := s.shardFor(id)
	sh.mu.Lock()
	mb, ok := sh.entries[id]
	if ok {
		delete(sh.entries, id)
	}
	sh.mu.Unlock()

	if ok {
		mb.Close()
	}
	return mb
}

// Get returns the mailbox registered for id, or nil if none is registered. It never mutates the store.
func (s *Store) Get(id string) *Mailbox {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.entries[id]
}

// Send enqueues frame on the mailbox registered for id. A missing id is a silent no-op.
func (s *Store) Send(id string, frame []byte) {
	if mb := s.Get(id); mb != nil {
		mb.Enqueue(frame)
	}
}

// Broadcast enqueues frame on every mailbox in ids. A failure delivering to one id (e.g. because it is absent) never
// affects delivery to the others.
func (s *Store) Broadcast(ids []string, frame []byte) {
	for _, id := range ids {
		s.Send(id, frame)
	}
}

// ClearAll closes every mailbox currently registered and empties the store.
func (s *Store) ClearAll() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		entries := sh.entries
		sh.entries = make(map[string]*Mailbox)
		sh.mu.Unlock()

		for _, mb := range entries {
			mb.Close()
		}
	}
}

// Len returns the total number of mailboxes currently registered, for diagnostics.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.entries)
		sh.mu.RUnlock()
	}
	return total
}
