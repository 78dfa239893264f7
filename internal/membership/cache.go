// Package membership implements two best-effort caches, group -> members and user -> friends, used only to speed
// up fan-out. The cache is never authoritative for security-gating membership checks; callers fall back to the
// authoritative store on a miss.
package membership

import "context"

// Cache is the membership cache contract. A miss from Get returns ok=false; the caller loads from the authoritative
// store, calls Set to populate, and proceeds. Any mutation of the underlying relation (join/leave/add/remove) must
// call the matching Invalidate before the mutating operation returns to its client.
type Cache interface {
	GetGroupMembers(ctx context.Context, groupID uint32) (members []uint32, ok bool, err error)
	SetGroupMembers(ctx context.Context, groupID uint32, members []uint32) error
	InvalidateGroup(ctx context.Context, groupID uint32) error

	GetFriends(ctx context.Context, userID uint32) (friends []uint32, ok bool, err error)
	SetFriends(ctx context.Context, userID uint32, friends []uint32) error
	InvalidateUser(ctx context.Context, userID uint32) error
}
