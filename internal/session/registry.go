// Package session implements a registry mapping opaque connection/session id to session info, plus a reverse
// index from user to the set of ids that user currently holds.
package session

import (
	"context"
	"errors"
	"time"
)

// Role is a session's authorization level.
type Role int

const (
	RoleInvalid Role = iota
	RoleUser
	RoleAdmin
)

// ErrNotFound is returned by lookups for an id that is absent (or has expired under a configured TTL, which is
// equivalent to an implicit delete).
var ErrNotFound = errors.New("session: not found")

// Info is the record stored per session id.
type Info struct {
	ID            string
	UserID        uint32
	Role          Role
	CreatedAtSec  int64
	CreatedAtNsec int32
	PeerIP        string
}

// Registry is the session registry contract. Every operation is linearizable with respect to others on the same
// id. Implementations must release any per-id lock before touching the reverse by-user index, so Delete can never
// deadlock against a concurrent Insert for the same user on a different id.
type Registry interface {
	// Insert creates a record for id, inserting id into by_user[user]. It overwrites any existing record for id
	// (removing id from its previous owner's bucket, if different).
	Insert(ctx context.Context, userID uint32, id, peerIP string, role Role) error

	// LookupUser returns the user owning id, or ErrNotFound.
	LookupUser(ctx context.Context, id string) (uint32, error)

	// LookupRole returns the role recorded for id, or ErrNotFound.
	LookupRole(ctx context.Context, id string) (Role, error)

	// IDsOf returns a snapshot of the ids currently held by user, or an empty slice.
	IDsOf(ctx context.Context, userID uint32) ([]string, error)

	// Delete removes id from both maps. It returns the user that owned id and whether id was present; if by_user[user]
	// becomes empty as a result, the bucket is evicted entirely (no empty buckets persist).
	Delete(ctx context.Context, id string) (userID uint32, existed bool, err error)

	// ClearAll wipes both maps.
	ClearAll(ctx context.Context) error

	// OnlineTree returns a snapshot of user -> sessions, for administrative introspection.
	OnlineTree(ctx context.Context) (map[uint32][]Info, error)
}

// TTLOption configures the optional sliding-window expiry. A zero duration disables TTL entirely (sessions live
// until explicitly deleted).
type TTLOption struct {
	TTL time.Duration
}
