// Package friend implements the symmetric friendship relation between users.
package friend

import (
	"context"
	"errors"
)

// ErrAlreadyFriends is returned by Add when the pair is already connected.
var ErrAlreadyFriends = errors.New("friend: already friends")

// ErrNotFriends is returned by Remove when no friendship row exists for the pair.
var ErrNotFriends = errors.New("friend: not friends")

// Info describes a single friend as returned to a client.
type Info struct {
	UserID      uint32
	Username    string
	DisplayName string
}

// Repository persists the friendships table. A friendship is stored as two directed rows (user_id, friend_id) and
// (friend_id, user_id); callers must never observe one row without the other.
type Repository interface {
	// Add inserts both directed rows for the pair atomically. Returns ErrAlreadyFriends if the pair is already
	// connected.
	Add(ctx context.Context, userID, friendID uint32) error
	// Remove deletes both directed rows atomically. Returns ErrNotFriends if no row existed.
	Remove(ctx context.Context, userID, friendID uint32) error
	// List returns the friend ids of a user, read from the authoritative store (no cache).
	List(ctx context.Context, userID uint32) ([]uint32, error)
	// Info returns display information for a specific friend of userID. Returns ErrNotFriends if friendID is not
	// actually a friend of userID.
	Info(ctx context.Context, userID, friendID uint32) (*Info, error)
}
