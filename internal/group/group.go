// Package group implements multi-member chat groups.
package group

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a group id does not exist.
	ErrNotFound = errors.New("group: not found")
	// ErrAlreadyMember is returned by Join when the user is already a member.
	ErrAlreadyMember = errors.New("group: already a member")
	// ErrNotMember is returned by Leave when the user is not a member.
	ErrNotMember = errors.New("group: not a member")
)

// Group is a multi-member chat room.
type Group struct {
	ID        uint32
	Title     string
	CreatorID uint32
	CreatedAt time.Time
}

// CreateParams groups the inputs to create a new group.
type CreateParams struct {
	Title     string
	CreatorID uint32
}

// Repository persists groups and their membership sets.
type Repository interface {
	// Create inserts a group row and auto-inserts the creator as the first member, atomically.
	Create(ctx context.Context, params CreateParams) (*Group, error)
	GetByID(ctx context.Context, id uint32) (*Group, error)
	// Members returns the authoritative member id set for a group, read from the store (not the cache).
	Members(ctx context.Context, id uint32) ([]uint32, error)
	// Join inserts userID into group id's membership. Returns ErrAlreadyMember if already present.
	Join(ctx context.Context, id, userID uint32) error
	// Leave removes userID from group id's membership. Returns ErrNotMember if absent.
	Leave(ctx context.Context, id, userID uint32) error
	// IsMember reports whether userID belongs to group id.
	IsMember(ctx context.Context, id, userID uint32) (bool, error)
	// ListForUser returns the ids of every group userID belongs to.
	ListForUser(ctx context.Context, userID uint32) ([]uint32, error)
	Delete(ctx context.Context, id uint32) error
}
