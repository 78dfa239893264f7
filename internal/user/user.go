// Package user implements the User entity and its persistence contract.
package user

import (
	"context"
	"errors"
	"time"
)

// Role is a user's authorization level. The zero value, RoleInvalid, is never a valid stored role and is guarded at
// the repository boundary rather than trusted implicitly.
type Role int

const (
	RoleInvalid Role = iota
	RoleUser
	RoleAdmin
)

// Sentinel errors for the user package.
var (
	ErrNotFound         = errors.New("user: not found")
	ErrUsernameRequired = errors.New("user: username must not be empty")
	ErrPasswordRequired = errors.New("user: password must not be empty")
)

// User holds the fields read from the database: stable numeric identity, display name, role, avatar URL, password
// hash, and two contact-list-updated-at timestamps.
type User struct {
	ID                uint32
	Username          string
	DisplayName       string
	Role              Role
	AvatarURL         *string
	PasswordHash      string
	FriendsUpdatedAt  time.Time
	GroupsUpdatedAt   time.Time
	CreatedAt         time.Time
}

// CreateParams groups the inputs for self-registration.
type CreateParams struct {
	Username     string
	PasswordHash string
}

// Repository defines the data-access contract for user operations. Deleting a user cascades to owned friendships,
// memberships, and messages.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (uint32, error)
	GetByID(ctx context.Context, id uint32) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdatePasswordHash(ctx context.Context, id uint32, hash string) error
	TouchFriendsUpdatedAt(ctx context.Context, id uint32) error
	TouchGroupsUpdatedAt(ctx context.Context, id uint32) error
	Delete(ctx context.Context, id uint32) error
}

// ValidRole reports whether r is a role that may be stored or assigned.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAdmin
}
