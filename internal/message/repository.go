package message

import (
	"context"
)

// CreatePrivateParams groups the inputs for persisting a private message.
type CreatePrivateParams struct {
	SenderID   uint32
	ReceiverID uint32
	Type       Type
	Body       string
}

// CreateGroupParams groups the inputs for persisting a group message.
type CreateGroupParams struct {
	SenderID uint32
	GroupID  uint32
	Type     Type
	Body     string
}

// Repository defines the data-access contract for private and group messages. Every write returns the
// store-assigned (id, timestamp) pair so the caller can build a push frame without a second round trip, satisfying
// the persist-before-push invariant.
type Repository interface {
	CreatePrivate(ctx context.Context, params CreatePrivateParams) (*PrivateMessage, error)
	CreateGroup(ctx context.Context, params CreateGroupParams) (*GroupMessage, error)

	GetPrivateByID(ctx context.Context, id uint64) (*PrivateMessage, error)
	GetGroupByID(ctx context.Context, id uint64) (*GroupMessage, error)

	// ListPrivate returns the messages exchanged between userA and userB, ordered by timestamp ascending, skipping
	// offset*PageSize rows and returning at most PageSize.
	ListPrivate(ctx context.Context, userA, userB uint32, offset int) ([]PrivateMessage, error)
	// LatestPrivate returns the single most recent message between userA and userB, or ErrNotFound if none exists.
	LatestPrivate(ctx context.Context, userA, userB uint32) (*PrivateMessage, error)
	// AfterPrivate returns every message between userA and userB with a timestamp strictly greater than afterMS,
	// ordered ascending, capped at PageSize.
	AfterPrivate(ctx context.Context, userA, userB uint32, afterMS int64) ([]PrivateMessage, error)

	// ListGroup mirrors ListPrivate for a group's message history.
	ListGroup(ctx context.Context, groupID uint32, offset int) ([]GroupMessage, error)
	// LatestGroup mirrors LatestPrivate for a group.
	LatestGroup(ctx context.Context, groupID uint32) (*GroupMessage, error)
	// AfterGroup mirrors AfterPrivate for a group.
	AfterGroup(ctx context.Context, groupID uint32, afterMS int64) ([]GroupMessage, error)

	DeletePrivate(ctx context.Context, id uint64) error
	DeleteGroup(ctx context.Context, id uint64) error
}
