// Package presence implements edge-triggered online/offline notification fanned out to a user's friends. There is
// no idle/dnd/invisible state here, only the binary "has at least one live connection" transition the session
// registry's per-user id-set already carries.
package presence

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wireline-chat/wireline-server/internal/wire"
)

// Router is the subset of the fan-out router the detector needs: pushing an already-encoded frame to every live
// connection of a user. Implemented by internal/gateway.Hub.
type Router interface {
	DeliverToUser(ctx context.Context, userID uint32, frame []byte)
}

// FriendLoader resolves a user's friend list, normally internal/friend.Service (cache-aside over the Membership
// Cache). The detector never talks to the cache directly so that cache-aside logic is not duplicated a third time.
type FriendLoader interface {
	List(ctx context.Context, userID uint32) ([]uint32, error)
}

// Detector pushes OnlineMessage/OfflineMessage frames to a user's friends at the first-connection and
// last-connection edges. Callers determine the edge themselves (the id-set was empty before an insert, or is empty
// after a delete) since that requires access to the Session Registry they already hold.
type Detector struct {
	friends FriendLoader
	router  Router
	log     zerolog.Logger
}

// NewDetector creates a presence detector.
func NewDetector(friends FriendLoader, router Router, logger zerolog.Logger) *Detector {
	return &Detector{friends: friends, router: router, log: logger.With().Str("component", "presence").Logger()}
}

// NotifyOnline pushes OnlineMessage{friend_id: userID} to every friend of userID. Call this once, after a Session
// Registry insert that transitioned the user's connection count from zero to one.
func (d *Detector) NotifyOnline(ctx context.Context, userID uint32) {
	frame, err := wire.EncodeOnlinePush(userID)
	if err != nil {
		d.log.Error().Err(err).Uint32("user_id", userID).Msg("failed to encode online push")
		return
	}
	d.broadcast(ctx, userID, frame)
}

// NotifyOffline pushes OfflineMessage{friend_id: userID} to every friend of userID. Call this once, after a Session
// Registry delete that left the user's connection count at zero.
func (d *Detector) NotifyOffline(ctx context.Context, userID uint32) {
	frame, err := wire.EncodeOfflinePush(userID)
	if err != nil {
		d.log.Error().Err(err).Uint32("user_id", userID).Msg("failed to encode offline push")
		return
	}
	d.broadcast(ctx, userID, frame)
}

func (d *Detector) broadcast(ctx context.Context, userID uint32, frame []byte) {
	friends, err := d.friends.List(ctx, userID)
	if err != nil {
		d.log.Warn().Err(err).Uint32("user_id", userID).Msg("failed to load friends for presence broadcast")
		return
	}
	for _, friendID := range friends {
		d.router.DeliverToUser(ctx, friendID, frame)
	}
}
