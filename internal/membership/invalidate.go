package membership

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// InvalidateChannel is the Valkey pub/sub channel used to fan invalidations out to every server process sharing a
// local front cache over a RedisCache.
const InvalidateChannel = "wireline.membership.invalidate"

// invalidationMessage names exactly one of GroupID or UserID; the other is zero.
type invalidationMessage struct {
	GroupID uint32 `json:"group_id,omitempty"`
	UserID  uint32 `json:"user_id,omitempty"`
}

// Publisher broadcasts invalidation events to every process watching InvalidateChannel.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a membership-cache invalidation publisher.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) publish(ctx context.Context, msg invalidationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	if err := p.rdb.Publish(ctx, InvalidateChannel, data).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// InvalidateGroup broadcasts a group-members invalidation.
func (p *Publisher) InvalidateGroup(ctx context.Context, groupID uint32) error {
	return p.publish(ctx, invalidationMessage{GroupID: groupID})
}

// InvalidateUser broadcasts a user-friends invalidation.
func (p *Publisher) InvalidateUser(ctx context.Context, userID uint32) error {
	return p.publish(ctx, invalidationMessage{UserID: userID})
}

// Subscriber applies invalidations received over InvalidateChannel to a local Cache, keeping every process's cache
// consistent after a mutation on any one of them.
type Subscriber struct {
	cache Cache
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewSubscriber creates an invalidation subscriber that applies incoming messages to cache.
func NewSubscriber(cache Cache, rdb *redis.Client, logger zerolog.Logger) *Subscriber {
	return &Subscriber{cache: cache, rdb: rdb, log: logger.With().Str("component", "membership").Logger()}
}

// Run subscribes to InvalidateChannel and applies messages to the local cache until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.rdb.Subscribe(ctx, InvalidateChannel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, msg.Payload)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, payload string) {
	var msg invalidationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		s.log.Warn().Err(err).Msg("invalid invalidation message")
		return
	}
	if msg.GroupID != 0 {
		if err := s.cache.InvalidateGroup(ctx, msg.GroupID); err != nil {
			s.log.Warn().Err(err).Uint32("group_id", msg.GroupID).Msg("failed to apply group invalidation")
		}
	}
	if msg.UserID != 0 {
		if err := s.cache.InvalidateUser(ctx, msg.UserID); err != nil {
			s.log.Warn().Err(err).Uint32("user_id", msg.UserID).Msg("failed to apply user invalidation")
		}
	}
}
