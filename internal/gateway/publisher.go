package gateway

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// eventsChannel is the Valkey pub/sub channel a Hub uses to fan a push frame out to every other server process, so
// that a user or group with connections spread across processes still gets delivery on all of them. Fan-out makes
// no single-process assumption.
const eventsChannel = "wireline.gateway.pushes"

// pushKind distinguishes a user-targeted push from a group-targeted one in a published envelope.
type pushKind string

const (
	pushKindUser  pushKind = "user"
	pushKindGroup pushKind = "group"
)

// pushEnvelope is the JSON structure published to eventsChannel. Frame carries the raw, already-encoded push frame
// (binary codec or JSON presence frame); encoding/json marshals a []byte field as base64 automatically.
type pushEnvelope struct {
	Kind  pushKind `json:"kind"`
	ID    uint32   `json:"id"`
	Frame []byte   `json:"frame"`
}

// Publisher broadcasts already-encoded push frames to every process subscribed to eventsChannel.
type Publisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewPublisher creates a cross-process push publisher.
func NewPublisher(rdb *redis.Client, logger zerolog.Logger) *Publisher {
	return &Publisher{rdb: rdb, log: logger.With().Str("component", "gateway_publisher").Logger()}
}

func (p *Publisher) publish(ctx context.Context, env pushEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		p.log.Error().Err(err).Msg("marshal push envelope")
		return
	}
	if err := p.rdb.Publish(ctx, eventsChannel, data).Err(); err != nil {
		p.log.Error().Err(err).Msg("publish push envelope")
	}
}

// PublishToUser fans frame out to every other process for delivery to userID's local connections.
func (p *Publisher) PublishToUser(ctx context.Context, userID uint32, frame []byte) {
	p.publish(ctx, pushEnvelope{Kind: pushKindUser, ID: userID, Frame: frame})
}

// PublishToGroup fans frame out to every other process for delivery to groupID's local connections.
func (p *Publisher) PublishToGroup(ctx context.Context, groupID uint32, frame []byte) {
	p.publish(ctx, pushEnvelope{Kind: pushKindGroup, ID: groupID, Frame: frame})
}

// Subscribe listens on eventsChannel and invokes deliverLocal for every envelope received, until ctx is cancelled.
// Envelopes this process itself published are delivered again here too (Valkey pub/sub has no self-filtering); this
// is harmless, since local delivery just re-enqueues the same frame onto the same mailboxes it already reached via
// the direct local delivery path in Hub.DeliverToUser/DeliverToGroup.
func (p *Publisher) Subscribe(ctx context.Context, deliverLocal func(pushKind, uint32, []byte)) error {
	sub := p.rdb.Subscribe(ctx, eventsChannel)
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
			var env pushEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				p.log.Warn().Err(err).Msg("invalid push envelope")
				continue
			}
			deliverLocal(env.Kind, env.ID, env.Frame)
		}
	}
}
