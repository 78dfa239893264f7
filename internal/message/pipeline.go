package message

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wireline-chat/wireline-server/internal/session"
	"github.com/wireline-chat/wireline-server/internal/wire"
)

// Router is the subset of the fan-out router the pipeline needs: delivering an already-encoded push frame to every
// live connection of a user or group. Implemented by internal/gateway.Hub.
type Router interface {
	DeliverToUser(ctx context.Context, userID uint32, frame []byte)
	DeliverToGroup(ctx context.Context, groupID uint32, frame []byte)
}

// Pipeline resolves the sending session to a user, persists the message, then pushes it. If persistence fails the
// operation is logged and no push is sent; there is no retry.
type Pipeline struct {
	repo     Repository
	sessions session.Registry
	router   Router
	log      zerolog.Logger
}

// NewPipeline creates a message pipeline.
func NewPipeline(repo Repository, sessions session.Registry, router Router, logger zerolog.Logger) *Pipeline {
	return &Pipeline{repo: repo, sessions: sessions, router: router, log: logger.With().Str("component", "message_pipeline").Logger()}
}

// SendPrivate validates and persists a private message from senderSessionID to receiver, then delivers it to the
// receiver's connections and back to the sender's own connections (multi-device echo).
func (p *Pipeline) SendPrivate(ctx context.Context, senderSessionID string, receiver uint32, rawBody string) (*PrivateMessage, error) {
	senderID, err := p.sessions.LookupUser(ctx, senderSessionID)
	if err != nil {
		p.log.Warn().Err(err).Str("session_id", senderSessionID).Msg("send rejected: unknown session")
		return nil, err
	}

	body, err := ValidateBody(rawBody)
	if err != nil {
		return nil, err
	}

	msg, err := p.repo.CreatePrivate(ctx, CreatePrivateParams{SenderID: senderID, ReceiverID: receiver, Type: TypeText, Body: body})
	if err != nil {
		p.log.Error().Err(err).Uint32("sender", senderID).Uint32("receiver", receiver).Msg("persist private message failed, push suppressed")
		return nil, fmt.Errorf("persist private message: %w", err)
	}

	frame := wire.EncodeSendMessage(wire.SendMessage{
		MessageID: msg.ID, Sender: msg.SenderID, Receiver: msg.ReceiverID, TimestampMS: msg.TimestampMS, Body: msg.Body,
	})
	p.router.DeliverToUser(ctx, receiver, frame)
	p.router.DeliverToUser(ctx, senderID, frame)
	return msg, nil
}

// SendGroup validates and persists a group message from senderSessionID to group, then delivers it to every member
// (the sender's own echo arrives because the sender is a member).
func (p *Pipeline) SendGroup(ctx context.Context, senderSessionID string, group uint32, rawBody string) (*GroupMessage, error) {
	senderID, err := p.sessions.LookupUser(ctx, senderSessionID)
	if err != nil {
		p.log.Warn().Err(err).Str("session_id", senderSessionID).Msg("send rejected: unknown session")
		return nil, err
	}

	body, err := ValidateBody(rawBody)
	if err != nil {
		return nil, err
	}

	msg, err := p.repo.CreateGroup(ctx, CreateGroupParams{SenderID: senderID, GroupID: group, Type: TypeText, Body: body})
	if err != nil {
		p.log.Error().Err(err).Uint32("sender", senderID).Uint32("group_id", group).Msg("persist group message failed, push suppressed")
		return nil, fmt.Errorf("persist group message: %w", err)
	}

	frame := wire.EncodeSendGroupMessage(wire.SendGroupMessage{
		MessageID: msg.ID, Sender: msg.SenderID, GroupID: msg.GroupID, TimestampMS: msg.TimestampMS, Body: msg.Body,
	})
	p.router.DeliverToGroup(ctx, group, frame)
	return msg, nil
}
