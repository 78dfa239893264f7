package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/rs/zerolog"

	"github.com/wireline-chat/wireline-server/internal/mailbox"
	"github.com/wireline-chat/wireline-server/internal/message"
	"github.com/wireline-chat/wireline-server/internal/session"
)

// GroupLoader resolves a group's member ids, normally internal/group.Service (cache-aside over the Membership
// Cache). The Hub never talks to the cache directly so that cache-aside logic is not duplicated a third time.
type GroupLoader interface {
	Members(ctx context.Context, id uint32) ([]uint32, error)
}

// Notifier is the presence detector as consumed by the Hub: called once per connection-count edge.
type Notifier interface {
	NotifyOnline(ctx context.Context, userID uint32)
	NotifyOffline(ctx context.Context, userID uint32)
}

// Hub is the connection registry and fan-out router. It tracks every live connection locally and, when a Publisher
// is configured, fans pushes out across processes too, so a user or group with connections on more than one process
// still gets delivery everywhere.
type Hub struct {
	mailboxes *mailbox.Store
	sessions  session.Registry
	groups    GroupLoader
	pipeline  *message.Pipeline
	publisher *Publisher
	presence  Notifier

	rateLimitWindow time.Duration
	rateLimitCount  int
	maxConnections  int

	mu      sync.RWMutex
	clients map[string]*Client

	log zerolog.Logger
}

// NewHub creates a gateway hub. publisher and presence may be nil: without a publisher, fan-out is local-process
// only; without a presence notifier, online/offline pushes are skipped.
func NewHub(
	mailboxes *mailbox.Store,
	sessions session.Registry,
	groups GroupLoader,
	pipeline *message.Pipeline,
	publisher *Publisher,
	presence Notifier,
	rateLimitWindow time.Duration,
	rateLimitCount int,
	maxConnections int,
	logger zerolog.Logger,
) *Hub {
	return &Hub{
		mailboxes:       mailboxes,
		sessions:        sessions,
		groups:          groups,
		pipeline:        pipeline,
		publisher:       publisher,
		presence:        presence,
		rateLimitWindow: rateLimitWindow,
		rateLimitCount:  rateLimitCount,
		maxConnections:  maxConnections,
		clients:         make(map[string]*Client),
		log:             logger.With().Str("component", "gateway").Logger(),
	}
}

// Run subscribes to the cross-process push channel and delivers every received frame to this process's local
// connections. It blocks until ctx is cancelled. Callers that run a single process with no Publisher never need this.
func (h *Hub) Run(ctx context.Context) error {
	if h.publisher == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return h.publisher.Subscribe(ctx, func(kind pushKind, id uint32, frame []byte) {
		switch kind {
		case pushKindUser:
			h.deliverLocalToUser(ctx, id, frame)
		case pushKindGroup:
			h.deliverLocalToGroup(ctx, id, frame)
		}
	})
}

// ServeWebSocket runs one already-authenticated connection to completion. userID and sessionID must already be
// resolved from the session_id cookie by the REST layer; there is no in-band Identify handshake.
func (h *Hub) ServeWebSocket(conn *websocket.Conn, userID uint32, sessionID string) {
	client := newClient(h, conn, userID, sessionID, h.log)

	if err := h.register(client); err != nil {
		h.log.Warn().Err(err).Uint32("user_id", userID).Msg("connection refused")
		client.closeWithCode(CloseUnknownError, err.Error())
		return
	}

	go client.writePump()
	client.readPump()
}

// register admits client to the hub and installs its mailbox. A reconnect under the same session id displaces the
// previous connection's mailbox, which is handled by mailbox.Store.Insert itself.
func (h *Hub) register(client *Client) error {
	h.mu.Lock()
	if h.maxConnections > 0 && len(h.clients) >= h.maxConnections {
		h.mu.Unlock()
		return ErrMaxConnections
	}
	h.clients[client.sessionID] = client
	h.mu.Unlock()

	h.mailboxes.Insert(client.sessionID, client.mailbox)
	h.log.Debug().Uint32("user_id", client.userID).Str("session_id", client.sessionID).Int("total", h.ClientCount()).Msg("client registered")
	return nil
}

// unregister removes client from the hub and deletes its session: on any read error, send error, or close frame,
// the reader exits and triggers session removal. If this was the user's last live connection, the presence
// detector emits an OfflineMessage to their friends.
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if current, ok := h.clients[client.sessionID]; ok && current == client {
		delete(h.clients, client.sessionID)
	}
	h.mu.Unlock()

	h.mailboxes.Remove(client.sessionID)

	ctx := context.Background()
	userID, existed, err := h.sessions.Delete(ctx, client.sessionID)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", client.sessionID).Msg("failed to delete session on disconnect")
		return
	}
	if !existed {
		return
	}

	ids, err := h.sessions.IDsOf(ctx, userID)
	if err != nil {
		h.log.Warn().Err(err).Uint32("user_id", userID).Msg("failed to check remaining sessions after disconnect")
		return
	}
	if len(ids) == 0 && h.presence != nil {
		h.presence.NotifyOffline(ctx, userID)
	}

	h.log.Debug().Uint32("user_id", userID).Str("session_id", client.sessionID).Msg("client unregistered")
}

// DeliverToUser implements message.Router and presence.Router: pushes frame to every connection userID currently
// holds, locally and (if a Publisher is configured) on every other process.
func (h *Hub) DeliverToUser(ctx context.Context, userID uint32, frame []byte) {
	h.deliverLocalToUser(ctx, userID, frame)
	if h.publisher != nil {
		h.publisher.PublishToUser(ctx, userID, frame)
	}
}

// DeliverToGroup implements message.Router: pushes frame to every connection of every member of groupID.
func (h *Hub) DeliverToGroup(ctx context.Context, groupID uint32, frame []byte) {
	h.deliverLocalToGroup(ctx, groupID, frame)
	if h.publisher != nil {
		h.publisher.PublishToGroup(ctx, groupID, frame)
	}
}

func (h *Hub) deliverLocalToUser(ctx context.Context, userID uint32, frame []byte) {
	ids, err := h.sessions.IDsOf(ctx, userID)
	if err != nil {
		h.log.Warn().Err(err).Uint32("user_id", userID).Msg("failed to resolve sessions for delivery")
		return
	}
	h.mailboxes.Broadcast(ids, frame)
}

func (h *Hub) deliverLocalToGroup(ctx context.Context, groupID uint32, frame []byte) {
	members, err := h.groups.Members(ctx, groupID)
	if err != nil {
		h.log.Warn().Err(err).Uint32("group_id", groupID).Msg("failed to resolve members for delivery")
		return
	}
	for _, member := range members {
		h.deliverLocalToUser(ctx, member, frame)
	}
}

// Shutdown closes every locally registered connection with a going-away close frame.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		h.mailboxes.Remove(c.sessionID)
		c.closeWithCode(websocket.CloseGoingAway, "server shutting down")
	}
	h.log.Info().Msg("gateway hub shut down")
}

// ClientCount returns the number of connections currently registered on this process.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
