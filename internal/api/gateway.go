package api

import (
	"errors"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"

	"github.com/wireline-chat/wireline-server/internal/apierrors"
	"github.com/wireline-chat/wireline-server/internal/gateway"
	"github.com/wireline-chat/wireline-server/internal/httputil"
	"github.com/wireline-chat/wireline-server/internal/session"
)

// GatewayHandler serves the duplex connection upgrade endpoint.
type GatewayHandler struct {
	hub      *gateway.Hub
	sessions session.Registry
}

// NewGatewayHandler creates a gateway handler.
func NewGatewayHandler(hub *gateway.Hub, sessions session.Registry) *GatewayHandler {
	return &GatewayHandler{hub: hub, sessions: sessions}
}

// Upgrade handles GET /auth/ws. The session_id cookie is resolved before the upgrade so the Hub never needs an
// in-band handshake; an absent or unknown cookie refuses the upgrade with 401.
func (h *GatewayHandler) Upgrade(c fiber.Ctx) error {
	sessionID := c.Cookies(sessionCookieName)
	if sessionID == "" {
		return httputil.Fail(c, fiber.StatusUnauthorized, apierrors.Unauthorized, "missing session cookie")
	}

	userID, err := h.sessions.LookupUser(c.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return httputil.Fail(c, fiber.StatusUnauthorized, apierrors.Unauthorized, "unknown or expired session")
		}
		return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "session lookup failed")
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.hub.ServeWebSocket(conn.Conn, userID, sessionID)
	})(c)
}
