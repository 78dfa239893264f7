package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/wireline-chat/wireline-server/internal/apierrors"
	"github.com/wireline-chat/wireline-server/internal/httputil"
	"github.com/wireline-chat/wireline-server/internal/message"
	"github.com/wireline-chat/wireline-server/internal/session"
)

// ManagerHandler serves the admin-only surface under /manager, gated by auth.RequireAdmin.
type ManagerHandler struct {
	messages message.Repository
	sessions session.Registry
	log      zerolog.Logger
}

// NewManagerHandler creates a manager handler.
func NewManagerHandler(messages message.Repository, sessions session.Registry, logger zerolog.Logger) *ManagerHandler {
	return &ManagerHandler{messages: messages, sessions: sessions, log: logger}
}

// GetOnlineTree handles GET /manager/online/tree, returning a snapshot of every user currently holding a session
// and the sessions they hold, for administrative introspection.
func (h *ManagerHandler) GetOnlineTree(c fiber.Ctx) error {
	tree, err := h.sessions.OnlineTree(c.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("online tree snapshot failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "an internal error occurred")
	}
	return httputil.Success(c, tree)
}

// GetPrivateMessage handles GET /manager/message/privite?message_id=, letting an admin confirm whether a private
// message still exists (e.g. to verify a prior delete took effect).
func (h *ManagerHandler) GetPrivateMessage(c fiber.Ctx) error {
	id, err := queryUint64(c, "message_id")
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "message_id must be a valid message id")
	}

	msg, getErr := h.messages.GetPrivateByID(c.Context(), id)
	if getErr != nil {
		return h.mapMessageError(c, getErr)
	}
	return httputil.Success(c, msg)
}

// GetGroupMessage handles GET /manager/message/group?message_id=, mirroring GetPrivateMessage for group history.
func (h *ManagerHandler) GetGroupMessage(c fiber.Ctx) error {
	id, err := queryUint64(c, "message_id")
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "message_id must be a valid message id")
	}

	msg, getErr := h.messages.GetGroupByID(c.Context(), id)
	if getErr != nil {
		return h.mapMessageError(c, getErr)
	}
	return httputil.Success(c, msg)
}

// DeletePrivateMessage handles DELETE /manager/message/privite?message_id=.
func (h *ManagerHandler) DeletePrivateMessage(c fiber.Ctx) error {
	id, err := queryUint64(c, "message_id")
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "message_id must be a valid message id")
	}

	if delErr := h.messages.DeletePrivate(c.Context(), id); delErr != nil {
		return h.mapMessageError(c, delErr)
	}
	return httputil.Success(c, nil)
}

// DeleteGroupMessage handles DELETE /manager/message/group?message_id=, mirroring DeletePrivateMessage for group
// history.
func (h *ManagerHandler) DeleteGroupMessage(c fiber.Ctx) error {
	id, err := queryUint64(c, "message_id")
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "message_id must be a valid message id")
	}

	if delErr := h.messages.DeleteGroup(c.Context(), id); delErr != nil {
		return h.mapMessageError(c, delErr)
	}
	return httputil.Success(c, nil)
}

func (h *ManagerHandler) mapMessageError(c fiber.Ctx, err error) error {
	if errors.Is(err, message.ErrNotFound) {
		return httputil.Fail(c, fiber.StatusNotFound, apierrors.UnknownMessage, err.Error())
	}
	h.log.Error().Err(err).Msg("unhandled manager message error")
	return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "an internal error occurred")
}

func queryUint64(c fiber.Ctx, name string) (uint64, error) {
	return strconv.ParseUint(c.Query(name), 10, 64)
}
