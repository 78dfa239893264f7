package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/wireline-chat/wireline-server/internal/apierrors"
	"github.com/wireline-chat/wireline-server/internal/auth"
	"github.com/wireline-chat/wireline-server/internal/group"
	"github.com/wireline-chat/wireline-server/internal/httputil"
	"github.com/wireline-chat/wireline-server/internal/message"
)

// MessageHandler serves the read side of private and group message history. Sending happens only over the duplex
// gateway connection; the REST surface is GET-only pagination.
type MessageHandler struct {
	messages message.Repository
	groups   *group.Service
	log      zerolog.Logger
}

// NewMessageHandler creates a message handler.
func NewMessageHandler(messages message.Repository, groups *group.Service, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, groups: groups, log: logger}
}

// ListUser handles GET /message/user?id=&offset=.
func (h *MessageHandler) ListUser(c fiber.Ctx) error {
	peer, err := parseUserIDQuery(c, "id")
	if err != nil {
		return err
	}
	offset := message.ClampOffset(queryInt(c, "offset"))

	msgs, listErr := h.messages.ListPrivate(c.Context(), auth.UserIDFromContext(c), peer, offset)
	if listErr != nil {
		return h.mapMessageError(c, listErr)
	}
	return httputil.Success(c, msgs)
}

// LatestUser handles GET /message/user/latest-timestamp?id=.
func (h *MessageHandler) LatestUser(c fiber.Ctx) error {
	peer, err := parseUserIDQuery(c, "id")
	if err != nil {
		return err
	}

	msg, latestErr := h.messages.LatestPrivate(c.Context(), auth.UserIDFromContext(c), peer)
	if latestErr != nil {
		return h.mapMessageError(c, latestErr)
	}
	return httputil.Success(c, msg)
}

// AfterUser handles GET /message/user/after-timestamp?id=&timestamp=.
func (h *MessageHandler) AfterUser(c fiber.Ctx) error {
	peer, err := parseUserIDQuery(c, "id")
	if err != nil {
		return err
	}
	after := queryInt64(c, "timestamp")

	msgs, afterErr := h.messages.AfterPrivate(c.Context(), auth.UserIDFromContext(c), peer, after)
	if afterErr != nil {
		return h.mapMessageError(c, afterErr)
	}
	return httputil.Success(c, msgs)
}

// ListGroup handles GET /message/group?id=&offset=. The caller must be a member of the group.
func (h *MessageHandler) ListGroup(c fiber.Ctx) error {
	groupID, err := h.requireMember(c)
	if err != nil {
		return err
	}
	offset := message.ClampOffset(queryInt(c, "offset"))

	msgs, listErr := h.messages.ListGroup(c.Context(), groupID, offset)
	if listErr != nil {
		return h.mapMessageError(c, listErr)
	}
	return httputil.Success(c, msgs)
}

// LatestGroup handles GET /message/group/latest-timestamp?id=.
func (h *MessageHandler) LatestGroup(c fiber.Ctx) error {
	groupID, err := h.requireMember(c)
	if err != nil {
		return err
	}

	msg, latestErr := h.messages.LatestGroup(c.Context(), groupID)
	if latestErr != nil {
		return h.mapMessageError(c, latestErr)
	}
	return httputil.Success(c, msg)
}

// AfterGroup handles GET /message/group/after-timestamp?id=&timestamp=.
func (h *MessageHandler) AfterGroup(c fiber.Ctx) error {
	groupID, err := h.requireMember(c)
	if err != nil {
		return err
	}
	after := queryInt64(c, "timestamp")

	msgs, afterErr := h.messages.AfterGroup(c.Context(), groupID, after)
	if afterErr != nil {
		return h.mapMessageError(c, afterErr)
	}
	return httputil.Success(c, msgs)
}

// requireMember parses the id query parameter and confirms the authenticated user belongs to that group, returning
// the parsed id on success or a response already written to c on failure.
func (h *MessageHandler) requireMember(c fiber.Ctx) (uint32, error) {
	groupID, err := strconv.ParseUint(c.Query("id"), 10, 32)
	if err != nil {
		return 0, httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "id must be a valid group id")
	}

	members, membersErr := h.groups.Members(c.Context(), uint32(groupID))
	if membersErr != nil {
		return 0, h.mapMessageError(c, membersErr)
	}
	userID := auth.UserIDFromContext(c)
	for _, m := range members {
		if m == userID {
			return uint32(groupID), nil
		}
	}
	return 0, httputil.Fail(c, fiber.StatusForbidden, apierrors.NotMember, "not a member of this group")
}

func parseUserIDQuery(c fiber.Ctx, name string) (uint32, error) {
	id, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		return 0, httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "id must be a valid user id")
	}
	return uint32(id), nil
}

func queryInt(c fiber.Ctx, name string) int {
	n, _ := strconv.Atoi(c.Query(name))
	return n
}

func queryInt64(c fiber.Ctx, name string) int64 {
	n, _ := strconv.ParseInt(c.Query(name), 10, 64)
	return n
}

func (h *MessageHandler) mapMessageError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, message.ErrNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, apierrors.UnknownMessage, err.Error())
	case errors.Is(err, group.ErrNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, apierrors.UnknownGroup, err.Error())
	default:
		h.log.Error().Err(err).Msg("unhandled message service error")
		return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "an internal error occurred")
	}
}
