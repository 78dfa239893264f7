package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/wireline-chat/wireline-server/internal/apierrors"
	"github.com/wireline-chat/wireline-server/internal/auth"
	"github.com/wireline-chat/wireline-server/internal/friend"
	"github.com/wireline-chat/wireline-server/internal/httputil"
	"github.com/wireline-chat/wireline-server/internal/session"
)

// FriendHandler serves the friend-list endpoints.
type FriendHandler struct {
	friends  *friend.Service
	sessions session.Registry
	log      zerolog.Logger
}

// NewFriendHandler creates a friend handler.
func NewFriendHandler(friends *friend.Service, sessions session.Registry, logger zerolog.Logger) *FriendHandler {
	return &FriendHandler{friends: friends, sessions: sessions, log: logger}
}

// List handles GET /friend/list.
func (h *FriendHandler) List(c fiber.Ctx) error {
	ids, err := h.friends.List(c.Context(), auth.UserIDFromContext(c))
	if err != nil {
		h.log.Error().Err(err).Msg("list friends failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "an internal error occurred")
	}
	return httputil.Success(c, ids)
}

type friendIDRequest struct {
	ID uint32 `json:"id"`
}

// Add handles POST /friend/add {id}.
func (h *FriendHandler) Add(c fiber.Ctx) error {
	var body friendIDRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "invalid request body")
	}

	userID := auth.UserIDFromContext(c)
	if err := h.friends.Add(c.Context(), userID, body.ID); err != nil {
		return h.mapFriendError(c, err)
	}
	return httputil.Success(c, nil)
}

// Info handles GET /friend/info?id=.
func (h *FriendHandler) Info(c fiber.Ctx) error {
	friendID, err := strconv.ParseUint(c.Query("id"), 10, 32)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "id must be a valid user id")
	}

	info, infoErr := h.friends.Info(c.Context(), auth.UserIDFromContext(c), uint32(friendID))
	if infoErr != nil {
		return h.mapFriendError(c, infoErr)
	}
	return httputil.Success(c, info)
}

type friendStatusRequest struct {
	UserIDs []uint32 `json:"user_ids"`
}

// Status handles POST /friend/status {user_ids}: reports which of the given ids currently hold a live session.
func (h *FriendHandler) Status(c fiber.Ctx) error {
	var body friendStatusRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "invalid request body")
	}

	online := make(map[uint32]bool, len(body.UserIDs))
	for _, id := range body.UserIDs {
		ids, err := h.sessions.IDsOf(c.Context(), id)
		if err != nil {
			h.log.Error().Err(err).Uint32("user_id", id).Msg("session lookup failed")
			return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "an internal error occurred")
		}
		online[id] = len(ids) > 0
	}
	return httputil.Success(c, online)
}

func (h *FriendHandler) mapFriendError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, friend.ErrAlreadyFriends):
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.AlreadyFriends, err.Error())
	case errors.Is(err, friend.ErrNotFriends):
		return httputil.Fail(c, fiber.StatusNotFound, apierrors.UnknownFriend, err.Error())
	default:
		h.log.Error().Err(err).Msg("unhandled friend service error")
		return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "an internal error occurred")
	}
}
