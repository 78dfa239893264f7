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
)

// GroupHandler serves the multi-member group endpoints.
type GroupHandler struct {
	groups *group.Service
	log    zerolog.Logger
}

// NewGroupHandler creates a group handler.
func NewGroupHandler(groups *group.Service, logger zerolog.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, log: logger}
}

// List handles GET /group/list.
func (h *GroupHandler) List(c fiber.Ctx) error {
	ids, err := h.groups.ListForUser(c.Context(), auth.UserIDFromContext(c))
	if err != nil {
		h.log.Error().Err(err).Msg("list groups failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "an internal error occurred")
	}
	return httputil.Success(c, ids)
}

// Info handles GET /group/info?id=.
func (h *GroupHandler) Info(c fiber.Ctx) error {
	id, err := parseGroupID(c)
	if err != nil {
		return err
	}

	g, getErr := h.groups.Get(c.Context(), id)
	if getErr != nil {
		return h.mapGroupError(c, getErr)
	}
	return httputil.Success(c, g)
}

// Members handles GET /group/members?id=.
func (h *GroupHandler) Members(c fiber.Ctx) error {
	id, err := parseGroupID(c)
	if err != nil {
		return err
	}

	members, membersErr := h.groups.Members(c.Context(), id)
	if membersErr != nil {
		return h.mapGroupError(c, membersErr)
	}
	return httputil.Success(c, members)
}

type createGroupRequest struct {
	GroupName string   `json:"group_name"`
	Members   []uint32 `json:"members"`
}

// New handles POST /group/new {group_name, members}. The authenticated user becomes the creator and first member;
// the members list names additional users to add.
func (h *GroupHandler) New(c fiber.Ctx) error {
	var body createGroupRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "invalid request body")
	}
	if body.GroupName == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationError, "group_name must not be empty")
	}

	creatorID := auth.UserIDFromContext(c)
	g, err := h.groups.Create(c.Context(), group.CreateParams{Title: body.GroupName, CreatorID: creatorID})
	if err != nil {
		return h.mapGroupError(c, err)
	}

	for _, memberID := range body.Members {
		if memberID == creatorID {
			continue
		}
		if err := h.groups.Join(c.Context(), g.ID, memberID); err != nil && !errors.Is(err, group.ErrAlreadyMember) {
			return h.mapGroupError(c, err)
		}
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, g)
}

type groupIDRequest struct {
	ID uint32 `json:"id"`
}

// Join handles POST /group/join {id}.
func (h *GroupHandler) Join(c fiber.Ctx) error {
	var body groupIDRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "invalid request body")
	}
	if err := h.groups.Join(c.Context(), body.ID, auth.UserIDFromContext(c)); err != nil {
		return h.mapGroupError(c, err)
	}
	return httputil.Success(c, nil)
}

// Leave handles POST /group/leave {id}.
func (h *GroupHandler) Leave(c fiber.Ctx) error {
	var body groupIDRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "invalid request body")
	}
	if err := h.groups.Leave(c.Context(), body.ID, auth.UserIDFromContext(c)); err != nil {
		return h.mapGroupError(c, err)
	}
	return httputil.Success(c, nil)
}

func parseGroupID(c fiber.Ctx) (uint32, error) {
	id, err := strconv.ParseUint(c.Query("id"), 10, 32)
	if err != nil {
		return 0, httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "id must be a valid group id")
	}
	return uint32(id), nil
}

func (h *GroupHandler) mapGroupError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, group.ErrNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, apierrors.UnknownGroup, err.Error())
	case errors.Is(err, group.ErrAlreadyMember):
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.AlreadyMember, err.Error())
	case errors.Is(err, group.ErrNotMember):
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.NotMember, err.Error())
	default:
		h.log.Error().Err(err).Msg("unhandled group service error")
		return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "an internal error occurred")
	}
}
