package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/wireline-chat/wireline-server/internal/apierrors"
	"github.com/wireline-chat/wireline-server/internal/auth"
	"github.com/wireline-chat/wireline-server/internal/httputil"
	"github.com/wireline-chat/wireline-server/internal/session"
)

const sessionCookieName = "session_id"

// AuthHandler serves account registration, login/logout, and password management.
type AuthHandler struct {
	auth *auth.Service
	cfg  cookieConfig
	log  zerolog.Logger
}

// cookieConfig is the subset of config.Config AuthHandler needs to set the session cookie.
type cookieConfig interface {
	IsDevelopment() bool
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(svc *auth.Service, cfg cookieConfig, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, cfg: cfg, log: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginRequest mirrors the wire contract's field name exactly: login is keyed on the numeric user id returned by
// Register, not the username.
type loginRequest struct {
	UserID   uint32 `json:"userid"`
	Password string `json:"password"`
}

type passwordRequest struct {
	UserID      uint32 `json:"user_id"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c fiber.Ctx) error {
	var body registerRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "invalid request body")
	}

	id, err := h.auth.Register(c.Context(), body.Username, body.Password)
	if err != nil {
		return mapAuthError(c, err)
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, id)
}

// Login handles POST /auth/login. On success it sets the session_id cookie other endpoints (and the /auth/ws
// upgrade) authenticate with.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body loginRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "invalid request body")
	}

	sessionID, _, err := h.auth.Login(c.Context(), body.UserID, body.Password, c.IP())
	if err != nil {
		return mapAuthError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HTTPOnly: true,
		Secure:   !h.cfg.IsDevelopment(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return httputil.Success(c, sessionID)
}

// Logout handles POST /auth/logout. It clears the session cookie regardless of whether the registry recognized it,
// since the client's intent (stop using this cookie) is satisfied either way.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	sessionID := c.Cookies(sessionCookieName)

	clearCookie := &fiber.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Secure:   !h.cfg.IsDevelopment(),
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   -1,
	}

	if sessionID == "" {
		c.Cookie(clearCookie)
		return httputil.Fail(c, fiber.StatusUnauthorized, apierrors.Unauthorized, "missing session cookie")
	}

	if err := h.auth.Logout(c.Context(), sessionID); err != nil {
		c.Cookie(clearCookie)
		return mapAuthError(c, err)
	}

	c.Cookie(clearCookie)
	return httputil.Success(c, nil)
}

// ChangePassword handles POST /auth/password. A user may only change their own password unless they hold the admin
// role.
func (h *AuthHandler) ChangePassword(c fiber.Ctx) error {
	var body passwordRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidBody, "invalid request body")
	}

	requester := auth.UserIDFromContext(c)
	if requester != body.UserID && auth.RoleFromContext(c) != session.RoleAdmin {
		return httputil.Fail(c, fiber.StatusForbidden, apierrors.Forbidden, "cannot change another user's password")
	}

	if err := h.auth.ChangePassword(c.Context(), body.UserID, body.OldPassword, body.NewPassword); err != nil {
		return mapAuthError(c, err)
	}

	return httputil.Success(c, nil)
}

// CheckSession handles GET /auth/check_session.
func (h *AuthHandler) CheckSession(c fiber.Ctx) error {
	return httputil.Success(c, fiber.Map{"role": roleName(auth.RoleFromContext(c))})
}

// DeleteSelf handles POST /auth/delete: the authenticated user removes their own account.
func (h *AuthHandler) DeleteSelf(c fiber.Ctx) error {
	if err := h.auth.DeleteSelf(c.Context(), auth.UserIDFromContext(c)); err != nil {
		h.log.Error().Err(err).Msg("delete self failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "failed to delete account")
	}
	return httputil.Success(c, nil)
}

func roleName(r session.Role) string {
	if r == session.RoleAdmin {
		return "admin"
	}
	return "user"
}

// mapAuthError converts auth-layer sentinel errors to the appropriate HTTP response.
func mapAuthError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrUsernameLength), errors.Is(err, auth.ErrUsernameInvalidChars):
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidUsername, err.Error())
	case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordTooLong):
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.InvalidPassword, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		return httputil.Fail(c, fiber.StatusUnauthorized, apierrors.InvalidCredentials, err.Error())
	case errors.Is(err, auth.ErrUnknownSession):
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.UnknownSession, err.Error())
	default:
		return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "an internal error occurred")
	}
}
