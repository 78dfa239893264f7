package auth

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/wireline-chat/wireline-server/internal/apierrors"
	"github.com/wireline-chat/wireline-server/internal/httputil"
	"github.com/wireline-chat/wireline-server/internal/session"
)

const sessionCookieName = "session_id"

// Locals keys RequireAuth populates. Handlers read them with UserIDFromContext / RoleFromContext rather than
// indexing Locals directly.
const (
	localsUserID = "userID"
	localsRole   = "role"
)

// RequireAuth returns Fiber middleware that resolves the session_id cookie through the session registry and stores
// the owning user id and role in Locals. The request is refused with 401 if the cookie is absent or the registry
// doesn't recognize it.
func RequireAuth(sessions session.Registry) fiber.Handler {
	return func(c fiber.Ctx) error {
		sessionID := c.Cookies(sessionCookieName)
		if sessionID == "" {
			return httputil.Fail(c, fiber.StatusUnauthorized, apierrors.Unauthorized, "missing session cookie")
		}

		userID, err := sessions.LookupUser(c.Context(), sessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return httputil.Fail(c, fiber.StatusUnauthorized, apierrors.Unauthorized, "unknown or expired session")
			}
			return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "session lookup failed")
		}

		role, err := sessions.LookupRole(c.Context(), sessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return httputil.Fail(c, fiber.StatusUnauthorized, apierrors.Unauthorized, "unknown or expired session")
			}
			return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.InternalError, "session lookup failed")
		}

		c.Locals(localsUserID, userID)
		c.Locals(localsRole, role)
		return c.Next()
	}
}

// UserIDFromContext returns the user id RequireAuth resolved for this request. It panics if called on a route not
// behind RequireAuth.
func UserIDFromContext(c fiber.Ctx) uint32 {
	return c.Locals(localsUserID).(uint32)
}

// RoleFromContext returns the role RequireAuth resolved for this request.
func RoleFromContext(c fiber.Ctx) session.Role {
	return c.Locals(localsRole).(session.Role)
}

// RequireAdmin returns Fiber middleware, used after RequireAuth, that rejects any request whose resolved role is not
// session.RoleAdmin.
func RequireAdmin() fiber.Handler {
	return func(c fiber.Ctx) error {
		if RoleFromContext(c) != session.RoleAdmin {
			return httputil.Fail(c, fiber.StatusForbidden, apierrors.Forbidden, "admin role required")
		}
		return c.Next()
	}
}
