package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/wireline-chat/wireline-server/internal/session"
)

func newTestApp(t *testing.T, admin bool) (*fiber.App, session.Registry) {
	t.Helper()
	sessions := session.NewMemoryRegistry(0)
	app := fiber.New()
	app.Use(RequireAuth(sessions))
	if admin {
		app.Use(RequireAdmin())
	}
	app.Get("/test", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": UserIDFromContext(c)})
	})
	return app, sessions
}

func doGetWithCookie(t *testing.T, app *fiber.App, cookie string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cookie})
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	return resp
}

func TestRequireAuthMissingCookie(t *testing.T) {
	t.Parallel()
	app, _ := newTestApp(t, false)

	resp := doGetWithCookie(t, app, "")
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestRequireAuthUnknownSession(t *testing.T) {
	t.Parallel()
	app, _ := newTestApp(t, false)

	resp := doGetWithCookie(t, app, "not-a-real-session")
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidSessionPopulatesLocals(t *testing.T) {
	t.Parallel()
	app, sessions := newTestApp(t, false)

	ctx := context.Background()
	if err := sessions.Insert(ctx, 42, "session-abc", "127.0.0.1", session.RoleUser); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	resp := doGetWithCookie(t, app, "session-abc")
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestRequireAdminRejectsNonAdmin(t *testing.T) {
	t.Parallel()
	app, sessions := newTestApp(t, true)

	ctx := context.Background()
	if err := sessions.Insert(ctx, 7, "session-user", "127.0.0.1", session.RoleUser); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	resp := doGetWithCookie(t, app, "session-user")
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	t.Parallel()
	app, sessions := newTestApp(t, true)

	ctx := context.Background()
	if err := sessions.Insert(ctx, 8, "session-admin", "127.0.0.1", session.RoleAdmin); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	resp := doGetWithCookie(t, app, "session-admin")
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
