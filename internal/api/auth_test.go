package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/wireline-chat/wireline-server/internal/auth"
	"github.com/wireline-chat/wireline-server/internal/config"
	"github.com/wireline-chat/wireline-server/internal/session"
	"github.com/wireline-chat/wireline-server/internal/user"
)

// testTimeout extends the default app.Test() deadline so that Argon2 hashing under the race detector does not
// trigger a spurious i/o timeout.
var testTimeout = fiber.TestConfig{Timeout: 30 * time.Second}

// fakeUserRepo implements user.Repository in memory for handler tests.
type fakeUserRepo struct {
	byID   map[uint32]*user.User
	nextID uint32
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[uint32]*user.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, params user.CreateParams) (uint32, error) {
	r.nextID++
	r.byID[r.nextID] = &user.User{ID: r.nextID, Username: params.Username, PasswordHash: params.PasswordHash, Role: user.RoleUser}
	return r.nextID, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uint32) (*user.User, error) {
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, user.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*user.User, error) {
	for _, u := range r.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *fakeUserRepo) UpdatePasswordHash(_ context.Context, id uint32, hash string) error {
	u, ok := r.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *fakeUserRepo) TouchFriendsUpdatedAt(context.Context, uint32) error { return nil }
func (r *fakeUserRepo) TouchGroupsUpdatedAt(context.Context, uint32) error  { return nil }

func (r *fakeUserRepo) Delete(_ context.Context, id uint32) error {
	if _, ok := r.byID[id]; !ok {
		return user.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func testAuthConfig() *config.Config {
	return &config.Config{
		ServerEnv:         "development",
		Argon2Memory:      65536,
		Argon2Iterations:  1,
		Argon2Parallelism: 1,
		Argon2SaltLength:  16,
		Argon2KeyLength:   32,
	}
}

// testAuthApp wires a fresh AuthHandler over an in-memory repository and session registry, with RequireAuth applied
// to the routes that need it.
func testAuthApp(t *testing.T) (*fiber.App, *AuthHandler, *fakeUserRepo, session.Registry) {
	t.Helper()

	repo := newFakeUserRepo()
	sessions := session.NewMemoryRegistry(0)
	cfg := testAuthConfig()
	svc, err := auth.NewService(repo, sessions, nil, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	h := NewAuthHandler(svc, cfg, zerolog.Nop())

	app := fiber.New()
	app.Post("/auth/register", h.Register)
	app.Post("/auth/login", h.Login)
	app.Post("/auth/logout", h.Logout)
	app.Post("/auth/password", auth.RequireAuth(sessions), h.ChangePassword)
	app.Get("/auth/check_session", auth.RequireAuth(sessions), h.CheckSession)
	app.Post("/auth/delete", auth.RequireAuth(sessions), h.DeleteSelf)

	return app, h, repo, sessions
}

func jsonReq(method, path string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func doReq(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, testTimeout)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		t.Fatalf("decoding JSON: %v\nraw: %s", err, b)
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func TestRegister_Success(t *testing.T) {
	t.Parallel()
	app, _, _, _ := testAuthApp(t)

	resp := doReq(t, app, jsonReq(http.MethodPost, "/auth/register", registerRequest{Username: "alice", Password: "correct horse battery"}))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var env envelope
	readBody(t, resp, &env)
	if !env.Status {
		t.Errorf("status = %v, want true", env.Status)
	}
	var id uint32
	if err := json.Unmarshal(env.Data, &id); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if id == 0 {
		t.Error("returned id is zero")
	}
}

func TestRegister_InvalidUsername(t *testing.T) {
	t.Parallel()
	app, _, _, _ := testAuthApp(t)

	resp := doReq(t, app, jsonReq(http.MethodPost, "/auth/register", registerRequest{Username: "a", Password: "validpassword"}))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestLogin_SetsSessionCookieKeyedByID(t *testing.T) {
	t.Parallel()
	app, _, repo, _ := testAuthApp(t)

	id, err := repo.Create(context.Background(), user.CreateParams{Username: "bob", PasswordHash: mustHash(t, "hunter2hunter2")})
	if err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	resp := doReq(t, app, jsonReq(http.MethodPost, "/auth/login", loginRequest{UserID: id, Password: "hunter2hunter2"}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("session_id cookie not set")
	}
	if sessionCookie.Value == "" {
		t.Error("session_id cookie value is empty")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	t.Parallel()
	app, _, repo, _ := testAuthApp(t)

	id, _ := repo.Create(context.Background(), user.CreateParams{Username: "carol", PasswordHash: mustHash(t, "the-right-password")})

	resp := doReq(t, app, jsonReq(http.MethodPost, "/auth/login", loginRequest{UserID: id, Password: "wrong"}))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestLogin_UnknownUserID(t *testing.T) {
	t.Parallel()
	app, _, _, _ := testAuthApp(t)

	resp := doReq(t, app, jsonReq(http.MethodPost, "/auth/login", loginRequest{UserID: 999999, Password: "whatever"}))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestLogout_ClearsCookieAndInvalidatesSession(t *testing.T) {
	t.Parallel()
	app, _, _, sessions := testAuthApp(t)

	registerResp := doReq(t, app, jsonReq(http.MethodPost, "/auth/register", registerRequest{Username: "dave", Password: "a-good-password"}))
	var env envelope
	readBody(t, registerResp, &env)
	var id uint32
	_ = json.Unmarshal(env.Data, &id)

	loginResp := doReq(t, app, jsonReq(http.MethodPost, "/auth/login", loginRequest{UserID: id, Password: "a-good-password"}))
	sessionID := cookieValue(t, loginResp, sessionCookieName)

	logoutReq := jsonReq(http.MethodPost, "/auth/logout", nil)
	logoutReq.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sessionID})
	logoutResp := doReq(t, app, logoutReq)
	if logoutResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", logoutResp.StatusCode, http.StatusOK)
	}

	var cleared *http.Cookie
	for _, c := range logoutResp.Cookies() {
		if c.Name == sessionCookieName {
			cleared = c
		}
	}
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Error("session cookie was not cleared")
	}

	if _, err := sessions.LookupUser(context.Background(), sessionID); err == nil {
		t.Error("session still resolvable after logout")
	}
}

func TestLogout_MissingCookie(t *testing.T) {
	t.Parallel()
	app, _, _, _ := testAuthApp(t)

	resp := doReq(t, app, jsonReq(http.MethodPost, "/auth/logout", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestChangePassword_Self(t *testing.T) {
	t.Parallel()
	app, _, repo, _ := testAuthApp(t)

	id, _ := repo.Create(context.Background(), user.CreateParams{Username: "erin", PasswordHash: mustHash(t, "original-password")})
	loginResp := doReq(t, app, jsonReq(http.MethodPost, "/auth/login", loginRequest{UserID: id, Password: "original-password"}))
	sessionID := cookieValue(t, loginResp, sessionCookieName)

	req := jsonReq(http.MethodPost, "/auth/password", passwordRequest{UserID: id, OldPassword: "original-password", NewPassword: "new-password-123"})
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sessionID})
	resp := doReq(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestChangePassword_OtherUserForbidden(t *testing.T) {
	t.Parallel()
	app, _, repo, _ := testAuthApp(t)

	self, _ := repo.Create(context.Background(), user.CreateParams{Username: "frank", PasswordHash: mustHash(t, "my-own-password")})
	other, _ := repo.Create(context.Background(), user.CreateParams{Username: "grace", PasswordHash: mustHash(t, "her-password")})

	loginResp := doReq(t, app, jsonReq(http.MethodPost, "/auth/login", loginRequest{UserID: self, Password: "my-own-password"}))
	sessionID := cookieValue(t, loginResp, sessionCookieName)

	req := jsonReq(http.MethodPost, "/auth/password", passwordRequest{UserID: other, OldPassword: "her-password", NewPassword: "hacked-123"})
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sessionID})
	resp := doReq(t, app, req)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestCheckSession_ReportsRole(t *testing.T) {
	t.Parallel()
	app, _, repo, _ := testAuthApp(t)

	id, _ := repo.Create(context.Background(), user.CreateParams{Username: "henry", PasswordHash: mustHash(t, "a-good-password")})
	loginResp := doReq(t, app, jsonReq(http.MethodPost, "/auth/login", loginRequest{UserID: id, Password: "a-good-password"}))
	sessionID := cookieValue(t, loginResp, sessionCookieName)

	req := jsonReq(http.MethodGet, "/auth/check_session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sessionID})
	resp := doReq(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var env envelope
	readBody(t, resp, &env)
	var data struct {
		Role string `json:"role"`
	}
	_ = json.Unmarshal(env.Data, &data)
	if data.Role != "user" {
		t.Errorf("role = %q, want %q", data.Role, "user")
	}
}

func TestDeleteSelf_RemovesAccount(t *testing.T) {
	t.Parallel()
	app, _, repo, _ := testAuthApp(t)

	id, _ := repo.Create(context.Background(), user.CreateParams{Username: "iris", PasswordHash: mustHash(t, "a-good-password")})
	loginResp := doReq(t, app, jsonReq(http.MethodPost, "/auth/login", loginRequest{UserID: id, Password: "a-good-password"}))
	sessionID := cookieValue(t, loginResp, sessionCookieName)

	req := jsonReq(http.MethodPost, "/auth/delete", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sessionID})
	resp := doReq(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if _, err := repo.GetByID(context.Background(), id); err == nil {
		t.Error("user still present after delete")
	}
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := auth.HashPassword(password, 65536, 1, 1, 16, 32)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	return h
}

func cookieValue(t *testing.T, resp *http.Response, name string) string {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	t.Fatalf("cookie %q not set on response", name)
	return ""
}
