package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/wireline-chat/wireline-server/internal/apierrors"
)

func TestCatchAll_ReturnsNotFound(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/known", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Use(func(_ fiber.Ctx) error {
		return fiber.ErrNotFound
	})

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown path", "/no-such-route", fiber.StatusNotFound},
		{"favicon", "/favicon.ico", fiber.StatusNotFound},
		{"known path", "/known", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestFiberStatusToAPICode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   apierrors.Code
	}{
		{"not found", fiber.StatusNotFound, apierrors.NotFound},
		{"too many requests", fiber.StatusTooManyRequests, apierrors.RateLimited},
		{"service unavailable", fiber.StatusServiceUnavailable, apierrors.ServiceUnavailable},
		{"generic 4xx falls back to validation error", fiber.StatusConflict, apierrors.ValidationError},
		{"another 4xx", fiber.StatusGone, apierrors.ValidationError},
		{"5xx falls back to internal error", fiber.StatusInternalServerError, apierrors.InternalError},
		{"502 falls back to internal error", fiber.StatusBadGateway, apierrors.InternalError},
		{"unknown status falls back to internal error", 600, apierrors.InternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := fiberStatusToAPICode(tt.status)
			if got != tt.want {
				t.Errorf("fiberStatusToAPICode(%d) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestErrorHandler_MapsFiberErrorsToEnvelope(t *testing.T) {
	t.Parallel()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			msg := "An internal error occurred"
			if fiberErr, ok := err.(*fiber.Error); ok {
				status = fiberErr.Code
				msg = fiberErr.Message
			}
			return c.Status(status).JSON(fiber.Map{"status": false, "code": status, "message": msg})
		},
	})
	app.Get("/boom", func(c fiber.Ctx) error { return fiber.ErrNotFound })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusNotFound)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env struct {
		Status bool `json:"status"`
		Code   int  `json:"code"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if env.Status {
		t.Error("status should be false on error")
	}
	if env.Code != fiber.StatusNotFound {
		t.Errorf("code = %d, want %d", env.Code, fiber.StatusNotFound)
	}
}

func TestHubRouter_ForwardsOnlyOnceAssigned(t *testing.T) {
	t.Parallel()

	r := &hubRouter{}
	ctx := context.Background()
	// hub is nil until main assigns it post-construction; both forwarding methods must no-op rather than panic.
	r.DeliverToUser(ctx, 1, []byte("x"))
	r.DeliverToGroup(ctx, 1, []byte("x"))
}
