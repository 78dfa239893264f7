package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wireline-chat/wireline-server/internal/httputil"
)

// HealthHandler serves the health check endpoint. Redis is nil when the deployment runs without Valkey configured
// (config.RedisConfigured() false), in which case the Session Registry and Membership Cache are the in-memory
// implementations and there is nothing to ping.
type HealthHandler struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

// Health pings PostgreSQL and, if configured, Valkey, returning component status.
func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	pgStatus := "ok"
	if err := h.DB.Ping(ctx); err != nil {
		pgStatus = "unavailable"
	}

	vkStatus := "disabled"
	if h.Redis != nil {
		vkStatus = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			vkStatus = "unavailable"
		}
	}

	overall := "ok"
	status := fiber.StatusOK
	if pgStatus != "ok" || vkStatus == "unavailable" {
		overall = "degraded"
		status = fiber.StatusServiceUnavailable
	}

	return httputil.SuccessStatus(c, status, fiber.Map{
		"status":   overall,
		"postgres": pgStatus,
		"valkey":   vkStatus,
	})
}
