package config

import (
	"strings"
	"testing"
	"time"
)

// TestLoadDefaults is not t.Parallel because it mutates process-wide environment variables.
func TestLoadDefaults(t *testing.T) {
	keys := []string{
		"SERVER_PORT", "SERVER_ENV", "LOG_HEALTH_REQUESTS",
		"DATABASE_URL", "DATABASE_MAX_CONNS", "DATABASE_MIN_CONNS",
		"VALKEY_URL",
		"ARGON2_MEMORY", "ARGON2_ITERATIONS", "ARGON2_PARALLELISM", "ARGON2_SALT_LENGTH", "ARGON2_KEY_LENGTH",
		"SESSION_TTL",
		"GATEWAY_MAX_CONNECTIONS", "GATEWAY_RATE_LIMIT_COUNT", "GATEWAY_RATE_LIMIT_WINDOW",
		"RATE_LIMIT_API_REQUESTS", "RATE_LIMIT_API_WINDOW_SECONDS",
		"CORS_ALLOW_ORIGINS",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.ServerEnv != "production" {
		t.Errorf("ServerEnv = %q, want %q", cfg.ServerEnv, "production")
	}
	if !cfg.LogHealthRequests {
		t.Error("LogHealthRequests = false, want true")
	}

	if cfg.DatabaseMaxConn != 25 {
		t.Errorf("DatabaseMaxConn = %d, want 25", cfg.DatabaseMaxConn)
	}
	if cfg.DatabaseMinConn != 5 {
		t.Errorf("DatabaseMinConn = %d, want 5", cfg.DatabaseMinConn)
	}

	if cfg.ValkeyURL != "" {
		t.Errorf("ValkeyURL = %q, want empty", cfg.ValkeyURL)
	}
	if cfg.RedisConfigured() {
		t.Error("RedisConfigured() = true, want false when VALKEY_URL is unset")
	}

	if cfg.Argon2Memory != 65536 {
		t.Errorf("Argon2Memory = %d, want 65536", cfg.Argon2Memory)
	}
	if cfg.Argon2Iterations != 3 {
		t.Errorf("Argon2Iterations = %d, want 3", cfg.Argon2Iterations)
	}
	if cfg.Argon2Parallelism != 2 {
		t.Errorf("Argon2Parallelism = %d, want 2", cfg.Argon2Parallelism)
	}

	if cfg.SessionTTL != 0 {
		t.Errorf("SessionTTL = %v, want 0", cfg.SessionTTL)
	}

	if cfg.GatewayMaxConnections != 0 {
		t.Errorf("GatewayMaxConnections = %d, want 0", cfg.GatewayMaxConnections)
	}
	if cfg.GatewayRateLimitCount != 20 {
		t.Errorf("GatewayRateLimitCount = %d, want 20", cfg.GatewayRateLimitCount)
	}
	if cfg.GatewayRateLimitWindow != 10*time.Second {
		t.Errorf("GatewayRateLimitWindow = %v, want 10s", cfg.GatewayRateLimitWindow)
	}

	if cfg.RateLimitAPIRequests != 60 {
		t.Errorf("RateLimitAPIRequests = %d, want 60", cfg.RateLimitAPIRequests)
	}

	if cfg.CORSAllowOrigins != "*" {
		t.Errorf("CORSAllowOrigins = %q, want \"*\"", cfg.CORSAllowOrigins)
	}

	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false for production default")
	}
}

func TestLoadDevelopmentMode(t *testing.T) {
	t.Setenv("SERVER_ENV", "development")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}
}

func TestLoadRedisConfigured(t *testing.T) {
	t.Setenv("VALKEY_URL", "redis://valkey:6379/0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.RedisConfigured() {
		t.Error("RedisConfigured() = false, want true when VALKEY_URL is set")
	}
}

func TestLoadInvalidIntegerReturnsError(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want error for invalid SERVER_PORT")
	}
}

func TestLoadRejectsInvertedConnectionPoolBounds(t *testing.T) {
	t.Setenv("DATABASE_MIN_CONNS", "50")
	t.Setenv("DATABASE_MAX_CONNS", "10")
	_, err := Load()
	if err == nil {
		t.Fatal("Load() error = nil, want error when min conns exceeds max conns")
	}
	if !strings.Contains(err.Error(), "DATABASE_MIN_CONNS") {
		t.Errorf("Load() error = %v, want mention of DATABASE_MIN_CONNS", err)
	}
}

func TestLoadRejectsSubSecondRateLimitWindow(t *testing.T) {
	t.Setenv("GATEWAY_RATE_LIMIT_WINDOW", "500ms")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want error for sub-second rate limit window")
	}
}

func TestLoadRejectsZeroRateLimitCount(t *testing.T) {
	t.Setenv("GATEWAY_RATE_LIMIT_COUNT", "0")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want error for zero rate limit count")
	}
}
