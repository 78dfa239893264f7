package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wireline-chat/wireline-server/internal/api"
	"github.com/wireline-chat/wireline-server/internal/apierrors"
	"github.com/wireline-chat/wireline-server/internal/auth"
	"github.com/wireline-chat/wireline-server/internal/config"
	"github.com/wireline-chat/wireline-server/internal/friend"
	"github.com/wireline-chat/wireline-server/internal/gateway"
	"github.com/wireline-chat/wireline-server/internal/group"
	"github.com/wireline-chat/wireline-server/internal/httputil"
	"github.com/wireline-chat/wireline-server/internal/mailbox"
	"github.com/wireline-chat/wireline-server/internal/membership"
	"github.com/wireline-chat/wireline-server/internal/message"
	"github.com/wireline-chat/wireline-server/internal/postgres"
	"github.com/wireline-chat/wireline-server/internal/presence"
	"github.com/wireline-chat/wireline-server/internal/session"
	"github.com/wireline-chat/wireline-server/internal/user"
	"github.com/wireline-chat/wireline-server/internal/valkey"
)

// Build metadata injected via ldflags at compile time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// server holds the shared dependencies used by route handlers.
type server struct {
	cfg      *config.Config
	db       *pgxpool.Pool
	rdb      *redis.Client
	sessions session.Registry

	authService *auth.Service
	friendSvc   *friend.Service
	groupSvc    *group.Service
	messageRepo message.Repository
	hub         *gateway.Hub
}

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Str("env", cfg.ServerEnv).
		Msg("Starting Wireline Server")

	if cfg.CORSAllowOrigins == "*" {
		log.Warn().Msg("CORS_ALLOW_ORIGINS is set to a wildcard. Set an explicit origin when in production.")
	}

	ctx := context.Background()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConn, cfg.DatabaseMinConn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	log.Info().Msg("PostgreSQL connected")

	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("Database migrations complete")

	var rdb *redis.Client
	if cfg.RedisConfigured() {
		rdb, err = valkey.Connect(ctx, cfg.ValkeyURL, 5*time.Second)
		if err != nil {
			return fmt.Errorf("connect valkey: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		log.Info().Msg("Valkey connected")
	} else {
		log.Warn().Msg("VALKEY_URL not set. Falling back to single-process in-memory session registry and membership cache.")
	}

	userRepo := user.NewPGRepository(db, log.Logger)
	friendRepo := friend.NewPGRepository(db)
	groupRepo := group.NewPGRepository(db)
	messageRepo := message.NewPGRepository(db)

	var sessions session.Registry
	var cache membership.Cache
	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()

	// A RedisCache is itself the shared, authoritative cache store: InvalidateGroup/InvalidateUser delete the key
	// directly in Valkey, which every process reads from, so no cross-process invalidation relay is needed here.
	// A local front cache layered on top of RedisCache would need one; this deployment doesn't have one.
	if rdb != nil {
		sessions = session.NewRedisRegistry(rdb, cfg.SessionTTL)
		cache = membership.NewRedisCache(rdb)
	} else {
		sessions = session.NewMemoryRegistry(cfg.SessionTTL)
		cache = membership.NewMemoryCache()
	}

	friendSvc := friend.NewService(friendRepo, userRepo, cache)
	groupSvc := group.NewService(groupRepo, userRepo, cache)

	// The message Pipeline and Presence Detector both need a Router that, at runtime, is the Hub itself, but the Hub's
	// constructor needs the Pipeline already built. hubRouter breaks the cycle: it forwards to hub once hub is
	// assigned just after construction.
	router := &hubRouter{}
	pipeline := message.NewPipeline(messageRepo, sessions, router, log.Logger)
	detector := presence.NewDetector(friendSvc, router, log.Logger)

	var publisher *gateway.Publisher
	if rdb != nil {
		publisher = gateway.NewPublisher(rdb, log.Logger)
	}

	mailboxes := mailbox.NewStore()

	hub := gateway.NewHub(
		mailboxes, sessions, groupSvc, pipeline, publisher, detector,
		cfg.GatewayRateLimitWindow, cfg.GatewayRateLimitCount, cfg.GatewayMaxConnections, log.Logger,
	)
	router.hub = hub

	if publisher != nil {
		go runWithBackoff(subCtx, "gateway-hub", hub.Run)
	}

	authService, err := auth.NewService(userRepo, sessions, detector, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth service")
	}

	app := fiber.New(fiber.Config{
		AppName: "Wireline",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			msg := "An internal error occurred"
			code := apierrors.InternalError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
				msg = fiberErr.Message
				code = fiberStatusToAPICode(status)
			} else {
				log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("Unhandled error")
			}
			return httputil.Fail(c, status, code, msg)
		},
	})

	app.Use(requestid.New())
	if cfg.LogHealthRequests {
		app.Use(httputil.RequestLogger(log.Logger))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Split(cfg.CORSAllowOrigins, ","),
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"X-Request-ID"},
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitAPIRequests,
		Expiration: time.Duration(cfg.RateLimitAPIWindowSeconds) * time.Second,
	}))

	srv := &server{
		cfg:         cfg,
		db:          db,
		rdb:         rdb,
		sessions:    sessions,
		authService: authService,
		friendSvc:   friendSvc,
		groupSvc:    groupSvc,
		messageRepo: messageRepo,
		hub:         hub,
	}
	srv.registerRoutes(app)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down server")
		hub.Shutdown()
		subCancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	log.Info().Str("addr", addr).Msg("Server listening")

	if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func (s *server) registerRoutes(app *fiber.App) {
	requireAuth := auth.RequireAuth(s.sessions)
	requireAdmin := auth.RequireAdmin()

	health := &api.HealthHandler{DB: s.db, Redis: s.rdb}
	app.Get("/health", health.Health)

	authHandler := api.NewAuthHandler(s.authService, s.cfg, log.Logger)
	authGroup := app.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/logout", requireAuth, authHandler.Logout)
	authGroup.Post("/password", requireAuth, authHandler.ChangePassword)
	authGroup.Get("/check_session", requireAuth, authHandler.CheckSession)
	authGroup.Post("/delete", requireAuth, authHandler.DeleteSelf)

	gatewayHandler := api.NewGatewayHandler(s.hub, s.sessions)
	authGroup.Get("/ws", gatewayHandler.Upgrade)

	friendHandler := api.NewFriendHandler(s.friendSvc, s.sessions, log.Logger)
	friendGroup := app.Group("/friend", requireAuth)
	friendGroup.Get("/list", friendHandler.List)
	friendGroup.Post("/add", friendHandler.Add)
	friendGroup.Get("/info", friendHandler.Info)
	friendGroup.Post("/status", friendHandler.Status)

	groupHandler := api.NewGroupHandler(s.groupSvc, log.Logger)
	groupGroup := app.Group("/group", requireAuth)
	groupGroup.Get("/list", groupHandler.List)
	groupGroup.Get("/info", groupHandler.Info)
	groupGroup.Get("/members", groupHandler.Members)
	groupGroup.Post("/new", groupHandler.New)
	groupGroup.Post("/join", groupHandler.Join)
	groupGroup.Post("/leave", groupHandler.Leave)

	messageHandler := api.NewMessageHandler(s.messageRepo, s.groupSvc, log.Logger)
	messageGroup := app.Group("/message", requireAuth)
	messageGroup.Get("/user", messageHandler.ListUser)
	messageGroup.Get("/user/latest-timestamp", messageHandler.LatestUser)
	messageGroup.Get("/user/after-timestamp", messageHandler.AfterUser)
	messageGroup.Get("/group", messageHandler.ListGroup)
	messageGroup.Get("/group/latest-timestamp", messageHandler.LatestGroup)
	messageGroup.Get("/group/after-timestamp", messageHandler.AfterGroup)

	managerHandler := api.NewManagerHandler(s.messageRepo, s.sessions, log.Logger)
	managerGroup := app.Group("/manager", requireAuth, requireAdmin)
	managerGroup.Get("/message/privite", managerHandler.GetPrivateMessage)
	managerGroup.Get("/message/group", managerHandler.GetGroupMessage)
	managerGroup.Delete("/message/privite", managerHandler.DeletePrivateMessage)
	managerGroup.Delete("/message/group", managerHandler.DeleteGroupMessage)
	managerGroup.Get("/online/tree", managerHandler.GetOnlineTree)

	app.Use(func(_ fiber.Ctx) error {
		return fiber.ErrNotFound
	})
}

// hubRouter forwards message.Router and presence.Router calls to hub once it is assigned, breaking the
// construction-order cycle between the gateway Hub and the Pipeline/Detector it is built from.
type hubRouter struct {
	hub *gateway.Hub
}

func (r *hubRouter) DeliverToUser(ctx context.Context, userID uint32, frame []byte) {
	if r.hub != nil {
		r.hub.DeliverToUser(ctx, userID, frame)
	}
}

func (r *hubRouter) DeliverToGroup(ctx context.Context, groupID uint32, frame []byte) {
	if r.hub != nil {
		r.hub.DeliverToGroup(ctx, groupID, frame)
	}
}

// runWithBackoff runs fn in a loop, restarting with exponential backoff when it returns a non-nil, non-cancelled
// error. The delay starts at 1 second and doubles on each consecutive failure up to a 2-minute cap.
func runWithBackoff(ctx context.Context, name string, fn func(context.Context) error) {
	const (
		initialDelay = time.Second
		maxDelay     = 2 * time.Minute
	)
	delay := initialDelay
	for {
		if err := fn(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Str("service", name).Dur("retry_in", delay).
				Msg("Background service stopped, restarting after delay")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, maxDelay)
			continue
		}
		return
	}
}

// fiberStatusToAPICode maps an HTTP status from Fiber's built-in errors (404, 429, 503, etc.) to the closest
// internal error category for logging.
func fiberStatusToAPICode(status int) apierrors.Code {
	switch status {
	case fiber.StatusNotFound:
		return apierrors.NotFound
	case fiber.StatusTooManyRequests:
		return apierrors.RateLimited
	case fiber.StatusServiceUnavailable:
		return apierrors.ServiceUnavailable
	default:
		if status >= 400 && status < 500 {
			return apierrors.ValidationError
		}
		return apierrors.InternalError
	}
}
