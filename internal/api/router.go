package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/ponto/internal/api/middleware"
)

// Dependencies carries the wired subsystems the device surface exposes.
type Dependencies struct {
	Verifier handler.VerificationService
	Roster   handler.IdentityAdmin
	Syncer   handler.Syncer
	Ready    handler.ReadyCheck

	// APIKeyHash guards the /v1 group. Empty disables auth.
	APIKeyHash string

	// RateLimitMax caps verification attempts per client IP per minute.
	// Zero uses the default.
	RateLimitMax int
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Ponto Kiosk",
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check endpoints (no auth required)
	var ready handler.ReadyCheck
	if r.deps != nil {
		ready = r.deps.Ready
	}
	healthHandler := handler.NewHealthHandler(ready)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps == nil {
		return
	}

	// Device API group: shared-key auth plus per-IP rate limiting on the
	// capture endpoints.
	v1 := r.app.Group("/v1")
	v1.Use(middleware.Auth(r.deps.APIKeyHash))

	limiterCfg := middleware.DefaultRateLimiterConfig()
	if r.deps.RateLimitMax > 0 {
		limiterCfg.Max = r.deps.RateLimitMax
	}
	r.rateLimiter = middleware.NewRateLimiter(limiterCfg)
	limited := r.rateLimiter.Handler()

	kiosk := handler.NewKioskHandler(r.deps.Verifier, r.deps.Roster, r.deps.Syncer, r.logger)

	// Enrollment roster
	v1.Post("/identities", kiosk.Enroll)
	v1.Get("/identities", kiosk.ListIdentities)
	v1.Delete("/identities/:id", kiosk.DeleteIdentity)

	// Capture endpoints carry the rate limiter: these are the ones a
	// spoofing script would hammer.
	v1.Post("/verify", limited, kiosk.Verify)
	v1.Post("/identify", limited, kiosk.Identify)
	v1.Post("/attendance", limited, kiosk.Clock)

	// Sync engine surface
	v1.Get("/sync/status", kiosk.SyncStatus)
	v1.Post("/sync", kiosk.SyncNow)
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}
	return r.app.Shutdown()
}
