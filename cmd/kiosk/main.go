package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/ponto/internal/api"
	"github.com/saturnino-fabrica-de-software/ponto/internal/attendance"
	"github.com/saturnino-fabrica-de-software/ponto/internal/audit"
	"github.com/saturnino-fabrica-de-software/ponto/internal/config"
	"github.com/saturnino-fabrica-de-software/ponto/internal/connectivity"
	"github.com/saturnino-fabrica-de-software/ponto/internal/database"
	"github.com/saturnino-fabrica-de-software/ponto/internal/embedding"
	"github.com/saturnino-fabrica-de-software/ponto/internal/identity"
	"github.com/saturnino-fabrica-de-software/ponto/internal/liveness"
	"github.com/saturnino-fabrica-de-software/ponto/internal/match"
	"github.com/saturnino-fabrica-de-software/ponto/internal/remote"
	"github.com/saturnino-fabrica-de-software/ponto/internal/remote/rekognition"
	syncengine "github.com/saturnino-fabrica-de-software/ponto/internal/sync"
	"github.com/saturnino-fabrica-de-software/ponto/internal/verify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment, cfg.DeviceID)
	slog.SetDefault(logger)

	logger.Info("starting ponto kiosk",
		slog.String("environment", cfg.Environment),
		slog.String("device_id", cfg.DeviceID),
		slog.Int("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Device-local store
	pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := runMigrations(cfg, logger); err != nil {
		return err
	}

	store := identity.NewPgStore(pool)
	queue := attendance.NewPgQueue(pool)

	// Verification pipeline
	embedder, err := embedding.New(embedding.SourceType(cfg.EmbedderType), cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	assessor := liveness.NewAssessor().WithThreshold(cfg.LivenessThreshold)
	decider := match.NewDecider().WithThresholds(cfg.SimilarityThreshold, cfg.DistanceThreshold)

	auditLog := audit.NewSlogLogger(logger, cfg.DeviceID)

	// Remote attendance backend
	client := remote.NewClient(remote.Config{
		BaseURL: cfg.RemoteBaseURL,
		APIKey:  cfg.RemoteAPIKey,
		Timeout: cfg.RemoteTimeout,
	})

	identitySvc, err := newIdentityService(ctx, cfg)
	if err != nil {
		return err
	}

	orchestrator := verify.NewOrchestrator(
		embedder,
		assessor,
		decider,
		store,
		queue,
		verify.Options{
			IdentificationThreshold: cfg.IdentificationThreshold,
			RequireLiveness:         cfg.RequireLiveness,
			DeviceID:                cfg.DeviceID,
		},
		logger,
	).WithRemote(identitySvc).WithAudit(auditLog)

	// Sync engine
	tracker := syncengine.NewStateTracker()
	engine := syncengine.NewEngine(queue, store, client, tracker, syncengine.Options{
		Interval:    cfg.SyncInterval,
		SettleDelay: cfg.SettleDelay,
		DeviceID:    cfg.DeviceID,
	}, logger).WithAudit(auditLog)
	orchestrator.WithConnectivity(engine.IsOnline)

	go engine.Run(ctx)
	defer engine.Stop()

	// Connectivity monitor drives the engine's online state
	probeURL := cfg.ProbeURL
	if probeURL == "" {
		probeURL = cfg.RemoteBaseURL
	}
	monitor := connectivity.NewMonitor(
		connectivity.NewHTTPProber(probeURL, cfg.RemoteTimeout),
		cfg.ProbeInterval,
		logger,
	)
	monitor.OnChange(engine.SetOnline)
	monitor.Start(ctx)
	defer monitor.Stop()
	engine.SetOnline(monitor.IsOnline())

	// Device HTTP surface
	router := api.NewRouter(logger, &api.Dependencies{
		Verifier:     orchestrator,
		Roster:       store,
		Syncer:       engine,
		Ready:        readyCheck(pool),
		APIKeyHash:   cfg.APIKeyHash,
		RateLimitMax: cfg.RateLimitMax,
	})
	router.Setup()

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	<-shutdownCtx.Done()
	logger.Info("server stopped")

	return nil
}

// runMigrations brings the device-local schema up to date on boot. A
// kiosk has no operator running migration jobs by hand.
func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.NewSQLDB(database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	migrator, err := database.NewMigrator(db, "ponto")
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("database schema up to date")
	return nil
}

// newIdentityService selects the advisory remote identity backend.
func newIdentityService(ctx context.Context, cfg *config.Config) (remote.IdentityService, error) {
	switch cfg.IdentityRemote {
	case "rekognition":
		rekCfg := rekognition.DefaultConfig()
		rekCfg.Region = cfg.AWSRegion
		svc, err := rekognition.NewService(ctx, rekCfg, cfg.SiteID)
		if err != nil {
			return nil, fmt.Errorf("failed to create rekognition service: %w", err)
		}
		return svc, nil

	case "http":
		return remote.NewHTTPIdentityService(cfg.RemoteBaseURL, cfg.RemoteAPIKey, cfg.RemoteTimeout), nil

	case "none", "":
		return remote.DisabledIdentityService{}, nil

	default:
		return nil, fmt.Errorf("unknown identity remote: %s (use: none, http, rekognition)", cfg.IdentityRemote)
	}
}

func readyCheck(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return database.HealthCheck(ctx, pool)
	}
}
