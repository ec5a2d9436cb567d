// Package main is the entry point for the quotekeeper service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotekeeper/internal/bootstrap"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
	"github.com/jsamuelsen/quotekeeper/internal/platform/telemetry"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := bootstrap.NewLogger(cfg)
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("store", cfg.Storage.Path),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 5. Wire stores, posts client, manager and sync engine
	components, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{
		UserAgent:  fmt.Sprintf("%s/%s", cfg.App.Name, Version),
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return fmt.Errorf("wiring application: %w", err)
	}

	// 6. Readiness follows the durable store only
	healthRegistry := ports.NewHealthRegistry()
	if err := healthRegistry.Register(components.Durable); err != nil {
		return fmt.Errorf("registering durable store health check: %w", err)
	}

	// 7. Start the periodic sync; it stops with ctx
	if cfg.Sync.Enabled {
		components.Sync.Start(ctx)
		logger.Info("periodic sync started", slog.Duration("interval", cfg.Sync.Interval))
	}

	// 8. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo,
		handlers.WithSyncStatus(components.Sync.Status),
	)
	quoteHandler := handlers.NewQuoteHandler(components.Manager, components.Sync,
		handlers.WithImportLimit(cfg.Server.MaxRequestSize),
	)

	// 9. Create HTTP server and router
	server := http.New(&cfg.Server, logger)
	http.SetupRouter(server.Engine(), http.NewDefaultRouterConfig(logger, &cfg.App, healthHandler, quoteHandler))

	// 10. Serve until SIGINT/SIGTERM, then drain in-flight requests
	err = server.Run(ctx)
	stop()

	// 11. Wait for syncs and pushes, then end the session
	drain(logger, components, cfg.Server.ShutdownTimeout)

	return err
}

// drain waits for background syncs and pushes, giving up after timeout.
func drain(logger *slog.Logger, components *bootstrap.Components, timeout time.Duration) {
	done := make(chan struct{})

	go func() {
		components.Close()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("background work drained")
	case <-time.After(timeout):
		logger.Warn("background work still running at exit",
			slog.String("sync_state", string(components.Sync.Status().State)),
		)
	}
}
