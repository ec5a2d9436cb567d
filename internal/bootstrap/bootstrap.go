// Package bootstrap assembles the quote manager and its collaborators from
// configuration. Both the HTTP service and the CLI start from here.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/clients"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/storage"
	"github.com/jsamuelsen/quotekeeper/internal/app"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
)

// Options tweak the assembly for a particular binary.
type Options struct {
	// UserAgent is sent on every request to the posts service.
	UserAgent string

	// Registerer receives the sync metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// Components is the wired application.
type Components struct {
	Durable *storage.FileStore
	Session *storage.MemoryStore
	Posts   *acl.PostsClient
	Manager *app.QuoteManager
	Sync    *app.SyncEngine
}

// NewLogger builds the process logger from the log section of cfg.
func NewLogger(cfg *config.Config) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter is NewLogger writing console output to w.
func NewLoggerWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.NewWithWriter(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	}, w)
}

// Build wires stores, the posts client, the manager and the sync engine, and
// loads persisted state. The sync engine is created but not started.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Components, error) {
	durable, err := storage.NewFileStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening durable store: %w", err)
	}

	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Services.Posts.BaseURL,
		ServiceName: cfg.Services.Posts.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		UserAgent:   opts.UserAgent,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating posts HTTP client: %w", err)
	}

	posts := acl.NewPostsClient(acl.PostsClientConfig{
		Client:      httpClient,
		ServiceName: cfg.Services.Posts.Name,
		BatchSize:   cfg.Sync.Batch,
		Logger:      logger,
	})

	session := storage.NewMemoryStore()

	manager := app.NewQuoteManager(app.ManagerConfig{
		Durable:  durable,
		Session:  session,
		Remote:   posts,
		Notifier: app.NewNotifier(cfg.Notify.TTL, app.WithNotifierLogger(logger)),
		Logger:   logger,
	})

	if err := manager.Open(ctx); err != nil {
		return nil, err
	}

	engine := app.NewSyncEngine(posts, manager, app.SyncConfig{
		Interval: cfg.Sync.Interval,
		Logger:   logger,
		Metrics:  app.NewSyncMetrics(opts.Registerer),
		OnState: func(state app.SyncState) {
			logger.Debug("sync state", slog.String("state", string(state)))
		},
	})

	return &Components{
		Durable: durable,
		Session: session,
		Posts:   posts,
		Manager: manager,
		Sync:    engine,
	}, nil
}

// Close waits for background work and ends the session.
func (c *Components) Close() {
	c.Sync.Wait()
	c.Manager.WaitPushes()
	c.Session.Clear()
}
