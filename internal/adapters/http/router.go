package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
	"github.com/jsamuelsen/quotekeeper/internal/platform/telemetry"
)

// DefaultRequestTimeout bounds /api/v1 requests.
const DefaultRequestTimeout = 30 * time.Second

// importRoute streams a whole file and is exempt from the request deadline.
const importRoute = "/api/v1/quotes/import"

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	Logger    *slog.Logger
	AppConfig *config.AppConfig

	// HealthHandler serves /-/ probes and metrics. Optional.
	HealthHandler *handlers.HealthHandler

	// QuoteHandler serves the quote API. Nil leaves /api/v1 empty.
	QuoteHandler *handlers.QuoteHandler

	// Timeout is the /api/v1 request deadline; zero disables it.
	Timeout time.Duration
}

// SetupRouter installs the middleware chain and routes.
//
// Middleware order:
//  1. Recovery
//  2. Request ID, then correlation ID
//  3. otelgin tracing, then request metrics
//  4. Request logging (skips /-/)
//  5. Deadline, /api/v1 only
//
// Route groups:
//   - /-/      probes, build info and metrics, no deadline
//   - /api/v1  quotes, categories, filter, sync, notifications
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.TracingMiddleware(cfg.AppConfig.Name),
		telemetry.Middleware(),
		middleware.Logging(cfg.Logger),
	)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Deadline(cfg.Timeout, importRoute))
	}

	if cfg.QuoteHandler != nil {
		cfg.QuoteHandler.RegisterQuoteRoutes(apiV1)
	}

	engine.NoRoute(func(c *gin.Context) {
		dto.AbortWithCode(c, dto.ErrorCodeNotFound, "route not found")
	})
}

// NewDefaultRouterConfig returns a RouterConfig with DefaultRequestTimeout.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	appCfg *config.AppConfig,
	healthHandler *handlers.HealthHandler,
	quoteHandler *handlers.QuoteHandler,
) RouterConfig {
	return RouterConfig{
		Logger:        logger,
		AppConfig:     appCfg,
		HealthHandler: healthHandler,
		QuoteHandler:  quoteHandler,
		Timeout:       DefaultRequestTimeout,
	}
}
