package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/platform/telemetry"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

// DefaultSyncInterval is the scheduler period when none is configured.
const DefaultSyncInterval = 30 * time.Second

// SyncState is the engine's observable state.
type SyncState string

const (
	SyncIdle     SyncState = "idle"
	SyncFetching SyncState = "fetching"
	SyncFailed   SyncState = "failed"
)

// SyncStatus is a snapshot of the engine for the presentation layer.
type SyncStatus struct {
	State      SyncState `json:"state"`
	InFlight   int       `json:"inFlight"`
	LastSyncAt time.Time `json:"lastSyncAt,omitzero"`
	LastError  string    `json:"lastError,omitempty"`
}

// SyncResult describes one successful run.
type SyncResult struct {
	Count   int     `json:"count"`
	Display Display `json:"display"`
}

// SyncConfig configures a SyncEngine.
type SyncConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  *SyncMetrics

	// OnState observes every state transition. Optional.
	OnState func(SyncState)
}

// SyncEngine pulls the remote collection and installs it locally, remote wins.
//
// Runs are neither coalesced nor cancelled by later triggers: when runs
// overlap, the one that completes last determines the collection.
type SyncEngine struct {
	source   ports.QuoteSource
	manager  *QuoteManager
	exec     *Executor
	interval time.Duration
	logger   *slog.Logger
	metrics  *SyncMetrics
	onState  func(SyncState)

	mu       sync.Mutex
	state    SyncState
	inFlight int
	lastSync time.Time
	lastErr  string

	background sync.WaitGroup
}

// NewSyncEngine creates an idle engine.
func NewSyncEngine(source ports.QuoteSource, manager *QuoteManager, cfg SyncConfig) *SyncEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	return &SyncEngine{
		source:   source,
		manager:  manager,
		exec:     NewExecutor(logger),
		interval: interval,
		logger:   logger,
		metrics:  cfg.Metrics,
		onState:  cfg.OnState,
		state:    SyncIdle,
	}
}

// Status returns the current state snapshot.
func (e *SyncEngine) Status() SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	return SyncStatus{
		State:      e.state,
		InFlight:   e.inFlight,
		LastSyncAt: e.lastSync,
		LastError:  e.lastErr,
	}
}

// Start runs one sync immediately and then one per interval until ctx ends.
// It returns at once.
func (e *SyncEngine) Start(ctx context.Context) {
	e.background.Go(func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			_, _ = e.SyncNow(ctx)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
}

// Trigger starts a manual sync in the background. The run outlives the
// caller's context, e.g. an HTTP request.
func (e *SyncEngine) Trigger(ctx context.Context) {
	detached := context.WithoutCancel(ctx)

	e.background.Go(func() {
		_, _ = e.SyncNow(detached)
	})
}

// Wait blocks until the scheduler and background triggers have returned.
func (e *SyncEngine) Wait() {
	e.background.Wait()
}

// SyncNow runs one sync and returns when it has been applied or has failed.
// Failures are logged and counted; the state returns to idle either way.
func (e *SyncEngine) SyncNow(ctx context.Context) (SyncResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "quotekeeper.sync")
	defer span.End()

	e.begin()

	result, err := Execute(ctx, e.exec, e.operation(), struct{}{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
		e.fail(ctx, err)

		return SyncResult{}, err
	}

	span.SetAttributes(attribute.Int("quotekeeper.quotes", result.Count))
	e.succeed(result.Count)

	return result, nil
}

func (e *SyncEngine) operation() Operation[struct{}, domain.Collection, domain.Collection, SyncResult] {
	var display Display

	return Operation[struct{}, domain.Collection, domain.Collection, SyncResult]{
		Name: "sync_quotes",
		Perform: func(ctx context.Context, _ struct{}) (domain.Collection, error) {
			return e.source.FetchQuotes(ctx)
		},
		Verify: func(_ context.Context, _ struct{}, fetched domain.Collection) (domain.Collection, error) {
			return fetched.Clone(), nil
		},
		Archive: func(ctx context.Context, _ struct{}, verified domain.Collection) error {
			var err error

			display, err = e.manager.ReplaceAll(ctx, verified)

			return err
		},
		Respond: func(_ context.Context, _ struct{}, verified domain.Collection) (SyncResult, error) {
			return SyncResult{Count: len(verified), Display: display}, nil
		},
	}
}

func (e *SyncEngine) begin() {
	e.mu.Lock()
	e.inFlight++
	e.state = SyncFetching
	e.mu.Unlock()

	e.emit(SyncFetching)
}

func (e *SyncEngine) succeed(count int) {
	e.mu.Lock()
	e.inFlight--
	e.lastSync = time.Now()
	e.lastErr = ""
	e.settleLocked()
	state := e.state
	e.mu.Unlock()

	e.metrics.observe(syncResultSuccess, count)
	e.emit(state)
}

// fail passes through the transient Failed state and settles straight back.
func (e *SyncEngine) fail(ctx context.Context, err error) {
	e.logger.WarnContext(ctx, "quote sync failed", slog.Any("error", err))

	e.mu.Lock()
	e.inFlight--
	e.lastErr = err.Error()
	e.state = SyncFailed
	e.mu.Unlock()

	e.metrics.observe(syncResultFailure, 0)
	e.emit(SyncFailed)

	e.mu.Lock()
	e.settleLocked()
	state := e.state
	e.mu.Unlock()

	e.emit(state)
}

func (e *SyncEngine) settleLocked() {
	if e.inFlight > 0 {
		e.state = SyncFetching

		return
	}

	e.state = SyncIdle
}

func (e *SyncEngine) emit(state SyncState) {
	if e.onState != nil {
		e.onState(state)
	}
}
