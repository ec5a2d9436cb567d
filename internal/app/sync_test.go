package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

// stateLog records engine transitions in order.
type stateLog struct {
	mu     sync.Mutex
	states []SyncState
}

func (l *stateLog) record(s SyncState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.states = append(l.states, s)
}

func (l *stateLog) all() []SyncState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]SyncState(nil), l.states...)
}

type syncFixture struct {
	*managerFixture
	engine  *SyncEngine
	metrics *SyncMetrics
	states  *stateLog
}

func newSyncFixture(t *testing.T, interval time.Duration) *syncFixture {
	t.Helper()

	f := &syncFixture{
		managerFixture: newManagerFixture(t),
		metrics:        NewSyncMetrics(prometheus.NewRegistry()),
		states:         &stateLog{},
	}

	f.engine = NewSyncEngine(f.remote, f.manager, SyncConfig{
		Interval: interval,
		Logger:   discardLogger(),
		Metrics:  f.metrics,
		OnState:  f.states.record,
	})

	return f
}

func TestSyncEngine_SyncNowSuccess(t *testing.T) {
	f := newSyncFixture(t, time.Hour)
	remote := domain.Collection{{Text: "sunt aut facere", Category: "quia"}}
	f.remote.EXPECT().FetchQuotes(mock.Anything).Return(remote, nil).Once()

	result, err := f.engine.SyncNow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	require.NotNil(t, result.Display.Quote)
	assert.Equal(t, remote[0], *result.Display.Quote)
	assert.Equal(t, remote, f.manager.Quotes())

	assert.Equal(t, []SyncState{SyncFetching, SyncIdle}, f.states.all())

	status := f.engine.Status()
	assert.Equal(t, SyncIdle, status.State)
	assert.Zero(t, status.InFlight)
	assert.False(t, status.LastSyncAt.IsZero())
	assert.Empty(t, status.LastError)

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.runs.WithLabelValues(syncResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.quotes), 0)

	active := f.manager.Notifier().Active()
	require.Len(t, active, 1)
	assert.Equal(t, NoticeSynced, active[0].Message)
}

func TestSyncEngine_SyncNowFailureKeepsLocalData(t *testing.T) {
	f := newSyncFixture(t, time.Hour)
	fetchErr := domain.NewTransientNetworkError("posts-service", "fetch posts", errors.New("no route to host"))
	f.remote.EXPECT().FetchQuotes(mock.Anything).Return(nil, fetchErr).Once()

	_, err := f.engine.SyncNow(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsTransientNetwork(err))

	step, ok := GetExecutionStep(err)
	require.True(t, ok)
	assert.Equal(t, StepPerform, step)

	assert.Equal(t, domain.SeedQuotes(), f.manager.Quotes())
	assert.Empty(t, f.manager.Notifier().Active())
	assert.Equal(t, []SyncState{SyncFetching, SyncFailed, SyncIdle}, f.states.all())

	status := f.engine.Status()
	assert.Equal(t, SyncIdle, status.State)
	assert.Contains(t, status.LastError, "no route to host")
	assert.True(t, status.LastSyncAt.IsZero())

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.runs.WithLabelValues(syncResultFailure)), 0)
}

func TestSyncEngine_FailureClearedBySuccess(t *testing.T) {
	f := newSyncFixture(t, time.Hour)
	f.remote.EXPECT().FetchQuotes(mock.Anything).Return(nil, errors.New("boom")).Once()
	f.remote.EXPECT().FetchQuotes(mock.Anything).Return(domain.Collection{}, nil).Once()

	_, err := f.engine.SyncNow(context.Background())
	require.Error(t, err)

	_, err = f.engine.SyncNow(context.Background())
	require.NoError(t, err)

	assert.Empty(t, f.engine.Status().LastError)
	assert.Empty(t, f.manager.Quotes())
}

func TestSyncEngine_OverlappingRunsLastCompletionWins(t *testing.T) {
	f := newSyncFixture(t, time.Hour)

	started := make(chan struct{})
	release := make(chan struct{})
	slow := domain.Collection{{Text: "slow", Category: "first"}}
	fast := domain.Collection{{Text: "fast", Category: "second"}}

	f.remote.EXPECT().FetchQuotes(mock.Anything).
		RunAndReturn(func(context.Context) (domain.Collection, error) {
			close(started)
			<-release
			return slow, nil
		}).Once()
	f.remote.EXPECT().FetchQuotes(mock.Anything).Return(fast, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.SyncNow(context.Background())
		done <- err
	}()

	<-started

	_, err := f.engine.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fast, f.manager.Quotes())

	status := f.engine.Status()
	assert.Equal(t, SyncFetching, status.State)
	assert.Equal(t, 1, status.InFlight)

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, slow, f.manager.Quotes())
	assert.Equal(t, SyncIdle, f.engine.Status().State)
}

func TestSyncEngine_TriggerOutlivesCaller(t *testing.T) {
	f := newSyncFixture(t, time.Hour)

	var fetchErr error
	f.remote.EXPECT().FetchQuotes(mock.Anything).
		RunAndReturn(func(ctx context.Context) (domain.Collection, error) {
			fetchErr = ctx.Err()
			return domain.Collection{{Text: "t", Category: "c"}}, nil
		}).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.engine.Trigger(ctx)
	f.engine.Wait()

	require.NoError(t, fetchErr)
	assert.Len(t, f.manager.Quotes(), 1)
}

func TestSyncEngine_StartRunsImmediatelyAndPeriodically(t *testing.T) {
	f := newSyncFixture(t, 10*time.Millisecond)

	var (
		mu    sync.Mutex
		calls int
	)

	f.remote.EXPECT().FetchQuotes(mock.Anything).
		RunAndReturn(func(context.Context) (domain.Collection, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return domain.Collection{}, nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	f.engine.Start(ctx)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	f.engine.Wait()

	assert.NotEqual(t, SyncFetching, f.engine.Status().State)
}

func TestSyncEngine_StartSurvivesFailures(t *testing.T) {
	f := newSyncFixture(t, 10*time.Millisecond)
	f.remote.EXPECT().FetchQuotes(mock.Anything).Return(nil, errors.New("offline"))

	ctx, cancel := context.WithCancel(context.Background())
	f.engine.Start(ctx)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.runs.WithLabelValues(syncResultFailure)) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	f.engine.Wait()

	assert.Equal(t, domain.SeedQuotes(), f.manager.Quotes())
}

func TestNewSyncEngine_Defaults(t *testing.T) {
	f := newManagerFixture(t)

	e := NewSyncEngine(f.remote, f.manager, SyncConfig{})

	assert.Equal(t, DefaultSyncInterval, e.interval)
	assert.Equal(t, SyncIdle, e.Status().State)
}

func TestSyncMetrics_NilSafe(t *testing.T) {
	var m *SyncMetrics

	assert.NotPanics(t, func() { m.observe(syncResultSuccess, 3) })
}
