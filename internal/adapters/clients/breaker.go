package clients

import (
	"sync"
	"time"

	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
)

// BreakerState is the position of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker stops calling the posts service after repeated failures.
//
// MaxFailures consecutive failures open it. After Timeout one probe is let
// through (half-open); HalfOpenLimit consecutive successes close it again and
// any failure while probing reopens it.
type Breaker struct {
	cfg config.CircuitBreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	inFlight  int
	openedAt  time.Time
	observers []func(from, to BreakerState)
}

// NewBreaker returns a closed breaker. Observers run synchronously on every
// transition, outside the breaker's lock.
func NewBreaker(cfg config.CircuitBreakerConfig, observers ...func(from, to BreakerState)) *Breaker {
	return &Breaker{
		cfg:       cfg,
		now:       time.Now,
		observers: observers,
	}
}

// Acquire reserves a call. It returns ErrCircuitOpen when the call must not be made;
// otherwise the caller must report the outcome with Release.
func (b *Breaker) Acquire() error {
	b.mu.Lock()

	var moved *transition

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Timeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}

		moved = b.moveLocked(BreakerHalfOpen)
		b.inFlight = 1
	case BreakerHalfOpen:
		if b.inFlight >= b.cfg.HalfOpenLimit {
			b.mu.Unlock()
			return ErrCircuitOpen
		}

		b.inFlight++
	}

	b.mu.Unlock()
	b.notify(moved)

	return nil
}

// Release records the outcome of a call obtained through Acquire.
func (b *Breaker) Release(ok bool) {
	b.mu.Lock()

	var moved *transition

	switch b.state {
	case BreakerClosed:
		if ok {
			b.failures = 0
			break
		}

		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			moved = b.moveLocked(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.inFlight = max(b.inFlight-1, 0)
		if !ok {
			moved = b.moveLocked(BreakerOpen)
			break
		}

		b.successes++
		if b.successes >= b.cfg.HalfOpenLimit {
			moved = b.moveLocked(BreakerClosed)
		}
	}

	b.mu.Unlock()
	b.notify(moved)
}

// State reports the current position.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

type transition struct{ from, to BreakerState }

func (b *Breaker) moveLocked(to BreakerState) *transition {
	if b.state == to {
		return nil
	}

	t := &transition{from: b.state, to: to}
	b.state = to
	b.failures, b.successes = 0, 0

	if to == BreakerOpen {
		b.openedAt = b.now()
		b.inFlight = 0
	}

	return t
}

func (b *Breaker) notify(t *transition) {
	if t == nil {
		return
	}

	for _, fn := range b.observers {
		fn(t.from, t.to)
	}
}
