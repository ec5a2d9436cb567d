package app

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func TestNotifier_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	n := NewNotifier(3*time.Second, WithClock(clock.Now), WithNotifierLogger(discardLogger()))

	n.Notify(NoticeSynced)

	active := n.Active()
	require.Len(t, active, 1)
	assert.Equal(t, NoticeSynced, active[0].Message)
	assert.Equal(t, clock.Now().Add(3*time.Second), active[0].ExpiresAt)

	clock.Advance(2 * time.Second)
	n.Notify(NoticeImported)
	assert.Len(t, n.Active(), 2)

	clock.Advance(time.Second)
	active = n.Active()
	require.Len(t, active, 1)
	assert.Equal(t, NoticeImported, active[0].Message)

	clock.Advance(5 * time.Second)
	assert.Empty(t, n.Active())
}

func TestNotifier_DefaultTTL(t *testing.T) {
	n := NewNotifier(0)
	assert.Equal(t, DefaultNoticeTTL, n.ttl)
}

func TestNotifier_ActiveIsACopy(t *testing.T) {
	n := NewNotifier(time.Minute, WithNotifierLogger(discardLogger()))
	n.Notify("hello")

	got := n.Active()
	got[0].Message = "changed"

	assert.Equal(t, "hello", n.Active()[0].Message)
}

func TestNotifier_Concurrent(t *testing.T) {
	n := NewNotifier(time.Minute, WithNotifierLogger(discardLogger()))

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			n.Notify(NoticeImported)
			_ = n.Active()
		})
	}
	wg.Wait()

	assert.Len(t, n.Active(), 20)
}
