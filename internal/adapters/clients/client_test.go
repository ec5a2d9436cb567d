package clients

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
)

func postsConfig(baseURL string) *Config {
	return &Config{
		BaseURL:     baseURL,
		ServiceName: "posts-service",
		Timeout:     5 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     100 * time.Millisecond,
			Multiplier:      2.0,
			JitterFactor:    0.25,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   5,
			Timeout:       time.Second,
			HalfOpenLimit: 2,
		},
	}
}

// postsServer answers /posts with status and counts the calls it receives.
func postsServer(t *testing.T, status func(call int32) int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		code := status(calls.Add(1))
		w.WriteHeader(code)
		_, _ = io.WriteString(w, `[{"id":1,"title":"Be yourself.","body":"life is short"}]`)
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

func always(code int) func(int32) int { return func(int32) int { return code } }

func newClient(t *testing.T, cfg *Config) *Client {
	t.Helper()

	c, err := New(cfg)
	require.NoError(t, err)

	return c
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "config is required")

	cfg := postsConfig("https://jsonplaceholder.typicode.com/")
	cfg.ServiceName = ""
	_, err = New(cfg)
	require.ErrorContains(t, err, "service name is required")

	cfg = postsConfig("https://jsonplaceholder.typicode.com/")
	cfg.Timeout = 0
	cfg.Retry.MaxAttempts = 0
	c := newClient(t, cfg)

	assert.Equal(t, "https://jsonplaceholder.typicode.com", c.baseURL)
	assert.Equal(t, defaultTimeout, c.cfg.Timeout)
	assert.Equal(t, 1, c.cfg.Retry.MaxAttempts)
	assert.Equal(t, BreakerClosed, c.Breaker().State())

	// the caller's config is not modified
	assert.Zero(t, cfg.Timeout)
}

func TestClient_URL(t *testing.T) {
	c := newClient(t, postsConfig("https://jsonplaceholder.typicode.com"))

	assert.Equal(t, "https://jsonplaceholder.typicode.com/posts", c.url("/posts"))
	assert.Equal(t, "https://jsonplaceholder.typicode.com/posts", c.url("posts"))
}

func TestClient_Headers(t *testing.T) {
	var got http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	cfg := postsConfig(srv.URL)
	cfg.UserAgent = "quotectl/dev"
	c := newClient(t, cfg)

	ctx := middleware.ContextWithRequestID(context.Background(), "req-1")
	ctx = middleware.ContextWithCorrelationID(ctx, "corr-1")

	resp, err := c.Post(ctx, "/posts", strings.NewReader(`{"text":"a","category":"b"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "req-1", got.Get(middleware.HeaderRequestID))
	assert.Equal(t, "corr-1", got.Get(middleware.HeaderCorrelationID))
	assert.Equal(t, "quotectl/dev", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name      string
		status    func(int32) int
		wantCalls int32
		wantErr   bool
		wantCode  int
	}{
		{
			name: "recovers after server errors",
			status: func(call int32) int {
				if call < 3 {
					return http.StatusBadGateway
				}
				return http.StatusOK
			},
			wantCalls: 3,
			wantCode:  http.StatusOK,
		},
		{
			name:      "client errors are returned without retry",
			status:    always(http.StatusNotFound),
			wantCalls: 1,
			wantCode:  http.StatusNotFound,
		},
		{
			name:      "gives up after max attempts",
			status:    always(http.StatusServiceUnavailable),
			wantCalls: 3,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := postsServer(t, tt.status)
			c := newClient(t, postsConfig(srv.URL))

			resp, err := c.Get(context.Background(), "/posts")

			assert.Equal(t, tt.wantCalls, calls.Load())

			if tt.wantErr {
				require.ErrorIs(t, err, ErrMaxRetriesExceeded)
				assert.ErrorContains(t, err, "server error: 503")
				return
			}

			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}
}

func TestClient_PostRetryResendsBody(t *testing.T) {
	var bodies []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))

		if len(bodies) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newClient(t, postsConfig(srv.URL))

	resp, err := c.Post(context.Background(), "/posts", strings.NewReader(`{"text":"Stay hungry."}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, []string{`{"text":"Stay hungry."}`, `{"text":"Stay hungry."}`}, bodies)
}

func TestClient_BreakerShortCircuits(t *testing.T) {
	srv, calls := postsServer(t, always(http.StatusBadGateway))

	cfg := postsConfig(srv.URL)
	cfg.Retry.MaxAttempts = 1
	cfg.Circuit.MaxFailures = 2
	cfg.Circuit.Timeout = time.Hour
	c := newClient(t, cfg)

	for range 2 {
		_, err := c.Get(context.Background(), "/posts")
		require.ErrorIs(t, err, ErrMaxRetriesExceeded)
	}

	assert.Equal(t, BreakerOpen, c.Breaker().State())

	_, err := c.Get(context.Background(), "/posts")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestClient_Cancellation(t *testing.T) {
	srv, calls := postsServer(t, always(http.StatusBadGateway))

	cfg := postsConfig(srv.URL)
	cfg.Retry.InitialInterval = time.Second
	cfg.Retry.MaxInterval = time.Second
	c := newClient(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "/posts")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	cfg := postsConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	cfg.Retry.MaxAttempts = 1
	c := newClient(t, cfg)

	_, err := c.Get(context.Background(), "/posts")
	require.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestClient_Backoff(t *testing.T) {
	cfg := postsConfig("http://posts")
	cfg.Retry.JitterFactor = 0
	c := newClient(t, cfg)

	assert.Equal(t, 20*time.Millisecond, c.backoff(1))
	assert.Equal(t, 40*time.Millisecond, c.backoff(2))
	assert.Equal(t, 100*time.Millisecond, c.backoff(8), "capped at max interval")

	c.cfg.Retry.JitterFactor = 0.25
	for range 50 {
		d := c.backoff(1)
		assert.GreaterOrEqual(t, d, 15*time.Millisecond)
		assert.LessOrEqual(t, d, 25*time.Millisecond)
	}
}

func TestNewTransport(t *testing.T) {
	tr := newTransport(config.TransportConfig{})
	assert.Equal(t, config.DefaultTransportMaxIdleConns, tr.MaxIdleConns)
	assert.Equal(t, config.DefaultTransportMaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
	assert.Equal(t, config.DefaultTransportIdleConnTimeout, tr.IdleConnTimeout)

	tr = newTransport(config.TransportConfig{MaxIdleConns: 7, MaxIdleConnsPerHost: 3, IdleConnTimeout: time.Minute})
	assert.Equal(t, 7, tr.MaxIdleConns)
	assert.Equal(t, 3, tr.MaxIdleConnsPerHost)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"net timeout", timeoutErr{}, true},
		{"connection refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"plain", errors.New("bad url"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}
