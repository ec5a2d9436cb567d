package app

import (
	"log/slog"
	"sync"
	"time"
)

// User-facing notices.
const (
	NoticeSynced   = "Quotes synced from server. Local data updated."
	NoticeImported = "Quotes imported successfully!"
)

// DefaultNoticeTTL is how long a notice stays visible when not configured.
const DefaultNoticeTTL = 3 * time.Second

// Notification is one transient message.
type Notification struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Notifier keeps short-lived notices for the presentation layer.
type Notifier struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
	items  []Notification
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) NotifierOption {
	return func(n *Notifier) { n.now = now }
}

// WithNotifierLogger sets the logger notices are echoed to.
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) { n.logger = logger }
}

// NewNotifier creates a Notifier. A non-positive ttl uses DefaultNoticeTTL.
func NewNotifier(ttl time.Duration, opts ...NotifierOption) *Notifier {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}

	n := &Notifier{
		ttl:    ttl,
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Notify records msg until its TTL passes.
func (n *Notifier) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	n.items = append(n.items, Notification{
		Message:   msg,
		CreatedAt: now,
		ExpiresAt: now.Add(n.ttl),
	})

	n.logger.Info("notice", slog.String("message", msg))
}

// Active returns unexpired notices, oldest first, and prunes the rest.
func (n *Notifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	live := n.items[:0]

	for _, item := range n.items {
		if now.Before(item.ExpiresAt) {
			live = append(live, item)
		}
	}

	n.items = live

	out := make([]Notification, len(live))
	copy(out, live)

	return out
}
