// Package app contains the application core: the quote manager, its store,
// import/export, notices and the sync engine.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

// EmptyStateMessage is shown when the filtered view has no quotes.
const EmptyStateMessage = "No quotes available for this category."

// DefaultPushTimeout bounds one best-effort push.
const DefaultPushTimeout = 10 * time.Second

// Display is what the presentation layer renders for the current quote.
type Display struct {
	Quote *domain.Quote `json:"quote,omitempty"`
	Text  string        `json:"text"`
	Empty bool          `json:"empty"`
}

func displayOf(q domain.Quote) Display {
	return Display{Quote: &q, Text: q.Display()}
}

func emptyDisplay() Display {
	return Display{Text: EmptyStateMessage, Empty: true}
}

// ManagerConfig wires a QuoteManager.
type ManagerConfig struct {
	// Durable holds the quotes snapshot and the selected category.
	Durable ports.KeyValueStore

	// Session holds the last shown quote.
	Session ports.KeyValueStore

	// Remote receives pushed quotes. Nil disables pushing.
	Remote ports.QuoteSource

	Notifier    *Notifier
	Random      domain.RandomSource
	Logger      *slog.Logger
	PushTimeout time.Duration
}

// QuoteManager is the single owner of quote state. Every read and mutation
// of the collection, the filter and the session goes through it.
type QuoteManager struct {
	mu       sync.Mutex
	store    *QuoteStore
	durable  ports.KeyValueStore
	session  ports.KeyValueStore
	remote   ports.QuoteSource
	notifier *Notifier
	rnd      domain.RandomSource // only used under mu
	logger   *slog.Logger
	selected string

	pushTimeout time.Duration
	pushes      sync.WaitGroup
}

// NewQuoteManager creates a manager. Call Open before use.
func NewQuoteManager(cfg ManagerConfig) *QuoteManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewNotifier(DefaultNoticeTTL, WithNotifierLogger(logger))
	}

	rnd := cfg.Random
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // not security sensitive
	}

	pushTimeout := cfg.PushTimeout
	if pushTimeout <= 0 {
		pushTimeout = DefaultPushTimeout
	}

	return &QuoteManager{
		store:       NewQuoteStore(cfg.Durable, logger),
		durable:     cfg.Durable,
		session:     cfg.Session,
		remote:      cfg.Remote,
		notifier:    notifier,
		rnd:         rnd,
		logger:      logger,
		selected:    domain.CategoryAll,
		pushTimeout: pushTimeout,
	}
}

// Open loads the collection and the selected category.
func (m *QuoteManager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	quotes, selected, err := parallel(ctx,
		m.store.Load,
		m.loadSelectedCategory,
	)
	if err != nil {
		return fmt.Errorf("opening quote manager: %w", err)
	}

	m.selected = selected

	m.logger.InfoContext(ctx, "quotes loaded",
		slog.Int("count", len(quotes)),
		slog.String("category", selected),
	)

	return nil
}

func (m *QuoteManager) loadSelectedCategory(ctx context.Context) (string, error) {
	raw, err := m.durable.Get(ctx, ports.KeySelectedCategory)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if !domain.IsNotFound(err) {
			m.logger.WarnContext(ctx, "reading selected category failed", slog.Any("error", err))
		}

		return domain.CategoryAll, nil
	}

	if len(raw) == 0 {
		return domain.CategoryAll, nil
	}

	return string(raw), nil
}

// Notifier exposes the notice channel.
func (m *QuoteManager) Notifier() *Notifier {
	return m.notifier
}

// Quotes returns the full collection.
func (m *QuoteManager) Quotes() domain.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.Quotes()
}

// Categories derives the category list from the current collection.
func (m *QuoteManager) Categories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return domain.DeriveCategories(m.store.Quotes())
}

// SelectedCategory returns the remembered filter.
func (m *QuoteManager) SelectedCategory() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.selected
}

// SetSelectedCategory remembers category, including values no quote has.
// Invalid UTF-8 is replaced with U+FFFD before it is stored.
func (m *QuoteManager) SetSelectedCategory(ctx context.Context, category string) error {
	category = strings.ToValidUTF8(category, string(utf8.RuneError))
	if category == "" {
		category = domain.CategoryAll
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.selected = category

	if err := m.durable.Set(ctx, ports.KeySelectedCategory, []byte(category)); err != nil {
		return fmt.Errorf("persisting selected category: %w", err)
	}

	return nil
}

// Filtered returns the selected category and the quotes it matches.
func (m *QuoteManager) Filtered() (string, domain.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.selected, domain.ApplyFilter(m.store.Quotes(), m.selected)
}

// ShowRandom picks a quote from the filtered view and remembers it for the session.
func (m *QuoteManager) ShowRandom(ctx context.Context) Display {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.showRandomLocked(ctx)
}

func (m *QuoteManager) showRandomLocked(ctx context.Context) Display {
	quote, ok := domain.PickRandom(domain.ApplyFilter(m.store.Quotes(), m.selected), m.rnd)
	if !ok {
		return emptyDisplay()
	}

	raw, err := json.Marshal(quote)
	if err == nil {
		err = m.session.Set(ctx, ports.KeyLastQuote, raw)
	}

	if err != nil {
		m.logger.WarnContext(ctx, "remembering last quote failed", slog.Any("error", err))
	}

	return displayOf(quote)
}

// CurrentQuote restores the last shown quote, picking a new one if none is remembered.
func (m *QuoteManager) CurrentQuote(ctx context.Context) Display {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := m.session.Get(ctx, ports.KeyLastQuote)
	if err == nil {
		var quote domain.Quote
		if jsonErr := json.Unmarshal(raw, &quote); jsonErr == nil {
			return displayOf(quote)
		}
	}

	return m.showRandomLocked(ctx)
}

// AddQuote appends a quote and pushes it to the remote side in the background.
// The push never delays or fails the add.
func (m *QuoteManager) AddQuote(ctx context.Context, text, category string) (domain.Quote, error) {
	m.mu.Lock()
	quote, err := m.store.Append(ctx, text, category)
	m.mu.Unlock()

	if err != nil {
		if domain.IsValidation(err) {
			return domain.Quote{}, err
		}

		return domain.Quote{}, fmt.Errorf("adding quote: %w", err)
	}

	m.logger.InfoContext(ctx, "quote added", slog.String("category", quote.Category))
	m.push(ctx, quote)

	return quote, nil
}

// push sends quote without waiting. Failures are logged and dropped.
func (m *QuoteManager) push(ctx context.Context, quote domain.Quote) {
	if m.remote == nil {
		return
	}

	m.pushes.Go(func() {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.pushTimeout)
		defer cancel()

		if err := m.remote.PushQuote(pushCtx, quote); err != nil {
			m.logger.WarnContext(pushCtx, "quote push failed", slog.Any("error", err))

			return
		}

		m.logger.DebugContext(pushCtx, "quote pushed", slog.String("category", quote.Category))
	})
}

// WaitPushes blocks until in-flight pushes finish.
func (m *QuoteManager) WaitPushes() {
	m.pushes.Wait()
}

// Export renders the full collection.
func (m *QuoteManager) Export() ([]byte, error) {
	return ExportPayload(m.Quotes())
}

// Import appends the quotes in payload. A malformed payload changes nothing.
func (m *QuoteManager) Import(ctx context.Context, payload []byte) (int, error) {
	quotes, err := ImportPayload(payload)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	err = m.store.AppendAll(ctx, quotes)
	m.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("importing quotes: %w", err)
	}

	m.notifier.Notify(NoticeImported)

	m.logger.InfoContext(ctx, "quotes imported", slog.Int("count", len(quotes)))

	return len(quotes), nil
}

// ReplaceAll installs a remote snapshot. Replace, persist, notify and the
// refreshed pick happen under one lock, so readers see either the old or the
// new state.
func (m *QuoteManager) ReplaceAll(ctx context.Context, quotes domain.Collection) (Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.ReplaceAll(ctx, quotes); err != nil {
		return Display{}, fmt.Errorf("replacing quotes: %w", err)
	}

	m.notifier.Notify(NoticeSynced)

	return m.showRandomLocked(ctx), nil
}
