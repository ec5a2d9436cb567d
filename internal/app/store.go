package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

// QuoteStore owns the in-memory collection and its durable snapshot.
//
// QuoteStore does no locking of its own; QuoteManager serializes access.
type QuoteStore struct {
	kv     ports.KeyValueStore
	logger *slog.Logger
	quotes domain.Collection
}

// NewQuoteStore creates a store over the durable key-value collaborator.
func NewQuoteStore(kv ports.KeyValueStore, logger *slog.Logger) *QuoteStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &QuoteStore{
		kv:     kv,
		logger: logger,
		quotes: domain.Collection{},
	}
}

// Load reads the snapshot. A missing or unreadable snapshot yields the seed quotes.
// The only error returned is context cancellation.
func (s *QuoteStore) Load(ctx context.Context) (domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.kv.Get(ctx, ports.KeyQuotes)

	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err == nil:
		var quotes domain.Collection
		if jsonErr := json.Unmarshal(raw, &quotes); jsonErr != nil || quotes == nil {
			s.logger.WarnContext(ctx, "stored quotes unreadable, using defaults", slog.Any("error", jsonErr))

			quotes = domain.SeedQuotes()
		}

		s.quotes = quotes
	case domain.IsNotFound(err):
		s.quotes = domain.SeedQuotes()
	default:
		s.logger.WarnContext(ctx, "reading stored quotes failed, using defaults", slog.Any("error", err))

		s.quotes = domain.SeedQuotes()
	}

	return s.quotes.Clone(), nil
}

// Quotes returns a copy of the current collection.
func (s *QuoteStore) Quotes() domain.Collection {
	return s.quotes.Clone()
}

// Save overwrites the snapshot with c and makes it the current collection.
// When persisting fails the current collection is left as it was.
func (s *QuoteStore) Save(ctx context.Context, c domain.Collection) error {
	c = c.Clone()

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding quotes: %w", err)
	}

	if err := s.kv.Set(ctx, ports.KeyQuotes, raw); err != nil {
		return fmt.Errorf("persisting quotes: %w", err)
	}

	s.quotes = c

	return nil
}

// Append validates and adds one quote at the end, then saves.
// Invalid input leaves the collection untouched.
func (s *QuoteStore) Append(ctx context.Context, text, category string) (domain.Quote, error) {
	quote, err := domain.NewQuote(text, category)
	if err != nil {
		return domain.Quote{}, err
	}

	next := append(s.quotes.Clone(), quote)

	if err := s.Save(ctx, next); err != nil {
		return domain.Quote{}, err
	}

	return quote, nil
}

// AppendAll adds quotes as given, without per-element validation.
func (s *QuoteStore) AppendAll(ctx context.Context, quotes domain.Collection) error {
	next := append(s.quotes.Clone(), quotes...)

	return s.Save(ctx, next)
}

// ReplaceAll swaps the whole collection.
func (s *QuoteStore) ReplaceAll(ctx context.Context, quotes domain.Collection) error {
	return s.Save(ctx, quotes)
}
