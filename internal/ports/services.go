// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrTransientNetwork, etc.)
//   - Keep interfaces small and focused (Interface Segregation Principle)
package ports

import (
	"context"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

// Well-known keys of the durable and session key-value stores.
const (
	// KeyQuotes holds the serialized quote collection snapshot.
	KeyQuotes = "quotes"

	// KeySelectedCategory holds the raw selected category string.
	KeySelectedCategory = "selectedCategory"

	// KeyLastQuote holds the last shown quote for the current session.
	KeyLastQuote = "lastQuote"
)

// KeyValueStore is a string-keyed byte store.
// The durable implementation survives restarts; the session implementation
// is cleared when the session ends.
//
// Example usage in application layer:
//
//	raw, err := kv.Get(ctx, ports.KeyQuotes)
//	if domain.IsNotFound(err) {
//	    // nothing persisted yet
//	}
type KeyValueStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key.
	// Does not return an error if the key does not exist.
	Delete(ctx context.Context, key string) error
}

// QuoteSource is the remote collaborator used for synchronization.
//
// Key considerations:
//   - Handle timeouts via context deadline
//   - Map every failure to domain.ErrTransientNetwork
//   - Transform remote records to domain quotes
type QuoteSource interface {
	// FetchQuotes retrieves the remote batch already projected to quotes.
	FetchQuotes(ctx context.Context) (domain.Collection, error)

	// PushQuote sends one locally added quote to the remote side.
	// Callers treat it as best effort: the result is only logged.
	PushQuote(ctx context.Context, quote domain.Quote) error
}
