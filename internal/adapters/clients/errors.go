// Package clients is the outbound HTTP layer used to reach the posts service.
package clients

import "errors"

// Transport failures. The acl package maps both to domain.ErrTransientNetwork.
var (
	// ErrCircuitOpen means the breaker refused the call without touching the network.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last failure once every attempt is spent.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
