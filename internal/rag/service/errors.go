package service

import "errors"

// Sentinel errors the orchestrator's callers can match on.
var (
	// ErrSessionLocked is returned when a second request for the same
	// session arrives while the first is still in flight.
	ErrSessionLocked = errors.New("service: session is locked by another in-flight request")

	// ErrEmbedFailed signals the query embedding call failed; retrieval
	// cannot proceed without a query vector, unlike the enrichment and
	// synthesis stages, which degrade gracefully instead of failing.
	ErrEmbedFailed = errors.New("service: failed to embed query")
)
