// Package vector defines the tourism chunk vector-store contract and its
// three backends: Qdrant (production), Postgres/pgvector (alternate
// production backend), and an in-memory store used by tests.
package vector

import "context"

// Match is one hit from Query, already converted to distance semantics
// (lower is better, 0 is an exact match) regardless of backend.
type Match struct {
	ID       string
	Distance float64
	Metadata map[string]string
	Text     string
}

// Store is the contract internal/rag/ingest and internal/rag/retrieve
// depend on. Implementations never leak SDK types across the boundary.
type Store interface {
	// Upsert writes or overwrites the point at id. Re-ingesting the same
	// id replaces the vector, metadata, and text in place.
	Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]string, text string) error

	// Query returns up to k nearest neighbors to embedding, restricted to
	// points whose metadata satisfies every key/value pair in filter
	// (equality match). filter may be empty.
	Query(ctx context.Context, embedding []float32, filter map[string]string, k int) ([]Match, error)

	Delete(ctx context.Context, id string) error

	Dimension() int
}
