// Package session persists conversational state between turns: the
// short-term turn ring, the long-term EntityMap, and the current
// ActiveEntityView. It provides two Store implementations (file-backed
// and Postgres-backed) plus a Redis-backed lock that serializes
// concurrent requests against the same session id while leaving
// different sessions free to proceed in parallel.
package session

import (
	"context"
	"errors"
	"time"

	"turag/internal/ragmodel"
)

// ErrNotFound is returned by Load when no session exists for an id.
var ErrNotFound = errors.New("session: not found")

// Store loads and commits Session state.
type Store interface {
	Load(ctx context.Context, id string) (*ragmodel.Session, error)
	Commit(ctx context.Context, s *ragmodel.Session) error
	Delete(ctx context.Context, id string) error

	// IdleSince lists session ids whose LastActiveAt is at or before cutoff.
	IdleSince(ctx context.Context, cutoff time.Time) ([]string, error)
}

// NewSession creates an empty session ready for its first turn.
func NewSession(id string, now time.Time) *ragmodel.Session {
	return &ragmodel.Session{
		ID:             id,
		EntityMap:      make(ragmodel.EntityMap),
		ActiveEntities: make(ragmodel.ActiveEntityView),
		CreatedAt:      now,
		LastActiveAt:   now,
	}
}

// AppendTurn appends one message to the ring. ringSize counts full
// exchanges (a user message plus its assistant reply), so the ring
// holds at most 2*ringSize messages verbatim; everything older lives on
// only through the EntityMap it already contributed to.
func AppendTurn(s *ragmodel.Session, turn ragmodel.Turn, ringSize int) {
	s.Turns = append(s.Turns, turn)
	if max := ringSize * 2; ringSize > 0 && len(s.Turns) > max {
		s.Turns = s.Turns[len(s.Turns)-max:]
	}
	s.LastActiveAt = turn.Timestamp
}
