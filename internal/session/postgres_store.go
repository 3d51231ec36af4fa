package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"turag/internal/ragmodel"
)

// PostgresStore persists sessions as one row per session, with the turn
// ring and entity map stored as JSONB columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool and ensures the backing table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rag_sessions (
  id              TEXT PRIMARY KEY,
  turns           JSONB NOT NULL DEFAULT '[]'::jsonb,
  entity_map      JSONB NOT NULL DEFAULT '{}'::jsonb,
  active_entities JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at      TIMESTAMPTZ NOT NULL,
  last_active_at  TIMESTAMPTZ NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("session: init table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*ragmodel.Session, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, turns, entity_map, active_entities, created_at, last_active_at
FROM rag_sessions WHERE id = $1`, id)

	var (
		sess         ragmodel.Session
		turnsRaw     []byte
		entityRaw    []byte
		activeRaw    []byte
	)
	err := row.Scan(&sess.ID, &turnsRaw, &entityRaw, &activeRaw, &sess.CreatedAt, &sess.LastActiveAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}
	if err := json.Unmarshal(turnsRaw, &sess.Turns); err != nil {
		return nil, fmt.Errorf("session: decode turns: %w", err)
	}
	if err := json.Unmarshal(entityRaw, &sess.EntityMap); err != nil {
		return nil, fmt.Errorf("session: decode entity_map: %w", err)
	}
	if err := json.Unmarshal(activeRaw, &sess.ActiveEntities); err != nil {
		return nil, fmt.Errorf("session: decode active_entities: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) Commit(ctx context.Context, sess *ragmodel.Session) error {
	turnsRaw, err := json.Marshal(sess.Turns)
	if err != nil {
		return fmt.Errorf("session: encode turns: %w", err)
	}
	entityRaw, err := json.Marshal(sess.EntityMap)
	if err != nil {
		return fmt.Errorf("session: encode entity_map: %w", err)
	}
	activeRaw, err := json.Marshal(sess.ActiveEntities)
	if err != nil {
		return fmt.Errorf("session: encode active_entities: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO rag_sessions (id, turns, entity_map, active_entities, created_at, last_active_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  turns = EXCLUDED.turns,
  entity_map = EXCLUDED.entity_map,
  active_entities = EXCLUDED.active_entities,
  last_active_at = EXCLUDED.last_active_at
`, sess.ID, turnsRaw, entityRaw, activeRaw, sess.CreatedAt, sess.LastActiveAt)
	if err != nil {
		return fmt.Errorf("session: commit %s: %w", sess.ID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rag_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) IdleSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM rag_sessions WHERE last_active_at <= $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("session: idle query: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
