package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresStore stores embeddings in a pgvector column and uses the
// <=> cosine-distance operator directly, needing no score inversion.
type postgresStore struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewPostgresStore ensures the pgvector extension and backing table
// exist, then returns a Store backed by them.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, dimension int) (Store, error) {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, fmt.Errorf("create vector extension: %w", err)
	}
	vecType := "vector"
	if dimension > 0 {
		vecType = fmt.Sprintf("vector(%d)", dimension)
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS tourism_chunks (
  id TEXT PRIMARY KEY,
  embedding %s,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  chunk_text TEXT NOT NULL DEFAULT ''
)`, vecType)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create tourism_chunks table: %w", err)
	}
	return &postgresStore{pool: pool, dimension: dimension}, nil
}

func (p *postgresStore) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]string, text string) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO tourism_chunks(id, embedding, metadata, chunk_text)
VALUES ($1, $2::vector, $3, $4)
ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata, chunk_text = EXCLUDED.chunk_text
`, id, vectorLiteral(embedding), metadata, text)
	return err
}

func (p *postgresStore) Delete(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM tourism_chunks WHERE id = $1`, id)
	return err
}

func (p *postgresStore) Query(ctx context.Context, embedding []float32, filter map[string]string, k int) ([]Match, error) {
	if k <= 0 {
		k = 10
	}
	vecLit := vectorLiteral(embedding)
	where := ""
	args := []any{vecLit, k}
	if len(filter) > 0 {
		where = "WHERE metadata @> $3"
		args = append(args, filter)
	}
	query := fmt.Sprintf(`
SELECT id, (embedding <=> $1::vector) AS distance, metadata, chunk_text
FROM tourism_chunks %s
ORDER BY embedding <=> $1::vector
LIMIT $2`, where)
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Match, 0, k)
	for rows.Next() {
		var m Match
		var md map[string]string
		if err := rows.Scan(&m.ID, &m.Distance, &md, &m.Text); err != nil {
			return nil, err
		}
		m.Metadata = md
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *postgresStore) Dimension() int { return p.dimension }

func vectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}
