package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turag/internal/ragmodel"
)

type fakeStore struct {
	sessions map[string]*ragmodel.Session
}

func newFakeStore() *fakeStore { return &fakeStore{sessions: map[string]*ragmodel.Session{}} }

func (f *fakeStore) Load(ctx context.Context, id string) (*ragmodel.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) Commit(ctx context.Context, s *ragmodel.Session) error {
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) IdleSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	var out []string
	for id, s := range f.sessions {
		if !s.LastActiveAt.After(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}

func TestJanitorSweep_DeletesOnlyIdleSessions(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	old := NewSession("old", now.Add(-48*time.Hour))
	old.LastActiveAt = now.Add(-48 * time.Hour)
	fresh := NewSession("fresh", now)
	require.NoError(t, store.Commit(context.Background(), old))
	require.NoError(t, store.Commit(context.Background(), fresh))

	n, err := JanitorSweep(context.Background(), store, now.Add(-IdleTimeout))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Load(context.Background(), "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Load(context.Background(), "fresh")
	assert.NoError(t, err)
}

func TestJanitorSweep_IsIdempotent(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	old := NewSession("old", now.Add(-48*time.Hour))
	old.LastActiveAt = now.Add(-48 * time.Hour)
	require.NoError(t, store.Commit(context.Background(), old))

	first, err := JanitorSweep(context.Background(), store, now.Add(-IdleTimeout))
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := JanitorSweep(context.Background(), store, now.Add(-IdleTimeout))
	require.NoError(t, err)
	assert.Equal(t, 0, second)
}
