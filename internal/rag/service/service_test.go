package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turag/internal/llm"
	"turag/internal/persistence/vector"
	"turag/internal/rag/answer"
	"turag/internal/rag/embedder"
	"turag/internal/rag/entity"
	"turag/internal/rag/retrieve"
	"turag/internal/rag/rewrite"
	"turag/internal/rag/selfquery"
	"turag/internal/ragmodel"
	"turag/internal/session"
)

type memStore struct {
	sessions map[string]*ragmodel.Session
}

func newMemStore() *memStore { return &memStore{sessions: map[string]*ragmodel.Session{}} }

func (m *memStore) Load(ctx context.Context, id string) (*ragmodel.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s, nil
}
func (m *memStore) Commit(ctx context.Context, s *ragmodel.Session) error {
	m.sessions[s.ID] = s
	return nil
}
func (m *memStore) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}
func (m *memStore) IdleSince(ctx context.Context, cutoff time.Time) ([]string, error) { return nil, nil }

type memVectorStore struct {
	matches []vector.Match
	filters []map[string]string
}

func (v *memVectorStore) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]string, text string) error {
	return nil
}
func (v *memVectorStore) Query(ctx context.Context, embedding []float32, filter map[string]string, k int) ([]vector.Match, error) {
	v.filters = append(v.filters, filter)
	return v.matches, nil
}
func (v *memVectorStore) Delete(ctx context.Context, id string) error { return nil }
func (v *memVectorStore) Dimension() int                             { return 8 }

func newService(t *testing.T, matches []vector.Match) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	vecStore := &memVectorStore{matches: matches}
	svc := New(Deps{
		Sessions:    store,
		Lock:        session.NewInProcessLock(),
		Rewriter:    rewrite.New(nil, ""),
		Extractor:   entity.New(nil, ""),
		SelfQuery:   selfquery.New(nil, ""),
		Expander:    nil,
		Retriever:   retrieve.New(vecStore, retrieve.DefaultWeights()),
		Synthesizer: answer.New(nil, ""),
		Embedder:    embedder.NewDeterministic(8, false, 1),
		RingSize:    3,
		DefaultK:    4,
	})
	return svc, store
}

func TestQuery_CommitsSessionExactlyOnceWithBothTurns(t *testing.T) {
	svc, store := newService(t, []vector.Match{
		{ID: "c1", Distance: 0.1, Text: "Rim ponuda", Metadata: map[string]string{"destination": "Rim", "source_doc": "rim.pdf"}},
	})

	ans, err := svc.Query(context.Background(), "s1", "Reci mi nesto o Rimu", UserClient)
	require.NoError(t, err)
	assert.True(t, ans.Degraded) // nil synthesizer provider -> apology path

	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, "user", sess.Turns[0].Role)
	assert.Equal(t, "assistant", sess.Turns[1].Role)
}

func TestQuery_SecondConcurrentRequestIsLockedOut(t *testing.T) {
	svc, _ := newService(t, nil)
	lock := svc.lock
	ok, err := lock.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Query(context.Background(), "s1", "upit", UserClient)
	assert.ErrorIs(t, err, ErrSessionLocked)
}

func TestQuery_CreatesNewSessionWhenNotFound(t *testing.T) {
	svc, store := newService(t, nil)
	_, err := svc.Query(context.Background(), "brand-new", "zdravo", UserClient)
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "brand-new")
	assert.NoError(t, err)
}

type stubChat struct{ content string }

func (s stubChat) Chat(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (llm.Message, error) {
	return llm.Message{Role: "assistant", Content: s.content}, nil
}
func (s stubChat) ChatStream(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions, h llm.StreamHandler) error {
	return nil
}

type failEmbedder struct{}

func (failEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, assert.AnError
}
func (failEmbedder) Name() string                   { return "fail" }
func (failEmbedder) Dimension() int                 { return 8 }
func (failEmbedder) Ping(ctx context.Context) error { return assert.AnError }

func TestQuery_ContextSwitchKeepsBudgetAndHardFiltersOnNewDestination(t *testing.T) {
	store := newMemStore()
	matches := []vector.Match{
		{ID: "p1", Distance: 0.1, Text: "Pariz ponuda 1", Metadata: map[string]string{"destination": "Pariz", "source_doc": "pariz.pdf"}},
		{ID: "p2", Distance: 0.2, Text: "Pariz ponuda 2", Metadata: map[string]string{"destination": "Pariz", "source_doc": "pariz.pdf"}},
		{ID: "p3", Distance: 0.3, Text: "Pariz ponuda 3", Metadata: map[string]string{"destination": "Pariz", "source_doc": "pariz_vikend.pdf"}},
	}
	vecStore := &memVectorStore{matches: matches}

	build := func(parserContent string) *Service {
		var parser *selfquery.Parser
		if parserContent == "" {
			parser = selfquery.New(nil, "")
		} else {
			parser = selfquery.New(stubChat{parserContent}, "")
		}
		return New(Deps{
			Sessions:    store,
			Lock:        session.NewInProcessLock(),
			Rewriter:    rewrite.New(nil, ""),
			Extractor:   entity.New(nil, ""),
			SelfQuery:   parser,
			Retriever:   retrieve.New(vecStore, retrieve.DefaultWeights()),
			Synthesizer: answer.New(nil, ""),
			Embedder:    embedder.NewDeterministic(8, false, 1),
			RingSize:    3,
			DefaultK:    4,
		})
	}

	// Turn 1 establishes destination and budget from rule extraction alone.
	_, err := build("").Query(context.Background(), "s-switch", "Tražim aranžman za Rim, budžet 500 EUR.", UserClient)
	require.NoError(t, err)

	// Turn 2 switches destination; the parser extracts Pariz explicitly.
	_, err = build(`{"destination": "Pariz", "confidence": 0.8}`).Query(context.Background(), "s-switch", "A što sa Parizom?", UserClient)
	require.NoError(t, err)

	require.NotEmpty(t, vecStore.filters)
	assert.Equal(t, map[string]string{"destination": "Pariz"}, vecStore.filters[len(vecStore.filters)-1])

	sess, err := store.Load(context.Background(), "s-switch")
	require.NoError(t, err)
	assert.Equal(t, "Pariz", sess.ActiveEntities[ragmodel.EntityDestination])
	assert.Equal(t, "500", sess.ActiveEntities[ragmodel.EntityBudget])
}

func TestQuery_EmbeddingFailureCommitsNothing(t *testing.T) {
	store := newMemStore()
	svc := New(Deps{
		Sessions:    store,
		Lock:        session.NewInProcessLock(),
		Rewriter:    rewrite.New(nil, ""),
		Extractor:   entity.New(nil, ""),
		SelfQuery:   selfquery.New(nil, ""),
		Retriever:   retrieve.New(&memVectorStore{}, retrieve.DefaultWeights()),
		Synthesizer: answer.New(nil, ""),
		Embedder:    failEmbedder{},
		RingSize:    3,
		DefaultK:    4,
	})

	_, err := svc.Query(context.Background(), "s-fail", "bilo šta", UserClient)
	require.ErrorIs(t, err, ErrEmbedFailed)

	_, err = store.Load(context.Background(), "s-fail")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestActiveFilters_ReturnsSessionView(t *testing.T) {
	svc, store := newService(t, nil)
	sess := session.NewSession("s2", time.Now())
	sess.ActiveEntities[ragmodel.EntityDestination] = "Rim"
	require.NoError(t, store.Commit(context.Background(), sess))

	view, err := svc.ActiveFilters(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, "Rim", view[ragmodel.EntityDestination])
}
