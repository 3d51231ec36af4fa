package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turag/internal/persistence/vector"
	"turag/internal/rag/chunker"
	"turag/internal/rag/embedder"
	"turag/internal/rag/enrich"
)

type stubExtractor struct {
	pages []chunker.Page
	err   error
}

func (s stubExtractor) Extract(path string) ([]chunker.Page, error) { return s.pages, s.err }

type stubStore struct {
	upserts map[string]bool
}

func newStubStore() *stubStore {
	return &stubStore{upserts: map[string]bool{}}
}

func (s *stubStore) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]string, text string) error {
	s.upserts[id] = true
	return nil
}

func (s *stubStore) Query(ctx context.Context, embedding []float32, filter map[string]string, k int) ([]vector.Match, error) {
	return nil, nil
}
func (s *stubStore) Delete(ctx context.Context, id string) error { return nil }
func (s *stubStore) Dimension() int                              { return 8 }

func TestIngest_ExtractChunkEmbedUpsert(t *testing.T) {
	pages := []chunker.Page{{Number: 1, Text: "Ponuda za Rim u maju, aranžman, 5 dana, 450 EUR po osobi."}}
	store := newStubStore()
	ix := New(stubExtractor{pages: pages}, chunker.Options{MaxTokens: 200}, enrich.New(nil, ""), embedder.NewDeterministic(16, true, 1), store)

	res, err := ix.Ingest(context.Background(), "rim.pdf")
	require.NoError(t, err)
	assert.Equal(t, "rim.pdf", res.SourceDoc)
	assert.Greater(t, res.ChunksTotal, 0)
	assert.Len(t, res.ChunkIDs, res.ChunksTotal)
	assert.Equal(t, res.ChunksTotal, len(store.upserts))
}

func TestIngest_ExtractFailurePropagates(t *testing.T) {
	ix := New(stubExtractor{err: assert.AnError}, chunker.Options{}, enrich.New(nil, ""), embedder.NewDeterministic(8, false, 0), newStubStore())
	_, err := ix.Ingest(context.Background(), "broken.pdf")
	assert.Error(t, err)
}

func TestIngest_EmptyDocumentYieldsNoChunks(t *testing.T) {
	ix := New(stubExtractor{pages: nil}, chunker.Options{}, enrich.New(nil, ""), embedder.NewDeterministic(8, false, 0), newStubStore())
	res, err := ix.Ingest(context.Background(), "empty.pdf")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ChunksTotal)
}

func TestIngest_ReingestSameTextProducesSameChunkIDs(t *testing.T) {
	pages := []chunker.Page{{Number: 1, Text: "Ponuda za Amsterdam u junu, hotel, porodicno."}}
	store := newStubStore()
	ix := New(stubExtractor{pages: pages}, chunker.Options{MaxTokens: 200}, enrich.New(nil, ""), embedder.NewDeterministic(8, false, 0), store)

	first, err := ix.Ingest(context.Background(), "ams.pdf")
	require.NoError(t, err)
	second, err := ix.Ingest(context.Background(), "ams.pdf")
	require.NoError(t, err)

	assert.Equal(t, first.ChunkIDs, second.ChunkIDs)
}
