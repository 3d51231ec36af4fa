package answer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turag/internal/llm"
	"turag/internal/rag/retrieve"
	"turag/internal/ragmodel"
)

type stubProvider struct {
	content   string
	err       error
	streamErr error
}

func (s stubProvider) Chat(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (llm.Message, error) {
	if s.err != nil {
		return llm.Message{}, s.err
	}
	return llm.Message{Role: "assistant", Content: s.content}, nil
}

func (s stubProvider) ChatStream(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions, h llm.StreamHandler) error {
	if s.streamErr != nil {
		return s.streamErr
	}
	for _, word := range []string{"Rim ", "je ", "divan."} {
		if err := h(word); err != nil {
			return err
		}
	}
	return nil
}

func chunksWithDocs(docs ...string) []retrieve.ScoredChunk {
	var out []retrieve.ScoredChunk
	for i, d := range docs {
		out = append(out, retrieve.ScoredChunk{
			Chunk:         ragmodel.Chunk{ID: d, SourceDoc: d, Text: "tekst " + d},
			AdjustedScore: 0.5 + 0.1*float64(i),
		})
	}
	return out
}

func TestSynthesize_BatchAssemblesAnswer(t *testing.T) {
	s := New(stubProvider{content: "Rim je divan grad.\n- Koliko dana planirate?\n- Koji je budžet?"}, "")
	a := s.Synthesize(context.Background(), "Reci mi o Rimu", chunksWithDocs("rim.pdf"))

	assert.Contains(t, a.Text, "Rim je divan grad.")
	require.Len(t, a.Followups, 2)
	assert.Equal(t, "Koliko dana planirate?", a.Followups[0].Text)
	assert.Len(t, a.Citations, 1)
	assert.False(t, a.Degraded)
}

func TestSynthesize_CitationsDedupByDocumentPreservingOrder(t *testing.T) {
	s := New(stubProvider{content: "ok"}, "")
	docs := chunksWithDocs("a.pdf", "b.pdf", "a.pdf")
	a := s.Synthesize(context.Background(), "q", docs)

	require.Len(t, a.Citations, 2)
	assert.Equal(t, "a.pdf", a.Citations[0].DocumentName)
	assert.Equal(t, "b.pdf", a.Citations[1].DocumentName)
	assert.Len(t, a.Citations[0].ChunkIDs, 2)
}

func TestSynthesize_ConfidenceIsMeanAdjustedScoreClamped(t *testing.T) {
	s := New(stubProvider{content: "ok"}, "")
	a := s.Synthesize(context.Background(), "q", chunksWithDocs("a.pdf", "b.pdf"))

	assert.InDelta(t, 0.55, a.Confidence, 0.0001)
	assert.GreaterOrEqual(t, a.Confidence, 0.0)
	assert.LessOrEqual(t, a.Confidence, 1.0)
}

func TestSynthesize_CompletionFailureReturnsGracefulApology(t *testing.T) {
	s := New(stubProvider{err: assert.AnError}, "")
	a := s.Synthesize(context.Background(), "q", chunksWithDocs("a.pdf"))

	assert.Empty(t, a.Citations)
	assert.Equal(t, 0.0, a.Confidence)
	assert.True(t, a.Degraded)
}

func TestSynthesize_NoProviderReturnsApology(t *testing.T) {
	s := New(nil, "")
	a := s.Synthesize(context.Background(), "q", nil)
	assert.True(t, a.Degraded)
}

func TestSynthesizeStream_ForwardsDeltasThenCompletes(t *testing.T) {
	s := New(stubProvider{}, "")
	var deltas []string
	var final ragmodel.Answer
	err := s.SynthesizeStream(context.Background(), "q", chunksWithDocs("rim.pdf"), func(ev StreamEvent) error {
		if ev.Complete {
			final = ev.Answer
			return nil
		}
		deltas = append(deltas, ev.Delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rim ", "je ", "divan."}, deltas)
	assert.Equal(t, "Rim je divan.", final.Text)
	assert.Len(t, final.Citations, 1)
}

func TestSynthesizeStream_FailureEmitsApologyComplete(t *testing.T) {
	s := New(stubProvider{streamErr: assert.AnError}, "")
	var final ragmodel.Answer
	err := s.SynthesizeStream(context.Background(), "q", nil, func(ev StreamEvent) error {
		if ev.Complete {
			final = ev.Answer
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, final.Degraded)
	assert.Equal(t, 0.0, final.Confidence)
}
