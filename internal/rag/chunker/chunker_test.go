package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genWords(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("word")
	}
	return b.String()
}

func TestChunkDocumentSizeToleranceAndOverlap(t *testing.T) {
	pages := []Page{{Number: 1, Text: genWords(2000)}} // ~8000 chars
	chunks := ChunkDocument("doc-1", pages, Options{MaxTokens: 200, Overlap: 0.1})
	require.NotEmpty(t, chunks)

	tgt := 200 * 4
	tolLow, tolHigh := int(float64(tgt)*0.9), int(float64(tgt)*1.1)
	for i, c := range chunks[:len(chunks)-1] {
		l := len(c.Text)
		assert.Truef(t, l >= tolLow && l <= tolHigh, "chunk %d length %d out of tolerance [%d,%d]", i, l, tolLow, tolHigh)
	}

	total := 0
	for _, c := range chunks {
		total += len(c.Text)
	}
	assert.Greater(t, total, len(pages[0].Text), "overlapping windows repeat text, so chunk lengths sum past the page length")
}

func TestChunkDocumentIsDeterministic(t *testing.T) {
	pages := []Page{{Number: 1, Text: genWords(500)}}
	a := ChunkDocument("doc-1", pages, Options{MaxTokens: 100})
	b := ChunkDocument("doc-1", pages, Options{MaxTokens: 100})
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
	}
}

func TestChunkDocumentTablesAreStandaloneRegardlessOfSize(t *testing.T) {
	pages := []Page{{
		Number: 1,
		Text:   "short page text",
		Tables: []string{genWords(5000)},
	}}
	chunks := ChunkDocument("doc-1", pages, Options{MaxTokens: 100})
	var tableChunks int
	for _, c := range chunks {
		if c.IsTable {
			tableChunks++
			assert.True(t, len(c.Text) > 100*4, "table chunk should not be windowed down")
		}
	}
	assert.Equal(t, 1, tableChunks)
}

func TestChunkDocumentOrdinalsAreSequential(t *testing.T) {
	pages := []Page{{Number: 1, Text: genWords(50)}, {Number: 2, Text: genWords(50)}}
	chunks := ChunkDocument("doc-1", pages, Options{MaxTokens: 100})
	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
	}
}
