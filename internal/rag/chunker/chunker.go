// Package chunker windows extracted document pages into fixed-size,
// overlapping chunks ready for embedding, treating extracted tables as
// standalone chunks regardless of size.
package chunker

import (
	"strings"

	"turag/internal/ragmodel"
)

// Page is one page of extracted document text, plus any tables found on
// it (already rendered to text by the extractor).
type Page struct {
	Number int
	Text   string
	Tables []string
}

// Options bounds the chunk window. MaxTokens is converted to characters
// via a 4-characters-per-token heuristic since no BPE tokenizer is wired
// into this module.
type Options struct {
	MaxTokens int
	Overlap   float64 // fraction of MaxTokens, e.g. 0.2 for 20%
}

func targetLen(opt Options) int {
	n := opt.MaxTokens
	if n <= 0 {
		n = 1024
	}
	return n * 4
}

// ChunkDocument windows every page's text into Chunks, interleaving one
// standalone Chunk per extracted table. Ordinal is assigned in document
// order so Chunk.ID stays deterministic across re-ingestion.
func ChunkDocument(sourceDoc string, pages []Page, opt Options) []ragmodel.Chunk {
	tgt := targetLen(opt)
	if tgt < 64 {
		tgt = 64
	}
	overlapChars := int(float64(tgt) * opt.Overlap)

	var out []ragmodel.Chunk
	ordinal := 0
	for _, page := range pages {
		for _, text := range fixedWindows(page.Text, tgt, overlapChars) {
			out = append(out, ragmodel.Chunk{
				ID:        ragmodel.ChunkID(sourceDoc, ordinal, text),
				SourceDoc: sourceDoc,
				Ordinal:   ordinal,
				Text:      text,
			})
			ordinal++
		}
		for _, table := range page.Tables {
			table = strings.TrimSpace(table)
			if table == "" {
				continue
			}
			out = append(out, ragmodel.Chunk{
				ID:        ragmodel.ChunkID(sourceDoc, ordinal, table),
				SourceDoc: sourceDoc,
				Ordinal:   ordinal,
				Text:      table,
				IsTable:   true,
			})
			ordinal++
		}
	}
	return out
}

// fixedWindows splits text into contiguous windows of approximately
// target characters, preferring a whitespace boundary near the target so
// words are rarely split, with overlapChars retained at the head of each
// subsequent window.
func fixedWindows(text string, target, overlapChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	var out []string
	start := 0
	for start < len(text) {
		end := start + target
		if end >= len(text) {
			end = len(text)
		} else if i := strings.LastIndex(text[start:end], " "); i > target/2 {
			end = start + i
		}
		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(text) {
			break
		}
		next := end - overlapChars
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}
