// Package ingest drives the indexing side of the pipeline: extract a
// PDF into pages, window it into chunks, enrich each chunk with
// structured metadata, embed the chunks, and upsert them into the
// vector store. Re-ingesting the same document is safe because
// ragmodel.ChunkID is deterministic in (sourceDoc, ordinal, text): the
// same chunk always lands on the same store point and overwrites it in
// place, so no separate idempotency ledger is needed.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"turag/internal/pdfextract"
	"turag/internal/persistence/vector"
	"turag/internal/rag/chunker"
	"turag/internal/rag/embedder"
	"turag/internal/rag/enrich"
)

// maxConcurrentEnrichment bounds how many chunks are sent to the LLM
// enricher at once, so a large brochure doesn't open hundreds of
// simultaneous completion requests.
const maxConcurrentEnrichment = 6

// Result summarizes one document's ingestion.
type Result struct {
	SourceDoc    string
	ChunksTotal  int
	ChunksFailed int
	ChunkIDs     []string
}

// Indexer wires together extraction, chunking, enrichment, embedding,
// and vector storage.
type Indexer struct {
	extractor pdfextract.Extractor
	chunkOpts chunker.Options
	enricher  *enrich.Enricher
	embedder  embedder.Embedder
	store     vector.Store
}

// New builds an Indexer from its stage dependencies.
func New(extractor pdfextract.Extractor, chunkOpts chunker.Options, enricher *enrich.Enricher, emb embedder.Embedder, store vector.Store) *Indexer {
	return &Indexer{extractor: extractor, chunkOpts: chunkOpts, enricher: enricher, embedder: emb, store: store}
}

// Ingest extracts path, chunks it, enriches and embeds every chunk, and
// upserts each into the vector store. A single chunk's upsert failure is
// counted in Result.ChunksFailed and skipped rather than aborting the
// whole document, so one bad chunk doesn't block an otherwise-good
// brochure from being indexed. A failed enrichment degrades that chunk's
// metadata instead of failing; an embedding failure aborts the whole
// document with an error.
func (ix *Indexer) Ingest(ctx context.Context, path string) (Result, error) {
	sourceDoc := filepath.Base(path)
	res := Result{SourceDoc: sourceDoc}

	pages, err := ix.extractor.Extract(path)
	if err != nil {
		return res, fmt.Errorf("ingest: extract %s: %w", path, err)
	}

	chunks := chunker.ChunkDocument(sourceDoc, pages, ix.chunkOpts)
	res.ChunksTotal = len(chunks)
	if len(chunks) == 0 {
		return res, nil
	}

	texts := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentEnrichment)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			chunks[i].Metadata = ix.enricher.Enrich(gctx, c, sourceDoc)
			texts[i] = c.Text
			return nil
		})
	}
	_ = g.Wait() // Enrich never returns an error; it degrades internally

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return res, fmt.Errorf("ingest: embed %s: %w", sourceDoc, err)
	}
	if len(vectors) != len(chunks) {
		return res, fmt.Errorf("ingest: %s: embedder returned %d vectors for %d chunks", sourceDoc, len(vectors), len(chunks))
	}

	for i, c := range chunks {
		c.Embedding = vectors[i]
		meta := c.Metadata.Flatten()
		meta["source_doc"] = sourceDoc
		meta["ordinal"] = fmt.Sprintf("%d", c.Ordinal)
		meta["is_table"] = fmt.Sprintf("%t", c.IsTable)

		if err := ix.store.Upsert(ctx, c.ID, c.Embedding, meta, c.Text); err != nil {
			res.ChunksFailed++
			continue
		}
		res.ChunkIDs = append(res.ChunkIDs, c.ID)
	}
	return res, nil
}
