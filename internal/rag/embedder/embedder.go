// Package embedder adapts the embedding provider for the ingestion and
// query stages: it batches chunk/query texts into requests the
// configured endpoint can serve in one round trip, and fronts every
// call with a process-wide LRU cache so re-ingesting an unchanged
// document, or re-embedding a query seen earlier this process, never
// re-hits the network.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"turag/internal/cache"
	"turag/internal/config"
	"turag/internal/embedding"
)

// Embedder defines the interface for converting text to embedding vectors.
type Embedder interface {
	// EmbedBatch returns an embedding vector per input text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns a model identifier string.
	Name() string
	// Dimension returns the embedding dimensionality (0 for variable/unknown).
	Dimension() int
	// Ping checks if the embedding service is reachable.
	Ping(ctx context.Context) error
}

// clientEmbedder wraps the embedding.EmbedText HTTP client, grouping
// chunk texts into cfg.BatchSize-sized requests and caching every
// result keyed by a
// hash of (model, text) so repeated chunk text across re-ingested
// documents, and repeated expanded queries across a session, skip the
// network entirely.
type clientEmbedder struct {
	cfg       config.EmbeddingConfig
	dim       int
	batchSize int // max texts per API call
	mu        sync.Mutex
	lastCall  time.Time
	minDelay  time.Duration // minimum delay between API calls
	cache     *cache.LRU[string, []float32]
}

// NewClient constructs an embedder that calls the configured embedding
// endpoint, batching up to cfg.BatchSize texts per request (default 16
// per call when unset) and reusing a process-wide LRU cache sized by
// cfg.CacheCapacity (default 50000).
func NewClient(cfg config.EmbeddingConfig, dim int) Embedder {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	capacity := cfg.CacheCapacity
	if capacity <= 0 {
		capacity = 50000
	}
	return &clientEmbedder{
		cfg:       cfg,
		dim:       dim,
		batchSize: batchSize,
		cache:     cache.New[string, []float32](capacity),
	}
}

func (c *clientEmbedder) Name() string   { return c.cfg.Model }
func (c *clientEmbedder) Dimension() int { return c.dim }

func (c *clientEmbedder) Ping(ctx context.Context) error {
	return embedding.CheckReachability(ctx, c.cfg)
}

// EmbedBatch serves as many texts as possible from the cache, then
// issues cfg.BatchSize-sized requests for the remainder, populating the
// cache with every fresh embedding before returning. The result
// preserves the caller's input order regardless of which texts were
// cache hits.
func (c *clientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := c.cache.Get(c.cacheKey(t)); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	for start := 0; start < len(missTexts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		batch := missTexts[start:end]
		embeddings, err := c.rateLimitedCall(ctx, batch)
		if err != nil {
			return out, err
		}
		for j, vec := range embeddings {
			idx := missIdx[start+j]
			out[idx] = vec
			c.cache.Put(c.cacheKey(batch[j]), vec)
		}
	}
	return out, nil
}

// cacheKey hashes the model name and text together so two differently
// configured embedders never share a cache entry for the same text,
// and so arbitrarily long chunk text never bloats the LRU's key map.
func (c *clientEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(c.cfg.Model + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// rateLimitedCall ensures a minimum delay between API calls to avoid overwhelming the server
func (c *clientEmbedder) rateLimitedCall(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	if !c.lastCall.IsZero() {
		elapsed := time.Since(c.lastCall)
		if elapsed < c.minDelay {
			time.Sleep(c.minDelay - elapsed)
		}
	}
	c.lastCall = time.Now()
	c.mu.Unlock()

	return embedding.EmbedText(ctx, c.cfg, texts)
}

// deterministicEmbedder is a lightweight, deterministic embedder used by
// tests and by ragctl when no embedding endpoint is configured, so the
// ingestion and retrieval pipelines remain exercisable against the
// tourism corpus fixtures without live API credentials.
type deterministicEmbedder struct {
	dim       int
	normalize bool
	seed      uint64
	name      string
}

// NewDeterministic constructs a deterministic embedder with the given dimension.
// If normalize is true, vectors are L2-normalized. Seed perturbs hashing.
func NewDeterministic(dim int, normalize bool, seed uint64) Embedder {
	if dim <= 0 {
		dim = 64
	}
	return &deterministicEmbedder{dim: dim, normalize: normalize, seed: seed, name: "deterministic"}
}

func (d *deterministicEmbedder) Name() string   { return d.name }
func (d *deterministicEmbedder) Dimension() int { return d.dim }

func (d *deterministicEmbedder) Ping(_ context.Context) error { return nil }

func (d *deterministicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

func (d *deterministicEmbedder) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	if len(s) == 0 {
		return v
	}
	// 3-gram hashing over bytes
	b := []byte(s)
	if len(b) < 3 {
		add(d.seed, b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			add(d.seed, b[i:i+3], v)
		}
	}
	if d.normalize {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum > 0 {
			inv := float32(1.0 / math.Sqrt(sum))
			for i := range v {
				v[i] *= inv
			}
		}
	}
	return v
}

func add(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	if seed != 0 {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	// map hash to a signed weight in [-1, 1]
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}
