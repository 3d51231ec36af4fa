// Package retrieve implements the hybrid retriever: a priority-ordered
// hard filter passed to the vector store, an over-fetch factor, a
// distance-to-similarity conversion, weighted post-retrieval penalties,
// and a no-hard-filter fallback when the filtered result set runs thin.
package retrieve

import (
	"context"
	"sort"

	"turag/internal/persistence/vector"
	"turag/internal/rag/gazetteer"
	"turag/internal/ragmodel"
)

// Weights holds the retriever's tunable penalty multipliers.
type Weights struct {
	OverfetchFactor      int
	FallbackThreshold    int
	PriceOvershootWeight float64
	MonthAdjacentWeight  float64
	MonthFarWeight       float64
	DurationWeight       float64
	CategoryWeight       float64
	FamilyConflictWeight float64
}

// DefaultWeights match the values config.RetrievalConfig ships with.
func DefaultWeights() Weights {
	return Weights{
		OverfetchFactor:      4,
		FallbackThreshold:    3,
		PriceOvershootWeight: 0.5,
		MonthAdjacentWeight:  0.3,
		MonthFarWeight:       0.6,
		DurationWeight:       0.5,
		CategoryWeight:       0.3,
		FamilyConflictWeight: 0.4,
	}
}

// ScoredChunk is one ranked retrieval result, with a trace of which
// penalties fired.
type ScoredChunk struct {
	Chunk         ragmodel.Chunk
	RawSimilarity float64
	AdjustedScore float64
	PenaltyTrace  []string
}

// Retriever drives a vector.Store according to the filter-priority
// hierarchy and weighted post-scoring.
type Retriever struct {
	store   vector.Store
	weights Weights
}

// New builds a Retriever.
func New(store vector.Store, weights Weights) *Retriever {
	return &Retriever{store: store, weights: weights}
}

// The hard-filter priority is fixed: destination > travel_month >
// category > price_range > none. One equality predicate at most goes to
// the store; everything else scores softly afterwards.
func selectHardFilter(f ragmodel.StructuredFilters) (field, value string) {
	switch {
	case f.Destination != "":
		return "destination", f.Destination
	case f.TravelMonth != "":
		return "travel_month", f.TravelMonth
	case f.Category != "":
		return "category", string(f.Category)
	case f.PriceRange != "":
		return "price_range", string(f.PriceRange)
	default:
		return "", ""
	}
}

// Retrieve searches with the caller-embedded queryVec, applies the hard filter,
// over-fetches, converts distances to similarities, applies every
// applicable soft penalty, sorts, and truncates to k. It falls back to
// no hard filter (applying it as a soft penalty instead) when the
// hard-filtered request returns fewer than FallbackThreshold results.
func (r *Retriever) Retrieve(ctx context.Context, queryVec []float32, filters ragmodel.StructuredFilters, k int) ([]ScoredChunk, string, error) {
	if k <= 0 {
		k = 8
	}
	factor := r.weights.OverfetchFactor
	if factor <= 0 {
		factor = 4
	}
	overfetchK := k * factor

	hardField, hardValue := selectHardFilter(filters)
	filter := map[string]string{}
	if hardField != "" {
		filter[hardField] = hardValue
	}

	matches, err := r.store.Query(ctx, queryVec, filter, overfetchK)
	if err != nil {
		return nil, hardField, err
	}

	threshold := r.weights.FallbackThreshold
	if threshold <= 0 {
		threshold = 3
	}
	usedHardField := hardField
	if hardField != "" && len(matches) < threshold {
		matches, err = r.store.Query(ctx, queryVec, nil, overfetchK)
		if err != nil {
			return nil, hardField, err
		}
		usedHardField = ""
	}

	scored := make([]ScoredChunk, 0, len(matches))
	for _, m := range matches {
		scored = append(scored, r.score(m, filters, usedHardField))
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].AdjustedScore > scored[j].AdjustedScore })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, usedHardField, nil
}

// sim converts a store distance (lower is better, >=0) to a similarity
// in (0,1], avoiding the negative-similarity pathology of 1-distance
// when the store's distance can exceed 1.
func sim(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}

func (r *Retriever) score(m vector.Match, f ragmodel.StructuredFilters, usedHardField string) ScoredChunk {
	meta := ragmodel.UnflattenMetadata(m.Metadata)
	chunk := ragmodel.Chunk{
		ID:        m.ID,
		Text:      m.Text,
		Metadata:  meta,
		SourceDoc: m.Metadata["source_doc"],
	}

	raw := sim(m.Distance)
	adjusted := raw
	var trace []string

	if f.PriceMax > 0 && usedHardField != "price_range" && meta.PriceMin > f.PriceMax {
		overshoot := (meta.PriceMin - f.PriceMax) / f.PriceMax
		penaltyFactor := 1 - 0.2*overshoot
		if penaltyFactor < 0.5 {
			penaltyFactor = 0.5
		}
		adjusted *= penaltyFactor
		trace = append(trace, "price_max_overshoot")
	}

	if f.TravelMonth != "" && usedHardField != "travel_month" && meta.TravelMonth != "" {
		dist, ok := gazetteer.MonthDistance(f.TravelMonth, meta.TravelMonth)
		if ok {
			switch {
			case dist == 0:
				// exact match, no penalty
			case dist == 1:
				adjusted *= 1 - r.weights.MonthAdjacentWeight
				trace = append(trace, "travel_month_adjacent")
			default:
				adjusted *= 1 - r.weights.MonthFarWeight
				trace = append(trace, "travel_month_far")
			}
		}
	}

	if f.DurationDays > 0 && meta.DurationDays > 0 {
		diff := meta.DurationDays - f.DurationDays
		if diff < 0 {
			diff = -diff
		}
		ratio := float64(diff) / float64(f.DurationDays)
		penalty := ratio * r.weights.DurationWeight
		if penalty > r.weights.DurationWeight {
			penalty = r.weights.DurationWeight
		}
		if penalty > 0 {
			adjusted *= 1 - penalty
			trace = append(trace, "duration_mismatch")
		}
	}

	if f.Category != "" && usedHardField != "category" && meta.Category != "" && meta.Category != f.Category {
		adjusted *= 1 - r.weights.CategoryWeight
		trace = append(trace, "category_mismatch")
	}

	if f.FamilyFriendly != nil && meta.FamilyFriendly != nil && *f.FamilyFriendly != *meta.FamilyFriendly {
		adjusted *= 1 - r.weights.FamilyConflictWeight
		trace = append(trace, "family_friendly_conflict")
	}

	// When destination did not end up as the hard filter (fallback, or
	// a higher-priority field absent), a mismatched destination is
	// penalized at category weight so it still outranks nothing.
	if f.Destination != "" && usedHardField != "destination" && meta.Destination != "" &&
		!sameDestination(meta.Destination, f.Destination) {
		adjusted *= 1 - r.weights.CategoryWeight
		trace = append(trace, "destination_mismatch")
	}

	return ScoredChunk{Chunk: chunk, RawSimilarity: raw, AdjustedScore: adjusted, PenaltyTrace: trace}
}

func sameDestination(a, b string) bool {
	ca, _ := gazetteer.CanonicalDestination(a)
	cb, _ := gazetteer.CanonicalDestination(b)
	if ca == "" {
		ca = a
	}
	if cb == "" {
		cb = b
	}
	return ca == cb
}
