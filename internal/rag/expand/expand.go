// Package expand implements the query expander: producing a
// semantically widened Serbian tourism query used only as the
// embedding input, never shown to the user. Results are cached per
// process by the original query string.
package expand

import (
	"context"
	"strings"

	"turag/internal/cache"
	"turag/internal/llm"
)

// maxTerms bounds the expansion; anything longer falls back to the
// original query.
const maxTerms = 12

// Expander widens a query string with tourism-domain synonyms.
type Expander struct {
	provider llm.Provider
	model    string
	cache    *cache.LRU[string, string]
}

// New builds an Expander with a process-wide LRU cache of the given
// capacity.
func New(provider llm.Provider, model string, cacheCapacity int) *Expander {
	return &Expander{provider: provider, model: model, cache: cache.New[string, string](cacheCapacity)}
}

const systemPrompt = `You expand a Serbian tourism search query with close synonyms and regional name
variants, to widen semantic recall. Cover: accommodation synonyms, transport-mode synonyms, activity
category synonyms, regional name variants (e.g. Rim/Roma/Rome/Italija), and morphological variants of
superlatives (e.g. "najbolji", "najbolja", "najbolje"). Respond with ONLY the expanded query text, a
single line of space-separated terms/phrases, at most 12 terms total, strictly about travel/tourism.`

// offTopicStop catches a handful of clearly non-tourism terms that would
// indicate the model drifted off task; any hit triggers the fallback.
var offTopicStop = []string{"politika", "sport", "vreme prognoza", "akcije berza", "recept za", "programiranje"}

// Expand returns an expanded query string for text, used as the
// embedding input. On any validation failure (over the term budget, or
// an off-topic term detected) it falls back to the original text
// unchanged, as does any provider error.
func (e *Expander) Expand(ctx context.Context, text string) string {
	if cached, ok := e.cache.Get(text); ok {
		return cached
	}
	if e.provider == nil {
		e.cache.Put(text, text)
		return text
	}
	msgs := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: text},
	}
	resp, err := e.provider.Chat(ctx, msgs, llm.ChatOptions{Model: e.model, MaxTokens: 150})
	if err != nil {
		// Transient failure: fall back without caching, so the next
		// request gets another chance at a real expansion.
		return text
	}
	expanded := strings.TrimSpace(resp.Content)
	if !valid(expanded) {
		e.cache.Put(text, text)
		return text
	}
	e.cache.Put(text, expanded)
	return expanded
}

func valid(expanded string) bool {
	if expanded == "" {
		return false
	}
	if countTerms(expanded) > maxTerms {
		return false
	}
	lower := strings.ToLower(expanded)
	for _, stop := range offTopicStop {
		if strings.Contains(lower, stop) {
			return false
		}
	}
	return true
}

func countTerms(s string) int {
	return len(strings.Fields(s))
}
