// Package answer implements the answer synthesizer: one chat completion
// (batch or streaming) grounded exclusively in the retrieved chunks.
// The model is forbidden from introducing facts the context doesn't
// support and is asked to close with 2-4 follow-up questions.
package answer

import (
	"context"
	"fmt"
	"strings"

	"turag/internal/llm"
	"turag/internal/rag/retrieve"
	"turag/internal/ragmodel"
)

// Synthesizer produces a grounded Answer from ranked chunks.
type Synthesizer struct {
	provider llm.Provider
	model    string
}

// New builds a Synthesizer.
func New(provider llm.Provider, model string) *Synthesizer {
	return &Synthesizer{provider: provider, model: model}
}

const systemPromptTemplate = `You are a tourism assistant answering in the user's language, primarily
Serbian, in a concise conversational tone. You are given labeled context blocks drawn from offer
documents. Answer using ONLY facts present in the context below — you are explicitly forbidden from
introducing any fact not present in it. If the context is insufficient to answer, say so plainly and
ask a clarifying question instead of guessing. End your answer with 2 to 4 suggested follow-up
questions, each on its own line prefixed with "- ".

Context:
%s`

// apologyText is returned, with no citations and confidence 0, whenever
// the completion fails outright. The caller never sees a raw error.
const apologyText = "Izvinjavam se, trenutno ne mogu da pripremim odgovor. Pokušajte ponovo za trenutak."

func buildContext(chunks []retrieve.ScoredChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] document=%s\n%s\n\n", i+1, c.Chunk.SourceDoc, c.Chunk.Text)
	}
	return b.String()
}

func buildCitations(chunks []retrieve.ScoredChunk) []ragmodel.SourceCitation {
	seen := make(map[string]int) // document -> index in out
	var out []ragmodel.SourceCitation
	for _, c := range chunks {
		doc := c.Chunk.SourceDoc
		if idx, ok := seen[doc]; ok {
			out[idx].ChunkIDs = append(out[idx].ChunkIDs, c.Chunk.ID)
			continue
		}
		snippet := c.Chunk.Text
		if len(snippet) > 240 {
			snippet = strings.TrimSpace(snippet[:240]) + "…"
		}
		seen[doc] = len(out)
		out = append(out, ragmodel.SourceCitation{
			DocumentName: doc,
			ChunkIDs:     []string{c.Chunk.ID},
			Similarity:   c.AdjustedScore,
			Snippet:      snippet,
		})
	}
	return out
}

// confidence averages the AdjustedScore of every cited chunk, clamped
// to [0,1].
func confidence(chunks []retrieve.ScoredChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	for _, c := range chunks {
		sum += c.AdjustedScore
	}
	avg := sum / float64(len(chunks))
	if avg < 0 {
		avg = 0
	}
	if avg > 1 {
		avg = 1
	}
	return avg
}

// splitFollowups pulls every "- " line, wherever it appears, out of the
// model's response and returns the remaining prose separately.
func splitFollowups(text string) (string, []ragmodel.SuggestedFollowup) {
	lines := strings.Split(text, "\n")
	var prose []string
	var followups []ragmodel.SuggestedFollowup
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") {
			followups = append(followups, ragmodel.SuggestedFollowup{Text: strings.TrimSpace(trimmed[2:])})
			continue
		}
		prose = append(prose, line)
	}
	return strings.TrimSpace(strings.Join(prose, "\n")), followups
}

// apology is the graceful, citation-free, zero-confidence Answer
// returned on any completion failure.
func apology() ragmodel.Answer {
	return ragmodel.Answer{Text: apologyText, Citations: nil, Confidence: 0, Followups: nil, Degraded: true}
}

// Synthesize runs the batch path: one completion call, fully assembled
// into an Answer.
func (s *Synthesizer) Synthesize(ctx context.Context, utterance string, chunks []retrieve.ScoredChunk) ragmodel.Answer {
	if s.provider == nil {
		return apology()
	}
	msgs := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(systemPromptTemplate, buildContext(chunks))},
		{Role: "user", Content: utterance},
	}
	resp, err := s.provider.Chat(ctx, msgs, llm.ChatOptions{Model: s.model, MaxTokens: 900})
	if err != nil {
		return apology()
	}
	text, followups := splitFollowups(resp.Content)
	return ragmodel.Answer{
		Text:       text,
		Citations:  buildCitations(chunks),
		Confidence: confidence(chunks),
		Followups:  followups,
	}
}

// StreamEvent is one increment of a streaming synthesis.
type StreamEvent struct {
	Delta    string         // non-empty for a content increment
	Complete bool           // true on the final event
	Answer   ragmodel.Answer // populated only when Complete is true
}

// SynthesizeStream runs the streaming path: forwards content deltas to
// handler as they arrive, then calls handler once more with a
// Complete event carrying citations, follow-ups, and confidence. On any
// failure it emits a single apology Complete event rather than
// forwarding a raw error.
func (s *Synthesizer) SynthesizeStream(ctx context.Context, utterance string, chunks []retrieve.ScoredChunk, handler func(StreamEvent) error) error {
	if s.provider == nil {
		return handler(StreamEvent{Complete: true, Answer: apology()})
	}
	msgs := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(systemPromptTemplate, buildContext(chunks))},
		{Role: "user", Content: utterance},
	}
	var full strings.Builder
	err := s.provider.ChatStream(ctx, msgs, llm.ChatOptions{Model: s.model, MaxTokens: 900}, func(delta string) error {
		full.WriteString(delta)
		return handler(StreamEvent{Delta: delta})
	})
	if err != nil {
		return handler(StreamEvent{Complete: true, Answer: apology()})
	}
	text, followups := splitFollowups(full.String())
	return handler(StreamEvent{
		Complete: true,
		Answer: ragmodel.Answer{
			Text:       text,
			Citations:  buildCitations(chunks),
			Confidence: confidence(chunks),
			Followups:  followups,
		},
	})
}
