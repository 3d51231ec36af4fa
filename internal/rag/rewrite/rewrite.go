// Package rewrite implements the context-aware rewriter: turning an
// elided or pronoun-bearing utterance into a self-contained query using
// the session's recent turns and ActiveEntityView.
package rewrite

import (
	"context"
	"strings"

	"turag/internal/llm"
	"turag/internal/rag/gazetteer"
	"turag/internal/ragmodel"
)

// ImplicitFilter is one ActiveEntityView entry seeded into the
// self-query parser's input, tagged with its provenance so later stages
// know it was inherited from context rather than stated explicitly.
type ImplicitFilter struct {
	Field string // a StructuredFilters field name, e.g. "destination"
	Value string
	Source string // always "context-derived" for now; kept for future provenance kinds
}

// Result is the rewriter's output.
type Result struct {
	Text                  string
	ImplicitFilters       []ImplicitFilter
	ContextSwitchDetected bool
}

// Rewriter resolves pronouns and elided noun phrases via one chat
// completion call.
type Rewriter struct {
	provider llm.Provider
	model    string
}

// New builds a Rewriter.
func New(provider llm.Provider, model string) *Rewriter {
	return &Rewriter{provider: provider, model: model}
}

// kindToFilterField maps an EntityKind to the StructuredFilters field it
// seeds as an implicit filter. Kinds with no direct filter equivalent
// (group_composition, accommodation, transport, activities, preference)
// are omitted — they inform tone/continuity but do not drive retrieval
// filtering.
var kindToFilterField = map[ragmodel.EntityKind]string{
	ragmodel.EntityDestination: "destination",
	ragmodel.EntityBudget:      "price_max",
	ragmodel.EntityTravelDates: "travel_month",
}

// Rewrite produces a self-contained query from utterance using turns and
// active as context. With no provider configured, the result comes from
// the deterministic paths alone (implicit filter seeding, context-switch
// detection, pronoun fallback). It fails closed: a provider error or an
// empty reply returns the original utterance with no implicit filters
// and no context switch.
func (r *Rewriter) Rewrite(ctx context.Context, utterance string, turns []ragmodel.Turn, active ragmodel.ActiveEntityView) Result {
	implicit := seedImplicitFilters(active)
	switched, newDest := detectContextSwitch(utterance, active)
	if switched {
		implicit = dropDestination(implicit)
	}

	cited := lastCitedEntity(turns)

	if r.provider == nil {
		text := withPronounResolved(utterance, cited)
		return Result{Text: text, ImplicitFilters: implicit, ContextSwitchDetected: switched}
	}

	msgs := buildPrompt(utterance, turns, active)
	resp, err := r.provider.Chat(ctx, msgs, llm.ChatOptions{Model: r.model, MaxTokens: 300})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		return Result{Text: utterance}
	}
	text := strings.TrimSpace(resp.Content)
	if switched && newDest != "" && !strings.Contains(strings.ToLower(text), strings.ToLower(newDest)) {
		text = text + " " + newDest
	}
	if cited != "" && containsPronoun(text) && !strings.Contains(strings.ToLower(text), strings.ToLower(cited)) {
		text = text + " " + cited
	}
	return Result{Text: text, ImplicitFilters: implicit, ContextSwitchDetected: switched}
}

// pronounMarkers are the Serbian demonstrative/personal pronouns most
// likely to refer back to a previously cited entity ("taj hotel", "za
// nju", "koliko to košta"). Matched as whole tokens; "košta" must not
// read as "ta".
var pronounMarkers = map[string]bool{
	"taj": true, "ta": true, "to": true,
	"njega": true, "nju": true, "njih": true,
	"ovaj": true, "ova": true, "ovo": true,
}

func containsPronoun(text string) bool {
	for _, tok := range gazetteer.Tokenize(text) {
		if pronounMarkers[tok] {
			return true
		}
	}
	return false
}

// lastCitedEntity returns the first source document name cited by the
// most recent assistant turn that cited any source. Entities mentioned
// only in a turn's prose are not considered.
func lastCitedEntity(turns []ragmodel.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != "assistant" {
			continue
		}
		if len(turns[i].Sources) > 0 {
			return turns[i].Sources[0]
		}
	}
	return ""
}

func withPronounResolved(utterance, cited string) string {
	if cited == "" || !containsPronoun(utterance) {
		return utterance
	}
	return utterance + " " + cited
}

func seedImplicitFilters(active ragmodel.ActiveEntityView) []ImplicitFilter {
	var out []ImplicitFilter
	for kind, value := range active {
		field, ok := kindToFilterField[kind]
		if !ok {
			continue
		}
		out = append(out, ImplicitFilter{Field: field, Value: value, Source: "context-derived"})
	}
	return out
}

func dropDestination(in []ImplicitFilter) []ImplicitFilter {
	out := in[:0:0]
	for _, f := range in {
		if f.Field == "destination" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// detectContextSwitch reports whether utterance names a destination
// different from the one currently active, per the gazetteer. Budget
// and travel_dates are sticky and are never evicted by this check.
func detectContextSwitch(utterance string, active ragmodel.ActiveEntityView) (bool, string) {
	prevDest, hadDest := active[ragmodel.EntityDestination]
	mentioned := mentionedDestination(utterance)
	if mentioned == "" {
		return false, ""
	}
	if hadDest && !strings.EqualFold(mentioned, prevDest) {
		return true, mentioned
	}
	if !hadDest {
		// First destination mention in the session isn't a "switch" —
		// there is nothing to switch away from.
		return false, ""
	}
	return false, ""
}

func buildPrompt(utterance string, turns []ragmodel.Turn, active ragmodel.ActiveEntityView) []llm.Message {
	var b strings.Builder
	b.WriteString("You rewrite an elided or pronoun-bearing user message into a self-contained query, ")
	b.WriteString("without changing its intent, using the conversation below. Respond with ONLY the rewritten query text.\n\n")
	b.WriteString("Recent turns:\n")
	for _, t := range turns {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	if len(active) > 0 {
		b.WriteString("\nActive context:\n")
		for k, v := range active {
			b.WriteString(string(k))
			b.WriteString("=")
			b.WriteString(v)
			b.WriteString("\n")
		}
	}
	return []llm.Message{
		{Role: "system", Content: b.String()},
		{Role: "user", Content: utterance},
	}
}

func mentionedDestination(text string) string {
	found := gazetteer.FindDestinations(text)
	if len(found) == 0 {
		return ""
	}
	return found[0]
}
