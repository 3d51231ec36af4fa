// Package entity extracts tourism entities (destination, budget, travel
// dates, group composition, accommodation, transport, activities, and
// free preference tokens) from a single user utterance: a fast
// rule-based pass first, then an LLM pass over whatever the rules left
// unmatched. Rule-based hits always win a kind collision.
package entity

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"turag/internal/llm"
	"turag/internal/rag/gazetteer"
	"turag/internal/ragmodel"
)

// Extractor runs both extraction stages.
type Extractor struct {
	provider llm.Provider
	model    string
}

// New builds an Extractor. provider may be nil to run rule-based
// extraction only (used by tests and by any deployment without an LLM
// configured for this stage).
func New(provider llm.Provider, model string) *Extractor {
	return &Extractor{provider: provider, model: model}
}

var amountRe = regexp.MustCompile(`(?i)(\d{2,5})\s*(eur|€|din|rsd|usd|\$)`)

// wordPattern matches whole tokens of an utterance. exact stems ("par",
// "voz") must equal the token outright; the rest are matched as
// prefixes, covering Serbian case endings ("porodicom", "autobusom").
// Short stems are exact to keep "Parizom" from reading as a couple and
// "letovanja" as a flight.
type wordPattern struct {
	stem  string
	value string
	exact bool
}

var groupPatterns = []wordPattern{
	{stem: "porodic", value: "family"},
	{stem: "prijatelj", value: "friends"},
	{stem: "grup", value: "group"},
	{stem: "par", value: "couple", exact: true},
	{stem: "sam", value: "solo", exact: true},
}

var accommodationPatterns = []wordPattern{
	{stem: "hotel", value: "hotel"},
	{stem: "apartman", value: "apartman"},
	{stem: "vila", value: "vila"},
	{stem: "hostel", value: "hostel"},
	{stem: "resort", value: "resort"},
	{stem: "kamp", value: "kamp"},
}

var transportPatterns = []wordPattern{
	{stem: "avion", value: string(ragmodel.TransportAir)},
	{stem: "let", value: string(ragmodel.TransportAir), exact: true},
	{stem: "autobus", value: string(ragmodel.TransportBus)},
	{stem: "bus", value: string(ragmodel.TransportBus), exact: true},
	{stem: "kombi", value: string(ragmodel.TransportBus)},
	{stem: "automobil", value: string(ragmodel.TransportCar)},
	{stem: "kolima", value: string(ragmodel.TransportCar), exact: true},
	{stem: "voz", value: string(ragmodel.TransportTrain), exact: true},
}

var activityPatterns = []wordPattern{
	{stem: "plivanje", value: "plivanje"},
	{stem: "ronjenje", value: "ronjenje"},
	{stem: "planinarenje", value: "planinarenje"},
	{stem: "skijanje", value: "skijanje"},
	{stem: "šoping", value: "šoping"},
	{stem: "razgledanje", value: "razgledanje"},
	{stem: "izlet", value: "izlet"},
}

func matchPattern(tokens []string, patterns []wordPattern) (string, bool) {
	for _, p := range patterns {
		for _, tok := range tokens {
			if p.exact {
				if tok == p.stem {
					return p.value, true
				}
			} else if strings.HasPrefix(tok, p.stem) {
				return p.value, true
			}
		}
	}
	return "", false
}

// Extract runs the rule-based stage over msg, then an LLM pass over the
// residual (the message with a matched budget amount masked out) and
// merges the two, with rule-based
// results winning any kind collision. active is consulted only as a
// disambiguation hint for the LLM prompt — it is never used to fabricate
// an entity absent from msg.
func (e *Extractor) Extract(ctx context.Context, msg string, active ragmodel.ActiveEntityView) []ragmodel.EntityObservation {
	ruleHits, residual := extractRules(msg)

	ruleKinds := make(map[ragmodel.EntityKind]bool, len(ruleHits))
	for _, h := range ruleHits {
		ruleKinds[h.Kind] = true
	}

	var llmHits []ragmodel.EntityObservation
	if e.provider != nil && strings.TrimSpace(residual) != "" {
		llmHits = e.extractLLM(ctx, residual, active)
	}

	out := make([]ragmodel.EntityObservation, 0, len(ruleHits)+len(llmHits))
	out = append(out, ruleHits...)
	for _, h := range llmHits {
		if ruleKinds[h.Kind] {
			continue
		}
		out = append(out, h)
	}
	return out
}

// extractRules runs every regex/gazetteer pattern over msg and returns
// both the hits and a residual string in which the matched budget amount
// is masked out (replaced with spaces). Destination, month and keyword
// matches are not masked and stay in the residual.
func extractRules(msg string) ([]ragmodel.EntityObservation, string) {
	var out []ragmodel.EntityObservation
	residual := msg

	for _, dest := range gazetteer.FindDestinations(msg) {
		out = append(out, ragmodel.EntityObservation{Kind: ragmodel.EntityDestination, Value: dest, Confidence: 0.95})
	}

	if loc := amountRe.FindStringIndex(msg); loc != nil {
		m := amountRe.FindStringSubmatch(msg)
		out = append(out, ragmodel.EntityObservation{Kind: ragmodel.EntityBudget, Value: normalizeAmount(m), Confidence: 0.9})
		residual = residual[:loc[0]] + strings.Repeat(" ", loc[1]-loc[0]) + residual[loc[1]:]
	}

	for _, month := range gazetteer.FindMonths(msg) {
		out = append(out, ragmodel.EntityObservation{Kind: ragmodel.EntityTravelDates, Value: month, Confidence: 0.9})
	}

	tokens := gazetteer.Tokenize(msg)
	if v, ok := matchPattern(tokens, groupPatterns); ok {
		out = append(out, ragmodel.EntityObservation{Kind: ragmodel.EntityGroupComposition, Value: v, Confidence: 0.7})
	}
	if v, ok := matchPattern(tokens, accommodationPatterns); ok {
		out = append(out, ragmodel.EntityObservation{Kind: ragmodel.EntityAccommodation, Value: v, Confidence: 0.7})
	}
	if v, ok := matchPattern(tokens, transportPatterns); ok {
		out = append(out, ragmodel.EntityObservation{Kind: ragmodel.EntityTransport, Value: v, Confidence: 0.7})
	}
	for _, p := range activityPatterns {
		if v, ok := matchPattern(tokens, []wordPattern{p}); ok {
			out = append(out, ragmodel.EntityObservation{Kind: ragmodel.EntityActivities, Value: v, Confidence: 0.6})
		}
	}
	return out, residual
}

func normalizeAmount(groups []string) string {
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}

type llmEntity struct {
	Kind       string  `json:"kind"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

var validKinds = map[string]ragmodel.EntityKind{
	"destination":       ragmodel.EntityDestination,
	"budget":            ragmodel.EntityBudget,
	"travel_dates":      ragmodel.EntityTravelDates,
	"group_composition": ragmodel.EntityGroupComposition,
	"accommodation":     ragmodel.EntityAccommodation,
	"transport":         ragmodel.EntityTransport,
	"activities":        ragmodel.EntityActivities,
	"preference":        ragmodel.EntityPreference,
}

const systemPrompt = `You extract tourism entities from a single Serbian or English user message.
Return ONLY a JSON array of {"kind": string, "value": string, "confidence": number}.
Valid kinds: destination, budget, travel_dates, group_composition, accommodation, transport, activities, preference.
You MUST NOT invent an entity whose value does not literally appear (verbatim or as an obvious synonym) in the message.
If nothing qualifies, return an empty array [].`

func (e *Extractor) extractLLM(ctx context.Context, residual string, active ragmodel.ActiveEntityView) []ragmodel.EntityObservation {
	var hint strings.Builder
	if len(active) > 0 {
		hint.WriteString("Known context (disambiguation hint only, do not copy blindly): ")
		for k, v := range active {
			hint.WriteString(string(k))
			hint.WriteString("=")
			hint.WriteString(v)
			hint.WriteString("; ")
		}
	}
	msgs := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: hint.String() + "\nMessage: " + residual},
	}
	resp, err := e.provider.Chat(ctx, msgs, llm.ChatOptions{Model: e.model, MaxTokens: 400})
	if err != nil {
		return nil
	}
	var raw []llmEntity
	if err := json.Unmarshal([]byte(resp.Content), &raw); err != nil {
		return nil
	}
	out := make([]ragmodel.EntityObservation, 0, len(raw))
	for _, r := range raw {
		kind, ok := validKinds[strings.ToLower(r.Kind)]
		if !ok || strings.TrimSpace(r.Value) == "" {
			continue
		}
		conf := r.Confidence
		if conf <= 0 || conf > 1 {
			conf = 0.5
		}
		out = append(out, ragmodel.EntityObservation{Kind: kind, Value: r.Value, Confidence: conf})
	}
	return out
}

// ParseAmount parses a currency amount such as "500" or "500€" into a
// number.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "€")
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
