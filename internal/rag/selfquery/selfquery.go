// Package selfquery implements the self-query parser: one chat
// completion call that extracts StructuredFilters from the rewritten
// query text. Explicit filters in the utterance override implicit ones
// carried in from context.
package selfquery

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"turag/internal/llm"
	"turag/internal/rag/gazetteer"
	"turag/internal/rag/rewrite"
	"turag/internal/ragmodel"
)

// Parser extracts StructuredFilters.
type Parser struct {
	provider llm.Provider
	model    string
}

// New builds a Parser.
func New(provider llm.Provider, model string) *Parser {
	return &Parser{provider: provider, model: model}
}

const systemPrompt = `You extract structured search filters from a Serbian or English tourism query.
Return ONLY a JSON object with these fields, using exactly these vocabularies. Any field you are not
confident about MUST be "absent" (or null for numbers/booleans) — never guess:

destination: canonical place name or "absent"
category: one of "tour", "hotel", "restaurant", "attraction", or "absent"
price_range: one of "budget", "moderate", "expensive", "luxury", or "absent"
price_max: number or null
duration_days: integer or null
travel_month: one of "january".."december", or "absent"
family_friendly: true, false, or null
confidence: your overall certainty in [0,1]`

var jsonSchema = []byte(`{
  "type": "object",
  "properties": {
    "destination": {"type": "string"},
    "category": {"type": "string"},
    "price_range": {"type": "string"},
    "price_max": {"type": ["number", "null"]},
    "duration_days": {"type": ["integer", "null"]},
    "travel_month": {"type": "string"},
    "family_friendly": {"type": ["boolean", "null"]},
    "confidence": {"type": "number"}
  },
  "required": ["confidence"]
}`)

type rawResponse struct {
	Destination    string   `json:"destination"`
	Category       string   `json:"category"`
	PriceRange     string   `json:"price_range"`
	PriceMax       *float64 `json:"price_max"`
	DurationDays   *int     `json:"duration_days"`
	TravelMonth    string   `json:"travel_month"`
	FamilyFriendly *bool    `json:"family_friendly"`
	Confidence     float64  `json:"confidence"`
}

var validCategories = map[string]bool{"tour": true, "hotel": true, "restaurant": true, "attraction": true}
var validPriceRanges = map[string]bool{"budget": true, "moderate": true, "expensive": true, "luxury": true}

// Parse extracts StructuredFilters from queryText, seeding from implicit
// (context-derived) filters and letting anything the model extracts
// explicitly from queryText override them. On any provider failure it
// returns the implicit-only filters with confidence 0, the same as an
// all-absent parse.
func (p *Parser) Parse(ctx context.Context, queryText string, implicit []rewrite.ImplicitFilter) ragmodel.StructuredFilters {
	filters := fromImplicit(implicit)

	if p.provider == nil {
		return filters
	}
	msgs := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: queryText},
	}
	resp, err := p.provider.Chat(ctx, msgs, llm.ChatOptions{
		Model:          p.model,
		JSONSchema:     jsonSchema,
		JSONSchemaName: "structured_filters",
		MaxTokens:      300,
	})
	if err != nil {
		return filters
	}
	var raw rawResponse
	if err := json.Unmarshal([]byte(resp.Content), &raw); err != nil {
		return filters
	}
	applyExplicit(&filters, raw)
	return filters
}

func fromImplicit(implicit []rewrite.ImplicitFilter) ragmodel.StructuredFilters {
	var f ragmodel.StructuredFilters
	for _, i := range implicit {
		switch i.Field {
		case "destination":
			f.Destination = i.Value
		case "price_max":
			if v, ok := parseNumber(i.Value); ok {
				f.PriceMax = v
			}
		case "travel_month":
			if m, ok := gazetteer.CanonicalMonth(i.Value); ok {
				f.TravelMonth = m
			}
		}
	}
	if f.PriceMax > 0 {
		f.PriceRange = priceRangeFor(f.PriceMax)
	}
	return f
}

// applyExplicit overrides f's fields with whatever the model extracted
// explicitly from the utterance; explicit mentions always win over
// context-inherited values.
func applyExplicit(f *ragmodel.StructuredFilters, raw rawResponse) {
	if raw.Destination != "" && !strings.EqualFold(raw.Destination, "absent") {
		if canon, ok := gazetteer.CanonicalDestination(raw.Destination); ok {
			f.Destination = canon
		} else {
			f.Destination = raw.Destination
		}
	}
	if validCategories[strings.ToLower(raw.Category)] {
		f.Category = ragmodel.Category(strings.ToLower(raw.Category))
	}
	if month, ok := gazetteer.CanonicalMonth(raw.TravelMonth); ok {
		f.TravelMonth = month
	}
	if raw.PriceMax != nil && *raw.PriceMax > 0 {
		f.PriceMax = *raw.PriceMax
		f.PriceRange = priceRangeFor(f.PriceMax)
	}
	if validPriceRanges[strings.ToLower(raw.PriceRange)] {
		f.PriceRange = ragmodel.PriceRange(strings.ToLower(raw.PriceRange))
	}
	if raw.DurationDays != nil && *raw.DurationDays > 0 {
		f.DurationDays = *raw.DurationDays
	}
	if raw.FamilyFriendly != nil {
		f.FamilyFriendly = raw.FamilyFriendly
	}
	f.Confidence = raw.Confidence
	if f.Confidence < 0 {
		f.Confidence = 0
	}
	if f.Confidence > 1 {
		f.Confidence = 1
	}
}

// priceRangeFor collapses an explicit price_max into the coarse
// price_range bucket: <=300 budget, <=600 moderate, <=1200 expensive,
// above that luxury.
func priceRangeFor(max float64) ragmodel.PriceRange {
	switch {
	case max <= 300:
		return ragmodel.PriceBudget
	case max <= 600:
		return ragmodel.PriceModerate
	case max <= 1200:
		return ragmodel.PriceExpensive
	default:
		return ragmodel.PriceLuxury
	}
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
