// Package enrich calls the configured chat-completion Provider once per
// chunk to produce structured EnrichedMetadata, then validates the
// response against the closed metadata schema and applies deterministic
// overrides regardless of what the model said.
package enrich

import (
	"context"
	"encoding/json"
	"strings"

	"turag/internal/llm"
	"turag/internal/rag/gazetteer"
	"turag/internal/ragmodel"
)

// Enricher produces EnrichedMetadata for one chunk at a time.
type Enricher struct {
	provider llm.Provider
	model    string
}

// New builds an Enricher backed by provider. model may be empty to use
// the provider's default.
func New(provider llm.Provider, model string) *Enricher {
	return &Enricher{provider: provider, model: model}
}

const systemPrompt = `You are a structured metadata extractor for Serbian tourism offer documents.
Given a chunk of text, return ONLY a JSON object with these fields. Use exactly these vocabularies;
anything you are not confident about MUST be set to "absent" (or null for numbers/booleans), never guessed:

destination: canonical place name (e.g. "Rim", "Amsterdam", "Maroko") or "absent"
category: one of "tour", "hotel", "restaurant", "attraction", or "absent"
price_range: one of "budget", "moderate", "expensive", "luxury", or "absent"
price_min: number or null
price_max: number or null
duration_days: integer or null
transport_type: one of "air", "bus", "car", "train", "mixed", "none", or "absent"
travel_month: one of "january".."december", or "absent"
season: one of "year_round", "summer", "winter", "spring", "autumn", or "absent"
family_friendly: true, false, or null
amenities: array of short lowercase tokens (possibly empty)
subcategory: a short free string (e.g. "romantic_getaway", "all_inclusive") or "absent"
confidence_score: your overall certainty in [0,1]`

var jsonSchema = []byte(`{
  "type": "object",
  "properties": {
    "destination": {"type": "string"},
    "category": {"type": "string"},
    "price_range": {"type": "string"},
    "price_min": {"type": ["number", "null"]},
    "price_max": {"type": ["number", "null"]},
    "duration_days": {"type": ["integer", "null"]},
    "transport_type": {"type": "string"},
    "travel_month": {"type": "string"},
    "season": {"type": "string"},
    "family_friendly": {"type": ["boolean", "null"]},
    "amenities": {"type": "array", "items": {"type": "string"}},
    "subcategory": {"type": "string"},
    "confidence_score": {"type": "number"}
  },
  "required": ["confidence_score"]
}`)

// rawResponse mirrors the model's JSON shape before validation.
type rawResponse struct {
	Destination     string   `json:"destination"`
	Category        string   `json:"category"`
	PriceRange      string   `json:"price_range"`
	PriceMin        *float64 `json:"price_min"`
	PriceMax        *float64 `json:"price_max"`
	DurationDays    *int     `json:"duration_days"`
	TransportType   string   `json:"transport_type"`
	TravelMonth     string   `json:"travel_month"`
	Season          string   `json:"season"`
	FamilyFriendly  *bool    `json:"family_friendly"`
	Amenities       []string `json:"amenities"`
	Subcategory     string   `json:"subcategory"`
	ConfidenceScore float64  `json:"confidence_score"`
}

var (
	validCategories    = set("tour", "hotel", "restaurant", "attraction")
	validPriceRanges   = set("budget", "moderate", "expensive", "luxury")
	validTransport     = set("air", "bus", "car", "train", "mixed", "none")
	validSeasons       = set("year_round", "summer", "winter", "spring", "autumn")
	validMonths        = set("january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december")
)

func set(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

// Enrich issues one chat completion for chunk.Text and returns its
// validated, override-applied EnrichedMetadata. It never returns an
// error for LLM failures: a failed or invalid call degrades to an
// all-absent, zero-confidence metadata record so the chunk is still
// indexed and remains retrievable by vector similarity. Deterministic
// overrides are applied even in that degraded case.
func (e *Enricher) Enrich(ctx context.Context, chunk ragmodel.Chunk, sourceFilename string) ragmodel.EnrichedMetadata {
	meta := e.call(ctx, chunk.Text)
	// One retry on transport/parse failure (confidence 0 signals failure).
	if meta.ConfidenceScore == 0 && meta.Destination == "" && meta.Category == "" {
		meta = e.call(ctx, chunk.Text)
	}
	return applyOverrides(meta, chunk.Text, sourceFilename)
}

func (e *Enricher) call(ctx context.Context, text string) ragmodel.EnrichedMetadata {
	if e.provider == nil {
		return ragmodel.EnrichedMetadata{}
	}
	msgs := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: text},
	}
	resp, err := e.provider.Chat(ctx, msgs, llm.ChatOptions{
		Model:          e.model,
		JSONSchema:     jsonSchema,
		JSONSchemaName: "enriched_metadata",
		MaxTokens:      512,
	})
	if err != nil {
		return ragmodel.EnrichedMetadata{}
	}
	var raw rawResponse
	if err := json.Unmarshal([]byte(resp.Content), &raw); err != nil {
		return ragmodel.EnrichedMetadata{}
	}
	return validate(raw)
}

// validate maps a raw model response onto the closed EnrichedMetadata
// schema, resetting any value outside the fixed vocabulary to absent,
// mapping a gazetteer-known destination onto its canonical name, and
// enforcing price_min <= price_max.
func validate(raw rawResponse) ragmodel.EnrichedMetadata {
	var out ragmodel.EnrichedMetadata
	if raw.Destination != "" && !strings.EqualFold(raw.Destination, "absent") {
		out.Destination = strings.TrimSpace(raw.Destination)
		if canonical, ok := gazetteer.CanonicalDestination(out.Destination); ok {
			out.Destination = canonical
		}
	}
	if validCategories[strings.ToLower(raw.Category)] {
		out.Category = ragmodel.Category(strings.ToLower(raw.Category))
	}
	if validPriceRanges[strings.ToLower(raw.PriceRange)] {
		out.PriceRange = ragmodel.PriceRange(strings.ToLower(raw.PriceRange))
	}
	if validTransport[strings.ToLower(raw.TransportType)] {
		out.TransportType = ragmodel.TransportType(strings.ToLower(raw.TransportType))
	}
	if month, ok := gazetteer.CanonicalMonth(raw.TravelMonth); ok {
		out.TravelMonth = month
	} else if validMonths[strings.ToLower(raw.TravelMonth)] {
		out.TravelMonth = strings.ToLower(raw.TravelMonth)
	}
	if validSeasons[strings.ToLower(raw.Season)] {
		out.Season = ragmodel.Season(strings.ToLower(raw.Season))
	}
	if raw.PriceMin != nil {
		out.PriceMin = *raw.PriceMin
	}
	if raw.PriceMax != nil {
		out.PriceMax = *raw.PriceMax
	}
	if out.PriceMin > 0 && out.PriceMax > 0 && out.PriceMin > out.PriceMax {
		// Invariant violation: the model's numbers disagree with each
		// other, so neither is trustworthy.
		out.PriceMin, out.PriceMax = 0, 0
	}
	if raw.DurationDays != nil && *raw.DurationDays > 0 {
		out.DurationDays = *raw.DurationDays
	}
	out.FamilyFriendly = raw.FamilyFriendly
	out.Amenities = raw.Amenities
	if raw.Subcategory != "" && !strings.EqualFold(raw.Subcategory, "absent") {
		out.Subcategory = strings.TrimSpace(raw.Subcategory)
	}
	out.ConfidenceScore = raw.ConfidenceScore
	if out.ConfidenceScore < 0 {
		out.ConfidenceScore = 0
	}
	if out.ConfidenceScore > 1 {
		out.ConfidenceScore = 1
	}
	return out
}

// aranžmanMarkers and menuMarkers are substrings whose presence in the
// chunk text override the model's category classification outright,
// regardless of confidence — the override exists specifically because
// "hotel" as a token dominates offer text even in tour/restaurant chunks.
var aranžmanMarkers = []string{"aranžman", "aranzman"}
var menuMarkers = []string{"meni", "jelovnik", "menu"}

func applyOverrides(meta ragmodel.EnrichedMetadata, text, sourceFilename string) ragmodel.EnrichedMetadata {
	lower := strings.ToLower(text)

	if meta.Destination == "" || meta.ConfidenceScore < 0.6 {
		if found := gazetteer.FindDestinations(sourceFilename); len(found) > 0 {
			meta.Destination = found[0]
		}
	}

	switch {
	case containsAny(lower, aranžmanMarkers):
		meta.Category = ragmodel.CategoryTour
	case containsAny(lower, menuMarkers):
		meta.Category = ragmodel.CategoryRestaurant
	}
	return meta
}

func containsAny(haystack string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(haystack, m) {
			return true
		}
	}
	return false
}
