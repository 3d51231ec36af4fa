package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turag/internal/llm"
	"turag/internal/ragmodel"
)

type stubProvider struct {
	content string
	err     error
}

func (s stubProvider) Chat(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (llm.Message, error) {
	if s.err != nil {
		return llm.Message{}, s.err
	}
	return llm.Message{Role: "assistant", Content: s.content}, nil
}

func (s stubProvider) ChatStream(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions, h llm.StreamHandler) error {
	return nil
}

func TestEnrich_ValidResponseIsCanonicalized(t *testing.T) {
	p := stubProvider{content: `{
		"destination": "Rimu",
		"category": "HOTEL",
		"price_range": "moderate",
		"price_min": 200,
		"price_max": 400,
		"duration_days": 5,
		"transport_type": "air",
		"travel_month": "maj",
		"season": "summer",
		"family_friendly": true,
		"amenities": ["bazen", "wifi"],
		"subcategory": "all_inclusive",
		"confidence_score": 0.9
	}`}
	e := New(p, "")
	meta := e.Enrich(context.Background(), ragmodel.Chunk{Text: "Smeštaj u hotelu u centru Rima."}, "rim_2024.pdf")

	assert.Equal(t, "Rim", meta.Destination) // inflected form is mapped to its canonical gazetteer name
	assert.Equal(t, ragmodel.CategoryHotel, meta.Category)
	assert.Equal(t, "may", meta.TravelMonth)
	assert.Equal(t, ragmodel.SeasonSummer, meta.Season)
	assert.Equal(t, 0.9, meta.ConfidenceScore)
	assert.ElementsMatch(t, []string{"bazen", "wifi"}, meta.Amenities)
}

func TestEnrich_UnknownEnumResetsToAbsent(t *testing.T) {
	p := stubProvider{content: `{"category": "villa", "price_range": "cheap", "confidence_score": 0.4}`}
	e := New(p, "")
	meta := e.Enrich(context.Background(), ragmodel.Chunk{Text: "obican tekst bez markera"}, "unknown.pdf")

	assert.Equal(t, ragmodel.Category(""), meta.Category)
	assert.Equal(t, ragmodel.PriceRange(""), meta.PriceRange)
}

func TestEnrich_PriceMinExceedsMaxIsRejected(t *testing.T) {
	p := stubProvider{content: `{"price_min": 900, "price_max": 300, "confidence_score": 0.5}`}
	e := New(p, "")
	meta := e.Enrich(context.Background(), ragmodel.Chunk{Text: "tekst"}, "doc.pdf")

	assert.Zero(t, meta.PriceMin)
	assert.Zero(t, meta.PriceMax)
}

func TestEnrich_TransportFailureYieldsZeroConfidenceButStillIndexable(t *testing.T) {
	p := stubProvider{err: assert.AnError}
	e := New(p, "")
	meta := e.Enrich(context.Background(), ragmodel.Chunk{Text: "tekst bez markera"}, "doc.pdf")

	require.Equal(t, 0.0, meta.ConfidenceScore)
	assert.Empty(t, meta.Destination)
	assert.Empty(t, meta.Category)
}

func TestEnrich_AranžmanMarkerOverridesCategory(t *testing.T) {
	p := stubProvider{content: `{"category": "hotel", "confidence_score": 0.8}`}
	e := New(p, "")
	meta := e.Enrich(context.Background(), ragmodel.Chunk{Text: "Ovaj aranžman uključuje hotel i prevoz."}, "doc.pdf")

	assert.Equal(t, ragmodel.CategoryTour, meta.Category)
}

func TestEnrich_MenuMarkerOverridesCategory(t *testing.T) {
	p := stubProvider{content: `{"category": "hotel", "confidence_score": 0.8}`}
	e := New(p, "")
	meta := e.Enrich(context.Background(), ragmodel.Chunk{Text: "Naš meni uključuje testo i rižoto."}, "doc.pdf")

	assert.Equal(t, ragmodel.CategoryRestaurant, meta.Category)
}

func TestEnrich_FilenameOverridesLowConfidenceDestination(t *testing.T) {
	p := stubProvider{content: `{"destination": "Pariz", "confidence_score": 0.3}`}
	e := New(p, "")
	meta := e.Enrich(context.Background(), ragmodel.Chunk{Text: "Opšti opis putovanja."}, "rim_leto_2024.pdf")

	assert.Equal(t, "Rim", meta.Destination)
}
