// Package ragmodel carries the data model shared across the ingestion
// and query pipelines: chunks, enriched metadata, session state, and
// the answer the synthesizer produces.
package ragmodel

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Chunk is one unit of indexed tourism text.
type Chunk struct {
	ID         string
	SourceDoc  string
	Ordinal    int
	Text       string
	Metadata   EnrichedMetadata
	IsTable    bool
	Embedding  []float32
}

// ChunkID is deterministic in (sourceDoc, ordinal, text): re-ingesting the
// same text at the same position of the same document always yields the
// same id, giving idempotent upserts for free.
func ChunkID(sourceDoc string, ordinal int, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", sourceDoc, ordinal, text)))
	return hex.EncodeToString(sum[:])
}

// PriceRange is the coarse bucket self-query and retrieval filter on.
type PriceRange string

const (
	PriceBudget    PriceRange = "budget"
	PriceModerate  PriceRange = "moderate"
	PriceExpensive PriceRange = "expensive"
	PriceLuxury    PriceRange = "luxury"
)

// Category is the tourism offering kind.
type Category string

const (
	CategoryTour       Category = "tour"
	CategoryHotel      Category = "hotel"
	CategoryRestaurant Category = "restaurant"
	CategoryAttraction Category = "attraction"
)

// CategoryPriority orders categories for the priority-based classifier:
// tour outranks restaurant outranks hotel outranks attraction when
// evidence for more than one overlaps in the same chunk.
var CategoryPriority = map[Category]int{
	CategoryTour:       4,
	CategoryRestaurant: 3,
	CategoryHotel:      2,
	CategoryAttraction: 1,
}

// TransportType is the mode of travel a tour/offer uses, a field
// independent from Category.
type TransportType string

const (
	TransportAir   TransportType = "air"
	TransportBus   TransportType = "bus"
	TransportCar   TransportType = "car"
	TransportTrain TransportType = "train"
	TransportMixed TransportType = "mixed"
	TransportNone  TransportType = "none"
)

// Season is the coarse travel season, independent from TravelMonth.
type Season string

const (
	SeasonYearRound Season = "year_round"
	SeasonSummer    Season = "summer"
	SeasonWinter    Season = "winter"
	SeasonSpring    Season = "spring"
	SeasonAutumn    Season = "autumn"
)

// EnrichedMetadata is the structured facets a chunk carries, produced by
// LLM extraction plus deterministic overrides.
type EnrichedMetadata struct {
	Destination     string
	TravelMonth     string
	Season          Season
	Category        Category
	Subcategory     string
	PriceRange      PriceRange
	PriceMin        float64
	PriceMax        float64
	DurationDays    int
	TransportType   TransportType
	FamilyFriendly  *bool
	Amenities       []string
	ConfidenceScore float64
}

// Flatten converts metadata into the string-keyed map every VectorStore
// payload uses. Absent fields are omitted rather than written as "".
func (m EnrichedMetadata) Flatten() map[string]string {
	out := make(map[string]string)
	if m.Destination != "" {
		out["destination"] = m.Destination
	}
	if m.TravelMonth != "" {
		out["travel_month"] = m.TravelMonth
	}
	if m.Season != "" {
		out["season"] = string(m.Season)
	}
	if m.Subcategory != "" {
		out["subcategory"] = m.Subcategory
	}
	if m.TransportType != "" {
		out["transport_type"] = string(m.TransportType)
	}
	if m.Category != "" {
		out["category"] = string(m.Category)
	}
	if m.PriceRange != "" {
		out["price_range"] = string(m.PriceRange)
	}
	if m.PriceMin > 0 {
		out["price_min"] = fmt.Sprintf("%g", m.PriceMin)
	}
	if m.PriceMax > 0 {
		out["price_max"] = fmt.Sprintf("%g", m.PriceMax)
	}
	if m.DurationDays > 0 {
		out["duration_days"] = fmt.Sprintf("%d", m.DurationDays)
	}
	if m.FamilyFriendly != nil {
		out["family_friendly"] = fmt.Sprintf("%t", *m.FamilyFriendly)
	}
	if len(m.Amenities) > 0 {
		joined := ""
		for i, a := range m.Amenities {
			if i > 0 {
				joined += ","
			}
			joined += a
		}
		out["amenities"] = joined
	}
	out["confidence_score"] = fmt.Sprintf("%g", m.ConfidenceScore)
	return out
}

// UnflattenMetadata is Flatten's inverse, reconstructing EnrichedMetadata
// from a VectorStore payload. Malformed numeric fields are left absent
// rather than erroring, since retrieval should degrade, not fail, on a
// corrupt payload.
func UnflattenMetadata(m map[string]string) EnrichedMetadata {
	var out EnrichedMetadata
	out.Destination = m["destination"]
	out.TravelMonth = m["travel_month"]
	out.Season = Season(m["season"])
	out.Subcategory = m["subcategory"]
	out.TransportType = TransportType(m["transport_type"])
	out.Category = Category(m["category"])
	out.PriceRange = PriceRange(m["price_range"])
	if v, err := strconv.ParseFloat(m["price_min"], 64); err == nil {
		out.PriceMin = v
	}
	if v, err := strconv.ParseFloat(m["price_max"], 64); err == nil {
		out.PriceMax = v
	}
	if v, err := strconv.Atoi(m["duration_days"]); err == nil {
		out.DurationDays = v
	}
	if v, err := strconv.ParseBool(m["family_friendly"]); err == nil {
		out.FamilyFriendly = &v
	}
	if a := m["amenities"]; a != "" {
		out.Amenities = strings.Split(a, ",")
	}
	if v, err := strconv.ParseFloat(m["confidence_score"], 64); err == nil {
		out.ConfidenceScore = v
	}
	return out
}

// Turn is one verbatim exchange kept in the short-term memory ring.
type Turn struct {
	ID        string
	Role      string
	Content   string
	Sources   []string // document names cited by this turn, if Role == "assistant"
	Timestamp time.Time
}

// EntityMention is one observation of an entity across the conversation.
type EntityMention struct {
	Value              string
	MentionCount       int
	Confidence         float64
	FirstSeen          time.Time
	LastSeen           time.Time
	ContributingTurnIDs []string
}

// EntityKind distinguishes sticky (persist across context switches) from
// singleton (replaced in ActiveEntityView on switch) entity kinds.
type EntityKind string

const (
	EntityDestination      EntityKind = "destination"
	EntityBudget           EntityKind = "budget"
	EntityGroupComposition EntityKind = "group_composition"
	EntityTravelDates      EntityKind = "travel_dates"
	EntityAccommodation    EntityKind = "accommodation"
	EntityTransport        EntityKind = "transport"
	EntityActivities       EntityKind = "activities"
	EntityPreference       EntityKind = "preference"
)

// EntityObservation is one (kind, value, confidence) triple the entity
// extractor emits for a single utterance, before it is merged into a
// Session's EntityMap.
type EntityObservation struct {
	Kind       EntityKind
	Value      string
	Confidence float64
}

// Sticky reports whether a kind keeps its current ActiveEntityView value
// on a context switch, with a newly mentioned value recorded as a
// secondary entry in EntityMap only.
func (k EntityKind) Sticky() bool {
	switch k {
	case EntityBudget, EntityGroupComposition, EntityTravelDates:
		return true
	default:
		return false
	}
}

// EntityMap is the long-term record of every entity ever mentioned,
// keyed by kind then canonical value.
type EntityMap map[EntityKind]map[string]*EntityMention

// ActiveEntityView is the subset of EntityMap currently in scope for
// context-aware rewriting and implicit filter application.
type ActiveEntityView map[EntityKind]string

// Session is the full per-conversation state persisted between turns.
type Session struct {
	ID               string
	Turns            []Turn
	EntityMap        EntityMap
	ActiveEntities   ActiveEntityView
	CreatedAt        time.Time
	LastActiveAt     time.Time
}

// SourceCitation identifies one document an answer draws from.
type SourceCitation struct {
	DocumentName string
	ChunkIDs     []string
	Similarity   float64
	Snippet      string
}

// SuggestedFollowup is a conversational next-question hint attached to
// an answer.
type SuggestedFollowup struct {
	Text string
}

// Answer is the synthesizer's output.
type Answer struct {
	Text        string
	Citations   []SourceCitation
	Confidence  float64
	Followups   []SuggestedFollowup
	Degraded    bool
}

// StructuredFilters is what the self-query parser extracts from an
// utterance.
type StructuredFilters struct {
	Destination    string
	TravelMonth    string
	Category       Category
	PriceRange     PriceRange
	PriceMax       float64
	DurationDays   int
	FamilyFriendly *bool
	Confidence     float64
}
