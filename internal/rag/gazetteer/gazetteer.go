// Package gazetteer canonicalizes the destination and month vocabulary
// used throughout the query pipeline: the entity extractor, the
// context-aware rewriter, the self-query parser, and the enricher's
// destination handling all resolve free-form Serbian/English text through
// the same lookup so "Rimu", "Roma", and "Rome" all collapse onto the
// canonical destination "Rim".
package gazetteer

import (
	"strings"
	"unicode"
)

// entry pairs a canonical destination name with every morphological or
// cross-language variant a user or a source document might write.
type entry struct {
	canonical string
	variants  []string
}

// destinations is a small curated set covering the tourism offers this
// corpus indexes, compiled in as a fixed vocabulary.
var destinations = []entry{
	{"Rim", []string{"rim", "rimu", "rima", "rimom", "roma", "rome"}},
	{"Amsterdam", []string{"amsterdam", "amsterdamu", "amsterdama", "amsterdamom"}},
	{"Pariz", []string{"pariz", "parizu", "pariza", "parizom", "paris"}},
	{"Barselona", []string{"barselona", "barseloni", "barselonu", "barselonom", "barcelona"}},
	{"Madrid", []string{"madrid", "madridu", "madrida", "madridom"}},
	{"Atina", []string{"atina", "atini", "atinu", "atinom", "athens"}},
	{"Santorini", []string{"santorini", "santoriniju", "santorinijem"}},
	{"Istanbul", []string{"istanbul", "istanbulu", "istanbula", "istanbulom"}},
	{"Beč", []string{"beč", "beču", "bečom", "bec", "becu", "vienna", "wien"}},
	{"Prag", []string{"prag", "pragu", "praga", "pragom", "prague"}},
	{"Budimpešta", []string{"budimpešta", "budimpešti", "budimpeštom", "budimpesta", "budapest"}},
	{"Dubai", []string{"dubai", "dubaiju", "dubaija", "dubaijem"}},
	{"Maroko", []string{"maroko", "maroku", "marokom", "morocco"}},
	{"Egipat", []string{"egipat", "egiptu", "egipta", "egiptom", "egypt"}},
	{"Grčka", []string{"grčka", "grčkoj", "grčku", "grčkom", "grcka", "grckoj", "greece"}},
	{"Italija", []string{"italija", "italiji", "italiju", "italijom", "italy"}},
	{"Zlatibor", []string{"zlatibor", "zlatiboru", "zlatiborom"}},
	{"Kopaonik", []string{"kopaonik", "kopaoniku", "kopaonikom"}},
}

var (
	destinationIndex map[string]string
	monthIndex       map[string]string
)

var monthOrder = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// monthEntries maps each canonical English month to its Serbian names
// (Latin script, several common case forms).
var monthEntries = map[string][]string{
	"january":   {"januar", "januaru", "januara"},
	"february":  {"februar", "februaru", "februara"},
	"march":     {"mart", "martu", "marta"},
	"april":     {"april", "aprilu", "aprila"},
	"may":       {"maj", "maju", "maja"},
	"june":      {"jun", "junu", "juna"},
	"july":      {"jul", "julu", "jula"},
	"august":    {"avgust", "avgustu", "avgusta"},
	"september": {"septembar", "septembru", "septembra"},
	"october":   {"oktobar", "oktobru", "oktobra"},
	"november":  {"novembar", "novembru", "novembra"},
	"december":  {"decembar", "decembru", "decembra"},
}

func init() {
	destinationIndex = make(map[string]string)
	for _, e := range destinations {
		destinationIndex[strings.ToLower(e.canonical)] = e.canonical
		for _, v := range e.variants {
			destinationIndex[v] = e.canonical
		}
	}
	monthIndex = make(map[string]string)
	for canonical, variants := range monthEntries {
		monthIndex[canonical] = canonical
		for _, v := range variants {
			monthIndex[v] = canonical
		}
	}
}

// CanonicalDestination resolves free text to its canonical gazetteer
// name. ok is false when nothing in the gazetteer matches.
func CanonicalDestination(s string) (string, bool) {
	name, ok := destinationIndex[strings.ToLower(strings.TrimSpace(s))]
	return name, ok
}

// Tokenize lowercases text and splits it on every non-letter/non-digit
// rune, so filenames ("rim_leto_2024.pdf") and prose ("u Rimu,") both
// break into matchable word tokens.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// FindDestinations returns every gazetteer destination mentioned in text,
// canonicalized and de-duplicated in first-occurrence order. Matching is
// whole-token: "Tražim hotel u Rimu" yields only Rim, never a substring
// false positive from "Tražim".
func FindDestinations(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, token := range Tokenize(text) {
		canonical, ok := destinationIndex[token]
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out
}

// CanonicalMonth resolves a Serbian or English month name to its
// canonical lowercase English form ("may", "august", ...).
func CanonicalMonth(s string) (string, bool) {
	name, ok := monthIndex[strings.ToLower(strings.TrimSpace(s))]
	return name, ok
}

// FindMonths returns every month mentioned in text, canonicalized, in
// first-occurrence order. Whole-token matching, like FindDestinations.
func FindMonths(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, token := range Tokenize(text) {
		canonical, ok := monthIndex[token]
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out
}

// MonthDistance returns the circular distance between two canonical
// months (0 = same, 1 = adjacent, up to 6 = opposite side of the year).
// Used by the retriever's travel_month soft penalty.
func MonthDistance(a, b string) (int, bool) {
	ia, ok1 := monthPosition(a)
	ib, ok2 := monthPosition(b)
	if !ok1 || !ok2 {
		return 0, false
	}
	d := ia - ib
	if d < 0 {
		d = -d
	}
	if d > 6 {
		d = 12 - d
	}
	return d, true
}

func monthPosition(name string) (int, bool) {
	for i, m := range monthOrder {
		if m == strings.ToLower(name) {
			return i, true
		}
	}
	return 0, false
}
