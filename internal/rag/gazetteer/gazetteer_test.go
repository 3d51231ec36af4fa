package gazetteer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalDestinationResolvesMorphologicalVariants(t *testing.T) {
	for _, variant := range []string{"Rim", "rimu", "Rima", "ROMA", "rome"} {
		got, ok := CanonicalDestination(variant)
		require.True(t, ok, variant)
		assert.Equal(t, "Rim", got)
	}
	_, ok := CanonicalDestination("Antarktik")
	assert.False(t, ok)
}

func TestFindDestinationsMatchesWholeTokensOnly(t *testing.T) {
	// "Tražim" contains "rim" as a substring; it must not match.
	got := FindDestinations("Tražim hotel u Amsterdamu.")
	assert.Equal(t, []string{"Amsterdam"}, got)
}

func TestFindDestinationsFirstOccurrenceOrder(t *testing.T) {
	got := FindDestinations("Prvo Pariz, onda Rim, pa opet Pariz.")
	assert.Equal(t, []string{"Pariz", "Rim"}, got)
}

func TestFindDestinationsInFilename(t *testing.T) {
	got := FindDestinations("hotel_rim_2024.pdf")
	assert.Equal(t, []string{"Rim"}, got)
}

func TestCanonicalMonthSerbianAndEnglish(t *testing.T) {
	for variant, want := range map[string]string{
		"maj": "may", "maju": "may", "May": "may",
		"avgustu": "august", "august": "august",
	} {
		got, ok := CanonicalMonth(variant)
		require.True(t, ok, variant)
		assert.Equal(t, want, got)
	}
}

func TestFindMonthsWholeTokens(t *testing.T) {
	got := FindMonths("koja letovanja imaš u avgustu")
	assert.Equal(t, []string{"august"}, got)
}

func TestMonthDistanceWrapsAroundTheYear(t *testing.T) {
	d, ok := MonthDistance("december", "january")
	require.True(t, ok)
	assert.Equal(t, 1, d)

	d, ok = MonthDistance("may", "november")
	require.True(t, ok)
	assert.Equal(t, 6, d)

	d, ok = MonthDistance("may", "may")
	require.True(t, ok)
	assert.Equal(t, 0, d)

	_, ok = MonthDistance("may", "nonsense")
	assert.False(t, ok)
}
