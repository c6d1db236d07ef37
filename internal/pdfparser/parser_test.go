package pdfparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgermesh/ledgermesh/internal/model"
)

func TestFindHeaderLines_ThresholdAndExclusionWindow(t *testing.T) {
	lines := []string{
		"Statement of Account",
		"Date Description Amount",
		"01 Jan 2026 Coffee 5.00",
		"02 Jan 2026 Lunch 10.00",
	}
	assert.Equal(t, []int{1}, findHeaderLines(lines))
}

func TestLayoutFromHeader_MissingDateDiscardsTable(t *testing.T) {
	_, ok := layoutFromHeader("Description Amount Balance")
	assert.False(t, ok)
}

func TestLayoutFromHeader_EstimatesDescriptionOffset(t *testing.T) {
	layout, ok := layoutFromHeader("Date Amount")
	require.True(t, ok)
	assert.Equal(t, 0, layout.DateOffset)
	assert.Equal(t, 12, layout.DescriptionOffset)
}

func TestTryParseLeadingDate_ThreeTokenFormat(t *testing.T) {
	d, n, ok := tryParseLeadingDate("02 Jan 2026 Some Description 5.00")
	require.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2026, d.Year())
	assert.Equal(t, 2, d.Day())
}

func TestTryParseLeadingDate_NoMatch(t *testing.T) {
	_, _, ok := tryParseLeadingDate("Description only line no date")
	assert.False(t, ok)
}

func TestParseText_SingleAmountColumnDefaultsDebit(t *testing.T) {
	page := "Date Description Amount\n01 Jan 2026 Coffee Shop 5.00\n"
	result := ParseText([]string{page}, "stmt.pdf", "KES")

	require.Len(t, result.Observations, 1)
	obs := result.Observations[0]
	assert.Equal(t, model.DirectionDebit, obs.Direction)
	assert.Equal(t, int64(500), obs.AmountMinor)
	assert.True(t, obs.TimestampDateOnly)
	assert.Equal(t, 0.7, obs.ParseConfidence)
	require.NotNil(t, obs.Timestamp)
	assert.Equal(t, 2026, obs.Timestamp.Year())
}

func TestParseText_DRCRSuffixOverridesDefault(t *testing.T) {
	page := "Date Description Amount\n01 Jan 2026 Refund Received 15.00 CR\n"
	result := ParseText([]string{page}, "stmt.pdf", "KES")

	require.Len(t, result.Observations, 1)
	assert.Equal(t, model.DirectionCredit, result.Observations[0].Direction)
	assert.Equal(t, int64(1500), result.Observations[0].AmountMinor)
}

func TestParseText_StopPhraseEndsTable(t *testing.T) {
	page := "Date Description Amount\n01 Jan 2026 Coffee 5.00\nTotal 5.00\n02 Jan 2026 Lunch 10.00\n"
	result := ParseText([]string{page}, "stmt.pdf", "KES")
	require.Len(t, result.Observations, 1)
	assert.Equal(t, int64(500), result.Observations[0].AmountMinor)
}

func TestParseText_BlankLinesEndTable(t *testing.T) {
	page := "Date Description Amount\n01 Jan 2026 Coffee 5.00\n\n\n\n02 Jan 2026 Lunch 10.00\n"
	result := ParseText([]string{page}, "stmt.pdf", "KES")
	require.Len(t, result.Observations, 1)
	assert.Equal(t, int64(500), result.Observations[0].AmountMinor)
}

func TestParseText_ReferenceExtracted(t *testing.T) {
	page := "Date Description Reference Amount\n01 Jan 2026 Payment ABCD12345678 20.00\n"
	result := ParseText([]string{page}, "stmt.pdf", "KES")
	require.Len(t, result.Observations, 1)
	require.NotNil(t, result.Observations[0].Reference)
	assert.Equal(t, "ABCD12345678", *result.Observations[0].Reference)
}

func TestParseText_ContinuationLineFolded(t *testing.T) {
	page := "Date Description Amount\n01 Jan 2026 Large Purchase\nContinued description line 99.00\n"
	result := ParseText([]string{page}, "stmt.pdf", "KES")

	require.Len(t, result.Observations, 1)
	obs := result.Observations[0]
	assert.Equal(t, int64(9900), obs.AmountMinor)
	require.NotNil(t, obs.Counterparty)
	assert.Contains(t, *obs.Counterparty, "Large Purchase")
	assert.Contains(t, *obs.Counterparty, "Continued description line")
}

func TestParseText_NoDateColumnDiscardsTable(t *testing.T) {
	page := "Description Amount\n01 Jan 2026 Something 5.00\n"
	result := ParseText([]string{page}, "stmt.pdf", "KES")
	assert.Empty(t, result.Observations)
}
