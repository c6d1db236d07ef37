package pdfparser

import "strings"

// headerKeywords is the full keyword set counted to declare a header line.
var headerKeywords = []string{
	"date", "description", "narration", "particulars", "details",
	"debit", "credit", "amount", "withdrawal", "deposit", "balance",
	"reference", "ref", "value", "transaction",
}

const headerKeywordThreshold = 2
const headerExclusionWindow = 3

var dateTokens = []string{"value date", "txn date", "date"}
var descriptionTokens = []string{"description", "narration", "particulars", "details"}
var debitTokens = []string{"debit", "withdrawal"}
var creditTokens = []string{"credit", "deposit"}
var amountTokens = []string{"amount"}
var balanceTokens = []string{"balance"}
var referenceTokens = []string{"reference", "ref"}

// columnLayout holds the character offsets of each recognized column on a
// header line. An offset of -1 means the column was not found.
type columnLayout struct {
	DateOffset        int
	DescriptionOffset int
	DebitOffset       int
	CreditOffset      int
	AmountOffset      int
	BalanceOffset     int
	ReferenceOffset   int
}

// findHeaderLines scans lines for header candidates: a line not within
// headerExclusionWindow lines of the previously discovered header, whose
// keyword count reaches the threshold. Returns the index of every header
// line found, in order.
func findHeaderLines(lines []string) []int {
	var headers []int
	lastHeader := -1 - headerExclusionWindow - 1

	for i, line := range lines {
		if i-lastHeader <= headerExclusionWindow {
			continue
		}
		if countKeywords(line) >= headerKeywordThreshold {
			headers = append(headers, i)
			lastHeader = i
		}
	}
	return headers
}

func countKeywords(line string) int {
	lower := strings.ToLower(line)
	count := 0
	for _, kw := range headerKeywords {
		count += strings.Count(lower, kw)
	}
	return count
}

// layoutFromHeader derives column offsets from a header line. A missing
// date offset signals the caller to discard the table. A missing
// description offset is estimated as dateOffset+12.
func layoutFromHeader(header string) (columnLayout, bool) {
	lower := strings.ToLower(header)

	dateOffset, ok := firstOffset(lower, dateTokens)
	if !ok {
		return columnLayout{}, false
	}

	layout := columnLayout{
		DateOffset:      dateOffset,
		DebitOffset:     -1,
		CreditOffset:    -1,
		AmountOffset:    -1,
		BalanceOffset:   -1,
		ReferenceOffset: -1,
	}

	if off, ok := firstOffset(lower, descriptionTokens); ok {
		layout.DescriptionOffset = off
	} else {
		layout.DescriptionOffset = dateOffset + 12
	}
	if off, ok := firstOffset(lower, debitTokens); ok {
		layout.DebitOffset = off
	}
	if off, ok := firstOffset(lower, creditTokens); ok {
		layout.CreditOffset = off
	}
	if off, ok := firstOffset(lower, amountTokens); ok {
		layout.AmountOffset = off
	}
	if off, ok := firstOffset(lower, balanceTokens); ok {
		layout.BalanceOffset = off
	}
	if off, ok := firstOffset(lower, referenceTokens); ok {
		layout.ReferenceOffset = off
	}

	return layout, true
}

func firstOffset(lower string, tokens []string) (int, bool) {
	best := -1
	found := false
	for _, tok := range tokens {
		idx := strings.Index(lower, tok)
		if idx >= 0 && (!found || idx < best) {
			best = idx
			found = true
		}
	}
	return best, found
}
