// Package csvparser turns delimiter-separated statement exports into
// Observations, with auto-suggested column mappings and exact decimal
// amount conversion via shopspring/decimal.
package csvparser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// ColumnMapping identifies which column holds which field. A value of -1
// means "not present". When AmountColumn is set it takes precedence over
// DebitColumn and CreditColumn; suggestMapping only sets it when no
// debit/credit header was found.
type ColumnMapping struct {
	DateFormat        string
	DateColumn        int
	ReferenceColumn   int
	DescriptionColumn int
	DebitColumn       int
	CreditColumn      int
	AmountColumn      int
}

func unmappedColumns() ColumnMapping {
	return ColumnMapping{
		DateColumn:        -1,
		ReferenceColumn:   -1,
		DescriptionColumn: -1,
		DebitColumn:       -1,
		CreditColumn:      -1,
		AmountColumn:      -1,
	}
}

// PreviewResult is the outcome of previewing a CSV file before import:
// headers, a handful of sample rows, and a best-effort suggested mapping.
type PreviewResult struct {
	Mapping    *ColumnMapping
	Headers    []string
	SampleRows [][]string
}

const maxSampleRows = 5

// DetectDelimiter counts ',', ';', '\t' and '|' occurrences in the first
// line of content and returns the most frequent one, with ties resolving to
// comma.
func DetectDelimiter(content string) rune {
	firstLine := content
	if idx := strings.IndexAny(content, "\r\n"); idx >= 0 {
		firstLine = content[:idx]
	}

	counts := map[rune]int{',': 0, ';': 0, '\t': 0, '|': 0}
	for _, r := range firstLine {
		if _, ok := counts[r]; ok {
			counts[r]++
		}
	}

	best := ','
	bestCount := counts[',']
	for _, d := range []rune{';', '\t', '|'} {
		if counts[d] > bestCount {
			bestCount = counts[d]
			best = d
		}
	}
	return best
}

// Preview reads the header row and up to 5 sample rows, and attempts to
// auto-suggest a ColumnMapping from the header tokens.
func Preview(content []byte) (PreviewResult, error) {
	delim := DetectDelimiter(string(content))
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = delim
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err != nil {
		return PreviewResult{}, fmt.Errorf("reading csv headers: %w", err)
	}

	var samples [][]string
	for i := 0; i < maxSampleRows; i++ {
		row, rerr := r.Read()
		if rerr != nil {
			break
		}
		samples = append(samples, row)
	}

	return PreviewResult{
		Headers:    headers,
		SampleRows: samples,
		Mapping:    suggestMapping(headers),
	}, nil
}

// suggestMapping scans header tokens for recognizable field names. Returns
// nil if no date column was identified.
func suggestMapping(headers []string) *ColumnMapping {
	m := unmappedColumns()

	for i, h := range headers {
		lower := strings.ToLower(strings.TrimSpace(h))
		switch {
		case m.DateColumn == -1 && strings.Contains(lower, "date"):
			m.DateColumn = i
		case m.ReferenceColumn == -1 && containsAny(lower, "ref", "transaction id", "receipt"):
			m.ReferenceColumn = i
		case m.DescriptionColumn == -1 && containsAny(lower, "desc", "detail", "narration", "particular"):
			m.DescriptionColumn = i
		case m.DebitColumn == -1 && containsAny(lower, "debit", "withdrawal"):
			m.DebitColumn = i
		case m.CreditColumn == -1 && containsAny(lower, "credit", "deposit"):
			m.CreditColumn = i
		case m.AmountColumn == -1 && containsAny(lower, "amount", "value"):
			m.AmountColumn = i
		}
	}

	if m.DateColumn == -1 {
		return nil
	}
	if m.DebitColumn != -1 || m.CreditColumn != -1 {
		m.AmountColumn = -1
	}
	return &m
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
