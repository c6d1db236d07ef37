package pdfparser

import (
	"fmt"
	"strings"

	"github.com/ledgermesh/ledgermesh/internal/fingerprint"
	"github.com/ledgermesh/ledgermesh/internal/model"
)

const parseConfidence = 0.7
const maxBlankLines = 3

// Result is the outcome of parsing a whole PDF statement.
type Result struct {
	Observations []model.Observation
}

// Parse extracts text from a PDF and runs the table heuristic over it.
// Returns common.ErrScannedPDF or common.ErrEncryptedPDF when the document
// fails the corresponding precondition; no further parsing is attempted in
// either case.
func Parse(content []byte, name, currency string) (Result, error) {
	pages, err := extractPages(content)
	if err != nil {
		return Result{}, err
	}
	return ParseText(pages, name, currency), nil
}

// ParseText runs the header-discovery and row-parsing heuristic over
// already-extracted page text. Pure and suspension-free, separated from
// Parse's I/O so it can be exercised directly in tests.
func ParseText(pages []string, name, currency string) Result {
	var result Result

	for _, page := range pages {
		lines := strings.Split(page, "\n")
		headers := findHeaderLines(lines)

		for hi, headerIdx := range headers {
			end := len(lines)
			if hi+1 < len(headers) {
				end = headers[hi+1]
			}
			layout, ok := layoutFromHeader(lines[headerIdx])
			if !ok {
				continue
			}
			obs := parseTable(lines[headerIdx+1:end], layout, name, currency)
			result.Observations = append(result.Observations, obs...)
		}
	}

	return result
}

// parseTable walks the lines beneath one header, accumulating rows per the
// documented state machine: a recognized leading date starts a new row and
// flushes the previous one; anything else is folded into the current row
// as a continuation; 3 consecutive blank lines or a stop-phrase line ends
// the table.
func parseTable(lines []string, layout columnLayout, name, currency string) []model.Observation {
	var observations []model.Observation
	var current *rowAccumulator
	blankCount := 0

	flush := func() {
		if current == nil {
			return
		}
		if obs, ok := buildObservation(current, layout, name, currency); ok {
			observations = append(observations, obs)
		}
		current = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blankCount++
			if blankCount >= maxBlankLines {
				flush()
				return observations
			}
			continue
		}
		blankCount = 0

		if hasStopPrefix(strings.ToLower(trimmed)) {
			flush()
			return observations
		}

		if date, consumed, ok := tryParseLeadingDate(trimmed); ok {
			flush()
			current = newRowAccumulator(date)
			tokens := strings.Fields(trimmed)
			rest := strings.Join(tokens[consumed:], " ")
			if rest != "" {
				current.appendLine(rest, layout)
			}
			continue
		}

		if current != nil {
			current.appendLine(trimmed, layout)
		}
	}

	flush()
	return observations
}

func buildObservation(r *rowAccumulator, _ columnLayout, name, currency string) (model.Observation, bool) {
	if !r.hasAmount {
		return model.Observation{}, false
	}

	rawPayload := strings.Join(r.rawLines, " | ")
	obs := model.Observation{
		SourceType:        model.SourcePDF,
		SourceLocator:     name,
		RawPayload:        rawPayload,
		Currency:          currency,
		AmountMinor:       r.amountMinor,
		Direction:         r.direction,
		ParseConfidence:   parseConfidence,
		TimestampDateOnly: true,
	}
	ts := r.date
	obs.Timestamp = &ts

	if ref := r.reference(); ref != nil {
		obs.Reference = ref
	}
	if desc := strings.TrimSpace(r.description.String()); desc != "" {
		obs.Counterparty = &desc
	}
	hint := name
	obs.AccountHint = &hint

	obs.ID = observationID(name, rawPayload)
	fingerprint.Apply(&obs)

	return obs, true
}

func observationID(name, rawPayload string) string {
	hash := fingerprint.ContentHash(model.SourcePDF, name, rawPayload)
	return fmt.Sprintf("pdf:%s:%s", name, hash[:16])
}
