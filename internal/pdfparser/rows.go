package pdfparser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ledgermesh/ledgermesh/internal/model"
)

// pdfDateFormats is the 14-format date list tried against a line's leading
// 1-3 tokens, longest-candidate first.
var pdfDateFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"02/01/2006 15:04:05",
	"2006/01/02",
	"2/1/2006",
	"02 Jan 2006",
	"Jan 02, 2006",
	"Jan 2, 2006",
	"02.01.2006",
	"2006.01.02",
	"01-02-2006",
}

var stopPrefixes = []string{
	"total", "closing balance", "opening balance", "statement summary",
	"page total", "brought forward", "carried forward", "end of statement",
}

var amountRe = regexp.MustCompile(`[\d,]+\.\d{2}`)
var referenceRe = regexp.MustCompile(`[A-Z]{2,4}\d{8,16}`)
var drCrRe = regexp.MustCompile(`(?i)\b(DR|CR)\b\s*$`)

func hasStopPrefix(lower string) bool {
	for _, p := range stopPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// tryParseLeadingDate tries the line's first 3, then 2, then 1 whitespace
// tokens against the 14-format list. Returns the parsed date, the token
// count consumed, and whether a match was found.
func tryParseLeadingDate(line string) (time.Time, int, bool) {
	tokens := strings.Fields(line)
	for n := 3; n >= 1; n-- {
		if n > len(tokens) {
			continue
		}
		candidate := strings.Join(tokens[:n], " ")
		for _, layout := range pdfDateFormats {
			t, err := time.ParseInLocation(layout, candidate, time.Local)
			if err == nil {
				return t, n, true
			}
		}
	}
	return time.Time{}, 0, false
}

// rowAccumulator holds in-progress state for one statement row while
// continuation lines are folded in.
type rowAccumulator struct {
	date        time.Time
	description strings.Builder
	rawLines    []string
	amountMinor int64
	direction   model.Direction
	hasAmount   bool
}

func newRowAccumulator(date time.Time) *rowAccumulator {
	return &rowAccumulator{date: date, direction: model.DirectionDebit}
}

func (r *rowAccumulator) appendLine(line string, layout columnLayout) {
	r.rawLines = append(r.rawLines, line)
	if strings.TrimSpace(line) == "" {
		return
	}
	if r.description.Len() > 0 {
		r.description.WriteByte(' ')
	}
	r.description.WriteString(strings.TrimSpace(line))

	if !r.hasAmount {
		if amt, dir, ok := extractAmountAndDirection(line, layout); ok {
			r.amountMinor = amt
			r.direction = dir
			r.hasAmount = true
		}
	}
}

func (r *rowAccumulator) reference() *string {
	full := strings.Join(r.rawLines, " ")
	if m := referenceRe.FindString(full); m != "" {
		return &m
	}
	return nil
}

// extractAmountAndDirection finds the transaction amount on a line
// (excluding a trailing running-balance figure when a balance column is
// known) and derives its direction from a DR/CR suffix, then column
// proximity, defaulting to DEBIT for single-amount layouts.
func extractAmountAndDirection(line string, layout columnLayout) (int64, model.Direction, bool) {
	matches := amountRe.FindAllStringIndex(line, -1)
	if len(matches) == 0 {
		return 0, model.DirectionUnknown, false
	}

	candidates := matches
	if layout.BalanceOffset >= 0 && len(matches) > 1 {
		candidates = excludeClosestToBalance(line, matches, layout.BalanceOffset)
	}
	if len(candidates) == 0 {
		return 0, model.DirectionUnknown, false
	}

	loc := candidates[0]
	raw := strings.ReplaceAll(line[loc[0]:loc[1]], ",", "")
	minor, err := decimalStringToMinor(raw)
	if err != nil {
		return 0, model.DirectionUnknown, false
	}

	if drCrRe.MatchString(line) {
		suffix := strings.ToUpper(strings.TrimSpace(drCrRe.FindString(line)))
		if strings.HasPrefix(suffix, "CR") {
			return minor, model.DirectionCredit, true
		}
		return minor, model.DirectionDebit, true
	}

	if layout.DebitOffset >= 0 && layout.CreditOffset >= 0 {
		pos := loc[0]
		if absInt(pos-layout.DebitOffset) <= absInt(pos-layout.CreditOffset) {
			return minor, model.DirectionDebit, true
		}
		return minor, model.DirectionCredit, true
	}

	return minor, model.DirectionDebit, true
}

func excludeClosestToBalance(line string, matches [][]int, balanceOffset int) [][]int {
	closest := 0
	closestDist := absInt(matches[0][0] - balanceOffset)
	for i, m := range matches[1:] {
		d := absInt(m[0] - balanceOffset)
		if d < closestDist {
			closest = i + 1
			closestDist = d
		}
	}
	out := make([][]int, 0, len(matches)-1)
	for i, m := range matches {
		if i != closest {
			out = append(out, m)
		}
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func decimalStringToMinor(s string) (int64, error) {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		whole, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, err
		}
		return whole * 100, nil
	}
	whole, err := strconv.ParseInt(s[:dot], 10, 64)
	if err != nil {
		return 0, err
	}
	frac := s[dot+1:]
	for len(frac) < 2 {
		frac += "0"
	}
	frac = frac[:2]
	fracVal, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	return whole*100 + fracVal, nil
}
