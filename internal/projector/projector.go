// Package projector computes an aggregate's canonical fields and confidence
// score as a pure function of its linked observations, folding a slice of
// weighted signals into a single deterministic winner with explicit
// tie-breaks.
package projector

import (
	"sort"
	"strings"

	"github.com/ledgermesh/ledgermesh/internal/model"
)

// Result holds the canonical fields and confidence score derived from a set
// of observations. CategoryID and UserNotes are intentionally absent: they
// are user-owned and preserved by the caller, never produced here.
type Result struct {
	Timestamp       *int64
	Reference       *string
	Counterparty    *string
	AccountHint     *string
	Currency        string
	AmountMinor     int64
	Direction       model.Direction
	IsApproxTime    bool
	ConfidenceScore int
}

// Project computes the canonical fields for a non-empty set of observations.
// Callers must guarantee len(obs) > 0; an empty input returns a zero Result.
// The observations are ordered by id first, so every "first seen" tie-break
// below means "lowest observation id" and the result does not depend on the
// order of obs.
func Project(obs []model.Observation) Result {
	if len(obs) == 0 {
		return Result{}
	}

	sorted := append([]model.Observation(nil), obs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	obs = sorted

	amount, currency := projectAmountAndCurrency(obs)
	ts := projectTimestamp(obs)
	direction := projectDirection(obs)
	reference := projectReference(obs)
	counterparty := projectCounterparty(obs)
	accountHint := projectAccountHint(obs)
	approx := projectIsApproxTime(obs)
	confidence := confidenceScore(obs, reference, amount)

	return Result{
		AmountMinor:     amount,
		Currency:        currency,
		Timestamp:       ts,
		IsApproxTime:    approx,
		Direction:       direction,
		Reference:       reference,
		Counterparty:    counterparty,
		AccountHint:     accountHint,
		ConfidenceScore: confidence,
	}
}

// projectAmountAndCurrency picks the most common amount_minor (tie-break:
// highest source priority of the group's first member, then lowest
// observation id), then the most frequent currency among all observations
// (tie-break: first seen).
func projectAmountAndCurrency(obs []model.Observation) (int64, string) {
	type amountGroup struct {
		amount  int64
		members []model.Observation
	}

	groups := map[int64]*amountGroup{}
	var order []int64
	for _, o := range obs {
		g, ok := groups[o.AmountMinor]
		if !ok {
			g = &amountGroup{amount: o.AmountMinor}
			groups[o.AmountMinor] = g
			order = append(order, o.AmountMinor)
		}
		g.members = append(g.members, o)
	}

	var groupList []*amountGroup
	for _, amt := range order {
		groupList = append(groupList, groups[amt])
	}

	sort.SliceStable(groupList, func(i, j int) bool {
		gi, gj := groupList[i], groupList[j]
		if len(gi.members) != len(gj.members) {
			return len(gi.members) > len(gj.members)
		}
		pi := model.SourcePriority(gi.members[0].SourceType)
		pj := model.SourcePriority(gj.members[0].SourceType)
		if pi != pj {
			return pi > pj
		}
		return lowestID(gi.members) < lowestID(gj.members)
	})

	winner := groupList[0]

	currencyCounts := map[string]int{}
	var currencyOrder []string
	for _, o := range obs {
		if _, ok := currencyCounts[o.Currency]; !ok {
			currencyOrder = append(currencyOrder, o.Currency)
		}
		currencyCounts[o.Currency]++
	}
	bestCurrency := currencyOrder[0]
	bestCount := currencyCounts[bestCurrency]
	for _, c := range currencyOrder[1:] {
		if currencyCounts[c] > bestCount {
			bestCurrency = c
			bestCount = currencyCounts[c]
		}
	}

	return winner.amount, bestCurrency
}

func lowestID(obs []model.Observation) string {
	lowest := obs[0].ID
	for _, o := range obs[1:] {
		if o.ID < lowest {
			lowest = o.ID
		}
	}
	return lowest
}

// projectTimestamp returns the lower median of all non-null timestamps, in
// epoch milliseconds.
func projectTimestamp(obs []model.Observation) *int64 {
	var millis []int64
	for _, o := range obs {
		if o.Timestamp != nil {
			millis = append(millis, o.Timestamp.UnixMilli())
		}
	}
	if len(millis) == 0 {
		return nil
	}
	sort.Slice(millis, func(i, j int) bool { return millis[i] < millis[j] })
	v := millis[len(millis)/2]
	return &v
}

// projectIsApproxTime is true iff every observation carries a date-only
// timestamp (no time-of-day precision).
func projectIsApproxTime(obs []model.Observation) bool {
	for _, o := range obs {
		if !o.TimestampDateOnly {
			return false
		}
	}
	return true
}

// projectDirection collects the distinct non-UNKNOWN directions. Zero
// distinct values yields UNKNOWN; both DEBIT and CREDIT present yields
// MIXED; otherwise the single present value.
func projectDirection(obs []model.Observation) model.Direction {
	seen := map[model.Direction]bool{}
	var order []model.Direction
	for _, o := range obs {
		if o.Direction == model.DirectionUnknown {
			continue
		}
		if !seen[o.Direction] {
			seen[o.Direction] = true
			order = append(order, o.Direction)
		}
	}

	switch {
	case len(order) == 0:
		return model.DirectionUnknown
	case seen[model.DirectionDebit] && seen[model.DirectionCredit]:
		return model.DirectionMixed
	default:
		return order[0]
	}
}

// projectReference trims and drops blanks. If every remaining reference is
// identical, that value wins; otherwise the longest wins (tie-break: first
// seen).
func projectReference(obs []model.Observation) *string {
	var refs []string
	for _, o := range obs {
		if o.Reference == nil {
			continue
		}
		trimmed := strings.TrimSpace(*o.Reference)
		if trimmed == "" {
			continue
		}
		refs = append(refs, trimmed)
	}
	if len(refs) == 0 {
		return nil
	}

	allEqual := true
	for _, r := range refs[1:] {
		if r != refs[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return &refs[0]
	}

	best := refs[0]
	for _, r := range refs[1:] {
		if len(r) > len(best) {
			best = r
		}
	}
	return &best
}

// projectCounterparty trims, drops blanks, groups case-insensitively, and
// picks the largest group (tie-break: first seen), returning the
// original-case first member of the winning group.
func projectCounterparty(obs []model.Observation) *string {
	type group struct {
		firstOriginal string
		count         int
	}

	groups := map[string]*group{}
	var order []string
	for _, o := range obs {
		if o.Counterparty == nil {
			continue
		}
		trimmed := strings.TrimSpace(*o.Counterparty)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		g, ok := groups[key]
		if !ok {
			g = &group{firstOriginal: trimmed}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
	}
	if len(order) == 0 {
		return nil
	}

	bestKey := order[0]
	for _, key := range order[1:] {
		if groups[key].count > groups[bestKey].count {
			bestKey = key
		}
	}
	result := groups[bestKey].firstOriginal
	return &result
}

// projectAccountHint trims, drops blanks, groups case-sensitively, and picks
// the largest group (tie-break: first seen).
func projectAccountHint(obs []model.Observation) *string {
	counts := map[string]int{}
	var order []string
	for _, o := range obs {
		if o.AccountHint == nil {
			continue
		}
		trimmed := strings.TrimSpace(*o.AccountHint)
		if trimmed == "" {
			continue
		}
		if _, ok := counts[trimmed]; !ok {
			order = append(order, trimmed)
		}
		counts[trimmed]++
	}
	if len(order) == 0 {
		return nil
	}

	best := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return &best
}

// confidenceScore sums the weighted signals from §4.3, clamping at 100 and
// floor-truncating each fractional contribution before summing.
func confidenceScore(obs []model.Observation, reference *string, amount int64) int {
	score := 0

	distinctSources := map[model.SourceType]bool{}
	for _, o := range obs {
		distinctSources[o.SourceType] = true
	}
	sourceScore := len(distinctSources) * 15
	if sourceScore > 30 {
		sourceScore = 30
	}
	score += sourceScore

	if reference != nil {
		allSame := true
		for _, o := range obs {
			if o.Reference == nil {
				continue
			}
			if trimmed := strings.TrimSpace(*o.Reference); trimmed != "" && trimmed != *reference {
				allSame = false
				break
			}
		}
		if allSame {
			score += 20
		}
	}

	var millis []int64
	for _, o := range obs {
		if o.Timestamp != nil {
			millis = append(millis, o.Timestamp.UnixMilli())
		}
	}
	switch len(millis) {
	case 0:
	case 1:
		score += 10
	default:
		minV, maxV := millis[0], millis[0]
		for _, m := range millis[1:] {
			if m < minV {
				minV = m
			}
			if m > maxV {
				maxV = m
			}
		}
		spanMinutes := float64(maxV-minV) / 60_000.0
		switch {
		case spanMinutes < 5:
			score += 20
		case spanMinutes < 60:
			score += 15
		case spanMinutes < 1440:
			score += 10
		default:
			score += 5
		}
	}

	var confSum float64
	for _, o := range obs {
		confSum += o.ParseConfidence
	}
	avgConf := confSum / float64(len(obs))
	score += int(avgConf * 20)

	allAmountsEqual := true
	for _, o := range obs {
		if o.AmountMinor != amount {
			allAmountsEqual = false
			break
		}
	}
	if allAmountsEqual {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
