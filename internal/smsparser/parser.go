package smsparser

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgermesh/ledgermesh/internal/fingerprint"
	"github.com/ledgermesh/ledgermesh/internal/model"
	"github.com/ledgermesh/ledgermesh/internal/service"
)

// UnmatchedResult records an SMS that no profile could extract an
// observation from.
type UnmatchedResult struct {
	MessageID string
	ProfileID string // empty if no profile was even selected
}

// ParseResult is the outcome of parsing one SMS message: exactly one of
// Observation or Unmatched is populated.
type ParseResult struct {
	Observation *model.Observation
	Unmatched   *UnmatchedResult
}

// Parse selects a profile for msg (by sender first, then content-only
// fallback) and tries its patterns in order, returning the first successful
// extraction or an unmatched result.
func (m *Matcher) Parse(msg service.SMSMessage, currency string) ParseResult {
	profile := m.selectProfile(msg)
	if profile == nil {
		return ParseResult{Unmatched: &UnmatchedResult{MessageID: msg.ID}}
	}

	for _, pat := range profile.patterns {
		match := pat.re.FindStringSubmatch(msg.Body)
		if match == nil {
			continue
		}

		amountMinor, ok := extractAmount(match, pat.Groups.Amount)
		if !ok || amountMinor == 0 {
			continue
		}

		obs := &model.Observation{
			SourceType:      model.SourceSMS,
			SourceLocator:   msg.Sender,
			RawPayload:      msg.Body,
			Currency:        currency,
			AmountMinor:     amountMinor,
			Direction:       pat.Direction,
			ParseConfidence: 0.85,
		}
		ts := timeFromMillis(msg.DateMillis)
		obs.Timestamp = &ts
		obs.TimestampDateOnly = false

		if ref := captureGroup(match, pat.Groups.Reference); ref != "" {
			obs.Reference = &ref
		}
		if cp := captureGroup(match, pat.Groups.Counterparty); cp != "" {
			obs.Counterparty = &cp
		}
		hint := captureGroup(match, pat.Groups.AccountHint)
		if hint == "" {
			hint = profile.Name
		}
		obs.AccountHint = &hint

		obs.ID = observationID(msg)
		obs.ImportSessionID = ""
		fingerprint.Apply(obs)

		return ParseResult{Observation: obs}
	}

	return ParseResult{Unmatched: &UnmatchedResult{MessageID: msg.ID, ProfileID: profile.Name}}
}

// selectProfile implements the two-stage matching order: sender-scoped
// profiles first (priority order, equality or substring match), then
// content-only profiles whose any pattern matches the body.
func (m *Matcher) selectProfile(msg service.SMSMessage) *compiledProfile {
	sender := strings.ToLower(msg.Sender)

	for i := range m.profiles {
		p := &m.profiles[i]
		if len(p.SenderAddresses) == 0 {
			continue
		}
		for _, addr := range p.SenderAddresses {
			addrLower := strings.ToLower(addr)
			if sender == addrLower || strings.Contains(sender, addrLower) {
				return p
			}
		}
	}

	for i := range m.profiles {
		p := &m.profiles[i]
		if len(p.SenderAddresses) != 0 {
			continue
		}
		for _, pat := range p.patterns {
			if pat.re.MatchString(msg.Body) {
				return p
			}
		}
	}

	return nil
}

func captureGroup(match []string, idx int) string {
	if idx <= 0 || idx >= len(match) {
		return ""
	}
	return match[idx]
}

// extractAmount reads the indicated capture group, strips commas, parses as
// a decimal, and converts to minor units (×100, truncated).
func extractAmount(match []string, idx int) (int64, bool) {
	raw := captureGroup(match, idx)
	if raw == "" {
		return 0, false
	}
	cleaned := strings.ReplaceAll(raw, ",", "")
	amt, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	minor := amt.Mul(decimal.NewFromInt(100)).Truncate(0)
	return minor.IntPart(), true
}

func observationID(msg service.SMSMessage) string {
	return "sms:" + msg.Sender + ":" + strconv.FormatInt(msg.DateMillis, 10) + ":" + msg.ID
}

func timeFromMillis(millis int64) time.Time {
	return time.UnixMilli(millis)
}
