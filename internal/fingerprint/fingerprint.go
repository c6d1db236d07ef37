// Package fingerprint derives the normalized lookup keys and the
// content-addressed dedup key that the observation store and reconciliation
// engine index on.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ledgermesh/ledgermesh/internal/model"
)

const bucketWidthMillis = 300_000 // 5 minutes

// Ref derives the reference fingerprint: uppercase s, strip everything
// outside [A-Z0-9]; blank input or an empty result after stripping yields
// nil.
func Ref(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	upper := strings.ToUpper(s)
	var b strings.Builder
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	normalized := b.String()
	if normalized == "" {
		return nil
	}

	out := "ref:" + normalized
	return &out
}

// AmtTime derives the amount+5-minute-bucket fingerprint. nil when tsMillis
// is nil.
func AmtTime(amountMinor int64, tsMillis *int64) *string {
	if tsMillis == nil {
		return nil
	}
	bucket := floorDiv(*tsMillis, bucketWidthMillis)
	out := fmt.Sprintf("at:%d:%d", amountMinor, bucket)
	return &out
}

// AmtDay derives the amount+local-calendar-day fingerprint. nil when
// tsMillis is nil. Uses the host's local time zone; this makes the
// fingerprint non-reproducible across zones, a known hazard.
func AmtDay(amountMinor int64, tsMillis *int64) *string {
	if tsMillis == nil {
		return nil
	}
	t := time.UnixMilli(*tsMillis).Local()
	out := fmt.Sprintf("ad:%d:%s", amountMinor, t.Format("2006-01-02"))
	return &out
}

// SenderAmt derives the sender+amount fingerprint. Always non-nil.
func SenderAmt(locator string, amountMinor int64) string {
	return fmt.Sprintf("sa:%s:%d", strings.ToUpper(strings.TrimSpace(locator)), amountMinor)
}

// ContentHash derives the SHA-256 content-addressed dedup key over
// "sourceType|locator|rawPayload", lowercase hex.
func ContentHash(sourceType model.SourceType, locator, rawPayload string) string {
	data := fmt.Sprintf("%s|%s|%s", sourceType, locator, rawPayload)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Apply computes and denormalizes all fingerprints plus the content hash
// onto an observation. Called once at insertion time; the reconciler never
// rehashes.
func Apply(obs *model.Observation) {
	obs.ContentHash = ContentHash(obs.SourceType, obs.SourceLocator, obs.RawPayload)

	if obs.Reference != nil {
		obs.FpRef = Ref(*obs.Reference)
	}

	var tsMillis *int64
	if obs.Timestamp != nil {
		ms := obs.Timestamp.UnixMilli()
		tsMillis = &ms
	}

	obs.FpAmtTime = AmtTime(obs.AmountMinor, tsMillis)
	obs.FpAmtDay = AmtDay(obs.AmountMinor, tsMillis)
	sa := SenderAmt(obs.SourceLocator, obs.AmountMinor)
	obs.FpSenderAmt = &sa
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
