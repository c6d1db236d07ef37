package model

import "time"

// Aggregate is a mutable canonical transaction backed by one or more linked
// observations. The canonical_* fields are a pure function of the linked
// observation set plus the user-owned CategoryID/UserNotes, which
// reconciliation never overwrites.
type Aggregate struct {
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Timestamp        *time.Time
	Reference        *string
	Counterparty     *string
	AccountHint      *string
	CategoryID       *int64
	UserNotes        *string
	ID               string
	Currency         string
	Direction        Direction
	AmountMinor      int64
	ObservationCount int
	ConfidenceScore  int
	IsApproxTime     bool
}
