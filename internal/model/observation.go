package model

import "time"

// Observation is an immutable record of one raw sighting of a transaction
// from a single source. Observations are write-once after insertion.
type Observation struct {
	Timestamp         *time.Time
	ID                string
	SourceType        SourceType
	SourceLocator     string
	RawPayload        string
	Currency          string
	Reference         *string
	Counterparty      *string
	AccountHint       *string
	ContentHash       string
	ImportSessionID   string
	FpRef             *string
	FpAmtTime         *string
	FpAmtDay          *string
	FpSenderAmt       *string
	Direction         Direction
	AmountMinor       int64
	ParseConfidence   float64
	TimestampDateOnly bool
}
