package model

import "time"

// OpType identifies the kind of manual operation an OpsLogEntry records.
type OpType string

// Supported manual operation kinds.
const (
	OpMerge         OpType = "MERGE"
	OpSplit         OpType = "SPLIT"
	OpMarkDuplicate OpType = "MARK_DUPLICATE"
	OpEditField     OpType = "EDIT_FIELD"
)

// OpsLogEntry is an append-only audit record of a manual operation.
type OpsLogEntry struct {
	CreatedAt              time.Time
	SecondaryAggregateID   *string
	FieldName              *string
	OldValue               *string
	NewValue               *string
	ID                     string
	OpType                 OpType
	TargetAggregateID      string
	AffectedObservationIDs []string
}
