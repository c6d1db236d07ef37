package model

import "time"

// ImportStatus is the lifecycle state of an ImportSession.
type ImportStatus string

// Import session lifecycle states.
const (
	ImportPending    ImportStatus = "PENDING"
	ImportProcessing ImportStatus = "PROCESSING"
	ImportCompleted  ImportStatus = "COMPLETED"
	ImportFailed     ImportStatus = "FAILED"
)

// ImportSession tracks one ingestion run end to end.
type ImportSession struct {
	CreatedAt     time.Time
	CompletedAt   *time.Time
	ErrorMessage  *string
	ID            string
	SourceType    SourceType
	SourceLocator string
	Status        ImportStatus
	Total         int
	Imported      int
	Skipped       int
	Failed        int
}
