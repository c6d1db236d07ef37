// Package service defines the DI-facing interfaces implemented by
// LedgerMesh's storage and SMS-source adapters.
package service

import (
	"context"
	"time"

	"github.com/ledgermesh/ledgermesh/internal/model"
)

// ObservationStore is the append-only, content-hash-deduplicated set of
// observations (C2).
type ObservationStore interface {
	Insert(ctx context.Context, obs model.Observation) (inserted bool, err error)
	InsertBatch(ctx context.Context, obs []model.Observation) (insertedCount, skippedCount int, err error)
	GetByContentHash(ctx context.Context, hash string) (*model.Observation, error)
	GetObservationByID(ctx context.Context, id string) (*model.Observation, error)
	FindByFpRef(ctx context.Context, fp string) ([]model.Observation, error)
	FindByFpAmtDay(ctx context.Context, fp string) ([]model.Observation, error)
	FindByFpAmtTime(ctx context.Context, fp string) ([]model.Observation, error)
	FindByFpSenderAmt(ctx context.Context, fp string) ([]model.Observation, error)
	GetUnlinked(ctx context.Context) ([]model.Observation, error)
	GetForAggregate(ctx context.Context, aggregateID string) ([]model.Observation, error)
	Count(ctx context.Context) (int, error)
}

// AggregateStore is the canonical-transaction store and the many-to-many
// link table between aggregates and observations (C3).
//
// The five atomic methods below (CreateAndLink, UpdateAndLink, ForceMerge,
// Split, EditField) each run their writes (aggregate upserts, link changes
// and, for the ops layer, an ops-log append) as one atomic "verify then
// mutate" unit, rather than exposing a generic nested transaction.
type AggregateStore interface {
	GetAggregateByID(ctx context.Context, aggregateID string) (*model.Aggregate, error)
	GetAll(ctx context.Context) ([]model.Aggregate, error)
	GetForReview(ctx context.Context, confidenceThreshold int) ([]model.Aggregate, error)
	AggregatesForObservationFp(ctx context.Context, fpColumn, fp string) ([]string, error)

	// CreateAndLink atomically creates a fresh aggregate and links it to the
	// seed observation.
	CreateAndLink(ctx context.Context, agg model.Aggregate, observationID string) error

	// UpdateAndLink atomically links an observation to an existing
	// aggregate and persists the recomputed canonical fields.
	UpdateAndLink(ctx context.Context, agg model.Aggregate, observationID string) error

	// ForceMerge atomically moves every link from source to target, deletes
	// source, persists target's recomputed fields, and appends the ops-log
	// entry.
	ForceMerge(ctx context.Context, target model.Aggregate, sourceID string, entry model.OpsLogEntry) error

	// Split atomically creates newAgg from the given observation ids
	// (moving their links off source), persists source's recomputed
	// remainder fields, and appends the ops-log entry.
	Split(ctx context.Context, source model.Aggregate, newAgg model.Aggregate, movedObservationIDs []string, entry model.OpsLogEntry) error

	// EditField atomically persists the edited aggregate and appends the
	// ops-log entry.
	EditField(ctx context.Context, agg model.Aggregate, entry model.OpsLogEntry) error
}

// SessionStore persists import session lifecycle and counters (part of C3/C10).
type SessionStore interface {
	Create(ctx context.Context, session model.ImportSession) error
	Update(ctx context.Context, session model.ImportSession) error
	GetSessionByID(ctx context.Context, id string) (*model.ImportSession, error)
}

// OpsLogStore is the append-only audit log (C11).
type OpsLogStore interface {
	Append(ctx context.Context, entry model.OpsLogEntry) error
	GetOpsLogForAggregate(ctx context.Context, aggregateID string) ([]model.OpsLogEntry, error)
	GetRecent(ctx context.Context, n int) ([]model.OpsLogEntry, error)
}

// CategoryStore manages the small user-owned category table.
type CategoryStore interface {
	CreateCategory(ctx context.Context, name string) (*model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	GetAllCategories(ctx context.Context) ([]model.Category, error)
}

// Storage is the full persistence contract required by the core.
type Storage interface {
	ObservationStore
	AggregateStore
	SessionStore
	OpsLogStore
	CategoryStore

	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations, e.g. the reconcile
// engine's retried storage writes.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// SMSMessage is one raw SMS sighting read from the device's SMS store. The
// SMS store itself (and the consent/permissions layer guarding it) is an
// external collaborator; this is only the read contract the orchestrator
// depends on.
type SMSMessage struct {
	DateMillis int64
	ID         string
	Sender     string
	Body       string
}

// SMSSource reads SMS messages from the device, one at a time or in ranges.
type SMSSource interface {
	All(ctx context.Context) ([]SMSMessage, error)
	Since(ctx context.Context, afterMillis int64) ([]SMSMessage, error)
}
