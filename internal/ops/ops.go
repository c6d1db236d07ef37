// Package ops implements the user-initiated mutation operations over
// aggregates: force-merge, split, mark-duplicate, and field edits. Every
// operation writes exactly one ops-log entry after its mutation completes.
// Each operation applies a single user-approved fix as one storage
// transaction and records the outcome.
package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/model"
	"github.com/ledgermesh/ledgermesh/internal/projector"
	"github.com/ledgermesh/ledgermesh/internal/service"
)

// RecognizedFields are the only field names edit_field will act on; any
// other name is a silent no-op per the documented edit_field contract.
var RecognizedFields = map[string]bool{
	"categoryId":            true,
	"userNotes":             true,
	"canonicalCounterparty": true,
	"canonicalDirection":    true,
}

// Ops performs manual mutations over aggregates, auditing each through the
// ops log. All operations accept a configuration-owned clock so tests can
// stub time.
type Ops struct {
	store service.Storage
	clock common.Clock
}

// New builds an Ops instance against the given storage and clock.
func New(store service.Storage, clock common.Clock) *Ops {
	return &Ops{store: store, clock: clock}
}

// ForceMerge moves every link from source onto target, deletes the
// (now observationless) source aggregate, and recomputes target's
// canonical fields while preserving its user-owned fields.
func (o *Ops) ForceMerge(ctx context.Context, targetID, sourceID string) (*model.Aggregate, error) {
	target, err := o.store.GetAggregateByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target aggregate %s: %w", targetID, err)
	}
	source, err := o.store.GetAggregateByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source aggregate %s: %w", sourceID, err)
	}

	targetObs, err := o.store.GetForAggregate(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target observations: %w", err)
	}
	sourceObs, err := o.store.GetForAggregate(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source observations: %w", err)
	}

	combined := append(append([]model.Observation(nil), targetObs...), sourceObs...)
	proj := projector.Project(combined)

	movedIDs := make([]string, 0, len(sourceObs))
	for _, obs := range sourceObs {
		movedIDs = append(movedIDs, obs.ID)
	}

	now := o.clock.Now()
	updatedTarget := model.Aggregate{
		ID:               target.ID,
		AmountMinor:      proj.AmountMinor,
		Currency:         proj.Currency,
		Timestamp:        millisToTimeOps(proj.Timestamp),
		IsApproxTime:     proj.IsApproxTime,
		Direction:        proj.Direction,
		Reference:        proj.Reference,
		Counterparty:     proj.Counterparty,
		AccountHint:      proj.AccountHint,
		ConfidenceScore:  proj.ConfidenceScore,
		CategoryID:       target.CategoryID,
		UserNotes:        target.UserNotes,
		ObservationCount: len(combined),
		CreatedAt:        target.CreatedAt,
		UpdatedAt:        now,
	}

	entry := model.OpsLogEntry{
		ID:                     uuid.NewString(),
		OpType:                 model.OpMerge,
		TargetAggregateID:      target.ID,
		SecondaryAggregateID:   &source.ID,
		AffectedObservationIDs: movedIDs,
		CreatedAt:              now,
	}

	if err := o.store.ForceMerge(ctx, updatedTarget, sourceID, entry); err != nil {
		return nil, fmt.Errorf("failed to force-merge %s into %s: %w", sourceID, targetID, err)
	}
	return &updatedTarget, nil
}

// Split creates a new aggregate from the given observation ids (which must
// currently all be linked to source and must not be all of source's
// observations), moving their links and recomputing source's remainder.
func (o *Ops) Split(ctx context.Context, sourceID string, observationIDs []string) (remainder *model.Aggregate, created *model.Aggregate, err error) {
	if len(observationIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: no observation ids given", common.ErrInvalidSplit)
	}

	source, err := o.store.GetAggregateByID(ctx, sourceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load source aggregate %s: %w", sourceID, err)
	}

	sourceObs, err := o.store.GetForAggregate(ctx, sourceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load source observations: %w", err)
	}

	linked := map[string]model.Observation{}
	for _, obs := range sourceObs {
		linked[obs.ID] = obs
	}

	moveSet := map[string]bool{}
	var movedObs []model.Observation
	for _, id := range observationIDs {
		obs, ok := linked[id]
		if !ok {
			return nil, nil, fmt.Errorf("%w: observation %s is not linked to %s", common.ErrInvalidSplit, id, sourceID)
		}
		if moveSet[id] {
			continue
		}
		moveSet[id] = true
		movedObs = append(movedObs, obs)
	}

	if len(moveSet) >= len(linked) {
		return nil, nil, fmt.Errorf("%w: split must leave at least one observation on the source", common.ErrInvalidSplit)
	}

	var remainderObs []model.Observation
	for id, obs := range linked {
		if !moveSet[id] {
			remainderObs = append(remainderObs, obs)
		}
	}

	now := o.clock.Now()
	newProj := projector.Project(movedObs)
	newAgg := model.Aggregate{
		ID:               uuid.NewString(),
		AmountMinor:      newProj.AmountMinor,
		Currency:         newProj.Currency,
		Timestamp:        millisToTimeOps(newProj.Timestamp),
		IsApproxTime:     newProj.IsApproxTime,
		Direction:        newProj.Direction,
		Reference:        newProj.Reference,
		Counterparty:     newProj.Counterparty,
		AccountHint:      newProj.AccountHint,
		ConfidenceScore:  newProj.ConfidenceScore,
		ObservationCount: len(movedObs),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	remainderProj := projector.Project(remainderObs)
	updatedSource := model.Aggregate{
		ID:               source.ID,
		AmountMinor:      remainderProj.AmountMinor,
		Currency:         remainderProj.Currency,
		Timestamp:        millisToTimeOps(remainderProj.Timestamp),
		IsApproxTime:     remainderProj.IsApproxTime,
		Direction:        remainderProj.Direction,
		Reference:        remainderProj.Reference,
		Counterparty:     remainderProj.Counterparty,
		AccountHint:      remainderProj.AccountHint,
		ConfidenceScore:  remainderProj.ConfidenceScore,
		CategoryID:       source.CategoryID,
		UserNotes:        source.UserNotes,
		ObservationCount: len(remainderObs),
		CreatedAt:        source.CreatedAt,
		UpdatedAt:        now,
	}

	movedIDs := make([]string, 0, len(movedObs))
	for _, obs := range movedObs {
		movedIDs = append(movedIDs, obs.ID)
	}

	entry := model.OpsLogEntry{
		ID:                     uuid.NewString(),
		OpType:                 model.OpSplit,
		TargetAggregateID:      source.ID,
		SecondaryAggregateID:   &newAgg.ID,
		AffectedObservationIDs: movedIDs,
		CreatedAt:              now,
	}

	if err := o.store.Split(ctx, updatedSource, newAgg, movedIDs, entry); err != nil {
		return nil, nil, fmt.Errorf("failed to split %s: %w", sourceID, err)
	}
	return &updatedSource, &newAgg, nil
}

// MarkDuplicate emits a purely informational audit entry; it changes no
// links and triggers no recomputation.
func (o *Ops) MarkDuplicate(ctx context.Context, aggregateID, observationID string) error {
	agg, err := o.store.GetAggregateByID(ctx, aggregateID)
	if err != nil {
		return fmt.Errorf("failed to load aggregate %s: %w", aggregateID, err)
	}

	entry := model.OpsLogEntry{
		ID:                     uuid.NewString(),
		OpType:                 model.OpMarkDuplicate,
		TargetAggregateID:      agg.ID,
		AffectedObservationIDs: []string{observationID},
		CreatedAt:              o.clock.Now(),
	}
	if err := o.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append mark_duplicate entry: %w", err)
	}
	return nil
}

// EditField edits one recognized user-facing field on an aggregate. Unknown
// field names are a silent no-op: no mutation, no ops-log entry.
func (o *Ops) EditField(ctx context.Context, aggregateID, fieldName, oldValue, newValue string) (*model.Aggregate, error) {
	if !RecognizedFields[fieldName] {
		return nil, nil
	}

	agg, err := o.store.GetAggregateByID(ctx, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load aggregate %s: %w", aggregateID, err)
	}

	updated := *agg
	switch fieldName {
	case "categoryId":
		updated.CategoryID = parseCategoryID(newValue)
	case "userNotes":
		v := newValue
		updated.UserNotes = &v
	case "canonicalCounterparty":
		v := newValue
		updated.Counterparty = &v
	case "canonicalDirection":
		updated.Direction = model.ParseDirection(newValue)
	}
	updated.UpdatedAt = o.clock.Now()

	entry := model.OpsLogEntry{
		ID:                uuid.NewString(),
		OpType:            model.OpEditField,
		TargetAggregateID: agg.ID,
		FieldName:         &fieldName,
		OldValue:          &oldValue,
		NewValue:          &newValue,
		CreatedAt:         updated.UpdatedAt,
	}

	if err := o.store.EditField(ctx, updated, entry); err != nil {
		return nil, fmt.Errorf("failed to edit field %s on %s: %w", fieldName, aggregateID, err)
	}
	return &updated, nil
}

func parseCategoryID(s string) *int64 {
	if s == "" {
		return nil
	}
	var v int64
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return nil
	}
	return &v
}

func millisToTimeOps(millis *int64) *time.Time {
	if millis == nil {
		return nil
	}
	t := time.UnixMilli(*millis)
	return &t
}
