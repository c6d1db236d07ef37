// Package reconcile implements the engine that links unlinked observations
// to existing canonical aggregates or creates new ones, as a single
// mutex-guarded "one job at a time" loop writing results back through the
// storage interface.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/config"
	"github.com/ledgermesh/ledgermesh/internal/model"
	"github.com/ledgermesh/ledgermesh/internal/projector"
	"github.com/ledgermesh/ledgermesh/internal/service"
)

// storageRetryOptions governs the retry wrapped around the per-observation
// write at the end of reconcileOne. SQLite under WAL can still surface a
// transient "database is locked" past the busy_timeout during a concurrent
// checkpoint; a handful of short retries rides that out rather than failing
// an entire reconcile pass over one observation.
var storageRetryOptions = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2.0,
}

const (
	reasonReferenceMatch = "reference_match"
	reasonAmountDayMatch = "amount_day_match"
)

// ErrAlreadyRunning is returned by ReconcileAll when a pass is already in
// flight; reconcile passes never interleave.
var ErrAlreadyRunning = fmt.Errorf("reconcile pass already running")

// candidate is one scored aggregate match for a single observation.
type candidate struct {
	aggregateID string
	score       int
	tsDistance  int64 // milliseconds; used as the secondary sort key, +infinity when unknown
	reason      string
}

const infiniteDistance = int64(1) << 62

// Engine links unlinked observations into aggregates. Only one reconcile
// pass may run at a time; a second call while one is in flight is rejected
// rather than interleaved.
type Engine struct {
	store    service.Storage
	clock    common.Clock
	tunables config.Tunables

	mu      sync.Mutex
	running bool
}

// New builds a reconciliation engine against the given storage and tunables.
func New(store service.Storage, clock common.Clock, tunables config.Tunables) *Engine {
	return &Engine{store: store, clock: clock, tunables: tunables}
}

// BatchResult summarizes one reconcile_all pass.
type BatchResult struct {
	ObservationsProcessed int
	AggregatesCreated     int
	AggregatesUpdated     int
}

// ReconcileAll sorts all unlinked observations by id ascending and merges or
// creates an aggregate for each, in order. Returns ErrAlreadyRunning if
// another pass is already in flight.
func (e *Engine) ReconcileAll(ctx context.Context) (BatchResult, error) {
	if !e.mu.TryLock() {
		return BatchResult{}, ErrAlreadyRunning
	}
	defer e.mu.Unlock()
	e.running = true
	defer func() { e.running = false }()

	unlinked, err := e.store.GetUnlinked(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to load unlinked observations: %w", err)
	}

	sort.SliceStable(unlinked, func(i, j int) bool { return unlinked[i].ID < unlinked[j].ID })

	var result BatchResult
	for _, obs := range unlinked {
		created, err := e.reconcileOne(ctx, obs)
		if err != nil {
			return result, fmt.Errorf("failed to reconcile observation %s: %w", obs.ID, err)
		}
		result.ObservationsProcessed++
		if created {
			result.AggregatesCreated++
		} else {
			result.AggregatesUpdated++
		}
	}

	return result, nil
}

// reconcileOne runs the candidate search, selection and merge-or-create
// procedure for a single observation. Returns true if a new aggregate was
// created, false if an existing one was updated.
func (e *Engine) reconcileOne(ctx context.Context, obs model.Observation) (bool, error) {
	candidates, err := e.findCandidates(ctx, obs)
	if err != nil {
		return false, err
	}

	winner := selectWinner(candidates)
	if winner == nil {
		return true, e.createAggregate(ctx, obs)
	}
	return false, e.mergeInto(ctx, winner.aggregateID, obs)
}

func (e *Engine) findCandidates(ctx context.Context, obs model.Observation) (map[string]candidate, error) {
	candidates := map[string]candidate{}

	if obs.FpRef != nil {
		aggIDs, err := e.store.AggregatesForObservationFp(ctx, "fp_ref", *obs.FpRef)
		if err != nil {
			return nil, fmt.Errorf("reference probe failed: %w", err)
		}
		for _, aggID := range aggIDs {
			agg, err := e.store.GetAggregateByID(ctx, aggID)
			if err != nil {
				return nil, fmt.Errorf("failed to load candidate aggregate %s: %w", aggID, err)
			}
			if agg.Currency != obs.Currency {
				continue
			}
			delta := absInt64(agg.AmountMinor - obs.AmountMinor)
			var score int
			switch {
			case delta == 0:
				score = 100
			case delta <= int64(e.tunables.AmountToleranceCents):
				score = 85
			default:
				score = 80
			}
			candidates[aggID] = candidate{
				aggregateID: aggID,
				score:       score,
				tsDistance:  timestampDistance(agg.Timestamp, obs.Timestamp),
				reason:      reasonReferenceMatch,
			}
		}
	}

	if obs.FpAmtDay != nil {
		aggIDs, err := e.store.AggregatesForObservationFp(ctx, "fp_amt_day", *obs.FpAmtDay)
		if err != nil {
			return nil, fmt.Errorf("amount+day probe failed: %w", err)
		}
		for _, aggID := range aggIDs {
			if _, already := candidates[aggID]; already {
				continue
			}
			agg, err := e.store.GetAggregateByID(ctx, aggID)
			if err != nil {
				return nil, fmt.Errorf("failed to load candidate aggregate %s: %w", aggID, err)
			}
			if agg.Currency != obs.Currency {
				continue
			}
			if !model.DirectionCompatible(agg.Direction, obs.Direction) {
				continue
			}
			if agg.Timestamp == nil || obs.Timestamp == nil {
				continue
			}
			windowMillis := int64(e.tunables.TimeWindowHours) * 3_600_000
			distance := absInt64(agg.Timestamp.UnixMilli() - obs.Timestamp.UnixMilli())
			if distance >= windowMillis {
				continue
			}
			candidates[aggID] = candidate{
				aggregateID: aggID,
				score:       60,
				tsDistance:  distance,
				reason:      reasonAmountDayMatch,
			}
		}
	}

	return candidates, nil
}

// selectWinner sorts candidates by (score desc, timestamp distance asc,
// aggregate id asc) and returns the first, or nil if there are none.
func selectWinner(candidates map[string]candidate) *candidate {
	if len(candidates) == 0 {
		return nil
	}

	list := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		list = append(list, c)
	}

	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.tsDistance != b.tsDistance {
			return a.tsDistance < b.tsDistance
		}
		return a.aggregateID < b.aggregateID
	})

	winner := list[0]
	return &winner
}

func (e *Engine) createAggregate(ctx context.Context, obs model.Observation) error {
	proj := projector.Project([]model.Observation{obs})
	now := e.clock.Now()

	agg := model.Aggregate{
		ID:               uuid.NewString(),
		AmountMinor:      proj.AmountMinor,
		Currency:         proj.Currency,
		Timestamp:        millisToTime(proj.Timestamp),
		IsApproxTime:     proj.IsApproxTime,
		Direction:        proj.Direction,
		Reference:        proj.Reference,
		Counterparty:     proj.Counterparty,
		AccountHint:      proj.AccountHint,
		ConfidenceScore:  proj.ConfidenceScore,
		ObservationCount: 1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	return common.WithRetry(ctx, func() error {
		return e.store.CreateAndLink(ctx, agg, obs.ID)
	}, storageRetryOptions)
}

func (e *Engine) mergeInto(ctx context.Context, aggregateID string, obs model.Observation) error {
	existing, err := e.store.GetAggregateByID(ctx, aggregateID)
	if err != nil {
		return fmt.Errorf("failed to load aggregate %s for merge: %w", aggregateID, err)
	}

	linked, err := e.store.GetForAggregate(ctx, aggregateID)
	if err != nil {
		return fmt.Errorf("failed to load linked observations for %s: %w", aggregateID, err)
	}

	all := append(append([]model.Observation(nil), linked...), obs)
	proj := projector.Project(all)

	updated := model.Aggregate{
		ID:               existing.ID,
		AmountMinor:      proj.AmountMinor,
		Currency:         proj.Currency,
		Timestamp:        millisToTime(proj.Timestamp),
		IsApproxTime:     proj.IsApproxTime,
		Direction:        proj.Direction,
		Reference:        proj.Reference,
		Counterparty:     proj.Counterparty,
		AccountHint:      proj.AccountHint,
		ConfidenceScore:  proj.ConfidenceScore,
		CategoryID:       existing.CategoryID,
		UserNotes:        existing.UserNotes,
		ObservationCount: len(all),
		CreatedAt:        existing.CreatedAt,
		UpdatedAt:        e.clock.Now(),
	}

	return common.WithRetry(ctx, func() error {
		return e.store.UpdateAndLink(ctx, updated, obs.ID)
	}, storageRetryOptions)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// timestampDistance returns the absolute millisecond distance between two
// possibly-null timestamps, treating either side being null as +infinity so
// such candidates always sort last among equally scored matches.
func timestampDistance(a, b *time.Time) int64 {
	if a == nil || b == nil {
		return infiniteDistance
	}
	return absInt64(a.UnixMilli() - b.UnixMilli())
}

func millisToTime(millis *int64) *time.Time {
	if millis == nil {
		return nil
	}
	t := time.UnixMilli(*millis)
	return &t
}
