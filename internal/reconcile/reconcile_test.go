package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/config"
	"github.com/ledgermesh/ledgermesh/internal/fingerprint"
	"github.com/ledgermesh/ledgermesh/internal/model"
)

func strPtr(s string) *string { return &s }

func mkObs(id string, amount int64, currency string, ts time.Time, ref string, dir model.Direction, source model.SourceType, conf float64) model.Observation {
	t := ts
	millis := t.UnixMilli()
	o := model.Observation{
		ID:              id,
		SourceType:      source,
		SourceLocator:   "test",
		RawPayload:      id,
		AmountMinor:     amount,
		Currency:        currency,
		Timestamp:       &t,
		Reference:       strPtr(ref),
		Direction:       dir,
		ParseConfidence: conf,
		ImportSessionID: "session-1",
	}
	o.FpRef = fingerprint.Ref(ref)
	o.FpAmtDay = fingerprint.AmtDay(amount, &millis)
	o.FpAmtTime = fingerprint.AmtTime(amount, &millis)
	o.ContentHash = fingerprint.ContentHash(source, o.SourceLocator, o.RawPayload)
	return o
}

func newEngine(store *fakeStorage) *Engine {
	return New(store, common.FrozenClock{At: time.UnixMilli(1735689600000)}, config.DefaultTunables())
}

func TestReconcileAll_TwoSourcesSameReferenceMergeIntoOneAggregate(t *testing.T) {
	store := newFakeStorage()
	t1 := time.UnixMilli(1735689600000)
	t2 := time.UnixMilli(1735689660000)

	o1 := mkObs("o1", 150000, "KES", t1, "TXN42", model.DirectionDebit, model.SourceSMS, 0.85)
	o2 := mkObs("o2", 150000, "KES", t2, "TXN42", model.DirectionDebit, model.SourceCSV, 0.8)
	store.seed(o1, o2)

	engine := newEngine(store)
	result, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.ObservationsProcessed)
	assert.Equal(t, 1, result.AggregatesCreated)
	assert.Equal(t, 1, result.AggregatesUpdated)

	require.Len(t, store.aggregates, 1)
	var agg model.Aggregate
	for _, a := range store.aggregates {
		agg = a
	}
	assert.Equal(t, 2, agg.ObservationCount)
	assert.Equal(t, model.DirectionDebit, agg.Direction)
	require.NotNil(t, agg.Reference)
	assert.Equal(t, "TXN42", *agg.Reference)
	assert.Equal(t, 96, agg.ConfidenceScore)
}

func TestReconcileAll_DirectionIncompatibleObservationsDoNotMerge(t *testing.T) {
	store := newFakeStorage()
	ts := time.UnixMilli(1735689600000)

	o1 := mkObs("o1", 5000, "KES", ts, "", model.DirectionDebit, model.SourceSMS, 0.8)
	o2 := mkObs("o2", 5000, "KES", ts, "", model.DirectionCredit, model.SourceSMS, 0.8)
	o1.Reference, o2.Reference = nil, nil
	o1.FpRef, o2.FpRef = nil, nil
	store.seed(o1, o2)

	engine := newEngine(store)
	_, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.aggregates, 2)
}

func TestReconcileAll_IdempotentOnRerun(t *testing.T) {
	store := newFakeStorage()
	ts := time.UnixMilli(1735689600000)
	store.seed(mkObs("o1", 1000, "KES", ts, "TXN1", model.DirectionDebit, model.SourceSMS, 0.8))

	engine := newEngine(store)
	ctx := context.Background()

	_, err := engine.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, store.aggregates, 1)

	result, err := engine.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ObservationsProcessed)
	assert.Len(t, store.aggregates, 1)
}

func TestReconcileAll_ConfidenceAlwaysInBounds(t *testing.T) {
	store := newFakeStorage()
	ts := time.UnixMilli(1735689600000)
	for i, conf := range []float64{0.1, 0.5, 1.0, 0.0} {
		o := mkObs(string(rune('a'+i)), int64(1000*(i+1)), "KES", ts.Add(time.Duration(i)*time.Hour), "", model.DirectionUnknown, model.SourceSMS, conf)
		o.Reference, o.FpRef = nil, nil
		store.seed(o)
	}

	engine := newEngine(store)
	_, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)

	for _, agg := range store.aggregates {
		assert.GreaterOrEqual(t, agg.ConfidenceScore, 0)
		assert.LessOrEqual(t, agg.ConfidenceScore, 100)
	}
}

func TestReconcileAll_UserFieldsPreservedAcrossMerge(t *testing.T) {
	store := newFakeStorage()
	ts1 := time.UnixMilli(1735689600000)
	ts2 := time.UnixMilli(1735689660000)

	o1 := mkObs("o1", 1000, "KES", ts1, "TXN9", model.DirectionDebit, model.SourceSMS, 0.8)
	store.seed(o1)

	engine := newEngine(store)
	ctx := context.Background()
	_, err := engine.ReconcileAll(ctx)
	require.NoError(t, err)

	var aggID string
	for id := range store.aggregates {
		aggID = id
	}
	notes := "keep me"
	agg := store.aggregates[aggID]
	agg.UserNotes = &notes
	store.aggregates[aggID] = agg

	o2 := mkObs("o2", 1000, "KES", ts2, "TXN9", model.DirectionDebit, model.SourceCSV, 0.8)
	store.seed(o2)

	_, err = engine.ReconcileAll(ctx)
	require.NoError(t, err)

	require.Len(t, store.aggregates, 1)
	final := store.aggregates[aggID]
	require.NotNil(t, final.UserNotes)
	assert.Equal(t, "keep me", *final.UserNotes)
}
