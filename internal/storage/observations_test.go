package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/model"
)

func TestInsert_DuplicateContentHashIsIdempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	sessionID := createTestSession(t, store, "session-1")

	first := testObservation("obs-1", sessionID, "hash-a")
	inserted, err := store.Insert(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	second := testObservation("obs-2", sessionID, "hash-a")
	inserted, err = store.Insert(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted, "re-inserting an observation with the same content hash must be a no-op, not a new row")

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertBatch_SplitsInsertedAndSkippedCounts(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	sessionID := createTestSession(t, store, "session-1")

	seed := testObservation("obs-seed", sessionID, "hash-seed")
	_, err := store.Insert(ctx, seed)
	require.NoError(t, err)

	batch := []model.Observation{
		testObservation("obs-a", sessionID, "hash-a"),
		testObservation("obs-b", sessionID, "hash-seed"), // duplicate of the seed
		testObservation("obs-c", sessionID, "hash-c"),
	}
	inserted, skipped, err := store.InsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 1, skipped)
}

func TestGetByContentHash_NotFoundReturnsSentinel(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	_, err := store.GetByContentHash(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFindByFp_MatchesOnlyTheRequestedColumn(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	sessionID := createTestSession(t, store, "session-1")

	fp := "fp:shared"
	a := testObservation("obs-a", sessionID, "hash-a")
	a.FpRef = &fp
	b := testObservation("obs-b", sessionID, "hash-b")
	b.FpAmtDay = &fp

	_, err := store.Insert(ctx, a)
	require.NoError(t, err)
	_, err = store.Insert(ctx, b)
	require.NoError(t, err)

	byRef, err := store.FindByFpRef(ctx, fp)
	require.NoError(t, err)
	require.Len(t, byRef, 1)
	assert.Equal(t, "obs-a", byRef[0].ID)

	byAmtDay, err := store.FindByFpAmtDay(ctx, fp)
	require.NoError(t, err)
	require.Len(t, byAmtDay, 1)
	assert.Equal(t, "obs-b", byAmtDay[0].ID)
}

func TestGetUnlinked_SortedByIDAscending(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	sessionID := createTestSession(t, store, "session-1")

	for _, id := range []string{"obs-c", "obs-a", "obs-b"} {
		_, err := store.Insert(ctx, testObservation(id, sessionID, "hash-"+id))
		require.NoError(t, err)
	}

	unlinked, err := store.GetUnlinked(ctx)
	require.NoError(t, err)
	require.Len(t, unlinked, 3)
	assert.Equal(t, []string{"obs-a", "obs-b", "obs-c"}, []string{unlinked[0].ID, unlinked[1].ID, unlinked[2].ID})
}

func TestGetUnlinked_ExcludesLinkedObservations(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	sessionID := createTestSession(t, store, "session-1")

	_, err := store.Insert(ctx, testObservation("obs-linked", sessionID, "hash-linked"))
	require.NoError(t, err)
	_, err = store.Insert(ctx, testObservation("obs-free", sessionID, "hash-free"))
	require.NoError(t, err)

	agg := testAggregate("agg-1")
	require.NoError(t, store.CreateAndLink(ctx, agg, "obs-linked"))

	unlinked, err := store.GetUnlinked(ctx)
	require.NoError(t, err)
	require.Len(t, unlinked, 1)
	assert.Equal(t, "obs-free", unlinked[0].ID)
}
