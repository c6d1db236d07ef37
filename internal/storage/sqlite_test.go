package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgermesh/ledgermesh/internal/model"
)

// createTestStorage opens a fresh, migrated SQLite database in a temp
// directory.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// createTestSession inserts an import session row and returns its ID, for
// test observations to carry as their import_session_id.
func createTestSession(t *testing.T, store *SQLiteStorage, id string) string {
	t.Helper()
	err := store.Create(context.Background(), model.ImportSession{
		ID:            id,
		SourceType:    model.SourceCSV,
		SourceLocator: "test.csv",
		Status:        model.ImportProcessing,
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)
	return id
}

func testObservation(id, sessionID, contentHash string) model.Observation {
	return model.Observation{
		ID:              id,
		SourceType:      model.SourceCSV,
		SourceLocator:   "test.csv",
		RawPayload:      "raw:" + id,
		AmountMinor:     1000,
		Currency:        "KES",
		Direction:       model.DirectionDebit,
		ParseConfidence: 1,
		ContentHash:     contentHash,
		ImportSessionID: sessionID,
	}
}

func testAggregate(id string) model.Aggregate {
	now := time.Now().UTC()
	return model.Aggregate{
		ID:               id,
		AmountMinor:      1000,
		Currency:         "KES",
		Direction:        model.DirectionDebit,
		ConfidenceScore:  50,
		ObservationCount: 1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
