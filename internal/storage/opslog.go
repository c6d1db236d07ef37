package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ledgermesh/ledgermesh/internal/model"
)

// Append writes one audit entry. This is exposed separately from the
// aggregate-mutating methods' internal appendOpsLog for callers (e.g.
// mark_duplicate) that don't otherwise touch the aggregates table.
func (s *SQLiteStorage) Append(ctx context.Context, entry model.OpsLogEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(entry.ID, "entry.ID"); err != nil {
		return err
	}
	return appendOpsLog(ctx, s.db, entry)
}

func scanOpsLogEntry(row interface {
	Scan(dest ...any) error
}) (*model.OpsLogEntry, error) {
	var e model.OpsLogEntry
	var secondary, fieldName, oldValue, newValue sql.NullString
	var affectedJSON string

	err := row.Scan(
		&e.ID, &e.OpType, &e.TargetAggregateID, &secondary, &affectedJSON,
		&fieldName, &oldValue, &newValue, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.SecondaryAggregateID = fromNullString(secondary)
	e.FieldName = fromNullString(fieldName)
	e.OldValue = fromNullString(oldValue)
	e.NewValue = fromNullString(newValue)

	if affectedJSON != "" {
		if err := json.Unmarshal([]byte(affectedJSON), &e.AffectedObservationIDs); err != nil {
			return nil, fmt.Errorf("failed to decode affected observation ids: %w", err)
		}
	}

	return &e, nil
}

const opsLogColumns = `
	id, op_type, target_aggregate_id, secondary_aggregate_id, affected_observation_ids,
	field_name, old_value, new_value, created_at
`

// GetOpsLogForAggregate returns the full audit history touching an
// aggregate, either as target or as the secondary party of a merge,
// newest first.
func (s *SQLiteStorage) GetOpsLogForAggregate(ctx context.Context, aggregateID string) ([]model.OpsLogEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(aggregateID, "aggregateID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+opsLogColumns+`
		FROM ops_log
		WHERE target_aggregate_id = ? OR secondary_aggregate_id = ?
		ORDER BY created_at DESC
	`, aggregateID, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ops log for aggregate: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.OpsLogEntry
	for rows.Next() {
		entry, err := scanOpsLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ops log entry: %w", err)
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

// GetRecent returns the n most recently appended audit entries, newest
// first.
func (s *SQLiteStorage) GetRecent(ctx context.Context, n int) ([]model.OpsLogEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+opsLogColumns+`
		FROM ops_log
		ORDER BY created_at DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent ops log entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.OpsLogEntry
	for rows.Next() {
		entry, err := scanOpsLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ops log entry: %w", err)
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}
