package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/model"
)

const aggregateColumns = `
	id, canonical_amount_minor, canonical_currency, canonical_timestamp, is_approx_time,
	canonical_direction, canonical_reference, canonical_counterparty, canonical_account_hint,
	confidence_score, category_id, user_notes, observation_count, created_at, updated_at
`

func scanAggregate(row interface {
	Scan(dest ...any) error
}) (*model.Aggregate, error) {
	var a model.Aggregate
	var ts sql.NullTime
	var reference, counterparty, accountHint, userNotes sql.NullString
	var categoryID sql.NullInt64

	err := row.Scan(
		&a.ID, &a.AmountMinor, &a.Currency, &ts, &a.IsApproxTime,
		&a.Direction, &reference, &counterparty, &accountHint,
		&a.ConfidenceScore, &categoryID, &userNotes, &a.ObservationCount, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ts.Valid {
		t := ts.Time
		a.Timestamp = &t
	}
	a.Reference = fromNullString(reference)
	a.Counterparty = fromNullString(counterparty)
	a.AccountHint = fromNullString(accountHint)
	a.UserNotes = fromNullString(userNotes)
	if categoryID.Valid {
		v := categoryID.Int64
		a.CategoryID = &v
	}

	return &a, nil
}

// GetAggregateByID looks up an aggregate by its primary key.
func (s *SQLiteStorage) GetAggregateByID(ctx context.Context, aggregateID string) (*model.Aggregate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(aggregateID, "aggregateID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+aggregateColumns+` FROM aggregates WHERE id = ?`, aggregateID)
	agg, err := scanAggregate(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregate by id: %w", err)
	}
	return agg, nil
}

// GetAll returns every aggregate, ordered by canonical timestamp descending.
func (s *SQLiteStorage) GetAll(ctx context.Context) ([]model.Aggregate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+aggregateColumns+` FROM aggregates ORDER BY canonical_timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectAggregates(rows)
}

// GetForReview returns aggregates whose confidence score falls below the
// given threshold, i.e. the manual review queue.
func (s *SQLiteStorage) GetForReview(ctx context.Context, confidenceThreshold int) ([]model.Aggregate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+aggregateColumns+`
		FROM aggregates
		WHERE confidence_score < ?
		ORDER BY confidence_score ASC, canonical_timestamp DESC
	`, confidenceThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query review queue: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectAggregates(rows)
}

func collectAggregates(rows *sql.Rows) ([]model.Aggregate, error) {
	var result []model.Aggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		result = append(result, *agg)
	}
	return result, rows.Err()
}

// AggregatesForObservationFp returns the distinct aggregate ids that already
// hold an observation sharing the given fingerprint value in fpColumn. Used
// by the reconciliation candidate search to avoid re-deriving fingerprints
// of already-linked observations by hand.
func (s *SQLiteStorage) AggregatesForObservationFp(ctx context.Context, fpColumn, fp string) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if fp == "" {
		return nil, nil
	}

	switch fpColumn {
	case "fp_ref", "fp_amt_time", "fp_amt_day", "fp_sender_amt":
	default:
		return nil, fmt.Errorf("%w: unrecognized fingerprint column %q", ErrInvalidObs, fpColumn)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT l.aggregate_id
		FROM links l
		JOIN observations o ON o.id = l.observation_id
		WHERE o.`+fpColumn+` = ?
	`, fp)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates for fingerprint: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func upsertAggregate(ctx context.Context, e execer, agg model.Aggregate) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO aggregates (
			id, canonical_amount_minor, canonical_currency, canonical_timestamp, is_approx_time,
			canonical_direction, canonical_reference, canonical_counterparty, canonical_account_hint,
			confidence_score, category_id, user_notes, observation_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			canonical_amount_minor = excluded.canonical_amount_minor,
			canonical_currency = excluded.canonical_currency,
			canonical_timestamp = excluded.canonical_timestamp,
			is_approx_time = excluded.is_approx_time,
			canonical_direction = excluded.canonical_direction,
			canonical_reference = excluded.canonical_reference,
			canonical_counterparty = excluded.canonical_counterparty,
			canonical_account_hint = excluded.canonical_account_hint,
			confidence_score = excluded.confidence_score,
			category_id = excluded.category_id,
			user_notes = excluded.user_notes,
			observation_count = excluded.observation_count,
			updated_at = excluded.updated_at
	`,
		agg.ID, agg.AmountMinor, agg.Currency, nullTime(agg.Timestamp), agg.IsApproxTime,
		agg.Direction, nullString(agg.Reference), nullString(agg.Counterparty), nullString(agg.AccountHint),
		agg.ConfidenceScore, nullCategoryID(agg.CategoryID), nullString(agg.UserNotes), agg.ObservationCount,
		agg.CreatedAt, agg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert aggregate %s: %w", agg.ID, err)
	}
	return nil
}

func linkObservation(ctx context.Context, e execer, aggregateID, observationID string) error {
	_, err := e.ExecContext(ctx, `
		INSERT OR IGNORE INTO links (aggregate_id, observation_id) VALUES (?, ?)
	`, aggregateID, observationID)
	if err != nil {
		return fmt.Errorf("failed to link observation %s to aggregate %s: %w", observationID, aggregateID, err)
	}
	return nil
}

func appendOpsLog(ctx context.Context, e execer, entry model.OpsLogEntry) error {
	affected, err := json.Marshal(entry.AffectedObservationIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal affected observation ids: %w", err)
	}

	_, err = e.ExecContext(ctx, `
		INSERT INTO ops_log (
			id, op_type, target_aggregate_id, secondary_aggregate_id, affected_observation_ids,
			field_name, old_value, new_value, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.OpType, entry.TargetAggregateID, nullString(entry.SecondaryAggregateID), string(affected),
		nullString(entry.FieldName), nullString(entry.OldValue), nullString(entry.NewValue), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append ops log entry %s: %w", entry.ID, err)
	}
	return nil
}

// CreateAndLink atomically creates a new aggregate and links the seed
// observation to it.
func (s *SQLiteStorage) CreateAndLink(ctx context.Context, agg model.Aggregate, observationID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAggregate(&agg); err != nil {
		return err
	}
	if err := validateString(observationID, "observationID"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertAggregate(ctx, tx, agg); err != nil {
			return err
		}
		return linkObservation(ctx, tx, agg.ID, observationID)
	})
}

// UpdateAndLink atomically links an additional observation to an existing
// aggregate and persists the recomputed canonical projection.
func (s *SQLiteStorage) UpdateAndLink(ctx context.Context, agg model.Aggregate, observationID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAggregate(&agg); err != nil {
		return err
	}
	if err := validateString(observationID, "observationID"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertAggregate(ctx, tx, agg); err != nil {
			return err
		}
		return linkObservation(ctx, tx, agg.ID, observationID)
	})
}

// ForceMerge atomically moves every link from sourceID onto target, deletes
// the source aggregate row, persists target's recomputed fields, and
// appends the audit entry.
func (s *SQLiteStorage) ForceMerge(ctx context.Context, target model.Aggregate, sourceID string, entry model.OpsLogEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAggregate(&target); err != nil {
		return err
	}
	if err := validateString(sourceID, "sourceID"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE OR IGNORE links SET aggregate_id = ? WHERE aggregate_id = ?
		`, target.ID, sourceID); err != nil {
			return fmt.Errorf("failed to repoint links from %s to %s: %w", sourceID, target.ID, err)
		}
		// Drop any leftover rows that collided with an existing (target, obs) pair.
		if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE aggregate_id = ?`, sourceID); err != nil {
			return fmt.Errorf("failed to clear stale links for %s: %w", sourceID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM aggregates WHERE id = ?`, sourceID); err != nil {
			return fmt.Errorf("failed to delete merged aggregate %s: %w", sourceID, err)
		}
		if err := upsertAggregate(ctx, tx, target); err != nil {
			return err
		}
		return appendOpsLog(ctx, tx, entry)
	})
}

// Split atomically creates newAgg from movedObservationIDs (re-pointing
// their links), persists source's recomputed remainder fields, and appends
// the audit entry.
func (s *SQLiteStorage) Split(ctx context.Context, source model.Aggregate, newAgg model.Aggregate, movedObservationIDs []string, entry model.OpsLogEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAggregate(&source); err != nil {
		return err
	}
	if err := validateAggregate(&newAgg); err != nil {
		return err
	}
	if len(movedObservationIDs) == 0 {
		return fmt.Errorf("%w: split requires at least one moved observation", common.ErrInvalidSplit)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertAggregate(ctx, tx, newAgg); err != nil {
			return err
		}
		for _, obsID := range movedObservationIDs {
			if _, err := tx.ExecContext(ctx, `
				UPDATE links SET aggregate_id = ? WHERE aggregate_id = ? AND observation_id = ?
			`, newAgg.ID, source.ID, obsID); err != nil {
				return fmt.Errorf("failed to move link for observation %s: %w", obsID, err)
			}
		}
		if err := upsertAggregate(ctx, tx, source); err != nil {
			return err
		}
		return appendOpsLog(ctx, tx, entry)
	})
}

// EditField atomically persists an edited aggregate and appends the audit
// entry describing the field change.
func (s *SQLiteStorage) EditField(ctx context.Context, agg model.Aggregate, entry model.OpsLogEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAggregate(&agg); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertAggregate(ctx, tx, agg); err != nil {
			return err
		}
		return appendOpsLog(ctx, tx, entry)
	})
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error (including a panic re-thrown after rollback).
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullCategoryID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
