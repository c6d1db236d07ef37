package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/model"
)

// Insert inserts a single observation, relying on the UNIQUE constraint on
// content_hash for idempotent dedup: re-inserting identical content is a
// non-error skip, never a new row.
func (s *SQLiteStorage) Insert(ctx context.Context, obs model.Observation) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateObservation(&obs); err != nil {
		return false, err
	}
	return insertObservation(ctx, s.db, obs)
}

func insertObservation(ctx context.Context, e execer, obs model.Observation) (bool, error) {
	res, err := e.ExecContext(ctx, `
		INSERT OR IGNORE INTO observations (
			id, source_type, source_locator, raw_payload, amount_minor, currency,
			timestamp, timestamp_date_only, direction, reference, counterparty,
			account_hint, parse_confidence, content_hash, import_session_id,
			fp_ref, fp_amt_time, fp_amt_day, fp_sender_amt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		obs.ID, obs.SourceType, obs.SourceLocator, obs.RawPayload, obs.AmountMinor, obs.Currency,
		nullTime(obs.Timestamp), obs.TimestampDateOnly, obs.Direction, nullString(obs.Reference), nullString(obs.Counterparty),
		nullString(obs.AccountHint), obs.ParseConfidence, obs.ContentHash, obs.ImportSessionID,
		nullString(obs.FpRef), nullString(obs.FpAmtTime), nullString(obs.FpAmtDay), nullString(obs.FpSenderAmt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert observation %s: %w", obs.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// InsertBatch inserts many observations, returning per-file insert/skip
// counters. A parser- or row-level failure upstream never reaches here;
// this only classifies storage-level dedup outcomes.
func (s *SQLiteStorage) InsertBatch(ctx context.Context, obs []model.Observation) (int, int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, 0, err
	}
	if err := validateObservations(obs); err != nil {
		return 0, 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var inserted, skipped int
	for _, o := range obs {
		ok, err := insertObservation(ctx, tx, o)
		if err != nil {
			return 0, 0, err
		}
		if ok {
			inserted++
		} else {
			skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit batch insert: %w", err)
	}

	return inserted, skipped, nil
}

const observationColumns = `
	id, source_type, source_locator, raw_payload, amount_minor, currency,
	timestamp, timestamp_date_only, direction, reference, counterparty,
	account_hint, parse_confidence, content_hash, import_session_id,
	fp_ref, fp_amt_time, fp_amt_day, fp_sender_amt
`

func scanObservation(row interface {
	Scan(dest ...any) error
}) (*model.Observation, error) {
	var o model.Observation
	var ts sql.NullTime
	var reference, counterparty, accountHint sql.NullString
	var fpRef, fpAmtTime, fpAmtDay, fpSenderAmt sql.NullString

	err := row.Scan(
		&o.ID, &o.SourceType, &o.SourceLocator, &o.RawPayload, &o.AmountMinor, &o.Currency,
		&ts, &o.TimestampDateOnly, &o.Direction, &reference, &counterparty,
		&accountHint, &o.ParseConfidence, &o.ContentHash, &o.ImportSessionID,
		&fpRef, &fpAmtTime, &fpAmtDay, &fpSenderAmt,
	)
	if err != nil {
		return nil, err
	}

	if ts.Valid {
		t := ts.Time
		o.Timestamp = &t
	}
	o.Reference = fromNullString(reference)
	o.Counterparty = fromNullString(counterparty)
	o.AccountHint = fromNullString(accountHint)
	o.FpRef = fromNullString(fpRef)
	o.FpAmtTime = fromNullString(fpAmtTime)
	o.FpAmtDay = fromNullString(fpAmtDay)
	o.FpSenderAmt = fromNullString(fpSenderAmt)

	return &o, nil
}

// GetByContentHash looks up an observation by its dedup key.
func (s *SQLiteStorage) GetByContentHash(ctx context.Context, hash string) (*model.Observation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+observationColumns+` FROM observations WHERE content_hash = ?`, hash)
	obs, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation by content hash: %w", err)
	}
	return obs, nil
}

// GetObservationByID looks up an observation by its primary key.
func (s *SQLiteStorage) GetObservationByID(ctx context.Context, id string) (*model.Observation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+observationColumns+` FROM observations WHERE id = ?`, id)
	obs, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation by id: %w", err)
	}
	return obs, nil
}

func (s *SQLiteStorage) findByFp(ctx context.Context, column, fp string) ([]model.Observation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if fp == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+observationColumns+` FROM observations WHERE `+column+` = ?`, fp)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		result = append(result, *obs)
	}
	return result, rows.Err()
}

// FindByFpRef finds observations sharing a reference fingerprint.
func (s *SQLiteStorage) FindByFpRef(ctx context.Context, fp string) ([]model.Observation, error) {
	return s.findByFp(ctx, "fp_ref", fp)
}

// FindByFpAmtDay finds observations sharing an amount+day fingerprint.
func (s *SQLiteStorage) FindByFpAmtDay(ctx context.Context, fp string) ([]model.Observation, error) {
	return s.findByFp(ctx, "fp_amt_day", fp)
}

// FindByFpAmtTime finds observations sharing an amount+5-minute-bucket fingerprint.
func (s *SQLiteStorage) FindByFpAmtTime(ctx context.Context, fp string) ([]model.Observation, error) {
	return s.findByFp(ctx, "fp_amt_time", fp)
}

// FindByFpSenderAmt finds observations sharing a sender+amount fingerprint.
func (s *SQLiteStorage) FindByFpSenderAmt(ctx context.Context, fp string) ([]model.Observation, error) {
	return s.findByFp(ctx, "fp_sender_amt", fp)
}

// GetUnlinked returns observations with zero rows in the link table, sorted
// by observation_id ascending per the reconciliation-ordering invariant.
func (s *SQLiteStorage) GetUnlinked(ctx context.Context) ([]model.Observation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+observationColumns+`
		FROM observations o
		WHERE NOT EXISTS (SELECT 1 FROM links l WHERE l.observation_id = o.id)
		ORDER BY o.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlinked observations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		result = append(result, *obs)
	}
	return result, rows.Err()
}

// GetForAggregate returns the observations currently linked to an aggregate.
func (s *SQLiteStorage) GetForAggregate(ctx context.Context, aggregateID string) ([]model.Observation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(aggregateID, "aggregateID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT o.`+observationColumnsJoined()+`
		FROM observations o
		JOIN links l ON l.observation_id = o.id
		WHERE l.aggregate_id = ?
		ORDER BY o.id ASC
	`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations for aggregate: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		result = append(result, *obs)
	}
	return result, rows.Err()
}

// Count returns the total number of stored observations.
func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return n, nil
}

// observationColumnsJoined renders observationColumns with an "o." prefix so
// it can be used in queries joining against other tables.
func observationColumnsJoined() string {
	return `id, source_type, source_locator, raw_payload, amount_minor, currency,
	timestamp, timestamp_date_only, direction, reference, counterparty,
	account_hint, parse_confidence, content_hash, import_session_id,
	fp_ref, fp_amt_time, fp_amt_day, fp_sender_amt`
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
