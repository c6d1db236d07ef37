package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/model"
)

// Create inserts a new import session row.
func (s *SQLiteStorage) Create(ctx context.Context, session model.ImportSession) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(session.ID, "session.ID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_sessions (
			id, source_type, source_locator, status, total, imported, skipped, failed,
			error_message, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		session.ID, session.SourceType, session.SourceLocator, session.Status,
		session.Total, session.Imported, session.Skipped, session.Failed,
		nullString(session.ErrorMessage), session.CreatedAt, nullTime(session.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create import session %s: %w", session.ID, err)
	}
	return nil
}

// Update persists an import session's mutable lifecycle fields (status,
// counters, completion time, error message).
func (s *SQLiteStorage) Update(ctx context.Context, session model.ImportSession) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(session.ID, "session.ID"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE import_sessions SET
			status = ?, total = ?, imported = ?, skipped = ?, failed = ?,
			error_message = ?, completed_at = ?
		WHERE id = ?
	`,
		session.Status, session.Total, session.Imported, session.Skipped, session.Failed,
		nullString(session.ErrorMessage), nullTime(session.CompletedAt), session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update import session %s: %w", session.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// GetSessionByID looks up an import session by its primary key.
func (s *SQLiteStorage) GetSessionByID(ctx context.Context, id string) (*model.ImportSession, error) { //nolint:dupl // separate entity, same shape as other lookup methods
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var sess model.ImportSession
	var errMsg sql.NullString
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, source_type, source_locator, status, total, imported, skipped, failed,
			error_message, created_at, completed_at
		FROM import_sessions WHERE id = ?
	`, id).Scan(
		&sess.ID, &sess.SourceType, &sess.SourceLocator, &sess.Status,
		&sess.Total, &sess.Imported, &sess.Skipped, &sess.Failed,
		&errMsg, &sess.CreatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import session %s: %w", id, err)
	}

	sess.ErrorMessage = fromNullString(errMsg)
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}

	return &sess, nil
}
