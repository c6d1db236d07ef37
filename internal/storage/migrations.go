package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ExpectedSchemaVersion is the latest schema version the application
// expects. If the database cannot be migrated to this version it's a fatal
// error.
const ExpectedSchemaVersion = 2

// Migration represents one database schema migration in a versioned list
// gated on PRAGMA user_version, with monotonically increasing versions.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: observations, aggregates, links, import sessions, ops log, categories",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS observations (
					id TEXT PRIMARY KEY,
					source_type TEXT NOT NULL,
					source_locator TEXT NOT NULL,
					raw_payload TEXT NOT NULL,
					amount_minor INTEGER NOT NULL,
					currency TEXT NOT NULL,
					timestamp DATETIME,
					timestamp_date_only INTEGER NOT NULL DEFAULT 0,
					direction TEXT NOT NULL,
					reference TEXT,
					counterparty TEXT,
					account_hint TEXT,
					parse_confidence REAL NOT NULL DEFAULT 0,
					content_hash TEXT UNIQUE NOT NULL,
					import_session_id TEXT NOT NULL,
					fp_ref TEXT,
					fp_amt_time TEXT,
					fp_amt_day TEXT,
					fp_sender_amt TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_observations_fp_ref ON observations(fp_ref)`,
				`CREATE INDEX IF NOT EXISTS idx_observations_fp_amt_time ON observations(fp_amt_time)`,
				`CREATE INDEX IF NOT EXISTS idx_observations_fp_amt_day ON observations(fp_amt_day)`,
				`CREATE INDEX IF NOT EXISTS idx_observations_fp_sender_amt ON observations(fp_sender_amt)`,
				`CREATE INDEX IF NOT EXISTS idx_observations_session ON observations(import_session_id)`,

				`CREATE TABLE IF NOT EXISTS aggregates (
					id TEXT PRIMARY KEY,
					canonical_amount_minor INTEGER NOT NULL,
					canonical_currency TEXT NOT NULL,
					canonical_timestamp DATETIME,
					is_approx_time INTEGER NOT NULL DEFAULT 0,
					canonical_direction TEXT NOT NULL,
					canonical_reference TEXT,
					canonical_counterparty TEXT,
					canonical_account_hint TEXT,
					confidence_score INTEGER NOT NULL DEFAULT 0,
					category_id INTEGER REFERENCES categories(id),
					user_notes TEXT,
					observation_count INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_aggregates_timestamp ON aggregates(canonical_timestamp)`,
				`CREATE INDEX IF NOT EXISTS idx_aggregates_amount ON aggregates(canonical_amount_minor)`,
				`CREATE INDEX IF NOT EXISTS idx_aggregates_confidence ON aggregates(confidence_score)`,

				`CREATE TABLE IF NOT EXISTS links (
					aggregate_id TEXT NOT NULL REFERENCES aggregates(id) ON DELETE CASCADE,
					observation_id TEXT NOT NULL REFERENCES observations(id) ON DELETE CASCADE,
					PRIMARY KEY (aggregate_id, observation_id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_links_observation ON links(observation_id)`,

				`CREATE TABLE IF NOT EXISTS import_sessions (
					id TEXT PRIMARY KEY,
					source_type TEXT NOT NULL,
					source_locator TEXT NOT NULL,
					status TEXT NOT NULL,
					total INTEGER NOT NULL DEFAULT 0,
					imported INTEGER NOT NULL DEFAULT 0,
					skipped INTEGER NOT NULL DEFAULT 0,
					failed INTEGER NOT NULL DEFAULT 0,
					error_message TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					completed_at DATETIME
				)`,

				`CREATE TABLE IF NOT EXISTS ops_log (
					id TEXT PRIMARY KEY,
					op_type TEXT NOT NULL,
					target_aggregate_id TEXT NOT NULL,
					secondary_aggregate_id TEXT,
					affected_observation_ids TEXT NOT NULL DEFAULT '',
					field_name TEXT,
					old_value TEXT,
					new_value TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_ops_log_target ON ops_log(target_aggregate_id)`,
				`CREATE INDEX IF NOT EXISTS idx_ops_log_created_at ON ops_log(created_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Unique index on categories.name (belt-and-suspenders over the column constraint)",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name ON categories(name)`)
			return err
		},
	},
}

// Migrate applies any pending migrations, tracked via PRAGMA user_version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record schema version %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
