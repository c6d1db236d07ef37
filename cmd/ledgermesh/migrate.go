package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ledgermesh/ledgermesh/internal/storage"
)

func migrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Initialize or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := databasePath()
			if err != nil {
				return err
			}

			store, err := storage.NewSQLiteStorage(path)
			if err != nil {
				return fmt.Errorf("opening database %s: %w", path, err)
			}
			defer func() { _ = store.Close() }()

			if status {
				slog.Info("database migration status", "path", path)
				return nil
			}

			slog.Info("running database migrations", "path", path)
			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			slog.Info("database migrations complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "show the database path without applying migrations")
	return cmd
}
