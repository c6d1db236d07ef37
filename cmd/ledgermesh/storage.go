package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/config"
	"github.com/ledgermesh/ledgermesh/internal/storage"
)

// openStorage opens (and migrates) the configured SQLite database.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	path, err := databasePath()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(config.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrating database %s: %w", path, err)
	}
	return store, nil
}

func loadTunables() (config.Tunables, error) {
	return config.LoadTunables()
}

func systemClock() common.Clock {
	return common.SystemClock{}
}

func defaultCurrency() string {
	if c := viper.GetString("import.default_currency"); c != "" {
		return c
	}
	return "USD"
}
