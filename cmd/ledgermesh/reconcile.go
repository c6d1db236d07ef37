package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgermesh/ledgermesh/internal/reconcile"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconciliation pass management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Link unlinked observations into aggregates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tunables, err := loadTunables()
			if err != nil {
				return fmt.Errorf("loading tunables: %w", err)
			}

			engine := reconcile.New(store, systemClock(), tunables)
			result, err := engine.ReconcileAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("reconcile pass failed: %w", err)
			}

			fmt.Printf("processed=%d created=%d updated=%d\n",
				result.ObservationsProcessed, result.AggregatesCreated, result.AggregatesUpdated)
			return nil
		},
	})
	return cmd
}
