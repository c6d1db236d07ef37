package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgermesh/ledgermesh/internal/review"
)

func reviewCmd() *cobra.Command {
	var threshold int

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Browse and act on the review queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if threshold < 0 {
				tunables, err := loadTunables()
				if err != nil {
					return fmt.Errorf("loading tunables: %w", err)
				}
				threshold = tunables.ConfidenceThreshold
			}

			return review.Run(cmd.Context(), store, systemClock(), threshold)
		},
	}

	cmd.Flags().IntVar(&threshold, "threshold", -1, "confidence threshold below which aggregates surface for review; -1 uses the configured default")
	return cmd
}
