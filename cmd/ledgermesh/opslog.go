package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgermesh/ledgermesh/internal/model"
)

func opsLogCmd() *cobra.Command {
	var (
		aggregateID string
		recent      int
	)

	cmd := &cobra.Command{
		Use:   "ops-log",
		Short: "Show the manual-operation audit trail",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var entries []model.OpsLogEntry
			if aggregateID != "" {
				entries, err = store.GetOpsLogForAggregate(cmd.Context(), aggregateID)
			} else {
				entries, err = store.GetRecent(cmd.Context(), recent)
			}
			if err != nil {
				return fmt.Errorf("fetching ops log: %w", err)
			}

			for _, entry := range entries {
				printOpsLogEntry(entry)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&aggregateID, "aggregate", "", "show entries for a single aggregate instead of the recent global log")
	cmd.Flags().IntVar(&recent, "recent", 20, "number of recent entries to show when --aggregate is not set")
	return cmd
}

func printOpsLogEntry(entry model.OpsLogEntry) {
	fmt.Printf("%s  %-14s target=%s", entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.OpType, entry.TargetAggregateID)
	if entry.SecondaryAggregateID != nil {
		fmt.Printf(" secondary=%s", *entry.SecondaryAggregateID)
	}
	if entry.FieldName != nil {
		fmt.Printf(" field=%s", *entry.FieldName)
	}
	if entry.OldValue != nil || entry.NewValue != nil {
		fmt.Printf(" %q -> %q", derefOrEmpty(entry.OldValue), derefOrEmpty(entry.NewValue))
	}
	if len(entry.AffectedObservationIDs) > 0 {
		fmt.Printf(" observations=%v", entry.AffectedObservationIDs)
	}
	fmt.Println()
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
