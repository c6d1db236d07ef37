package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgermesh/ledgermesh/internal/ops"
)

func opsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Manual corrections over aggregates",
	}
	cmd.AddCommand(opsMergeCmd())
	cmd.AddCommand(opsSplitCmd())
	cmd.AddCommand(opsMarkDuplicateCmd())
	cmd.AddCommand(opsEditFieldCmd())
	return cmd
}

func opsMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <target-id> <source-id>",
		Short: "Force-merge source into target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			merged, err := ops.New(store, systemClock()).ForceMerge(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("merging %s into %s: %w", args[1], args[0], err)
			}
			fmt.Printf("merged: %s now has %d observation(s)\n", merged.ID, merged.ObservationCount)
			return nil
		},
	}
}

func opsSplitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split <source-id> <observation-id>...",
		Short: "Split the given observations off into a new aggregate",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			remainder, created, err := ops.New(store, systemClock()).Split(cmd.Context(), args[0], args[1:])
			if err != nil {
				return fmt.Errorf("splitting %s: %w", args[0], err)
			}
			fmt.Printf("remainder: %s (%d observation(s))\n", remainder.ID, remainder.ObservationCount)
			fmt.Printf("created: %s (%d observation(s))\n", created.ID, created.ObservationCount)
			return nil
		},
	}
}

func opsMarkDuplicateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-duplicate <aggregate-id> <observation-id>",
		Short: "Record an observation as a known duplicate sighting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := ops.New(store, systemClock()).MarkDuplicate(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("marking %s duplicate: %w", args[1], err)
			}
			fmt.Println("marked duplicate")
			return nil
		},
	}
}

func opsEditFieldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit-field <aggregate-id> <field> <old-value> <new-value>",
		Short: fmt.Sprintf("Edit a recognized field (%s)", strings.Join(recognizedFieldNames(), ", ")),
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			updated, err := ops.New(store, systemClock()).EditField(cmd.Context(), args[0], args[1], args[2], args[3])
			if err != nil {
				return fmt.Errorf("editing %s on %s: %w", args[1], args[0], err)
			}
			if updated == nil {
				fmt.Printf("field %q is not recognized; no change made\n", args[1])
				return nil
			}
			fmt.Println("updated")
			return nil
		},
	}
}

func recognizedFieldNames() []string {
	names := make([]string, 0, len(ops.RecognizedFields))
	for name := range ops.RecognizedFields {
		names = append(names, name)
	}
	return names
}
