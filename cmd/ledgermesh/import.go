package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgermesh/ledgermesh/internal/csvparser"
	"github.com/ledgermesh/ledgermesh/internal/model"
	"github.com/ledgermesh/ledgermesh/internal/orchestrator"
	"github.com/ledgermesh/ledgermesh/internal/reconcile"
	"github.com/ledgermesh/ledgermesh/internal/service"
	"github.com/ledgermesh/ledgermesh/internal/smsparser"
	"github.com/ledgermesh/ledgermesh/internal/smssource"
	"github.com/ledgermesh/ledgermesh/internal/storage"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import observations from a bank statement or SMS log",
	}
	cmd.AddCommand(importCSVCmd())
	cmd.AddCommand(importPDFCmd())
	cmd.AddCommand(importSMSCmd())
	return cmd
}

func importCSVCmd() *cobra.Command {
	var (
		preview           bool
		dateFormat        string
		dateColumn        int
		referenceColumn   int
		descriptionColumn int
		debitColumn       int
		creditColumn      int
		amountColumn      int
	)

	cmd := &cobra.Command{
		Use:   "csv <file>",
		Short: "Import a CSV bank statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			orch, store, err := buildOrchestrator(cmd, nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if preview {
				result, err := orch.PreviewCSV(content)
				if err != nil {
					return fmt.Errorf("previewing %s: %w", args[0], err)
				}
				printCSVPreview(result)
				return nil
			}

			mapping := csvparser.ColumnMapping{
				DateFormat:        dateFormat,
				DateColumn:        dateColumn,
				ReferenceColumn:   referenceColumn,
				DescriptionColumn: descriptionColumn,
				DebitColumn:       debitColumn,
				CreditColumn:      creditColumn,
				AmountColumn:      amountColumn,
			}
			if dateColumn < 0 {
				preview, err := orch.PreviewCSV(content)
				if err != nil {
					return fmt.Errorf("auto-detecting column mapping: %w", err)
				}
				if preview.Mapping == nil {
					return fmt.Errorf("could not auto-detect a column mapping, pass --date-column and friends explicitly")
				}
				mapping = *preview.Mapping
			}

			result, err := orch.ImportCSV(cmd.Context(), content, args[0], mapping)
			if err != nil {
				return fmt.Errorf("importing %s: %w", args[0], err)
			}
			printImportResult(result.Session, result.Reconcile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&preview, "preview", false, "show headers and a suggested column mapping without importing")
	cmd.Flags().StringVar(&dateFormat, "date-format", "yyyy-MM-dd", "date format using yyyy/MM/dd/HH/mm/ss tokens")
	cmd.Flags().IntVar(&dateColumn, "date-column", -1, "0-based date column index; -1 auto-detects the whole mapping")
	cmd.Flags().IntVar(&referenceColumn, "reference-column", -1, "0-based reference column index, -1 if none")
	cmd.Flags().IntVar(&descriptionColumn, "description-column", -1, "0-based description column index, -1 if none")
	cmd.Flags().IntVar(&debitColumn, "debit-column", -1, "0-based debit column index, -1 if none")
	cmd.Flags().IntVar(&creditColumn, "credit-column", -1, "0-based credit column index, -1 if none")
	cmd.Flags().IntVar(&amountColumn, "amount-column", -1, "0-based signed amount column index, -1 if using debit/credit columns")

	return cmd
}

func importPDFCmd() *cobra.Command {
	var currency string

	cmd := &cobra.Command{
		Use:   "pdf <file>",
		Short: "Import a PDF bank statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			orch, store, err := buildOrchestrator(cmd, nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			result, err := orch.ImportPDF(cmd.Context(), content, args[0], currency)
			if err != nil {
				return fmt.Errorf("importing %s: %w", args[0], err)
			}
			printImportResult(result.Session, result.Reconcile)
			return nil
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "USD", "ISO currency code for every observation in this statement")
	return cmd
}

func importSMSCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "sms",
		Short: "Import mobile-money SMS sightings from a captured JSON log",
	}
	cmd.PersistentFlags().StringVar(&source, "source", "", "path to a JSON array of captured SMS sightings")
	_ = cmd.MarkPersistentFlagRequired("source")

	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Import every captured message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := smssource.NewFileSource(source)
			if err != nil {
				return err
			}
			orch, store, err := buildOrchestrator(cmd, src)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			result, err := orch.ImportSMSAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("importing sms messages: %w", err)
			}
			printImportResult(result.Session, result.Reconcile)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "since <after_ms>",
		Short: "Import messages newer than the given epoch-millisecond timestamp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var afterMillis int64
			if _, err := fmt.Sscanf(args[0], "%d", &afterMillis); err != nil {
				return fmt.Errorf("invalid timestamp %q: %w", args[0], err)
			}

			src, err := smssource.NewFileSource(source)
			if err != nil {
				return err
			}
			orch, store, err := buildOrchestrator(cmd, src)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			result, err := orch.ImportSMSSince(cmd.Context(), afterMillis)
			if err != nil {
				return fmt.Errorf("importing sms messages since %d: %w", afterMillis, err)
			}
			printImportResult(result.Session, result.Reconcile)
			return nil
		},
	})

	return cmd
}

// buildOrchestrator opens the configured database and wires an
// orchestrator.Orchestrator over it, the default SMS profile set, and
// progress output to stderr. smsSource may be nil for CSV/PDF imports.
func buildOrchestrator(cmd *cobra.Command, smsSource *smssource.FileSource) (*orchestrator.Orchestrator, *storage.SQLiteStorage, error) {
	store, err := openStorage(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	tunables, err := loadTunables()
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("loading tunables: %w", err)
	}

	clock := systemClock()
	engine := reconcile.New(store, clock, tunables)
	matcher := smsparser.NewMatcher(smsparser.DefaultProfiles())

	var source service.SMSSource
	if smsSource != nil {
		source = smsSource
	}

	orch := orchestrator.New(store, clock, engine, source, matcher, os.Stderr, defaultCurrency())
	return orch, store, nil
}

func printCSVPreview(result csvparser.PreviewResult) {
	fmt.Println("headers:", result.Headers)
	if result.Mapping != nil {
		fmt.Printf("suggested mapping: %+v\n", *result.Mapping)
	} else {
		fmt.Println("no column mapping could be auto-detected")
	}
	for i, row := range result.SampleRows {
		fmt.Printf("row %d: %v\n", i, row)
	}
}

func printImportResult(session model.ImportSession, batch reconcile.BatchResult) {
	fmt.Printf("session %s: %s (total=%d imported=%d skipped=%d failed=%d)\n",
		session.ID, session.Status, session.Total, session.Imported, session.Skipped, session.Failed)
	if session.ErrorMessage != nil {
		fmt.Println("  error:", *session.ErrorMessage)
	}
	fmt.Printf("reconcile: processed=%d created=%d updated=%d\n",
		batch.ObservationsProcessed, batch.AggregatesCreated, batch.AggregatesUpdated)
}
