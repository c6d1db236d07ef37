// Package orchestrator drives one import end to end: create a session,
// run the relevant parser, batch-insert observations, update session
// counters, reconcile, and report a result summary.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/csvparser"
	"github.com/ledgermesh/ledgermesh/internal/model"
	"github.com/ledgermesh/ledgermesh/internal/pdfparser"
	"github.com/ledgermesh/ledgermesh/internal/reconcile"
	"github.com/ledgermesh/ledgermesh/internal/service"
	"github.com/ledgermesh/ledgermesh/internal/smsparser"
)

// Result summarizes one completed import for the caller.
type Result struct {
	Session  model.ImportSession
	Reconcile reconcile.BatchResult
}

// Orchestrator wires a storage backend, a clock, the reconciliation engine,
// and the SMS matcher together behind the five public import operations.
// defaultCurrency is used by the operations whose public signature carries
// no currency argument (CSV and SMS sources don't reliably encode one);
// ImportPDF is the one source format where callers state a currency
// explicitly.
type Orchestrator struct {
	store           service.Storage
	clock           common.Clock
	reconciler      *reconcile.Engine
	smsSource       service.SMSSource
	matcher         *smsparser.Matcher
	progress        io.Writer
	defaultCurrency string
}

// New builds an Orchestrator. progress may be nil to suppress progress bar
// output (e.g. in tests).
func New(store service.Storage, clock common.Clock, reconciler *reconcile.Engine, smsSource service.SMSSource, matcher *smsparser.Matcher, progress io.Writer, defaultCurrency string) *Orchestrator {
	return &Orchestrator{
		store:           store,
		clock:           clock,
		reconciler:      reconciler,
		smsSource:       smsSource,
		matcher:         matcher,
		progress:        progress,
		defaultCurrency: defaultCurrency,
	}
}

// PreviewCSV reads headers and sample rows without importing anything.
func (o *Orchestrator) PreviewCSV(content []byte) (csvparser.PreviewResult, error) {
	return csvparser.Preview(content)
}

// ImportCSV drives the CSV parser with an explicit column mapping.
func (o *Orchestrator) ImportCSV(ctx context.Context, content []byte, name string, mapping csvparser.ColumnMapping) (Result, error) {
	session := o.newSession(model.SourceCSV, name)
	if err := o.store.Create(ctx, session); err != nil {
		return Result{}, fmt.Errorf("creating import session: %w", err)
	}

	parsed := csvparser.Parse(content, name, mapping, o.defaultCurrency)
	return o.finish(ctx, session, parsed.Observations, len(parsed.Errors), rowErrorMessages(parsed.Errors))
}

// ImportPDF drives the PDF parser. Returns common.ErrScannedPDF or
// common.ErrEncryptedPDF unmodified when the document fails its
// precondition checks; no session counters are updated in that case beyond
// marking the session FAILED.
func (o *Orchestrator) ImportPDF(ctx context.Context, content []byte, name, currency string) (Result, error) {
	session := o.newSession(model.SourcePDF, name)
	if err := o.store.Create(ctx, session); err != nil {
		return Result{}, fmt.Errorf("creating import session: %w", err)
	}

	parsed, err := pdfparser.Parse(content, name, currency)
	if err != nil {
		o.fail(ctx, &session, err)
		return Result{}, err
	}

	return o.finish(ctx, session, parsed.Observations, 0, nil)
}

// ImportSMSAll drives the SMS matcher over every message the source has.
func (o *Orchestrator) ImportSMSAll(ctx context.Context) (Result, error) {
	msgs, err := o.smsSource.All(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reading sms messages: %w", err)
	}
	return o.importSMS(ctx, msgs)
}

// ImportSMSSince drives the SMS matcher over messages newer than afterMillis.
func (o *Orchestrator) ImportSMSSince(ctx context.Context, afterMillis int64) (Result, error) {
	msgs, err := o.smsSource.Since(ctx, afterMillis)
	if err != nil {
		return Result{}, fmt.Errorf("reading sms messages since %d: %w", afterMillis, err)
	}
	return o.importSMS(ctx, msgs)
}

func (o *Orchestrator) importSMS(ctx context.Context, msgs []service.SMSMessage) (Result, error) {
	session := o.newSession(model.SourceSMS, "sms")
	if err := o.store.Create(ctx, session); err != nil {
		return Result{}, fmt.Errorf("creating import session: %w", err)
	}

	var observations []model.Observation
	var unmatched int

	bar := o.newBar(len(msgs), "Matching SMS messages...")
	for _, msg := range msgs {
		select {
		case <-ctx.Done():
			err := ctx.Err()
			o.fail(ctx, &session, err)
			return Result{}, err
		default:
		}

		result := o.matcher.Parse(msg, o.defaultCurrency)
		if result.Observation != nil {
			observations = append(observations, *result.Observation)
		} else {
			unmatched++
			slog.Debug("sms message unmatched", "message_id", result.Unmatched.MessageID, "profile_id", result.Unmatched.ProfileID)
		}
		advanceBar(bar)
	}

	return o.finish(ctx, session, observations, unmatched, nil)
}

// finish batch-inserts the parsed observations, updates and persists the
// session's terminal state, invokes reconciliation, and returns the summary.
func (o *Orchestrator) finish(ctx context.Context, session model.ImportSession, observations []model.Observation, failedCount int, rowErrors []string) (Result, error) {
	inserted, skipped, err := o.store.InsertBatch(ctx, observations)
	if err != nil {
		o.fail(ctx, &session, err)
		return Result{}, fmt.Errorf("inserting observations: %w", err)
	}

	session.Total = len(observations) + failedCount
	session.Imported = inserted
	session.Skipped = skipped
	session.Failed = failedCount
	session.Status = model.ImportCompleted
	completedAt := o.clock.Now()
	session.CompletedAt = &completedAt
	if len(rowErrors) > 0 {
		msg := fmt.Sprintf("%d row error(s), first: %s", len(rowErrors), rowErrors[0])
		session.ErrorMessage = &msg
	}

	if err := o.store.Update(ctx, session); err != nil {
		return Result{}, fmt.Errorf("updating import session: %w", err)
	}

	batchResult, err := o.reconciler.ReconcileAll(ctx)
	if err != nil {
		o.fail(ctx, &session, err)
		return Result{}, fmt.Errorf("reconciling imported observations: %w", err)
	}

	return Result{Session: session, Reconcile: batchResult}, nil
}

func (o *Orchestrator) fail(ctx context.Context, session *model.ImportSession, cause error) {
	session.Status = model.ImportFailed
	msg := cause.Error()
	session.ErrorMessage = &msg
	completedAt := o.clock.Now()
	session.CompletedAt = &completedAt
	if err := o.store.Update(ctx, *session); err != nil {
		slog.Error("failed to persist failed import session", "session_id", session.ID, "error", err)
	}
}

func (o *Orchestrator) newSession(sourceType model.SourceType, locator string) model.ImportSession {
	return model.ImportSession{
		ID:            uuid.NewString(),
		SourceType:    sourceType,
		SourceLocator: locator,
		Status:        model.ImportProcessing,
		CreatedAt:     o.clock.Now(),
	}
}

func (o *Orchestrator) newBar(total int, description string) *progressbar.ProgressBar {
	if o.progress == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(o.progress),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
	)
}

func advanceBar(bar *progressbar.ProgressBar) {
	if bar == nil {
		return
	}
	if err := bar.Add(1); err != nil {
		slog.Debug("progress bar update failed", "error", err)
	}
}

func rowErrorMessages(errs []common.ParseRowError) []string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return msgs
}
