package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/johnayoung/go-tick-collector/internal/models"
	"github.com/johnayoung/go-tick-collector/internal/source"
	"github.com/johnayoung/go-tick-collector/internal/storage"
)

// Runner orchestrates one collection run: advisory store inspection, source
// connection, schema setup, metadata write, then a strictly sequential
// instrument loop with persistence and progress reporting.
type Runner struct {
	source          source.SessionSource
	store           storage.TickStore
	instruments     []models.Instrument
	pageSize        int
	instrumentDelay time.Duration
	logger          *slog.Logger
}

// InstrumentResult records the outcome for one instrument.
type InstrumentResult struct {
	Symbol     string
	Collected  int           // ticks collected inside the window
	Inserted   int           // rows actually written
	Duplicates int           // rows skipped by the store's dedup
	Pages      int           // non-empty pages fetched
	Elapsed    time.Duration // fetch + persist wall time
	Err        error         // failure that cut this instrument short, if any
}

// RunSummary is the final report for a run.
type RunSummary struct {
	RunID       string
	Window      *models.Window
	Instruments []InstrumentResult
	Collected   int // total ticks fetched inside the window
	Inserted    int // total new rows written
	Elapsed     time.Duration
}

// Failed returns the symbols whose pagination ended on an error.
func (s *RunSummary) Failed() []string {
	var failed []string
	for _, r := range s.Instruments {
		if r.Err != nil {
			failed = append(failed, r.Symbol)
		}
	}
	return failed
}

// NewRunner creates a run orchestrator. instrumentDelay is the pause between
// successive instruments; zero disables it (used by tests).
func NewRunner(src source.SessionSource, store storage.TickStore, instruments []models.Instrument,
	pageSize int, instrumentDelay time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		source:          src,
		store:           store,
		instruments:     instruments,
		pageSize:        pageSize,
		instrumentDelay: instrumentDelay,
		logger:          logger,
	}
}

// Run executes one collection over the window. Configuration and
// authentication problems abort the run; a failure on one instrument is
// logged and the loop proceeds to the next, never touching rows already
// committed for earlier instruments.
func (r *Runner) Run(ctx context.Context, window *models.Window) (*RunSummary, error) {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID, "window", window.Label)
	started := time.Now()

	logger.Info("starting collection",
		"start", window.Start.Format(time.RFC3339),
		"end", window.End.Format(time.RFC3339),
		"span_days", int(window.Span().Hours()/24),
		"instruments", len(r.instruments))

	// Advisory only: operators see overlap before any fetching happens.
	r.reportExisting(ctx, logger)

	if err := r.source.Connect(ctx); err != nil {
		// The dial may have succeeded even when authorization failed;
		// release the transport either way.
		_ = r.source.Close()
		return nil, err
	}
	defer func() {
		if err := r.source.Close(); err != nil {
			logger.Warn("failed to close source session", "error", err)
		}
	}()

	if err := r.store.Initialize(ctx); err != nil {
		return nil, err
	}
	if err := r.store.WriteMetadata(ctx, window, time.Now().UTC()); err != nil {
		return nil, err
	}

	summary := &RunSummary{RunID: runID, Window: window}
	engine := NewPaginator(r.source, r.pageSize, logger)

	for i, instrument := range r.instruments {
		result := r.collectInstrument(ctx, engine, instrument, window, logger)
		summary.Instruments = append(summary.Instruments, result)
		summary.Collected += result.Collected
		summary.Inserted += result.Inserted

		r.reportProgress(logger, summary, i)

		if i < len(r.instruments)-1 {
			if err := sleepCtx(ctx, r.instrumentDelay); err != nil {
				logger.Warn("run interrupted between instruments", "error", err)
				break
			}
		}
	}

	summary.Elapsed = time.Since(started)
	logger.Info("collection complete",
		"total_ticks", summary.Collected,
		"new_rows", summary.Inserted,
		"failed_instruments", summary.Failed(),
		"elapsed", summary.Elapsed.Round(time.Second))

	return summary, nil
}

// collectInstrument paginates one instrument and persists whatever was
// collected, including partial results after a fetch failure.
func (r *Runner) collectInstrument(ctx context.Context, engine *Paginator,
	instrument models.Instrument, window *models.Window, logger *slog.Logger) InstrumentResult {

	started := time.Now()
	logger.Info("fetching instrument", "symbol", instrument.Symbol, "name", instrument.DisplayName)

	paged := engine.Collect(ctx, instrument.Symbol, window)
	result := InstrumentResult{
		Symbol:    instrument.Symbol,
		Collected: len(paged.Ticks),
		Pages:     paged.Pages,
		Err:       paged.Err,
	}
	if paged.Err != nil {
		logger.Error("pagination aborted, keeping partial results",
			"symbol", instrument.Symbol,
			"collected", len(paged.Ticks),
			"error", paged.Err)
	}

	if len(paged.Ticks) > 0 {
		inserted, err := r.store.InsertTicks(ctx, paged.Ticks)
		if err != nil {
			logger.Error("failed to persist ticks", "symbol", instrument.Symbol, "error", err)
			if result.Err == nil {
				result.Err = err
			}
		} else {
			result.Inserted = inserted
			result.Duplicates = len(paged.Ticks) - inserted
		}
	}

	result.Elapsed = time.Since(started)
	logger.Info("instrument done",
		"symbol", instrument.Symbol,
		"ticks", result.Collected,
		"new_rows", result.Inserted,
		"duplicates_skipped", result.Duplicates,
		"pages", result.Pages,
		"elapsed", result.Elapsed.Round(time.Millisecond))

	return result
}

// reportExisting prints the store's current per-instrument coverage. A store
// that does not exist yet is a clean first run; an unreadable store is
// surfaced but never blocks the run.
func (r *Runner) reportExisting(ctx context.Context, logger *slog.Logger) {
	summaries, err := r.store.SummarizeExisting(ctx)
	if err != nil {
		logger.Error("could not inspect existing store", "error", err)
		return
	}
	if len(summaries) == 0 {
		logger.Info("no existing data for this window")
		return
	}
	logger.Info("store already has data for this window", "instruments", len(summaries))
	for _, s := range summaries {
		logger.Info("existing coverage", "summary", s.String())
	}
}

// reportProgress emits a running ETA from the average per-instrument elapsed
// time so far.
func (r *Runner) reportProgress(logger *slog.Logger, summary *RunSummary, done int) {
	remaining := len(r.instruments) - done - 1
	if remaining == 0 {
		return
	}

	var elapsed time.Duration
	for _, res := range summary.Instruments {
		elapsed += res.Elapsed
	}
	average := elapsed / time.Duration(len(summary.Instruments))
	eta := average*time.Duration(remaining) + r.instrumentDelay*time.Duration(remaining)

	logger.Info("progress",
		"done", done+1,
		"total", len(r.instruments),
		"eta", eta.Round(time.Second))
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
