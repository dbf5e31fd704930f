// Package collector implements the data collection core: a pagination engine
// that reconstructs a bounded historical window from a source exposing only
// "up to N ticks ending at instant E" queries, and the run orchestrator that
// sequences window resolution, fetching and persistence.
package collector

import (
	"context"
	"log/slog"

	"github.com/johnayoung/go-tick-collector/internal/models"
	"github.com/johnayoung/go-tick-collector/internal/source"
)

// PaginationResult carries everything one instrument's pagination produced.
// Ticks are always populated with whatever was collected, even when Err is
// non-nil; a failed page abandons the loop but never discards prior pages.
type PaginationResult struct {
	// Ticks collected inside the window, ordered as fetched (newest pages
	// first, each page oldest-first). Deduplicated by epoch within the run.
	Ticks []models.Tick

	// Pages is the number of non-empty pages fetched.
	Pages int

	// Err is the fetch failure that ended pagination early, or nil when the
	// loop terminated normally (window covered or source exhausted).
	Err error
}

// Paginator drives a history source backward in time until a window is
// covered. Termination is guaranteed: each non-empty page moves the cursor
// to strictly before its oldest sample, and the loop bound is the window
// start.
type Paginator struct {
	source   source.HistorySource
	pageSize int
	logger   *slog.Logger
}

// NewPaginator creates a pagination engine over the given source.
func NewPaginator(src source.HistorySource, pageSize int, logger *slog.Logger) *Paginator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Paginator{source: src, pageSize: pageSize, logger: logger}
}

// Collect fetches every tick for one instrument whose epoch falls within
// [window.Start, window.End].
//
// The cursor starts at the window end; each iteration requests a page ending
// at the cursor, floor-bounded at the window start, then moves the cursor to
// one second before the oldest sample returned so consecutive pages never
// overlap. An empty page means the source is exhausted for the range, which
// is a normal outcome: the result then covers the sub-range the source still
// retains.
func (p *Paginator) Collect(ctx context.Context, symbol string, window *models.Window) *PaginationResult {
	result := &PaginationResult{}

	startEpoch := window.Start.Unix()
	cursor := window.End.Unix()
	seen := make(map[int64]struct{})

	for cursor >= startEpoch {
		page, err := p.source.FetchHistory(ctx, source.HistoryRequest{
			Symbol: symbol,
			End:    cursor,
			Start:  startEpoch,
			Count:  p.pageSize,
		})
		if err != nil {
			// Partial results up to this point stay with the caller.
			result.Err = err
			return result
		}

		if page.Empty() {
			break
		}
		result.Pages++

		for _, tick := range page.Ticks(symbol, startEpoch, window.End.Unix()) {
			if _, dup := seen[tick.Epoch]; dup {
				continue
			}
			seen[tick.Epoch] = struct{}{}
			result.Ticks = append(result.Ticks, tick)
		}

		p.logger.Info("fetched page",
			"symbol", symbol,
			"page", result.Pages,
			"samples", len(page.Times),
			"range", page.SpanString())

		oldest := page.OldestEpoch()
		if oldest <= startEpoch {
			break
		}
		cursor = oldest - 1
	}

	return result
}
