// Package source defines the interface for historical tick sources and
// provides the Deriv WebSocket implementation.
//
// A source exposes "give me up to N ticks ending at instant E, not going back
// past instant S" semantics; the pagination engine in internal/collector
// drives it backward in time to reconstruct a bounded window.
package source

import (
	"context"
	"time"

	"github.com/johnayoung/go-tick-collector/internal/models"
)

// HistorySource issues bounded historical tick queries against an
// authenticated session.
//
// Implementations own one session for the duration of a run: Connect once,
// any number of FetchHistory calls, Close once. FetchHistory must return an
// empty page (not an error) when the source has no data for the requested
// range, and should apply its own request pacing.
type HistorySource interface {
	// FetchHistory requests one page of historical ticks. Samples are
	// returned oldest-first. An empty page signals exhaustion.
	FetchHistory(ctx context.Context, req HistoryRequest) (*HistoryPage, error)
}

// SessionSource extends HistorySource with explicit session lifecycle.
type SessionSource interface {
	HistorySource

	// Connect establishes the transport and authorizes the session.
	Connect(ctx context.Context) error

	// Close releases the transport. Safe to call after a failed Connect.
	Close() error
}

// HistoryRequest specifies one bounded historical tick query.
type HistoryRequest struct {
	// Symbol is the instrument identifier (e.g. "R_50").
	Symbol string

	// End is the epoch the page should end at (inclusive).
	End int64

	// Start floor-bounds the page; the source returns nothing earlier.
	Start int64

	// Count caps the number of samples returned.
	Count int
}

// Validate checks the request parameters before hitting the source.
func (r HistoryRequest) Validate() error {
	if r.Symbol == "" {
		return &models.ValidationError{Field: "symbol", Message: "symbol cannot be empty"}
	}
	if r.End <= 0 {
		return &models.ValidationError{Field: "end", Message: "end must be a positive Unix timestamp"}
	}
	if r.Start <= 0 {
		return &models.ValidationError{Field: "start", Message: "start must be a positive Unix timestamp"}
	}
	if r.Start > r.End {
		return &models.ValidationError{Field: "start", Message: "start cannot be after end"}
	}
	if r.Count < 1 {
		return &models.ValidationError{Field: "count", Message: "count must be at least 1"}
	}
	return nil
}

// HistoryPage is one bounded batch of samples returned by a single request.
// Times and Quotes are parallel slices ordered oldest to newest.
type HistoryPage struct {
	Times   []int64
	Quotes  []float64
	PipSize int
}

// Empty reports whether the page carries no samples.
func (p *HistoryPage) Empty() bool {
	return len(p.Times) == 0
}

// OldestEpoch returns the epoch of the page's oldest sample. The page must
// not be empty.
func (p *HistoryPage) OldestEpoch() int64 {
	return p.Times[0]
}

// Ticks converts the page's samples inside [start, end] into tick models for
// the given symbol.
func (p *HistoryPage) Ticks(symbol string, start, end int64) []models.Tick {
	ticks := make([]models.Tick, 0, len(p.Times))
	for i, epoch := range p.Times {
		if epoch < start || epoch > end {
			continue
		}
		ticks = append(ticks, models.Tick{
			Epoch:   epoch,
			Quote:   p.Quotes[i],
			Symbol:  symbol,
			PipSize: p.PipSize,
		})
	}
	return ticks
}

// SpanString renders the page's covered range for progress reporting.
func (p *HistoryPage) SpanString() string {
	if p.Empty() {
		return "empty"
	}
	oldest := time.Unix(p.Times[0], 0).UTC()
	newest := time.Unix(p.Times[len(p.Times)-1], 0).UTC()
	return oldest.Format("2006-01-02 15:04:05") + " .. " + newest.Format("2006-01-02 15:04:05")
}
