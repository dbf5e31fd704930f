package models

import (
	"fmt"
	"path/filepath"
	"time"
)

const (
	// dateLayout is the calendar date format accepted for explicit windows.
	dateLayout = "2006-01-02"

	// weekSpan is the width of a relative window.
	weekSpan = 7 * 24 * time.Hour
)

// Window is the inclusive time range of history a run must collect.
// The label deterministically identifies the window and names its store file,
// so re-runs with identical inputs land in the same store.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// NewWindowFromDates resolves a window from an explicit YYYY-MM-DD date pair.
// The window starts at midnight UTC of the start date and ends one second
// before midnight of the end date, so the end date itself is never included.
// The end date must be strictly after the start date.
func NewWindowFromDates(startDate, endDate string) (*Window, error) {
	start, err := time.ParseInLocation(dateLayout, startDate, time.UTC)
	if err != nil {
		return nil, &ValidationError{Field: "start_date", Message: fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", startDate)}
	}
	end, err := time.ParseInLocation(dateLayout, endDate, time.UTC)
	if err != nil {
		return nil, &ValidationError{Field: "end_date", Message: fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", endDate)}
	}
	if !end.After(start) {
		return nil, &ValidationError{Field: "end_date", Message: fmt.Sprintf("end date %s must be after start date %s", endDate, startDate)}
	}

	return &Window{
		Start: start,
		End:   end.Add(-time.Second),
		Label: fmt.Sprintf("%s_to_%s", startDate, endDate),
	}, nil
}

// NewWindowFromWeeksAgo resolves a one-week window ending weeksAgo weeks
// before now. The reference instant is an explicit parameter so callers and
// tests control the clock.
func NewWindowFromWeeksAgo(weeksAgo int, now time.Time) (*Window, error) {
	if weeksAgo < 1 {
		return nil, &ValidationError{Field: "weeks_ago", Message: fmt.Sprintf("weeks_ago must be a positive integer, got %d", weeksAgo)}
	}

	end := now.Add(-time.Duration(weeksAgo) * weekSpan)
	return &Window{
		Start: end.Add(-weekSpan),
		End:   end,
		Label: fmt.Sprintf("week_%d", weeksAgo),
	}, nil
}

// Contains reports whether the epoch falls inside the window, both edges inclusive.
func (w *Window) Contains(epoch int64) bool {
	return epoch >= w.Start.Unix() && epoch <= w.End.Unix()
}

// Span returns the window width.
func (w *Window) Span() time.Duration {
	return w.End.Sub(w.Start)
}

// StorePath derives the store file path for this window, e.g.
// StorePath("data", "deriv_ticks") for label "week_1" yields
// "data/deriv_ticks_week_1.sqlite".
func (w *Window) StorePath(dir, prefix string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.sqlite", prefix, w.Label))
}

// String returns a human-readable representation of the window.
func (w *Window) String() string {
	return fmt.Sprintf("%s [%s .. %s]", w.Label,
		w.Start.Format("2006-01-02 15:04:05"),
		w.End.Format("2006-01-02 15:04:05"))
}
