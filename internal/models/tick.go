// Package models provides data structures and validation for historical tick data.
// This package contains the core data models for the collector: price ticks,
// collection windows, and the static instrument catalog.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Tick represents one observed price sample for an instrument.
// Identity is the (Epoch, Symbol) pair; two ticks for the same instrument
// at the same second are the same tick.
type Tick struct {
	Epoch   int64   `json:"epoch" db:"epoch"`       // observation instant, Unix seconds
	Quote   float64 `json:"quote" db:"quote"`       // observed price
	Symbol  string  `json:"symbol" db:"symbol"`     // instrument identifier
	PipSize int     `json:"pip_size" db:"pip_size"` // display precision reported by the source
}

// ValidationError represents a model validation error with field context.
type ValidationError struct {
	Field   string // Field is the name of the field that failed validation
	Message string // Message describes the validation failure
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate checks that the tick carries a plausible observation.
// Epoch must be positive, the symbol non-empty and the pip size non-negative.
func (t *Tick) Validate() error {
	if t.Epoch <= 0 {
		return &ValidationError{Field: "epoch", Message: "epoch must be a positive Unix timestamp"}
	}
	if t.Symbol == "" {
		return &ValidationError{Field: "symbol", Message: "symbol cannot be empty"}
	}
	if t.PipSize < 0 {
		return &ValidationError{Field: "pip_size", Message: "pip_size cannot be negative"}
	}
	return nil
}

// Time returns the observation instant as a time.Time in UTC.
func (t *Tick) Time() time.Time {
	return time.Unix(t.Epoch, 0).UTC()
}

// FormatQuote renders the quote at the instrument's pip precision,
// e.g. 1234.5 with pip size 3 renders as "1234.500".
func (t *Tick) FormatQuote() string {
	return decimal.NewFromFloat(t.Quote).StringFixed(int32(t.PipSize))
}

// String returns a human-readable representation of the tick.
func (t *Tick) String() string {
	return fmt.Sprintf("%s@%s=%s", t.Symbol, t.Time().Format(time.RFC3339), t.FormatQuote())
}
