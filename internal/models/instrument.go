package models

// Instrument is one entry of the static instrument catalog: a source symbol
// plus a display name. The set is fixed at build time and not discovered
// from the source.
type Instrument struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"display_name"`
}

// DefaultInstruments returns the synthetic volatility indices the collector
// fetches on every run.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{Symbol: "R_10", DisplayName: "Volatility 10 Index"},
		{Symbol: "R_25", DisplayName: "Volatility 25 Index"},
		{Symbol: "R_50", DisplayName: "Volatility 50 Index"},
		{Symbol: "R_75", DisplayName: "Volatility 75 Index"},
		{Symbol: "R_100", DisplayName: "Volatility 100 Index"},
		{Symbol: "1HZ10V", DisplayName: "Volatility 10 (1s) Index"},
		{Symbol: "1HZ25V", DisplayName: "Volatility 25 (1s) Index"},
		{Symbol: "1HZ50V", DisplayName: "Volatility 50 (1s) Index"},
		{Symbol: "1HZ75V", DisplayName: "Volatility 75 (1s) Index"},
		{Symbol: "1HZ100V", DisplayName: "Volatility 100 (1s) Index"},
	}
}
