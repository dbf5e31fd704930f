// In-memory tick store for tests and dry runs. Mirrors the SQLite backend's
// dedup semantics without touching the filesystem.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/johnayoung/go-tick-collector/internal/models"
)

type tickKey struct {
	epoch  int64
	symbol string
}

// MemoryStore implements TickStore entirely in memory.
type MemoryStore struct {
	mu          sync.RWMutex
	ticks       map[tickKey]models.Tick
	metadata    map[string]string
	initialized bool
	closed      bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ticks:    make(map[tickKey]models.Tick),
		metadata: make(map[string]string),
	}
}

// Initialize implements TickStore.Initialize.
func (m *MemoryStore) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return nil
}

// WriteMetadata implements TickStore.WriteMetadata.
func (m *MemoryStore) WriteMetadata(ctx context.Context, window *models.Window, fetchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[MetaKeyStartTime] = window.Start.Format(time.RFC3339)
	m.metadata[MetaKeyEndTime] = window.End.Format(time.RFC3339)
	m.metadata[MetaKeyFetchedAt] = fetchedAt.Format(time.RFC3339)
	m.metadata[MetaKeyLabel] = window.Label
	return nil
}

// Metadata returns a copy of the stored run metadata.
func (m *MemoryStore) Metadata() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.metadata))
	for k, v := range m.metadata {
		out[k] = v
	}
	return out
}

// InsertTicks implements TickStore.InsertTicks.
func (m *MemoryStore) InsertTicks(ctx context.Context, ticks []models.Tick) (int, error) {
	for i, tick := range ticks {
		if err := tick.Validate(); err != nil {
			return 0, NewInsertError("ticks", fmt.Errorf("invalid tick at index %d: %w", i, err))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, tick := range ticks {
		key := tickKey{epoch: tick.Epoch, symbol: tick.Symbol}
		if _, exists := m.ticks[key]; exists {
			continue
		}
		m.ticks[key] = tick
		inserted++
	}
	return inserted, nil
}

// SummarizeExisting implements TickStore.SummarizeExisting.
func (m *MemoryStore) SummarizeExisting(ctx context.Context) ([]SymbolSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.ticks) == 0 {
		return nil, nil
	}

	bySymbol := make(map[string]*SymbolSummary)
	for key, tick := range m.ticks {
		s, ok := bySymbol[key.symbol]
		if !ok {
			s = &SymbolSummary{
				Symbol: key.symbol,
				Oldest: tick.Time(),
				Newest: tick.Time(),
			}
			bySymbol[key.symbol] = s
		}
		if tick.Time().Before(s.Oldest) {
			s.Oldest = tick.Time()
		}
		if tick.Time().After(s.Newest) {
			s.Newest = tick.Time()
		}
		s.Count++
	}

	summaries := make([]SymbolSummary, 0, len(bySymbol))
	for _, s := range bySymbol {
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Symbol < summaries[j].Symbol
	})
	return summaries, nil
}

// TickCount returns the number of stored ticks, optionally for one symbol.
func (m *MemoryStore) TickCount(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if symbol == "" {
		return len(m.ticks)
	}
	count := 0
	for key := range m.ticks {
		if key.symbol == symbol {
			count++
		}
	}
	return count
}

// Ticks returns all stored ticks for a symbol, ordered by epoch.
func (m *MemoryStore) Ticks(symbol string) []models.Tick {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Tick
	for key, tick := range m.ticks {
		if key.symbol == symbol {
			out = append(out, tick)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	return out
}

// HealthCheck implements TickStore.HealthCheck.
func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Close implements TickStore.Close.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
