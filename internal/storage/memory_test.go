package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-tick-collector/internal/models"
)

func sampleTicks() []models.Tick {
	return []models.Tick{
		{Epoch: 1704067200, Quote: 6241.73, Symbol: "R_50", PipSize: 2},
		{Epoch: 1704067202, Quote: 6241.91, Symbol: "R_50", PipSize: 2},
		{Epoch: 1704067204, Quote: 6242.05, Symbol: "R_50", PipSize: 2},
		{Epoch: 1704067200, Quote: 101.5, Symbol: "R_10", PipSize: 3},
	}
}

func TestMemoryInsertDeduplicates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Initialize(ctx))

	inserted, err := store.InsertTicks(ctx, sampleTicks())
	require.NoError(t, err)
	assert.Equal(t, 4, inserted)

	// Same epoch for the same symbol is the same tick; same epoch for a
	// different symbol is not.
	inserted, err = store.InsertTicks(ctx, []models.Tick{
		{Epoch: 1704067200, Quote: 9999.0, Symbol: "R_50", PipSize: 2},
		{Epoch: 1704067200, Quote: 55.5, Symbol: "R_100", PipSize: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 5, store.TickCount(""))

	// The first write wins; duplicates never update.
	ticks := store.Ticks("R_50")
	require.Len(t, ticks, 3)
	assert.Equal(t, 6241.73, ticks[0].Quote)
}

func TestMemoryInsertRejectsInvalidTick(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.InsertTicks(context.Background(), []models.Tick{
		{Epoch: 0, Quote: 1.0, Symbol: "R_50"},
	})
	require.Error(t, err)
	var storageErr *StorageError
	assert.ErrorAs(t, err, &storageErr)
}

func TestMemorySummarizeExisting(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Empty store: nil summary, no error.
	summaries, err := store.SummarizeExisting(ctx)
	require.NoError(t, err)
	assert.Nil(t, summaries)

	_, err = store.InsertTicks(ctx, sampleTicks())
	require.NoError(t, err)

	summaries, err = store.SummarizeExisting(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Sorted by symbol.
	assert.Equal(t, "R_10", summaries[0].Symbol)
	assert.Equal(t, int64(1), summaries[0].Count)

	r50 := summaries[1]
	assert.Equal(t, "R_50", r50.Symbol)
	assert.Equal(t, int64(3), r50.Count)
	assert.Equal(t, time.Unix(1704067200, 0).UTC(), r50.Oldest)
	assert.Equal(t, time.Unix(1704067204, 0).UTC(), r50.Newest)
}

func TestMemoryMetadataOverwrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	win := &models.Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC),
		Label: "2024-01-01_to_2024-01-08",
	}

	first := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.WriteMetadata(ctx, win, first))
	second := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.WriteMetadata(ctx, win, second))

	meta := store.Metadata()
	assert.Equal(t, second.Format(time.RFC3339), meta[MetaKeyFetchedAt])
	assert.Equal(t, win.Label, meta[MetaKeyLabel])
}
