package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/johnayoung/go-tick-collector/internal/errors"
	"github.com/johnayoung/go-tick-collector/internal/models"
	"github.com/johnayoung/go-tick-collector/internal/source"
	"github.com/johnayoung/go-tick-collector/internal/storage"
)

// fakeSession wraps fakeSource with the session lifecycle.
type fakeSession struct {
	*fakeSource
	connectErr error
	connected  bool
	closed     bool
}

func (f *fakeSession) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSession) FetchHistory(ctx context.Context, req source.HistoryRequest) (*source.HistoryPage, error) {
	if !f.connected {
		return nil, apperrors.Newf(apperrors.KindTransport, "ticks_history", "not connected")
	}
	return f.fakeSource.FetchHistory(ctx, req)
}

func testInstruments() []models.Instrument {
	return []models.Instrument{
		{Symbol: "R_10", DisplayName: "Volatility 10 Index"},
		{Symbol: "R_50", DisplayName: "Volatility 50 Index"},
		{Symbol: "R_100", DisplayName: "Volatility 100 Index"},
	}
}

func seededSession(from, to, step int64) *fakeSession {
	src := newFakeSource()
	for _, inst := range testInstruments() {
		src.addHistory(inst.Symbol, from, to, step)
	}
	return &fakeSession{fakeSource: src}
}

func TestRunCollectsAllInstruments(t *testing.T) {
	session := seededSession(1000, 2000, 10)
	store := storage.NewMemoryStore()
	runner := NewRunner(session, store, testInstruments(), 50, 0, nil)

	summary, err := runner.Run(context.Background(), window(t, 1000, 2000))
	require.NoError(t, err)

	assert.Len(t, summary.Instruments, 3)
	assert.Empty(t, summary.Failed())
	assert.Equal(t, 3*101, summary.Collected)
	assert.Equal(t, 3*101, summary.Inserted)
	assert.Equal(t, 101, store.TickCount("R_50"))
	assert.True(t, session.closed)
}

func TestRunIdempotence(t *testing.T) {
	win := window(t, 1000, 2000)
	store := storage.NewMemoryStore()

	first, err := NewRunner(seededSession(1000, 2000, 10), store, testInstruments(), 50, 0, nil).
		Run(context.Background(), win)
	require.NoError(t, err)
	require.Equal(t, 3*101, first.Inserted)

	countAfterFirst := store.TickCount("")

	second, err := NewRunner(seededSession(1000, 2000, 10), store, testInstruments(), 50, 0, nil).
		Run(context.Background(), win)
	require.NoError(t, err)

	assert.Equal(t, 3*101, second.Collected)
	assert.Equal(t, 0, second.Inserted, "re-running the identical window must insert nothing")
	assert.Equal(t, countAfterFirst, store.TickCount(""))
	for _, res := range second.Instruments {
		assert.Equal(t, res.Collected, res.Duplicates)
	}
}

func TestRunPartialFailureIsolation(t *testing.T) {
	session := seededSession(1000, 2000, 10)
	session.failSymbols["R_50"] = true
	store := storage.NewMemoryStore()

	summary, err := NewRunner(session, store, testInstruments(), 50, 0, nil).
		Run(context.Background(), window(t, 1000, 2000))
	require.NoError(t, err, "a per-instrument failure must not abort the run")

	assert.Equal(t, []string{"R_50"}, summary.Failed())
	assert.Equal(t, 101, store.TickCount("R_10"))
	assert.Equal(t, 0, store.TickCount("R_50"))
	assert.Equal(t, 101, store.TickCount("R_100"))
	assert.True(t, session.closed)
}

func TestRunMidInstrumentFailureKeepsPartialData(t *testing.T) {
	session := seededSession(1000, 2000, 10)
	session.failAfter["R_50"] = 1
	store := storage.NewMemoryStore()

	summary, err := NewRunner(session, store, testInstruments(), 50, 0, nil).
		Run(context.Background(), window(t, 1000, 2000))
	require.NoError(t, err)

	assert.Equal(t, []string{"R_50"}, summary.Failed())
	// One page of fifty samples landed before the failure and is kept.
	assert.Equal(t, 50, store.TickCount("R_50"))
	assert.Equal(t, 101, store.TickCount("R_10"))
}

func TestRunAuthFailureIsFatal(t *testing.T) {
	session := seededSession(1000, 2000, 10)
	session.connectErr = apperrors.Newf(apperrors.KindAuthentication, "authorize", "bad token")
	store := storage.NewMemoryStore()

	_, err := NewRunner(session, store, testInstruments(), 50, 0, nil).
		Run(context.Background(), window(t, 1000, 2000))

	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
	assert.True(t, apperrors.IsFatal(err))
	assert.True(t, session.closed, "transport must be released on early abort")
	assert.Empty(t, store.Metadata(), "no store writes before a session exists")
}

func TestRunWritesMetadata(t *testing.T) {
	session := seededSession(1000, 2000, 10)
	store := storage.NewMemoryStore()
	win := window(t, 1000, 2000)

	_, err := NewRunner(session, store, testInstruments(), 50, 0, nil).
		Run(context.Background(), win)
	require.NoError(t, err)

	meta := store.Metadata()
	assert.Equal(t, win.Start.Format(time.RFC3339), meta[storage.MetaKeyStartTime])
	assert.Equal(t, win.End.Format(time.RFC3339), meta[storage.MetaKeyEndTime])
	assert.Equal(t, win.Label, meta[storage.MetaKeyLabel])
	assert.NotEmpty(t, meta[storage.MetaKeyFetchedAt])
}

func TestRunMetadataOverwrittenOnRerun(t *testing.T) {
	store := storage.NewMemoryStore()

	_, err := NewRunner(seededSession(1000, 2000, 10), store, testInstruments(), 50, 0, nil).
		Run(context.Background(), window(t, 1000, 2000))
	require.NoError(t, err)
	firstFetchedAt := store.Metadata()[storage.MetaKeyFetchedAt]

	time.Sleep(1100 * time.Millisecond) // RFC3339 second resolution

	_, err = NewRunner(seededSession(1000, 2000, 10), store, testInstruments(), 50, 0, nil).
		Run(context.Background(), window(t, 1000, 2000))
	require.NoError(t, err)

	assert.NotEqual(t, firstFetchedAt, store.Metadata()[storage.MetaKeyFetchedAt])
}

func TestRunEmptyWindowIsNotAnError(t *testing.T) {
	// No instrument has any sample inside the window.
	session := seededSession(5000, 6000, 10)
	store := storage.NewMemoryStore()

	summary, err := NewRunner(session, store, testInstruments(), 50, 0, nil).
		Run(context.Background(), window(t, 1000, 2000))
	require.NoError(t, err)

	assert.Empty(t, summary.Failed())
	assert.Equal(t, 0, summary.Collected)
	assert.Equal(t, 0, store.TickCount(""))
}

func TestRunReportsExistingCoverage(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.InsertTicks(context.Background(), []models.Tick{
		{Epoch: 1500, Quote: 1.23, Symbol: "R_50", PipSize: 2},
	})
	require.NoError(t, err)

	summaries, err := store.SummarizeExisting(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "R_50", summaries[0].Symbol)

	// The advisory check never blocks a run over an already-populated store.
	session := seededSession(1000, 2000, 10)
	_, err = NewRunner(session, store, testInstruments(), 50, 0, nil).
		Run(context.Background(), window(t, 1000, 2000))
	assert.NoError(t, err)
}
