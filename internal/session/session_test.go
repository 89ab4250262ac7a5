package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal"
	"orderdesk/internal/storage"
)

type failingStore struct{}

func (failingStore) Save(context.Context, Snapshot) error { return errors.New("disk disabled") }
func (failingStore) Load(context.Context) (*Snapshot, error) { return nil, errors.New("disk disabled") }
func (failingStore) Clear(context.Context) error { return errors.New("disk disabled") }

type recordingStore struct {
	mu    sync.Mutex
	saves []Snapshot
}

func (r *recordingStore) Save(_ context.Context, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, snap)
	return nil
}

func (r *recordingStore) Load(context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saves) == 0 {
		return nil, nil
	}
	last := r.saves[len(r.saves)-1]
	return &last, nil
}

func (r *recordingStore) Clear(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = nil
	return nil
}

func (r *recordingStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func sampleSnapshot(savedAt time.Time) Snapshot {
	return Snapshot{
		Version: CurrentVersion,
		SavedAt: savedAt,
		Queue: []internal.QueueItem{
			{
				OrderID:      "PO-20240101-090000-aaaa",
				CreatedAt:    savedAt,
				CustomerName: "Acme Paints",
				OrderNumber:  "1001",
				OrderDate:    "01/01/2024",
				DedupeKey:    "acme paints|1001|01/01/2024",
				Items: []internal.QueueLine{
					{LineID: "PO-20240101-090000-aaaa-L1", RowID: "r1", ProductDescriptionProduction: "Signal Red", Quantity: "2", Tinting: internal.TintYes},
					{LineID: "PO-20240101-090000-aaaa-L2", RowID: "r2", ProductDescriptionProduction: "Thinners", Quantity: "TBC", Tinting: internal.TintNo},
				},
			},
			{
				OrderID:      "PO-20240101-091500-bbbb",
				CreatedAt:    savedAt,
				CustomerName: "Beta Coatings",
				DedupeKey:    "beta coatings||",
				Items:        []internal.QueueLine{{LineID: "PO-20240101-091500-bbbb-L1", Quantity: "1", Tinting: internal.TintNo}},
			},
		},
		View:     ViewState{ShowQueue: true},
		Exported: true,
		InFlight: NewInFlight("PURCHASE ORDER 77", "po77.pdf", savedAt),
	}
}

func assertSameQueue(t *testing.T, want, got []internal.QueueItem) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].OrderID, got[i].OrderID)
		assert.True(t, want[i].CreatedAt.Equal(got[i].CreatedAt))
		require.Len(t, got[i].Items, len(want[i].Items))
		for j := range want[i].Items {
			assert.Equal(t, want[i].Items[j], got[i].Items[j])
		}
	}
}

func TestResilientRoundTripWithFailingPrimary(t *testing.T) {
	ctx := context.Background()
	store := &Resilient{Primary: failingStore{}, Fallback: NewFileStore(t.TempDir(), "orderdesk.session")}

	snap := sampleSnapshot(time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assertSameQueue(t, snap.Queue, loaded.Queue)
	assert.True(t, loaded.Exported)
	require.NotNil(t, loaded.InFlight)
	assert.Equal(t, snap.InFlight.ID, loaded.InFlight.ID)
	assert.Equal(t, "po77.pdf", loaded.InFlight.Filename)
}

func TestResilientRoundTripSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "orderdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fallbackDir := t.TempDir()
	store := &Resilient{Primary: NewSQLiteStore(db), Fallback: NewFileStore(fallbackDir, "s")}

	snap := sampleSnapshot(time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, snap))
	assert.FileExists(t, filepath.Join(fallbackDir, "s.json"), "fallback is written even when primary succeeds")

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assertSameQueue(t, snap.Queue, loaded.Queue)
	assert.Equal(t, snap.View, loaded.View)
	assert.Equal(t, snap.InFlight.Text, loaded.InFlight.Text)

	require.NoError(t, store.Clear(ctx))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestResilientLoadFallsBackWhenPrimaryEmpty(t *testing.T) {
	ctx := context.Background()
	fallback := NewFileStore(t.TempDir(), "s")
	snap := sampleSnapshot(time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC))
	require.NoError(t, fallback.Save(ctx, snap))

	store := &Resilient{Primary: &recordingStore{}, Fallback: fallback}
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assertSameQueue(t, snap.Queue, loaded.Queue)
}

func TestResilientSaveFailsOnlyWhenBothFail(t *testing.T) {
	store := &Resilient{Primary: failingStore{}, Fallback: failingStore{}}
	err := store.Save(context.Background(), Snapshot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary")
	assert.Contains(t, err.Error(), "fallback")
}

func TestFileStoreRejectsFutureVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.json"), []byte(`{"version":99,"queue":[]}`), 0o644))

	_, err := NewFileStore(dir, "s").Load(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	saver := NewSaver(NewFileStore(dir, "s"), clockwork.NewFakeClock(), 0)
	assert.Nil(t, saver.Load(context.Background()), "future versions are treated as absent")
}

func TestDayKeyComesFromSaveTime(t *testing.T) {
	snap := sampleSnapshot(time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC))
	assert.Equal(t, "2024-01-01", DayKeyFor(snap, time.UTC))

	state := snap.QueueState(time.UTC)
	assert.Equal(t, "2024-01-01", state.DayKey)
	assert.Len(t, state.Items, 2)
}

func TestSaverDebouncesWrites(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	store := &recordingStore{}
	saver := NewSaver(store, clock, 500*time.Millisecond)

	for i := 1; i <= 3; i++ {
		snap := Snapshot{Queue: make([]internal.QueueItem, i)}
		saver.Schedule(snap)
		clock.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 0, store.count())

	clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)

	last, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, last.Queue, 3)
	assert.Equal(t, CurrentVersion, last.Version)
	assert.False(t, last.SavedAt.IsZero())
}

func TestSaverFlushAndClear(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &recordingStore{}
	saver := NewSaver(store, clock, time.Minute)
	ctx := context.Background()

	saver.Flush(ctx)
	assert.Equal(t, 0, store.count(), "nothing pending")

	saver.Schedule(Snapshot{Exported: true})
	saver.Flush(ctx)
	assert.Equal(t, 1, store.count())

	saver.Schedule(Snapshot{})
	saver.Clear(ctx)
	clock.Advance(2 * time.Minute)
	saver.Flush(ctx)
	assert.Equal(t, 0, store.count(), "clear drops the pending snapshot and wipes the store")
	assert.Nil(t, saver.Load(ctx))
}

func TestSaverSwallowsFailures(t *testing.T) {
	saver := NewSaver(failingStore{}, clockwork.NewFakeClock(), 0)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		saver.SaveNow(ctx, Snapshot{})
		saver.Clear(ctx)
	})
	assert.Nil(t, saver.Load(ctx))
}
