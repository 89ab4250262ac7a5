package queue

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal"
)

func sampleOrder(customer, number, date string, descriptions ...string) internal.ProductionOrder {
	rows := make([]internal.Row, 0, len(descriptions))
	for i, d := range descriptions {
		rows = append(rows, internal.Row{
			ID:                           string(rune('a' + i)),
			ProductDescriptionRaw:        d,
			ProductDescriptionProduction: d,
			Quantity:                     "1",
			Tinting:                      internal.TintYes,
		})
	}
	return internal.ProductionOrder{CustomerName: customer, OrderNumber: number, OrderDate: date, Rows: rows}
}

func TestCreateDedupeKeyIgnoresFormatting(t *testing.T) {
	a := CreateDedupeKey("Acme Paints", "PO-1001", "05/01/2024")
	b := CreateDedupeKey("  ACME\n paints ", "po-1001 ", " 05/01/2024")
	assert.Equal(t, a, b)
	assert.Equal(t, "acme paints|po-1001|05/01/2024", a)

	assert.NotEqual(t, a, CreateDedupeKey("Acme Paints", "PO-1002", "05/01/2024"))
}

func TestBuildItemLineIDs(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	item := BuildItem(sampleOrder("Acme", "1", "01/01/2024", "Red", "Blue", "Green"), "po.pdf", now)

	require.Len(t, item.Items, 3)
	assert.Regexp(t, `^PO-20240101-093000-[0-9a-z]{4}$`, item.OrderID)
	for i, line := range item.Items {
		assert.Equal(t, item.OrderID+"-L"+string(rune('1'+i)), line.LineID)
	}
	assert.Equal(t, "po.pdf", item.SourceFilename)
	assert.Equal(t, CreateDedupeKey("Acme", "1", "01/01/2024"), item.DedupeKey)
}

func TestSubmitDuplicateGoesPending(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	q := New(clock)

	first := BuildItem(sampleOrder("Acme", "PO-1", "01/01/2024", "Red"), "a.pdf", clock.Now())
	res := q.Submit(first)
	require.True(t, res.Appended)
	q.MarkExported()

	second := BuildItem(sampleOrder("ACME ", "po-1", "01/01/2024", "Blue", "Green"), "b.pdf", clock.Now())
	res = q.Submit(second)
	assert.False(t, res.Appended)
	require.NotNil(t, res.Pending)
	assert.Equal(t, first.OrderID, res.Pending.Existing.OrderID)
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Exported(), "a parked duplicate does not touch the queue")

	confirmed, err := q.ConfirmPending()
	require.NoError(t, err)
	assert.Equal(t, second.OrderID, confirmed.OrderID)
	assert.Equal(t, 2, q.Len())
	assert.Nil(t, q.Pending())
	assert.False(t, q.Exported())

	_, err = q.ConfirmPending()
	assert.ErrorIs(t, err, ErrNoPending)
}

func TestSubmitDuplicateTwiceEachNeedsConfirmation(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	q := New(clock)
	q.Submit(BuildItem(sampleOrder("Acme", "1", "01/01/2024", "Red"), "", clock.Now()))

	dup1 := BuildItem(sampleOrder("Acme", "1", "01/01/2024", "Red"), "", clock.Now())
	require.NotNil(t, q.Submit(dup1).Pending)
	require.NoError(t, q.CancelPending())

	dup2 := BuildItem(sampleOrder("Acme", "1", "01/01/2024", "Red"), "", clock.Now())
	require.NotNil(t, q.Submit(dup2).Pending)
	assert.Equal(t, 1, q.Len())
	assert.ErrorIs(t, (&Queue{}).CancelPending(), ErrNoPending)
}

func TestAppendDayRollover(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC))
	q := New(clock)
	q.Submit(BuildItem(sampleOrder("Acme", "1", "01/01/2024", "Red"), "", clock.Now()))
	q.Submit(BuildItem(sampleOrder("Beta", "2", "01/01/2024", "Blue"), "", clock.Now()))
	require.Equal(t, "2024-01-01", q.State().DayKey)

	clock.Advance(2 * time.Hour)

	removed := q.Remove("missing")
	assert.False(t, removed)
	assert.Equal(t, 2, q.Len(), "remove does not roll the day over")
	assert.Equal(t, "2024-01-01", q.State().DayKey)

	next := BuildItem(sampleOrder("Gamma", "3", "02/01/2024", "Green"), "", clock.Now())
	res := q.Submit(next)
	assert.True(t, res.Reset)

	state := q.State()
	assert.Equal(t, "2024-01-02", state.DayKey)
	require.Len(t, state.Items, 1)
	assert.Equal(t, next.OrderID, state.Items[0].OrderID)
}

func TestClearKeepsDayKey(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	q := New(clock)
	q.Submit(BuildItem(sampleOrder("Acme", "1", "01/01/2024", "Red"), "", clock.Now()))
	q.MarkExported()

	clock.Advance(48 * time.Hour)
	q.Clear()

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, "2024-01-01", q.State().DayKey)
	assert.False(t, q.Exported())
}

func TestRemoveAndRevision(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	q := New(clock)
	a := BuildItem(sampleOrder("Acme", "1", "01/01/2024", "Red"), "", clock.Now())
	b := BuildItem(sampleOrder("Beta", "2", "01/01/2024", "Blue"), "", clock.Now())
	q.Submit(a)
	q.Submit(b)
	q.MarkExported()

	rev := q.Revision()
	assert.True(t, q.Remove(a.OrderID))
	assert.Greater(t, q.Revision(), rev)
	assert.False(t, q.Exported())

	state := q.State()
	require.Len(t, state.Items, 1)
	assert.Equal(t, b.OrderID, state.Items[0].OrderID)
}

func TestReopenHasNoWarnings(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	q := New(clock)
	order := sampleOrder("Acme", "1", "01/01/2024", "Red", "Blue")
	order.Warnings = []string{"Unrecognised order date"}
	item := BuildItem(order, "", clock.Now())
	q.Submit(item)

	reopened, ok := q.Reopen(item.OrderID)
	require.True(t, ok)
	assert.NotNil(t, reopened.Warnings)
	assert.Empty(t, reopened.Warnings)
	assert.Equal(t, "Acme", reopened.CustomerName)
	require.Len(t, reopened.Rows, 2)
	assert.Equal(t, "Blue", reopened.Rows[1].ProductDescriptionProduction)
	assert.Equal(t, 1, q.Len())

	_, ok = q.Reopen("nope")
	assert.False(t, ok)
}

func TestTintingList(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	q := New(clock)
	q.Submit(BuildItem(sampleOrder("Acme", "1", "01/01/2024", "Signal Red Enamel", "Aluminium Primer"), "", clock.Now()))
	q.Submit(BuildItem(sampleOrder("Beta", "2", "01/01/2024", "Gloss Enamel", "Navy Blue Satin"), "", clock.Now()))

	list := q.TintingList()
	require.Len(t, list, 2)
	assert.Equal(t, "Signal Red Enamel", list[0].ProductDescription)
	assert.Equal(t, "Acme", list[0].CustomerName)
	assert.Equal(t, "Navy Blue Satin", list[1].ProductDescription)
}

func TestRestoreKeepsStaleDay(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	q := New(clock)
	saved := internal.QueueState{
		DayKey: "2024-01-01",
		Items: []internal.QueueItem{{
			OrderID:   "PO-20240101-090000-abcd",
			CreatedAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
			Items:     []internal.QueueLine{{LineID: "PO-20240101-090000-abcd-L1"}},
		}},
	}
	q.Restore(saved, true)

	assert.Equal(t, "2024-01-01", q.State().DayKey)
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Exported())
}

func TestStateIsACopy(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	q := New(clock)
	q.Submit(BuildItem(sampleOrder("Acme", "1", "01/01/2024", "Red"), "", clock.Now()))

	state := q.State()
	state.Items[0].Items[0].Quantity = "999"
	state.Items = nil

	again := q.State()
	require.Len(t, again.Items, 1)
	assert.Equal(t, "1", again.Items[0].Items[0].Quantity)
}

func TestPendingSurvivesOtherSubmits(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	q := New(clock)

	first := BuildItem(sampleOrder("Acme", "PO-1", "01/01/2024", "Red"), "a.pdf", clock.Now())
	require.True(t, q.Submit(first).Appended)
	held := BuildItem(sampleOrder("Acme", "PO-1", "01/01/2024", "Blue"), "b.pdf", clock.Now())
	require.NotNil(t, q.Submit(held).Pending)

	other := BuildItem(sampleOrder("Bolt Ltd", "PO-9", "01/01/2024", "Grey"), "c.pdf", clock.Now())
	assert.True(t, q.Submit(other).Appended)
	require.NotNil(t, q.Pending())
	assert.Equal(t, held.OrderID, q.Pending().Item.OrderID)

	auto := BuildItem(sampleOrder("Acme", "PO-1", "01/01/2024", "Green"), "mail.txt", clock.Now())
	res := q.SubmitAuto(auto)
	assert.False(t, res.Appended)
	require.NotNil(t, res.Pending)
	assert.Equal(t, first.OrderID, res.Pending.Existing.OrderID)
	assert.Equal(t, held.OrderID, q.Pending().Item.OrderID)

	confirmed, err := q.ConfirmPending()
	require.NoError(t, err)
	assert.Equal(t, held.OrderID, confirmed.OrderID)
	assert.Equal(t, 3, q.Len())
}
