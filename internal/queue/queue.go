// Package queue holds the day-scoped list of orders waiting for export.
//
// A Queue is not safe for concurrent use. Callers serialize access; the desk
// service does so with its own mutex.
package queue

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"orderdesk/internal"
	"orderdesk/internal/tinting"
	"orderdesk/internal/util"
)

var ErrNoPending = errors.New("no order is waiting for duplicate confirmation")

type Queue struct {
	clock    clockwork.Clock
	state    internal.QueueState
	pending  *PendingDuplicate
	exported bool
	revision uint64
}

// PendingDuplicate is an order held back because its dedupe key matches an
// order already in the queue. It is appended only on ConfirmPending.
type PendingDuplicate struct {
	Item     internal.QueueItem `json:"item"`
	Existing internal.QueueItem `json:"existing"`
}

type SubmitResult struct {
	Appended bool              `json:"appended"`
	Pending  *PendingDuplicate `json:"pending,omitempty"`
	Reset    bool              `json:"reset"`
}

func New(clock clockwork.Clock) *Queue {
	return &Queue{
		clock: clock,
		state: internal.QueueState{DayKey: util.DayKey(clock.Now()), Items: []internal.QueueItem{}},
	}
}

// BuildItem turns an extraction result into a queue item with a fresh order
// id and stable line ids.
func BuildItem(order internal.ProductionOrder, sourceFilename string, now time.Time) internal.QueueItem {
	orderID := util.GenerateOrderID(now)
	lines := make([]internal.QueueLine, 0, len(order.Rows))
	for i, row := range order.Rows {
		lines = append(lines, internal.QueueLine{
			LineID:                       fmt.Sprintf("%s-L%d", orderID, i+1),
			RowID:                        row.ID,
			ProductDescriptionRaw:        row.ProductDescriptionRaw,
			ProductDescriptionProduction: row.ProductDescriptionProduction,
			Quantity:                     row.Quantity,
			Tinting:                      row.Tinting,
		})
	}
	return internal.QueueItem{
		OrderID:        orderID,
		CreatedAt:      now,
		SourceFilename: sourceFilename,
		OrderDate:      order.OrderDate,
		CustomerName:   order.CustomerName,
		OrderNumber:    order.OrderNumber,
		DedupeKey:      CreateDedupeKey(order.CustomerName, order.OrderNumber, order.OrderDate),
		Items:          lines,
	}
}

// Submit appends the item unless its dedupe key is already queued, in which
// case the item is parked as pending and the caller must confirm or cancel.
// A duplicate replaces an earlier pending item; a non-duplicate leaves it
// parked.
func (q *Queue) Submit(item internal.QueueItem) SubmitResult {
	res, dup := q.offer(item)
	if dup != nil {
		q.pending = dup
	}
	return res
}

// SubmitAuto is Submit for callers with nobody to answer a duplicate prompt.
// A duplicate is reported in the result but never parked, so the operator's
// pending item is left alone.
func (q *Queue) SubmitAuto(item internal.QueueItem) SubmitResult {
	res, _ := q.offer(item)
	return res
}

func (q *Queue) offer(item internal.QueueItem) (SubmitResult, *PendingDuplicate) {
	if item.DedupeKey == "" {
		item.DedupeKey = CreateDedupeKey(item.CustomerName, item.OrderNumber, item.OrderDate)
	}
	if existing, ok := q.findByKey(item.DedupeKey); ok {
		dup := &PendingDuplicate{Item: item, Existing: existing}
		return SubmitResult{Pending: dup}, dup
	}
	reset := q.Append(item)
	return SubmitResult{Appended: true, Reset: reset}, nil
}

func (q *Queue) Pending() *PendingDuplicate {
	return q.pending
}

// ConfirmPending appends the parked duplicate ("add anyway").
func (q *Queue) ConfirmPending() (internal.QueueItem, error) {
	if q.pending == nil {
		return internal.QueueItem{}, ErrNoPending
	}
	item := q.pending.Item
	q.pending = nil
	q.Append(item)
	return item, nil
}

func (q *Queue) CancelPending() error {
	if q.pending == nil {
		return ErrNoPending
	}
	q.pending = nil
	return nil
}

// Append adds the item at the end. When the item arrived on a different day
// than the queue's day key, the previous day's items are discarded first and
// Append reports true.
func (q *Queue) Append(item internal.QueueItem) bool {
	arrival := item.CreatedAt
	if arrival.IsZero() {
		arrival = q.clock.Now()
	}
	day := util.DayKey(arrival.In(q.clock.Now().Location()))

	reset := false
	if day != q.state.DayKey {
		q.state = internal.QueueState{DayKey: day, Items: []internal.QueueItem{item}}
		reset = true
	} else {
		q.state.Items = append(q.state.Items, item)
	}
	q.touch()
	return reset
}

// Remove drops the order with the given id. It returns false when absent.
func (q *Queue) Remove(orderID string) bool {
	kept := make([]internal.QueueItem, 0, len(q.state.Items))
	found := false
	for _, item := range q.state.Items {
		if item.OrderID == orderID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	q.state.Items = kept
	q.touch()
	return found
}

// Clear empties the queue but keeps its day key.
func (q *Queue) Clear() {
	q.state.Items = []internal.QueueItem{}
	q.touch()
}

// Reopen rebuilds the extraction view of a queued order. Warnings raised at
// extraction time are not stored, so the view always has none.
func (q *Queue) Reopen(orderID string) (internal.ProductionOrder, bool) {
	item, ok := q.Get(orderID)
	if !ok {
		return internal.ProductionOrder{}, false
	}
	rows := make([]internal.Row, 0, len(item.Items))
	for _, line := range item.Items {
		rows = append(rows, internal.Row{
			ID:                           line.RowID,
			ProductDescriptionRaw:        line.ProductDescriptionRaw,
			ProductDescriptionProduction: line.ProductDescriptionProduction,
			Quantity:                     line.Quantity,
			Tinting:                      line.Tinting,
		})
	}
	return internal.ProductionOrder{
		OrderDate:    item.OrderDate,
		CustomerName: item.CustomerName,
		OrderNumber:  item.OrderNumber,
		Rows:         rows,
		Warnings:     []string{},
	}, true
}

func (q *Queue) Get(orderID string) (internal.QueueItem, bool) {
	for _, item := range q.state.Items {
		if item.OrderID == orderID {
			return cloneItem(item), true
		}
	}
	return internal.QueueItem{}, false
}

// TintingList projects every queued line that passes the tinting filter.
func (q *Queue) TintingList() []internal.TintingListItem {
	out := []internal.TintingListItem{}
	for _, item := range q.state.Items {
		for _, line := range tinting.FilterLines(item.Items) {
			out = append(out, internal.TintingListItem{
				OrderID:            item.OrderID,
				LineID:             line.LineID,
				OrderDate:          item.OrderDate,
				CustomerName:       item.CustomerName,
				OrderNumber:        item.OrderNumber,
				ProductDescription: line.Description(),
				Quantity:           line.Quantity,
			})
		}
	}
	return out
}

// State returns a deep copy of the queue state.
func (q *Queue) State() internal.QueueState {
	items := make([]internal.QueueItem, 0, len(q.state.Items))
	for _, item := range q.state.Items {
		items = append(items, cloneItem(item))
	}
	return internal.QueueState{DayKey: q.state.DayKey, Items: items}
}

func (q *Queue) Len() int {
	return len(q.state.Items)
}

// Restore installs a previously saved state as is. No rollover happens here;
// a stale day key is only replaced by the next Append.
func (q *Queue) Restore(state internal.QueueState, exported bool) {
	items := make([]internal.QueueItem, 0, len(state.Items))
	for _, item := range state.Items {
		items = append(items, cloneItem(item))
	}
	dayKey := state.DayKey
	if dayKey == "" {
		dayKey = util.DayKey(q.clock.Now())
	}
	q.state = internal.QueueState{DayKey: dayKey, Items: items}
	q.pending = nil
	q.exported = exported
	q.revision++
}

func (q *Queue) Exported() bool {
	return q.exported
}

func (q *Queue) MarkExported() {
	q.exported = true
}

func (q *Queue) ClearExported() {
	q.exported = false
}

// Revision increases on every mutation of the item list.
func (q *Queue) Revision() uint64 {
	return q.revision
}

func (q *Queue) touch() {
	q.exported = false
	q.revision++
}

func (q *Queue) findByKey(key string) (internal.QueueItem, bool) {
	for _, item := range q.state.Items {
		existingKey := item.DedupeKey
		if existingKey == "" {
			existingKey = CreateDedupeKey(item.CustomerName, item.OrderNumber, item.OrderDate)
		}
		if existingKey == key {
			return item, true
		}
	}
	return internal.QueueItem{}, false
}

func cloneItem(item internal.QueueItem) internal.QueueItem {
	item.Items = append([]internal.QueueLine(nil), item.Items...)
	if item.Items == nil {
		item.Items = []internal.QueueLine{}
	}
	return item
}
