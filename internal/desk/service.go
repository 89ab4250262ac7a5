// Package desk is the operator's desk: it owns the queue and runs every flow
// that touches it, from extraction through export.
package desk

import (
	"context"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"orderdesk/internal"
	"orderdesk/internal/queue"
	"orderdesk/internal/remote"
	"orderdesk/internal/session"
)

type Extractor interface {
	Extract(ctx context.Context, rawText string) (internal.ProductionOrder, error)
}

type Syncer interface {
	Sync(ctx context.Context, payload any) (remote.SyncResponse, error)
	Rollback(ctx context.Context) (remote.SyncResponse, error)
}

type ExportHistory interface {
	InsertExport(ctx context.Context, rec internal.ExportRecord) error
	ListExports(ctx context.Context, limit int) ([]internal.ExportRecord, error)
}

type Options struct {
	Clock     clockwork.Clock
	Saver     *session.Saver
	Extractor Extractor
	Templates remote.TemplateSource
	Syncer    Syncer
	History   ExportHistory

	OutputDir       string
	ExtractionSheet string
	TintingSheet    string
}

// Service serializes every queue mutation behind one mutex. Network calls
// (extraction, template fetch, sync) run outside the lock.
type Service struct {
	opts   Options
	clock  clockwork.Clock
	logger zerolog.Logger

	mu         sync.Mutex
	queue      *queue.Queue
	view       session.ViewState
	inFlight   *session.InFlight
	extracting bool

	exportSem *semaphore.Weighted
}

type SubmitOutcome struct {
	Order  internal.ProductionOrder `json:"order"`
	Item   internal.QueueItem       `json:"item"`
	Result queue.SubmitResult       `json:"result"`
}

func New(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ExtractionSheet == "" {
		opts.ExtractionSheet = "Extraction"
	}
	if opts.TintingSheet == "" {
		opts.TintingSheet = "Tinting"
	}
	return &Service{
		opts:      opts,
		clock:     opts.Clock,
		logger:    log.With().Str("component", "desk").Logger(),
		queue:     queue.New(opts.Clock),
		view:      session.ViewState{ShowQueue: true},
		exportSem: semaphore.NewWeighted(1),
	}
}

// Restore loads the saved session, if any. It reports whether one was found.
func (s *Service) Restore(ctx context.Context) bool {
	if s.opts.Saver == nil {
		return false
	}
	snap := s.opts.Saver.Load(ctx)
	if snap == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Restore(snap.QueueState(s.clock.Now().Location()), snap.Exported)
	s.view = snap.View
	s.inFlight = snap.InFlight

	s.logger.Info().
		Int("items", len(snap.Queue)).
		Str("day", session.DayKeyFor(*snap, s.clock.Now().Location())).
		Bool("in_flight", snap.InFlight != nil).
		Msg("session restored")
	return true
}

// Submit extracts an order from rawText and offers it to the queue. The raw
// text is persisted before the model is called so an interrupted extraction
// can be retried. When the order duplicates a queued one the outcome carries
// the pending duplicate and nothing is appended.
func (s *Service) Submit(ctx context.Context, rawText, filename string) (SubmitOutcome, error) {
	return s.submit(ctx, rawText, filename, false)
}

// SubmitAuto is Submit for unattended intake. A duplicate is reported in the
// outcome and dropped; the operator's pending duplicate is never touched.
func (s *Service) SubmitAuto(ctx context.Context, rawText, filename string) (SubmitOutcome, error) {
	return s.submit(ctx, rawText, filename, true)
}

func (s *Service) submit(ctx context.Context, rawText, filename string, auto bool) (SubmitOutcome, error) {
	if strings.TrimSpace(rawText) == "" {
		return SubmitOutcome{}, ErrEmptyInput
	}

	s.mu.Lock()
	if s.extracting {
		s.mu.Unlock()
		return SubmitOutcome{}, ErrExtractionInProgress
	}
	s.extracting = true
	s.inFlight = session.NewInFlight(rawText, filename, s.clock.Now())
	s.persistLocked()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.extracting = false
		s.mu.Unlock()
	}()

	s.Flush(ctx)

	order, err := s.opts.Extractor.Extract(ctx, rawText)
	if err != nil {
		s.logger.Warn().Err(err).Str("filename", filename).Msg("extraction failed")
		return SubmitOutcome{}, errors.Wrap(err, "extract order")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := queue.BuildItem(order, filename, s.clock.Now())
	var res queue.SubmitResult
	if auto {
		res = s.queue.SubmitAuto(item)
	} else {
		res = s.queue.Submit(item)
	}
	s.inFlight = nil
	s.persistLocked()

	ev := s.logger.Info().Str("order_id", item.OrderID).Int("lines", len(item.Items))
	switch {
	case res.Pending != nil && auto:
		ev.Str("duplicate_of", res.Pending.Existing.OrderID).Msg("duplicate order dropped")
	case res.Pending != nil:
		ev.Str("duplicate_of", res.Pending.Existing.OrderID).Msg("order held as possible duplicate")
	default:
		ev.Bool("day_reset", res.Reset).Msg("order queued")
	}
	return SubmitOutcome{Order: order, Item: item, Result: res}, nil
}

// RetryInFlight re-runs an extraction that was interrupted.
func (s *Service) RetryInFlight(ctx context.Context) (SubmitOutcome, error) {
	return s.retryInFlight(ctx, false)
}

// RetryInFlightAuto retries like SubmitAuto: a duplicate is dropped, not held.
func (s *Service) RetryInFlightAuto(ctx context.Context) (SubmitOutcome, error) {
	return s.retryInFlight(ctx, true)
}

func (s *Service) retryInFlight(ctx context.Context, auto bool) (SubmitOutcome, error) {
	s.mu.Lock()
	if s.inFlight == nil {
		s.mu.Unlock()
		return SubmitOutcome{}, ErrNoInFlight
	}
	text, filename := s.inFlight.Text, s.inFlight.Filename
	s.mu.Unlock()

	return s.submit(ctx, text, filename, auto)
}

func (s *Service) InFlight() *session.InFlight {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight == nil {
		return nil
	}
	cp := *s.inFlight
	return &cp
}

func (s *Service) DiscardInFlight() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight == nil {
		return ErrNoInFlight
	}
	s.inFlight = nil
	s.persistLocked()
	return nil
}

func (s *Service) Pending() *queue.PendingDuplicate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Pending()
}

// ConfirmPending appends the held duplicate ("add anyway").
func (s *Service) ConfirmPending() (internal.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.queue.ConfirmPending()
	if err != nil {
		return internal.QueueItem{}, err
	}
	s.persistLocked()
	s.logger.Info().Str("order_id", item.OrderID).Msg("duplicate order added")
	return item, nil
}

func (s *Service) CancelPending() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.CancelPending()
}

func (s *Service) Remove(orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := s.queue.Remove(orderID)
	s.persistLocked()
	if !found {
		return ErrOrderNotFound
	}
	s.logger.Info().Str("order_id", orderID).Msg("order removed")
	return nil
}

// Clear empties the queue and wipes the saved session. The lock is held
// through the wipe so a concurrent Submit persists after it, not before.
func (s *Service) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue.Clear()
	if s.opts.Saver == nil {
		return
	}
	s.opts.Saver.Clear(ctx)
	if s.inFlight != nil {
		s.persistLocked()
		s.opts.Saver.Flush(ctx)
	}
	s.logger.Info().Msg("queue cleared")
}

func (s *Service) Reopen(orderID string) (internal.ProductionOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.queue.Reopen(orderID)
	if !ok {
		return internal.ProductionOrder{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) Get(orderID string) (internal.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.queue.Get(orderID)
	if !ok {
		return internal.QueueItem{}, ErrOrderNotFound
	}
	return item, nil
}

func (s *Service) State() internal.QueueState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.State()
}

func (s *Service) Exported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Exported()
}

func (s *Service) TintingList() []internal.TintingListItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.TintingList()
}

func (s *Service) View() session.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Service) SetView(v session.ViewState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
	s.persistLocked()
}

// Flush writes any pending session snapshot now.
func (s *Service) Flush(ctx context.Context) {
	if s.opts.Saver != nil {
		s.opts.Saver.Flush(ctx)
	}
}

func (s *Service) snapshotLocked() session.Snapshot {
	state := s.queue.State()
	var inFlight *session.InFlight
	if s.inFlight != nil {
		cp := *s.inFlight
		inFlight = &cp
	}
	return session.Snapshot{
		Version:  session.CurrentVersion,
		Queue:    state.Items,
		View:     s.view,
		Exported: s.queue.Exported(),
		InFlight: inFlight,
	}
}

func (s *Service) persistLocked() {
	if s.opts.Saver != nil {
		s.opts.Saver.Schedule(s.snapshotLocked())
	}
}
