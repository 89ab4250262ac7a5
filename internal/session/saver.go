package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultDebounce = 500 * time.Millisecond

// Saver coalesces rapid snapshots into one write after a quiet period.
// Persistence is advisory: every failure is logged and none is returned.
type Saver struct {
	store  Store
	clock  clockwork.Clock
	delay  time.Duration
	logger zerolog.Logger

	// writeMu is taken before mu so writes land in the order they were taken.
	writeMu sync.Mutex
	mu      sync.Mutex
	pending *Snapshot
	timer   clockwork.Timer
}

func NewSaver(store Store, clock clockwork.Clock, delay time.Duration) *Saver {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Saver{
		store:  store,
		clock:  clock,
		delay:  delay,
		logger: log.With().Str("component", "session").Logger(),
	}
}

// Schedule replaces any pending snapshot and restarts the quiet period.
func (s *Saver) Schedule(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = &snap
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.delay, func() {
		s.Flush(context.Background())
	})
}

// Flush writes the pending snapshot, if any, immediately.
func (s *Saver) Flush(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap := s.takePending()
	if snap == nil {
		return
	}
	s.write(ctx, *snap)
}

// SaveNow drops anything pending and writes snap.
func (s *Saver) SaveNow(ctx context.Context, snap Snapshot) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.takePending()
	s.write(ctx, snap)
}

// Clear drops anything pending and wipes the stored session.
func (s *Saver) Clear(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.takePending()
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("session clear failed")
	}
}

// Load returns nil when nothing usable is stored, including snapshots written
// by a newer version.
func (s *Saver) Load(ctx context.Context) *Snapshot {
	snap, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrUnsupportedVersion) {
			s.logger.Warn().Err(err).Msg("ignoring saved session")
		} else {
			s.logger.Warn().Err(err).Msg("session load failed")
		}
		return nil
	}
	return snap
}

func (s *Saver) takePending() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return snap
}

func (s *Saver) write(ctx context.Context, snap Snapshot) {
	snap.Version = CurrentVersion
	if snap.SavedAt.IsZero() {
		snap.SavedAt = s.clock.Now()
	}
	if err := s.store.Save(ctx, snap); err != nil {
		s.logger.Warn().Err(err).Int("items", len(snap.Queue)).Msg("session save failed")
		return
	}
	s.logger.Debug().Int("items", len(snap.Queue)).Msg("session saved")
}
