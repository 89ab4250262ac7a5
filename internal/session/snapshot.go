// Package session persists the working queue so a restart or crash does not
// lose the day's orders.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"orderdesk/internal"
	"orderdesk/internal/util"
)

const CurrentVersion = 1

var ErrUnsupportedVersion = errors.New("session snapshot has an unsupported version")

type ViewState struct {
	ShowQueue   bool `json:"show_queue"`
	ShowTinting bool `json:"show_tinting"`
}

// InFlight is an extraction that was started but has not completed. The raw
// text is kept so the operator can retry without supplying the document again.
type InFlight struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Filename  string    `json:"filename"`
	StartedAt time.Time `json:"started_at"`
}

func NewInFlight(text, filename string, now time.Time) *InFlight {
	return &InFlight{ID: uuid.New(), Text: text, Filename: filename, StartedAt: now}
}

type Snapshot struct {
	Version  int                  `json:"version"`
	SavedAt  time.Time            `json:"saved_at"`
	Queue    []internal.QueueItem `json:"queue"`
	View     ViewState            `json:"view"`
	Exported bool                 `json:"exported"`
	InFlight *InFlight            `json:"in_flight,omitempty"`
}

// Store is one persistence backend. Load returns nil, nil when nothing has
// been saved.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
	Clear(ctx context.Context) error
}

// DayKeyFor is the day a restored queue belongs to. It comes from the save
// time, not from today, so yesterday's session is restored intact and only
// the next append rolls it over.
func DayKeyFor(snap Snapshot, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return util.DayKey(snap.SavedAt.In(loc))
}

// QueueState rebuilds the queue state held by the snapshot.
func (s Snapshot) QueueState(loc *time.Location) internal.QueueState {
	items := s.Queue
	if items == nil {
		items = []internal.QueueItem{}
	}
	return internal.QueueState{DayKey: DayKeyFor(s, loc), Items: items}
}

func checkVersion(snap *Snapshot) error {
	if snap.Version < 1 || snap.Version > CurrentVersion {
		return errors.Wrapf(ErrUnsupportedVersion, "version %d", snap.Version)
	}
	return nil
}
