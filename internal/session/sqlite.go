package session

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"orderdesk/internal/storage"
)

// SQLiteStore keeps the session in structured tables: one row per queue item
// and one per line.
type SQLiteStore struct {
	db *storage.DB
}

func NewSQLiteStore(db *storage.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	view, err := json.Marshal(snap.View)
	if err != nil {
		return errors.Wrap(err, "encode view state")
	}
	rec := storage.SessionRecord{
		Version:  snap.Version,
		SavedAt:  snap.SavedAt,
		ViewJSON: string(view),
		Exported: snap.Exported,
		Items:    snap.Queue,
	}
	if snap.InFlight != nil {
		raw, err := json.Marshal(snap.InFlight)
		if err != nil {
			return errors.Wrap(err, "encode in-flight extraction")
		}
		v := string(raw)
		rec.InFlightJSON = &v
	}
	return errors.Wrap(s.db.SaveSession(ctx, rec), "save session to sqlite")
}

func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	rec, err := s.db.LoadSession(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load session from sqlite")
	}
	if rec == nil {
		return nil, nil
	}

	snap := &Snapshot{
		Version:  rec.Version,
		SavedAt:  rec.SavedAt,
		Exported: rec.Exported,
		Queue:    rec.Items,
	}
	if err := checkVersion(snap); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rec.ViewJSON), &snap.View); err != nil {
		return nil, errors.Wrap(err, "decode view state")
	}
	if rec.InFlightJSON != nil {
		snap.InFlight = &InFlight{}
		if err := json.Unmarshal([]byte(*rec.InFlightJSON), snap.InFlight); err != nil {
			return nil, errors.Wrap(err, "decode in-flight extraction")
		}
	}
	return snap, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	return errors.Wrap(s.db.ClearSession(ctx), "clear sqlite session")
}
