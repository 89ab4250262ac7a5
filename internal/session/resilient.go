package session

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// Resilient writes every snapshot to both backends and reads from the
// primary first. A save only fails when both backends fail.
type Resilient struct {
	Primary  Store
	Fallback Store
}

func (r *Resilient) Save(ctx context.Context, snap Snapshot) error {
	primaryErr := r.Primary.Save(ctx, snap)
	fallbackErr := r.Fallback.Save(ctx, snap)

	if primaryErr != nil && fallbackErr != nil {
		return multierr.Combine(
			errors.Wrap(primaryErr, "primary"),
			errors.Wrap(fallbackErr, "fallback"),
		)
	}
	if primaryErr != nil {
		log.Warn().Err(primaryErr).Str("backend", "primary").Msg("session save failed, fallback copy written")
	}
	if fallbackErr != nil {
		log.Warn().Err(fallbackErr).Str("backend", "fallback").Msg("session fallback save failed")
	}
	return nil
}

// Load uses the fallback only when the primary errors or has nothing stored.
func (r *Resilient) Load(ctx context.Context) (*Snapshot, error) {
	snap, primaryErr := r.Primary.Load(ctx)
	if primaryErr == nil && snap != nil {
		return snap, nil
	}
	if primaryErr != nil {
		log.Warn().Err(primaryErr).Str("backend", "primary").Msg("session load failed, trying fallback")
	}

	snap, fallbackErr := r.Fallback.Load(ctx)
	if fallbackErr != nil {
		return nil, multierr.Append(primaryErr, fallbackErr)
	}
	return snap, nil
}

func (r *Resilient) Clear(ctx context.Context) error {
	return multierr.Append(r.Primary.Clear(ctx), r.Fallback.Clear(ctx))
}
