package intake

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"orderdesk/internal"
	"orderdesk/internal/desk"
	"orderdesk/internal/storage"
)

// Desk is the part of the desk service intake drives.
type Desk interface {
	SubmitAuto(ctx context.Context, rawText, filename string) (desk.SubmitOutcome, error)
}

type Processor struct {
	db     *storage.DB
	desk   Desk
	logger zerolog.Logger
}

func NewProcessor(db *storage.DB, d Desk) *Processor {
	return &Processor{
		db:     db,
		desk:   d,
		logger: log.With().Str("component", "intake").Logger(),
	}
}

type ProcessResult struct {
	EmailID    int
	Status     string
	Queued     int
	Duplicates int
	Failed     int
}

type ProcessStats struct {
	Emails     int
	Queued     int
	Duplicates int
	Skipped    int
	Failed     int
}

// ProcessPending handles up to limit fetched emails, oldest first. One bad
// email does not stop the batch; the errors are returned together.
func (p *Processor) ProcessPending(ctx context.Context, limit int, provider string) (ProcessStats, error) {
	pending, err := p.db.ListEmailsByStatus(StatusFetched, limit)
	if err != nil {
		return ProcessStats{}, errors.Wrap(err, "list fetched emails")
	}

	var stats ProcessStats
	var errs error
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		if ctx.Err() != nil {
			return stats, multierr.Append(errs, ctx.Err())
		}

		res, err := p.ProcessEmail(ctx, email)
		if errors.Is(err, desk.ErrExtractionInProgress) {
			// Left as fetched for the next cycle.
			continue
		}
		stats.Emails++
		stats.Queued += res.Queued
		stats.Duplicates += res.Duplicates
		switch res.Status {
		case StatusSkipped:
			stats.Skipped++
		case StatusFailed:
			stats.Failed++
		}
		errs = multierr.Append(errs, err)
	}
	return stats, errs
}

// ProcessEmail submits every document of one email to the desk. Nobody is
// there to answer a duplicate prompt, so duplicates are dropped and counted.
func (p *Processor) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	res := ProcessResult{EmailID: email.ID}
	logger := p.logger.With().Int("email_id", email.ID).Str("message_id", email.MessageID).Logger()

	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return p.finish(res, StatusFailed, errors.Wrapf(err, "read raw email %d", email.ID))
	}
	msg, err := ParseMessage(raw)
	if err != nil {
		return p.finish(res, StatusFailed, errors.Wrapf(err, "email %d", email.ID))
	}

	detect := DetectPurchaseOrder(firstNonEmpty(msg.Subject, email.Subject), msg.Text, msg.HTML, msg.AttachmentNames)
	if !detect.IsOrder || len(msg.Documents) == 0 {
		logger.Debug().Float64("score", detect.Score).Msg("not a purchase order")
		return p.finish(res, StatusSkipped, nil)
	}

	var errs error
	for i, doc := range msg.Documents {
		name := doc.Name
		if name == "" {
			name = fmt.Sprintf("email-%d-body.txt", email.ID)
		}
		out, err := p.desk.SubmitAuto(ctx, doc.Text, name)
		if errors.Is(err, desk.ErrExtractionInProgress) && i == 0 {
			return res, err
		}
		if err != nil {
			res.Failed++
			errs = multierr.Append(errs, errors.Wrapf(err, "email %d document %q", email.ID, name))
			continue
		}
		if out.Result.Pending != nil {
			res.Duplicates++
			logger.Info().Str("duplicate_of", out.Result.Pending.Existing.OrderID).Str("document", name).Msg("duplicate order dropped")
			continue
		}
		res.Queued++
		logger.Info().Str("order_id", out.Item.OrderID).Str("document", name).Msg("order queued from email")
	}

	status := StatusFailed
	switch {
	case res.Queued > 0:
		status = StatusProcessed
	case res.Duplicates > 0:
		status = StatusDuplicate
	}
	return p.finish(res, status, errs)
}

func (p *Processor) finish(res ProcessResult, status string, err error) (ProcessResult, error) {
	res.Status = status
	if uerr := p.db.UpdateEmailStatus(res.EmailID, status); uerr != nil {
		err = multierr.Append(err, errors.Wrap(uerr, "update email status"))
	}
	return res, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
