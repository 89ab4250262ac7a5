package desk

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"orderdesk/internal"
	"orderdesk/internal/align"
	"orderdesk/internal/export"
	"orderdesk/internal/remote"
	"orderdesk/internal/util"
)

const (
	statusSynced    = "synced"
	statusDuplicate = "duplicate"
)

var reUnsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// QueueExport describes a finished full-queue export.
type QueueExport struct {
	ExportID       string `json:"export_id"`
	BatchNumber    int    `json:"batch_number"`
	FilePath       string `json:"file_path"`
	ExtractionRows int    `json:"extraction_rows"`
	TintingRows    int    `json:"tinting_rows"`
	Duplicate      bool   `json:"duplicate"`
	Message        string `json:"message"`
	// Stale is set when the queue changed while the export ran. The batch was
	// synced but the queue is not marked exported.
	Stale bool `json:"stale"`
}

// OrderWorkbook builds the two-sheet workbook for one queued order, with a
// fresh transient order id, batch number 0 and today's date. The caller
// closes the workbook.
func (s *Service) OrderWorkbook(orderID string) (*export.Workbook, error) {
	order, err := s.Reopen(orderID)
	if err != nil {
		return nil, err
	}
	return s.orderWorkbook(order)
}

// ExportOrder saves the single-order workbook under the output directory.
func (s *Service) ExportOrder(orderID string) (string, error) {
	order, err := s.Reopen(orderID)
	if err != nil {
		return "", err
	}
	wb, err := s.orderWorkbook(order)
	if err != nil {
		return "", err
	}
	defer wb.Close()

	name := order.OrderNumber
	if name == "" {
		name = orderID
	}
	path := filepath.Join(s.opts.OutputDir, fmt.Sprintf("order_%s_%s.xlsx", safeName(name), s.clock.Now().Format("20060102-150405")))
	if err := wb.Save(path); err != nil {
		return "", errors.Wrap(err, "save order workbook")
	}
	s.logger.Info().Str("order_id", orderID).Str("path", path).Msg("order exported")
	return path, nil
}

func (s *Service) orderWorkbook(order internal.ProductionOrder) (*export.Workbook, error) {
	now := s.clock.Now()
	transientID := util.GenerateOrderID(now)
	defaults := export.Defaults(now.Format(util.OrderDateLayout), 0)

	extRows := align.Align(export.ExtractionFields(export.RowsFromOrder(order, transientID)), export.DefaultExtractionHeaders, defaults, export.ExtractionKeyMap)
	tintRows := align.Align(export.TintingFields(export.TintingRowsFromOrder(order, transientID)), export.DefaultTintingHeaders, defaults, export.TintingKeyMap)

	wb, err := export.NewWorkbook()
	if err != nil {
		return nil, err
	}
	if err := wb.AddSheet(s.opts.ExtractionSheet, export.DefaultExtractionHeaders, extRows); err != nil {
		_ = wb.Close()
		return nil, err
	}
	if err := wb.AddSheet(s.opts.TintingSheet, export.DefaultTintingHeaders, tintRows); err != nil {
		_ = wb.Close()
		return nil, err
	}
	return wb, nil
}

// OrderCSV writes the extraction rows of one queued order as CSV.
func (s *Service) OrderCSV(w io.Writer, orderID string) error {
	order, err := s.Reopen(orderID)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	rows := export.RowsFromOrder(order, util.GenerateOrderID(now))
	aligned := align.Align(export.ExtractionFields(rows), export.DefaultExtractionHeaders, export.Defaults(now.Format(util.OrderDateLayout), 0), export.ExtractionKeyMap)
	return export.WriteCSV(w, export.DefaultExtractionHeaders, aligned)
}

// QueueCSV writes every queued line as CSV with the persisted order ids.
func (s *Service) QueueCSV(w io.Writer) error {
	state := s.State()
	if len(state.Items) == 0 {
		return ErrQueueEmpty
	}
	now := s.clock.Now()
	aligned := align.Align(export.ExtractionFields(export.RowsFromQueue(state.Items)), export.DefaultExtractionHeaders, export.Defaults(now.Format(util.OrderDateLayout), 0), export.ExtractionKeyMap)
	return export.WriteCSV(w, export.DefaultExtractionHeaders, aligned)
}

// ExportQueue runs the daily batch export: read both remote templates, number
// the batch, align every queued line to the remote headers, write the local
// workbook and sync the batch. Only one export runs at a time, and an
// unchanged queue that was already exported is refused.
func (s *Service) ExportQueue(ctx context.Context) (QueueExport, error) {
	if s.opts.Templates == nil {
		return QueueExport{}, ErrTemplatesUnavailable
	}
	if s.opts.Syncer == nil {
		return QueueExport{}, ErrSyncTargetUnavailable
	}
	if !s.exportSem.TryAcquire(1) {
		return QueueExport{}, ErrExportInProgress
	}
	defer s.exportSem.Release(1)

	s.mu.Lock()
	if s.queue.Exported() {
		s.mu.Unlock()
		return QueueExport{}, ErrAlreadyExported
	}
	state := s.queue.State()
	revision := s.queue.Revision()
	s.mu.Unlock()

	if len(state.Items) == 0 {
		return QueueExport{}, ErrQueueEmpty
	}

	extTemplate, tintTemplate, err := s.fetchTemplates(ctx)
	if err != nil {
		return QueueExport{}, err
	}

	batch := extTemplate.NextBatch()
	now := s.clock.Now()
	defaults := export.Defaults(now.Format(util.OrderDateLayout), batch)

	extRows := align.Align(export.ExtractionFields(export.RowsFromQueue(state.Items)), extTemplate.Headers, defaults, export.ExtractionKeyMap)
	tintRows := align.Align(export.TintingFields(export.TintingRowsFromQueue(state.Items)), tintTemplate.Headers, defaults, export.TintingKeyMap)

	result := QueueExport{
		ExportID:       util.GenerateExportID(now),
		BatchNumber:    batch,
		ExtractionRows: len(extRows),
		TintingRows:    len(tintRows),
	}
	logger := s.logger.With().Str("export_id", result.ExportID).Int("batch", batch).Logger()

	path, err := s.writeBatchWorkbook(batch, now.Format("20060102-150405"), extTemplate.Headers, extRows, tintTemplate.Headers, tintRows)
	if err != nil {
		return QueueExport{}, err
	}
	result.FilePath = path

	resp, err := s.opts.Syncer.Sync(ctx, export.SyncPayload{
		ExportID:          result.ExportID,
		ExportedAt:        now,
		ExtractionHeaders: extTemplate.Headers,
		ExtractionRows:    extRows,
		TintingHeaders:    tintTemplate.Headers,
		TintingRows:       tintRows,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("batch sync failed")
		return result, errors.Wrap(err, "sync batch")
	}
	outcome, err := export.InterpretSync(resp)
	if err != nil {
		logger.Warn().Err(err).Msg("batch sync rejected")
		return result, err
	}
	result.Duplicate = outcome.Duplicate
	result.Message = outcome.Message
	if !outcome.Duplicate {
		result.Message = fmt.Sprintf("Batch %d exported", batch)
		if outcome.Message != "" {
			result.Message += ": " + outcome.Message
		}
	}

	s.mu.Lock()
	if s.queue.Revision() == revision {
		s.queue.MarkExported()
		s.persistLocked()
	} else {
		result.Stale = true
	}
	s.mu.Unlock()

	status := statusSynced
	if outcome.Duplicate {
		status = statusDuplicate
	}
	s.recordExport(ctx, internal.ExportRecord{
		ExportID:       result.ExportID,
		BatchNumber:    batch,
		ExportedAt:     now,
		Status:         status,
		ExtractionRows: result.ExtractionRows,
		TintingRows:    result.TintingRows,
		FilePath:       path,
	})

	logger.Info().Str("status", status).Bool("stale", result.Stale).Str("path", path).Msg("queue exported")
	return result, nil
}

// Rollback asks the remote to drop the last batch and re-enables export. The
// remote change cannot be undone, so confirmed must be true.
func (s *Service) Rollback(ctx context.Context, confirmed bool) (string, error) {
	if !confirmed {
		return "", ErrRollbackNotConfirmed
	}
	if s.opts.Syncer == nil {
		return "", ErrSyncTargetUnavailable
	}
	if !s.exportSem.TryAcquire(1) {
		return "", ErrExportInProgress
	}
	defer s.exportSem.Release(1)

	resp, err := s.opts.Syncer.Rollback(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("rollback failed")
		return "", errors.Wrap(err, "rollback last batch")
	}

	s.mu.Lock()
	s.queue.ClearExported()
	s.persistLocked()
	s.mu.Unlock()

	msg := resp.Message
	if msg == "" {
		msg = "Last batch rolled back"
	}
	s.logger.Info().Str("message", msg).Msg("last batch rolled back")
	return msg, nil
}

// Exports lists recent exports, newest first.
func (s *Service) Exports(ctx context.Context, limit int) ([]internal.ExportRecord, error) {
	if s.opts.History == nil {
		return nil, nil
	}
	return s.opts.History.ListExports(ctx, limit)
}

func (s *Service) fetchTemplates(ctx context.Context) (remote.Template, remote.Template, error) {
	var ext, tint remote.Template
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.fetchTemplate(gctx, s.opts.ExtractionSheet)
		ext = t
		return err
	})
	g.Go(func() error {
		t, err := s.fetchTemplate(gctx, s.opts.TintingSheet)
		tint = t
		return err
	})
	if err := g.Wait(); err != nil {
		return remote.Template{}, remote.Template{}, errors.Wrap(err, "fetch export templates")
	}
	return ext, tint, nil
}

func (s *Service) fetchTemplate(ctx context.Context, sheet string) (remote.Template, error) {
	rows, err := s.opts.Templates.FetchSheet(ctx, sheet)
	if err != nil {
		return remote.Template{}, err
	}
	return remote.TemplateInfo(sheet, rows)
}

func (s *Service) writeBatchWorkbook(batch int, stamp string, extHeaders []string, extRows [][]any, tintHeaders []string, tintRows [][]any) (string, error) {
	wb, err := export.NewWorkbook()
	if err != nil {
		return "", err
	}
	defer wb.Close()

	if err := wb.AddSheet(s.opts.ExtractionSheet, extHeaders, extRows); err != nil {
		return "", err
	}
	if err := wb.AddSheet(s.opts.TintingSheet, tintHeaders, tintRows); err != nil {
		return "", err
	}

	path := filepath.Join(s.opts.OutputDir, fmt.Sprintf("batch_%d_%s.xlsx", batch, stamp))
	if err := wb.Save(path); err != nil {
		return "", errors.Wrap(err, "save batch workbook")
	}
	return path, nil
}

func (s *Service) recordExport(ctx context.Context, rec internal.ExportRecord) {
	if s.opts.History == nil {
		return
	}
	if err := s.opts.History.InsertExport(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Str("export_id", rec.ExportID).Msg("export history not recorded")
	}
}

func safeName(name string) string {
	name = reUnsafeFilename.ReplaceAllString(name, "_")
	if name == "" {
		return "order"
	}
	return name
}
