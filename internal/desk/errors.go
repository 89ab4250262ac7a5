package desk

import (
	"github.com/pkg/errors"

	"orderdesk/internal/extract"
	"orderdesk/internal/queue"
	"orderdesk/internal/remote"
)

var (
	ErrEmptyInput            = errors.New("order text is empty")
	ErrExtractionInProgress  = errors.New("an extraction is already running")
	ErrNoInFlight            = errors.New("no interrupted extraction to retry")
	ErrOrderNotFound         = errors.New("order not found in the queue")
	ErrQueueEmpty            = errors.New("the queue is empty")
	ErrExportInProgress      = errors.New("an export is already running")
	ErrAlreadyExported       = errors.New("the queue has already been exported")
	ErrRollbackNotConfirmed  = errors.New("rollback requires explicit confirmation")
	ErrTemplatesUnavailable  = errors.New("export templates are not configured")
	ErrSyncTargetUnavailable = errors.New("remote sync is not configured")
)

// Error classes shown to callers alongside the message.
const (
	ClassInput       = "input"
	ClassExtraction  = "extraction"
	ClassDuplicate   = "duplicate"
	ClassExport      = "export"
	ClassUnavailable = "unavailable"
	ClassNotFound    = "not_found"
	ClassConflict    = "conflict"
	ClassInternal    = "internal"
)

// Classify names the class of err for API responses and exit codes.
func Classify(err error) string {
	var rejected *remote.RejectedError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput), errors.Is(err, ErrRollbackNotConfirmed):
		return ClassInput
	case errors.Is(err, extract.ErrMissingAPIKey),
		errors.Is(err, extract.ErrEmptyResponse),
		errors.Is(err, extract.ErrMalformedResponse),
		errors.Is(err, extract.ErrModelUnreachable),
		errors.Is(err, extract.ErrModelRejected):
		return ClassExtraction
	case errors.Is(err, queue.ErrNoPending):
		return ClassDuplicate
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrNoInFlight):
		return ClassNotFound
	case errors.Is(err, ErrExtractionInProgress), errors.Is(err, ErrExportInProgress),
		errors.Is(err, ErrAlreadyExported), errors.Is(err, ErrQueueEmpty):
		return ClassConflict
	case errors.Is(err, ErrTemplatesUnavailable), errors.Is(err, ErrSyncTargetUnavailable),
		errors.Is(err, remote.ErrNotConfigured):
		return ClassUnavailable
	case errors.Is(err, remote.ErrUnreachable), errors.Is(err, remote.ErrSheetEmpty), errors.As(err, &rejected):
		return ClassExport
	default:
		return ClassInternal
	}
}

// UserMessage is the operator-facing text for err. Network failures and
// remote-reported failures read differently so the operator knows whether
// to retry or to fix the sheet.
func UserMessage(err error) string {
	var rejected *remote.RejectedError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "Paste or upload the purchase order text first."
	case errors.Is(err, extract.ErrMissingAPIKey):
		return "The extraction service is not configured. Set MODEL_API_KEY and try again."
	case errors.Is(err, extract.ErrEmptyResponse):
		return "The extraction service returned an empty response. Try again."
	case errors.Is(err, extract.ErrMalformedResponse):
		return "The extraction service returned data that could not be read. Try again."
	case errors.Is(err, extract.ErrModelUnreachable):
		return "Could not reach the extraction service. Check the connection and retry; the order text has been kept."
	case errors.Is(err, extract.ErrModelRejected):
		return "The extraction service refused the request (" + err.Error() + ")."
	case errors.Is(err, ErrExtractionInProgress):
		return "An extraction is already running. Wait for it to finish."
	case errors.Is(err, ErrNoInFlight):
		return "There is no interrupted extraction to retry."
	case errors.Is(err, queue.ErrNoPending):
		return "There is no duplicate order waiting for a decision."
	case errors.Is(err, ErrOrderNotFound):
		return "That order is no longer in the queue."
	case errors.Is(err, ErrQueueEmpty):
		return "The queue is empty. Add an order before exporting."
	case errors.Is(err, ErrExportInProgress):
		return "An export is already running."
	case errors.Is(err, ErrAlreadyExported):
		return "This queue has already been exported. Change the queue or roll back the last batch to export again."
	case errors.Is(err, ErrRollbackNotConfirmed):
		return "Rolling back the last batch cannot be undone. Confirm to continue."
	case errors.Is(err, ErrTemplatesUnavailable), errors.Is(err, ErrSyncTargetUnavailable), errors.Is(err, remote.ErrNotConfigured):
		return "The remote spreadsheet is not configured. Set TEMPLATE_URL and SYNC_URL."
	case errors.Is(err, remote.ErrSheetEmpty):
		return "Export aborted: a remote template sheet is empty (" + err.Error() + ")."
	case errors.Is(err, remote.ErrUnreachable):
		return "Export failed: the remote endpoint is unreachable. Nothing was marked as exported; retry when the connection is back."
	case errors.As(err, &rejected):
		return "Export failed: the remote rejected the batch: " + rejected.Message
	default:
		return "Unexpected error: " + err.Error()
	}
}
