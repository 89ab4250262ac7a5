package export

import (
	"time"

	"orderdesk/internal/remote"
)

// SyncPayload is the body posted to the remote sync endpoint. Rows are
// already aligned to the remote headers.
type SyncPayload struct {
	ExportID          string    `json:"export_id"`
	ExportedAt        time.Time `json:"exported_at"`
	ExtractionHeaders []string  `json:"extraction_headers"`
	ExtractionRows    [][]any   `json:"extraction_rows"`
	TintingHeaders    []string  `json:"tinting_headers"`
	TintingRows       [][]any   `json:"tinting_rows"`
}

type SyncOutcome struct {
	Duplicate bool
	Message   string
}

// InterpretSync turns the remote's answer into an outcome. A duplicate
// answer means the batch is already there and counts as success.
func InterpretSync(resp remote.SyncResponse) (SyncOutcome, error) {
	switch {
	case resp.Duplicate:
		return SyncOutcome{Duplicate: true, Message: resp.Message}, nil
	case resp.OK:
		return SyncOutcome{Message: resp.Message}, nil
	default:
		msg := resp.Message
		if msg == "" {
			msg = "sync was not acknowledged"
		}
		return SyncOutcome{}, &remote.RejectedError{Message: msg}
	}
}
