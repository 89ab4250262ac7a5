package remote

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUnreachable   = errors.New("remote endpoint unreachable")
	ErrSheetEmpty    = errors.New("template sheet is empty")
	ErrNotConfigured = errors.New("remote endpoint is not configured")
)

// TransportError is a failure to reach the remote at all. It matches
// ErrUnreachable with errors.Is.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: remote endpoint unreachable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrUnreachable }

// RejectedError is a response from the remote that reports failure.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote rejected the request (status %d): %s", e.Status, e.Message)
	}
	return "remote rejected the request: " + e.Message
}
