package hedge

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProviderConfigured means no active LP provider exists; the
	// operation is fatal and nothing was attempted.
	ErrNoProviderConfigured = errors.New("no active LP provider configured")

	// ErrAlreadyHedged means the trade already has a PENDING or OPEN
	// hedge record. No new record is created.
	ErrAlreadyHedged = errors.New("trade is already hedged on LP")

	// ErrNoOpenHedge means a close was requested for a trade with no
	// OPEN hedge record.
	ErrNoOpenHedge = errors.New("no open LP hedge found for this trade")

	// ErrProviderNotFound means the provider a hedge was opened on is no
	// longer in the registry.
	ErrProviderNotFound = errors.New("LP provider not found")

	// ErrNotCancellable means the record is not in a state an
	// administrator may cancel.
	ErrNotCancellable = errors.New("hedge is not in a cancellable state")

	// ErrHedgeNotFound means no ledger record exists for the given id.
	ErrHedgeNotFound = errors.New("LP hedge record not found")
)

// ExhaustedError is returned when every placement attempt against the
// provider failed. The hedge record has transitioned to FAILED and the
// trade's book classification was left unchanged.
type ExhaustedError struct {
	Attempts  int
	LastError string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("LP hedge failed after %d retries: %s", e.Attempts, e.LastError)
}

// CloseError is returned when the single close attempt failed. The
// record remains OPEN: the hedge must be treated as still live.
type CloseError struct {
	LastError string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("LP close failed: %s", e.LastError)
}
