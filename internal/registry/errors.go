package registry

import (
	"errors"
	"fmt"
)

// Error taxonomy for consent operations. Callers match with errors.Is;
// nothing here is retried automatically.
var (
	// ErrMissingIdentity means no wallet is connected. Checked locally
	// before any signing or network call.
	ErrMissingIdentity = errors.New("no wallet identity connected")

	// ErrMissingSubject means the subject (patient) id was empty.
	ErrMissingSubject = errors.New("subject id is required")

	// ErrInvalidPurpose means the purpose is not in the authorized set.
	ErrInvalidPurpose = errors.New("purpose is not an authorized consent purpose")

	// ErrNoSigningIdentity means no signing key is available for the
	// requested wallet address.
	ErrNoSigningIdentity = errors.New("no signing identity available")

	// ErrSigningRejected means the signing capability declined to sign.
	ErrSigningRejected = errors.New("signing request was rejected")

	// ErrSigningUnavailable covers any other signing-layer fault.
	ErrSigningUnavailable = errors.New("signing capability unavailable")

	// ErrIllegalTransition means the requested status change violates the
	// lifecycle state machine.
	ErrIllegalTransition = errors.New("illegal consent status transition")

	// ErrNotFound means the consent record id did not resolve.
	ErrNotFound = errors.New("consent record not found")

	// ErrTransitionRejected means the registry service refused the status
	// write, typically due to a concurrent conflicting update.
	ErrTransitionRejected = errors.New("status transition rejected by registry")

	// ErrLoadSuperseded means a load's response arrived after the store's
	// scope changed and was discarded instead of materialized.
	ErrLoadSuperseded = errors.New("load superseded by a newer scope")
)

// TransportError wraps a network or service fault from the remote
// registry. The store treats it as fail-closed: the cached view is
// emptied and the error surfaced.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
