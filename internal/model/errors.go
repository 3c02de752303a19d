package model

import "errors"

// Error kinds surfaced by the booking engine.  Concrete errors wrap one of
// these with fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	// ErrValidation marks a request that is malformed or not permitted in
	// the current state.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a lost race for a slot.
	ErrConflict = errors.New("conflict")
	// ErrGateway marks a payment provider failure whose outcome is unknown.
	ErrGateway = errors.New("payment gateway error")
	// ErrMirror marks a failed push to the external mirror.  It is never
	// returned from a ledger operation.
	ErrMirror = errors.New("mirror error")
	ErrNotFound = errors.New("not found")
)
