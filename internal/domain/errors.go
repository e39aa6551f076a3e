package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrConcurrentUpdate      = errors.New("account was modified concurrently")
	ErrStoreUnavailable      = errors.New("account store unavailable")
	ErrEventAlreadyProcessed = errors.New("event already processed")
	ErrInvalidPayload        = errors.New("invalid event payload")
)

// VerificationError means the webhook could not be attributed to the
// provider: bad signature, malformed body or a missing secret.
type VerificationError struct {
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

func IsVerificationError(err error) bool {
	var ve *VerificationError
	return errors.As(err, &ve)
}
