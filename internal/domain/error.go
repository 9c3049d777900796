package domain

import "errors"

var (
	// Expected, recoverable conditions surfaced to the caller.
	ErrNotFound         = errors.New("entity not found")
	ErrLimitExceeded    = errors.New("usage limit exceeded")
	ErrNoPendingPayment = errors.New("no pending payment")
	ErrValidation       = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")

	// ErrInvalidState means a transition was attempted from a terminal state,
	// usually because two callers raced on the same payment intent.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrCampaignInactive is logged by the verification workflow; the payment is
	// then recognised at face value.
	ErrCampaignInactive = errors.New("campaign inactive")

	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Persistence failures. Only these are retried.
	ErrOperationFailed    = errors.New("operation failed")
	ErrTxConflict         = errors.New("transaction conflict")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)

// IsRetryable reports whether err is a transient persistence failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOperationFailed) || errors.Is(err, ErrTxConflict)
}
