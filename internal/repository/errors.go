package repository

import "errors"

// Sentinel errors shared by the repositories. Handlers map these onto
// client-facing error codes; none of them is retryable as-is.
var (
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyRunning    = errors.New("a running attempt already exists for this user and exam")
	ErrAlreadyFinalized  = errors.New("attempt is already finalized")
	ErrAttemptNotRunning = errors.New("attempt is not running")
)
