package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidInput       = errors.New("invalid input")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrBannedOwner        = errors.New("owner not in good standing")
	ErrInvariantViolation = errors.New("job invariant violation")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrLockLost           = errors.New("job lock lost")
	ErrJobTerminal        = errors.New("job in terminal state")
	ErrDuplicateJob       = errors.New("duplicate job")
)
