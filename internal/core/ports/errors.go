package ports

import "errors"

// ErrDuplicateIdempotencyKey is returned by EscrowRepository.Create when the
// (creator, idempotency key) pair already exists.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
