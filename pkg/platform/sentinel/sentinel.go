package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Repositories return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: record does not exist, or is not visible in the caller's org
//   - ErrConflict: optimistic-concurrency check failed (version moved underneath us)
//   - ErrAlreadyUsed: a uniqueness constraint rejected the write
//   - ErrUnavailable: backing store temporarily unavailable
//
// For validation errors (bad input, illegal transitions), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
