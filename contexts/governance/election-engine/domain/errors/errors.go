package errors

import "errors"

var (
	// ErrInvalidConfig marks malformed election setup. Fatal: the
	// configuration must be fixed before the election can open.
	ErrInvalidConfig = errors.New("invalid election configuration")

	ErrInvalidInput        = errors.New("invalid election input")
	ErrElectionNotFound    = errors.New("election not found")
	ErrPositionNotFound    = errors.New("ballot item not found")
	ErrInvalidTransition   = errors.New("invalid lifecycle transition")
	ErrCandidatesPending   = errors.New("unresolved candidate nominations")
	ErrQuorumNotMet        = errors.New("quorum not met")
	ErrResultsNotAvailable = errors.New("results not yet available")
	ErrInvalidRollback     = errors.New("invalid rollback target")
	ErrConflict            = errors.New("conflicting concurrent update")
)
