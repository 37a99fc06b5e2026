package errors

import "errors"

var (
	ErrInvalidVoteInput      = errors.New("invalid vote input")
	ErrElectionNotFound      = errors.New("election not found")
	ErrElectionNotOpen       = errors.New("election is not open for voting")
	ErrBallotModeMismatch    = errors.New("credential type does not match the election ballot mode")
	ErrPositionNotFound      = errors.New("position is not on this ballot")
	ErrInvalidCandidate      = errors.New("candidate is not on this ballot position")
	ErrInvalidRank           = errors.New("rank is out of range or duplicated")
	ErrDuplicateVote         = errors.New("voter already has an active vote for this position")
	ErrRevoteBlocked         = errors.New("a retracted vote blocks re-voting without a grant override")
	ErrNotEligible           = errors.New("voter is not eligible for this position")
	ErrVoteNotFound          = errors.New("vote not found")
	ErrAlreadyRetracted      = errors.New("vote is already retracted")
	ErrTokenNotFound         = errors.New("voting token not found")
	ErrTokenExpired          = errors.New("voting token has expired")
	ErrTokenPositionUsed     = errors.New("voting token was already used for this position")
	ErrUnresolvableRule      = errors.New("eligibility rule cannot be resolved")
	ErrUnknownOverrideTarget = errors.New("override target is not a member of the organization")
	ErrOverrideReasonMissing = errors.New("deny overrides require a reason and granting officer")
	ErrProxyNotAuthorized    = errors.New("proxy authorization is missing, revoked, expired or out of scope")
	ErrProxySelfDelegation   = errors.New("a voter cannot hold a proxy for themselves")
	ErrDelegatorAlreadyVoted = errors.New("delegating voter already cast a direct vote for this position")
	ErrProxyAlreadyExercised = errors.New("a proxy vote was already exercised for the delegating voter")
	ErrConflict              = errors.New("ballot office conflict")
)
