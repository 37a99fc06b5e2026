package entities

import "time"

// Vote is one recorded ballot choice. Ranked ballots produce one Vote per
// rank. Votes are never hard-deleted once cast; retraction sets the
// soft-delete fields and the row stays in the audit trail.
type Vote struct {
	VoteID      string
	ElectionID  string
	PositionID  string
	CandidateID string
	Voter       VoterRef
	// Rank is 0 for single-choice positions and 1..N for ranked ballots.
	Rank int

	IsProxy         bool
	ProxyVoterID    string
	DelegatorID     string
	AuthorizationID string

	// Signature is an HMAC digest over the vote's immutable fields keyed by
	// an election-scoped secret; any later row mutation is detectable.
	Signature string

	DeletedAt      *time.Time
	DeletedBy      string
	DeletionReason string

	CreatedAt time.Time
}

func (v Vote) Active() bool {
	return v.DeletedAt == nil
}

// OverrideAction is the effect of a voter override entry.
type OverrideAction string

const (
	OverrideGrant OverrideAction = "grant"
	OverrideDeny  OverrideAction = "deny"
)

// VoterOverride is an explicit officer decision that adds or removes a voter
// relative to the position's base eligibility rule. Deny entries must carry a
// reason and the granting officer for audit.
type VoterOverride struct {
	OverrideID string
	ElectionID string
	UserID     string
	Action     OverrideAction
	Reason     string
	GrantedBy  string
	CreatedAt  time.Time
}

// ProxyScopeAll marks an authorization valid for every position on the ballot.
const ProxyScopeAll = "*"

// ProxyAuthorization lets the proxy holder cast a vote on behalf of the
// delegator for one position or for the whole ballot.
type ProxyAuthorization struct {
	AuthorizationID string
	ElectionID      string
	DelegatorID     string
	ProxyHolderID   string
	// PositionScope is a position id or ProxyScopeAll.
	PositionScope string
	ExpiresAt     *time.Time
	Revoked       bool
	CreatedAt     time.Time
}

func (p ProxyAuthorization) CoversPosition(positionID string) bool {
	return p.PositionScope == ProxyScopeAll || p.PositionScope == positionID
}

func (p ProxyAuthorization) Usable(now time.Time) bool {
	if p.Revoked {
		return false
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false
	}
	return true
}

// AuditEntry records every integrity-relevant outcome, including rejected
// casts: an attempted double vote is itself a signal worth keeping.
type AuditEntry struct {
	EntryID    string
	ElectionID string
	PositionID string
	VoterKey   string
	Outcome    string
	Detail     string
	OccurredAt time.Time
}

const (
	AuditOutcomeRecorded  = "recorded"
	AuditOutcomeDuplicate = "duplicate_rejected"
	AuditOutcomeRejected  = "rejected"
	AuditOutcomeRetracted = "retracted"
)
