package ports

import (
	"context"
	"time"

	"ballotbox/contexts/governance/ballot-office/domain/entities"
	contractsv1 "ballotbox/contracts/gen/events/v1"
)

// CandidateProjection is the slice of candidate state the ballot office needs
// from the election engine.
type CandidateProjection struct {
	CandidateID string
	Name        string
	Accepted    bool
	WriteIn     bool
}

// PositionProjection describes one ballot item as seen by voters.
type PositionProjection struct {
	PositionID      string
	Title           string
	EligibilityRule string
	Ranked          bool
	Candidates      []CandidateProjection
}

// ElectionProjection is the read-only election state consumed when resolving
// eligibility and validating casts. The election engine owns the source rows.
type ElectionProjection struct {
	ElectionID string
	OrgID      string
	Status     string
	Anonymous  bool
	MeetingID  string
	Positions  []PositionProjection
}

// ElectionDirectory reads election configuration owned by the election engine.
type ElectionDirectory interface {
	GetElection(ctx context.Context, electionID string) (ElectionProjection, error)
}

// MemberDirectory resolves membership facts from the member/role system.
type MemberDirectory interface {
	ResolveRoles(ctx context.Context, userID string) ([]string, error)
	ResolveStatus(ctx context.Context, userID string) (string, error)
	ListActiveMembers(ctx context.Context, orgID string) ([]string, error)
	IsMember(ctx context.Context, orgID string, userID string) (bool, error)
}

// Attendee is one row of a meeting attendance snapshot.
type Attendee struct {
	UserID  string
	Present bool
}

// MeetingDirectory fetches attendance for meeting-linked elections.
type MeetingDirectory interface {
	GetAttendees(ctx context.Context, meetingID string) ([]Attendee, error)
}

// Notifier delivers template emails. Delivery failures must never block vote
// recording or token issuance; callers log and continue.
type Notifier interface {
	Send(ctx context.Context, templateType string, recipients []string, payload map[string]any) error
}

// TokenRepository owns voting token persistence.
type TokenRepository interface {
	SaveToken(ctx context.Context, token entities.VotingToken) error
	GetTokenByValue(ctx context.Context, token string) (entities.VotingToken, error)
	GetTokenByVoterHash(ctx context.Context, electionID string, voterHash string) (entities.VotingToken, bool, error)
	ListTokensByElection(ctx context.Context, electionID string) ([]entities.VotingToken, error)
}

// VoteRepository owns vote persistence and the cast transaction boundary.
type VoteRepository interface {
	// RecordBallot must atomically insert every vote row and apply the token
	// update (when token-based). A storage-level uniqueness violation aborts
	// the whole transaction and is returned as ErrDuplicateVote so a crash or
	// race can never leave a redeemed token without its votes.
	RecordBallot(ctx context.Context, votes []entities.Vote, token *entities.VotingToken) error
	GetVote(ctx context.Context, voteID string) (entities.Vote, error)
	SaveVote(ctx context.Context, vote entities.Vote) error
	ListVotesByElection(ctx context.Context, electionID string, includeDeleted bool) ([]entities.Vote, error)
	HasActiveVote(ctx context.Context, electionID string, positionID string, voterKey string) (bool, error)
	HasRetractedVote(ctx context.Context, electionID string, positionID string, voterKey string) (bool, error)
	HasProxyVoteForDelegator(ctx context.Context, electionID string, positionID string, delegatorID string) (bool, error)
}

// OverrideRepository persists officer eligibility overrides.
type OverrideRepository interface {
	SaveOverride(ctx context.Context, override entities.VoterOverride) error
	ListOverrides(ctx context.Context, electionID string) ([]entities.VoterOverride, error)
}

// ProxyRepository persists proxy authorizations.
type ProxyRepository interface {
	SaveAuthorization(ctx context.Context, authorization entities.ProxyAuthorization) error
	GetAuthorization(ctx context.Context, authorizationID string) (entities.ProxyAuthorization, error)
	ListAuthorizationsByElection(ctx context.Context, electionID string) ([]entities.ProxyAuthorization, error)
}

// AuditLog is the append-only record of integrity-relevant outcomes.
type AuditLog interface {
	Append(ctx context.Context, entry entities.AuditEntry) error
	ListByElection(ctx context.Context, electionID string) ([]entities.AuditEntry, error)
}

// Clock allows deterministic testing of expiry rules.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts vote/token/event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// TokenMinter produces opaque bearer token strings with 128-bit+ entropy.
type TokenMinter interface {
	NewToken() (string, error)
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxWriter appends integration events inside command handling.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventDedupStore provides idempotent processing guarantees for consumed events.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
