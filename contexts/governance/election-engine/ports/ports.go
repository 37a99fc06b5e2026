package ports

import (
	"context"
	"time"

	"ballotbox/contexts/governance/election-engine/domain/entities"
	contractsv1 "ballotbox/contracts/gen/events/v1"
)

// BallotVote is the cross-context projection of one active vote row owned by
// the ballot office. VoterKey is the user id or the anonymous voter hash; the
// engine never needs to know which.
type BallotVote struct {
	PositionID  string
	CandidateID string
	VoterKey    string
	Rank        int
	IsProxy     bool
	CastAt      time.Time
}

// BallotReader reads the active votes for an election at tally time.
type BallotReader interface {
	ListActiveVotes(ctx context.Context, electionID string) ([]BallotVote, error)
}

// ElectionRepository owns election aggregate and committed result persistence.
type ElectionRepository interface {
	SaveElection(ctx context.Context, election entities.Election) error
	GetElection(ctx context.Context, electionID string) (entities.Election, error)
	ListElectionsByOrg(ctx context.Context, orgID string) ([]entities.Election, error)
	ListChildElections(ctx context.Context, parentElectionID string) ([]entities.Election, error)
	SaveResults(ctx context.Context, electionID string, results []entities.PositionResult) error
	GetResults(ctx context.Context, electionID string) ([]entities.PositionResult, bool, error)
	// DeleteResults withdraws reported results after a rollback out of the
	// finalized state. Vote rows are untouched.
	DeleteResults(ctx context.Context, electionID string) error
}

// MemberDirectory resolves the membership facts quorum math and results
// announcements depend on.
type MemberDirectory interface {
	ActiveMemberCount(ctx context.Context, orgID string) (int, error)
	ListActiveMembers(ctx context.Context, orgID string) ([]string, error)
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

// Notifier delivers template emails. Failures are logged and never block
// tallying.
type Notifier interface {
	Send(ctx context.Context, templateType string, recipients []string, payload map[string]any) error
}

// Clock allows deterministic testing of lifecycle timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts election/result/event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
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

// EventDedupStore provides idempotent processing guarantees for consumed
// events.
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
