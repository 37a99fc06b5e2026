package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "ballotbox/contexts/governance/ballot-office/application"
	"ballotbox/contexts/governance/ballot-office/application/commands"
	domainerrors "ballotbox/contexts/governance/ballot-office/domain/errors"
	"ballotbox/contexts/governance/ballot-office/ports"
)

const (
	electionOpenedTopic = "election.opened"
	defaultElectionCG   = "ballot-office-election-cg"
)

// ElectionStateConsumer reacts to election lifecycle events: when an election
// opens, the token issuer runs once and ballot-ready notifications go out.
type ElectionStateConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Tokens        commands.TokenUseCase
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c ElectionStateConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("election state consumer disabled by feature flag",
			"event", "ballot_election_consumer_disabled",
			"module", "governance/ballot-office",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultElectionCG
	}
	if err := c.Subscriber.Subscribe(ctx, electionOpenedTopic, group, c.handleElectionOpened); err != nil {
		logger.Error("election consumer subscribe failed",
			"event", "ballot_election_consumer_subscribe_failed",
			"module", "governance/ballot-office",
			"layer", "worker",
			"topic", electionOpenedTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("election consumer subscription active",
		"event", "ballot_election_consumer_started",
		"module", "governance/ballot-office",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c ElectionStateConsumer) handleElectionOpened(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	if alreadyProcessed, err := c.reserveEvent(ctx, event); err != nil {
		return err
	} else if alreadyProcessed {
		logger.Debug("election.opened replay skipped",
			"event", "ballot_election_opened_replayed",
			"module", "governance/ballot-office",
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload struct {
		ElectionID string `json:"election_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("election.opened payload decode failed",
			"event", "ballot_election_opened_decode_failed",
			"module", "governance/ballot-office",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	result, err := c.Tokens.IssueTokens(ctx, commands.IssueTokensCommand{ElectionID: payload.ElectionID})
	if errors.Is(err, domainerrors.ErrBallotModeMismatch) {
		// Attributable elections carry no tokens.
		logger.Debug("attributable election opened, no tokens to issue",
			"event", "ballot_election_opened_no_tokens",
			"module", "governance/ballot-office",
			"layer", "worker",
			"election_id", payload.ElectionID,
		)
		return nil
	}
	if err != nil {
		logger.Error("token issuance on election open failed",
			"event", "ballot_election_opened_issue_failed",
			"module", "governance/ballot-office",
			"layer", "worker",
			"election_id", payload.ElectionID,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("tokens issued on election open",
		"event", "ballot_election_opened_tokens_issued",
		"module", "governance/ballot-office",
		"layer", "worker",
		"election_id", payload.ElectionID,
		"issued", result.Issued,
		"existing", result.Existing,
	)
	return nil
}

func (c ElectionStateConsumer) reserveEvent(ctx context.Context, event ports.EventEnvelope) (bool, error) {
	if c.Dedup == nil {
		return false, nil
	}
	ttl := c.DedupTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), c.now().Add(ttl))
}

func (c ElectionStateConsumer) now() time.Time {
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	return now
}
