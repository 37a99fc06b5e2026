package unit

import (
	"context"
	"testing"
	"time"

	ballotworkers "ballotbox/contexts/governance/ballot-office/application/workers"
	ballottransport "ballotbox/contexts/governance/ballot-office/transport/http"
	electionengine "ballotbox/contexts/governance/election-engine"
	electionworkers "ballotbox/contexts/governance/election-engine/application/workers"
	contractsv1 "ballotbox/contracts/gen/events/v1"
	sharedevents "ballotbox/internal/shared/events"
)

type capturePublisher struct {
	topics []string
	events []contractsv1.Envelope
}

func (p *capturePublisher) Publish(_ context.Context, topic string, event contractsv1.Envelope) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

type captureSubscriber struct {
	topic   string
	group   string
	handler func(context.Context, contractsv1.Envelope) error
}

func (s *captureSubscriber) Subscribe(
	_ context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, contractsv1.Envelope) error,
) error {
	s.topic = topic
	s.group = consumerGroup
	s.handler = handler
	return nil
}

func TestOutboxRelayPublishesPendingEvents(t *testing.T) {
	ctx := context.Background()
	module := newBallotModule()
	seedBoardElection(module, false)

	if _, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-ada",
	}); err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	publisher := &capturePublisher{}
	relay := ballotworkers.OutboxRelay{
		Outbox:    module.Store,
		Publisher: publisher,
		BatchSize: 10,
	}
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay run: %v", err)
	}
	if len(publisher.events) != 1 || publisher.events[0].EventType != "vote.recorded" {
		t.Fatalf("expected one vote.recorded publish, got %v", publisher.topics)
	}
	if publisher.topics[0] != "vote.recorded" {
		t.Fatalf("topic must follow the event type, got %q", publisher.topics[0])
	}

	pending, err := module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("published rows must leave the pending set, %d remain", len(pending))
	}

	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("second relay run: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("a drained outbox must not republish, got %d events", len(publisher.events))
	}
}

func TestElectionOpenedConsumerIssuesTokensOnce(t *testing.T) {
	ctx := context.Background()
	module := newBallotModule()
	seedBoardElection(module, true)

	subscriber := &captureSubscriber{}
	consumer := ballotworkers.ElectionStateConsumer{
		Subscriber: subscriber,
		Dedup:      module.Store,
		Tokens:     module.Tokens,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("consumer start: %v", err)
	}
	if subscriber.topic != "election.opened" {
		t.Fatalf("expected election.opened subscription, got %q", subscriber.topic)
	}

	envelope, err := sharedevents.NewEnvelope("election-engine", "evt-open-1", "election.opened", "election-1", time.Now(), map[string]any{
		"election_id": "election-1",
	})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}

	if err := subscriber.handler(ctx, envelope); err != nil {
		t.Fatalf("handle election.opened: %v", err)
	}
	tokens, err := module.Store.ListTokensByElection(ctx, "election-1")
	if err != nil {
		t.Fatalf("list tokens: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected a token per active member, got %d", len(tokens))
	}

	if err := subscriber.handler(ctx, envelope); err != nil {
		t.Fatalf("replay must be a no-op, got %v", err)
	}
	tokens, err = module.Store.ListTokensByElection(ctx, "election-1")
	if err != nil {
		t.Fatalf("list tokens after replay: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("replayed event must not mint more tokens, got %d", len(tokens))
	}

	attributable := boardProjection(false)
	attributable.ElectionID = "election-2"
	module.Store.SetElection(attributable)
	opened, err := sharedevents.NewEnvelope("election-engine", "evt-open-2", "election.opened", "election-2", time.Now(), map[string]any{
		"election_id": "election-2",
	})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if err := subscriber.handler(ctx, opened); err != nil {
		t.Fatalf("attributable election must be skipped without error, got %v", err)
	}
	tokens, err = module.Store.ListTokensByElection(ctx, "election-2")
	if err != nil {
		t.Fatalf("list tokens for attributable election: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("attributable elections must not receive tokens, got %d", len(tokens))
	}
}

func TestResultsNotifierAnnouncesOnce(t *testing.T) {
	ctx := context.Background()
	module := electionengine.NewInMemoryModule(nil)
	module.Store.SetActiveMembers("org-1", []string{"member-1", "member-2"})

	subscriber := &captureSubscriber{}
	notifier := electionworkers.ResultsNotifier{
		Subscriber: subscriber,
		Dedup:      module.Store,
		Members:    module.Store,
		Notifier:   module.Store,
	}
	if err := notifier.Start(ctx); err != nil {
		t.Fatalf("notifier start: %v", err)
	}
	if subscriber.topic != "election.finalized" {
		t.Fatalf("expected election.finalized subscription, got %q", subscriber.topic)
	}

	envelope, err := sharedevents.NewEnvelope("election-engine", "evt-final-1", "election.finalized", "election-1", time.Now(), map[string]any{
		"election_id": "election-1",
		"org_id":      "org-1",
	})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}

	if err := subscriber.handler(ctx, envelope); err != nil {
		t.Fatalf("handle election.finalized: %v", err)
	}
	if err := subscriber.handler(ctx, envelope); err != nil {
		t.Fatalf("replay must be a no-op, got %v", err)
	}

	sent := module.Store.Notifications()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one announcement, got %d", len(sent))
	}
	if sent[0].TemplateType != "results_announced" || len(sent[0].Recipients) != 2 {
		t.Fatalf("unexpected announcement: %+v", sent[0])
	}
}
