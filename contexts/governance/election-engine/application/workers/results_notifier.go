package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "ballotbox/contexts/governance/election-engine/application"
	"ballotbox/contexts/governance/election-engine/ports"
)

const (
	electionFinalizedTopic = "election.finalized"
	defaultResultsCG       = "election-engine-results-cg"
)

// ResultsNotifier reacts to election.finalized: active members of the owning
// organization get a results-announced notification. Delivery failures are
// logged and never retried into the dedup window.
type ResultsNotifier struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Members       ports.MemberDirectory
	Notifier      ports.Notifier
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (n ResultsNotifier) Start(ctx context.Context) error {
	logger := application.ResolveLogger(n.Logger)
	if n.Disabled {
		logger.Info("results notifier disabled by feature flag",
			"event", "election_results_notifier_disabled",
			"module", "governance/election-engine",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(n.ConsumerGroup)
	if group == "" {
		group = defaultResultsCG
	}
	if err := n.Subscriber.Subscribe(ctx, electionFinalizedTopic, group, n.handleFinalized); err != nil {
		logger.Error("results notifier subscribe failed",
			"event", "election_results_notifier_subscribe_failed",
			"module", "governance/election-engine",
			"layer", "worker",
			"topic", electionFinalizedTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("results notifier subscription active",
		"event", "election_results_notifier_started",
		"module", "governance/election-engine",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (n ResultsNotifier) handleFinalized(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(n.Logger)
	if alreadyProcessed, err := n.reserveEvent(ctx, event); err != nil {
		return err
	} else if alreadyProcessed {
		logger.Debug("election.finalized replay skipped",
			"event", "election_finalized_replayed",
			"module", "governance/election-engine",
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload struct {
		ElectionID string `json:"election_id"`
		OrgID      string `json:"org_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("election.finalized payload decode failed",
			"event", "election_finalized_decode_failed",
			"module", "governance/election-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	recipients, err := n.Members.ListActiveMembers(ctx, payload.OrgID)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	if err := n.Notifier.Send(ctx, "results_announced", recipients, map[string]any{
		"election_id": payload.ElectionID,
	}); err != nil {
		logger.Warn("results announcement failed",
			"event", "election_results_notify_failed",
			"module", "governance/election-engine",
			"layer", "worker",
			"election_id", payload.ElectionID,
			"error", err.Error(),
		)
		return nil
	}

	logger.Info("results announcement sent",
		"event", "election_results_notified",
		"module", "governance/election-engine",
		"layer", "worker",
		"election_id", payload.ElectionID,
		"recipients", len(recipients),
	)
	return nil
}

func (n ResultsNotifier) reserveEvent(ctx context.Context, event ports.EventEnvelope) (bool, error) {
	if n.Dedup == nil {
		return false, nil
	}
	ttl := n.DedupTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return n.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), n.now().Add(ttl))
}

func (n ResultsNotifier) now() time.Time {
	now := time.Now().UTC()
	if n.Clock != nil {
		now = n.Clock.Now().UTC()
	}
	return now
}
