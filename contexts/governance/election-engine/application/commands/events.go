package commands

import (
	"time"

	"ballotbox/contexts/governance/election-engine/ports"
	sharedevents "ballotbox/internal/shared/events"
)

func newElectionEnvelope(
	eventID string,
	eventType string,
	electionID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	return sharedevents.NewEnvelope("election-engine", eventID, eventType, electionID, occurredAt, data)
}
