package commands

import (
	"time"

	"ballotbox/contexts/governance/ballot-office/ports"
	sharedevents "ballotbox/internal/shared/events"
)

func newBallotEnvelope(
	eventID string,
	eventType string,
	electionID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	return sharedevents.NewEnvelope("ballot-office", eventID, eventType, electionID, occurredAt, data)
}
