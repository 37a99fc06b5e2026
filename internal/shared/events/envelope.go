package events

import (
	"encoding/json"
	"time"

	contractsv1 "ballotbox/contracts/gen/events/v1"
)

// PartitionKeyPath used by every governance event: consumers key on the
// election so per-election ordering holds across topics.
const ElectionPartitionKeyPath = "election_id"

// NewEnvelope builds the canonical envelope for a governance integration
// event. The payload map is marshalled once here so outbox rows store the
// exact bytes consumers will see.
func NewEnvelope(
	sourceService string,
	eventID string,
	eventType string,
	electionID string,
	occurredAt time.Time,
	data map[string]any,
) (contractsv1.Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return contractsv1.Envelope{}, err
	}
	return contractsv1.Envelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: ElectionPartitionKeyPath,
		PartitionKey:     electionID,
		Data:             payload,
	}, nil
}
