package application

import (
	"encoding/json"
	"time"

	contractsv1 "backlot/contracts/gen/events/v1"
	"backlot/contexts/studio-content/production-pipeline/ports"
)

func newPipelineEnvelope(
	eventID string,
	eventType string,
	entityID string,
	occurredAt time.Time,
	payload map[string]any,
) (ports.EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		OccurredAt:    occurredAt.UTC(),
		SourceService: "studio-content/production-pipeline",
		SchemaVersion: contractsv1.SchemaVersion,
		PartitionKey:  entityID,
		Data:          data,
	}, nil
}
