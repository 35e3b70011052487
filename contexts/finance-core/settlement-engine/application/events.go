package application

import (
	"encoding/json"
	"time"

	contractsv1 "backlot/contracts/gen/events/v1"
	"backlot/contexts/finance-core/settlement-engine/ports"
)

// NewRefundEnvelope builds the settlement.refund.created event. Exported for
// the payout worker, which opens refunds outside the request path.
func NewRefundEnvelope(eventID string, refundID string, occurredAt time.Time, payload map[string]any) (ports.EventEnvelope, error) {
	return newSettlementEnvelope(eventID, "settlement.refund.created", refundID, occurredAt, payload)
}

func newSettlementEnvelope(
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
		SourceService: "finance-core/settlement-engine",
		SchemaVersion: contractsv1.SchemaVersion,
		PartitionKey:  entityID,
		Data:          data,
	}, nil
}
