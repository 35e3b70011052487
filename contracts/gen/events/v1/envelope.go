package v1

import (
	"encoding/json"
	"errors"
	"time"
)

// SchemaVersion is the current envelope schema revision. Consumers must
// accept any version less than or equal to the one they were built against.
const SchemaVersion = 1

// Envelope is the canonical, versioned event envelope for cross-runtime use.
// The envelope is contract-frozen; additive changes only.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// Validate reports whether the envelope carries the fields every consumer
// depends on for dedup and routing.
func (e Envelope) Validate() error {
	if e.EventID == "" {
		return errors.New("envelope missing event_id")
	}
	if e.EventType == "" {
		return errors.New("envelope missing event_type")
	}
	if e.OccurredAt.IsZero() {
		return errors.New("envelope missing occurred_at")
	}
	return nil
}
