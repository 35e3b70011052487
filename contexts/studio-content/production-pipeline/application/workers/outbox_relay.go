package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"backlot/contexts/studio-content/production-pipeline/application"
	"backlot/contexts/studio-content/production-pipeline/ports"
)

// OutboxRelay publishes persisted pipeline outbox rows to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("pipeline outbox list failed",
			"event", "pipeline_outbox_list_failed",
			"module", "studio-content/production-pipeline",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("pipeline outbox decode failed",
				"event", "pipeline_outbox_decode_failed",
				"module", "studio-content/production-pipeline",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			return err
		}
	}

	logger.Info("pipeline outbox relay cycle completed",
		"event", "pipeline_outbox_relay_completed",
		"module", "studio-content/production-pipeline",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
