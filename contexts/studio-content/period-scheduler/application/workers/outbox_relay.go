package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"backlot/contexts/studio-content/period-scheduler/application"
	"backlot/contexts/studio-content/period-scheduler/ports"
)

// OutboxRelay publishes persisted scheduler outbox rows to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes a bounded batch of pending outbox rows, marking each row
// published only after broker publish succeeds. It stops on the first failure
// so the next cycle reprocesses the remaining rows.
func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("scheduler outbox list failed",
			"event", "scheduler_outbox_list_failed",
			"module", "studio-content/period-scheduler",
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
			logger.Error("scheduler outbox decode failed",
				"event", "scheduler_outbox_decode_failed",
				"module", "studio-content/period-scheduler",
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
			logger.Error("scheduler outbox publish failed",
				"event", "scheduler_outbox_publish_failed",
				"module", "studio-content/period-scheduler",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"topic", topic,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			return err
		}
	}

	logger.Info("scheduler outbox relay cycle completed",
		"event", "scheduler_outbox_relay_completed",
		"module", "studio-content/period-scheduler",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
