package events

import (
	"context"
	"propbook/pkg/kafka"
	"propbook/pkg/logger"
	"propbook/pkg/model"
)

// AuditHandler is a downstream consumer of the lifecycle topic. It drops
// redeliveries by event id and logs each event once.
func AuditHandler(dedup Deduplicator, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var ev model.LifecycleEvent
		if err := msg.DecodeValue(&ev); err != nil {
			return kafka.NewPermanentError("malformed lifecycle event", err)
		}
		if ev.EventID == "" {
			ev.EventID = msg.GetEventID()
		}

		first, err := dedup.FirstSeen(ctx, ev.EventID)
		if err != nil {
			return kafka.NewTransientError("dedup lookup failed", err)
		}
		if !first {
			log.Debug("Skipping duplicate lifecycle event", "event_id", ev.EventID, "event_type", ev.EventType)
			return nil
		}

		log.Info("Lifecycle event",
			"event_id", ev.EventID,
			"event_type", ev.EventType,
			"entity_type", ev.EntityType,
			"entity_id", ev.EntityID,
			"timestamp", ev.Timestamp,
		)
		return nil
	}
}
