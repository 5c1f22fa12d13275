package events

import (
	"context"
	"fmt"
	"propbook/pkg/clock"
	"propbook/pkg/kafka"
	"propbook/pkg/model"

	"github.com/google/uuid"
)

const (
	SchemaVersion = "1"
	Source        = "propbook"
)

// Builder stamps lifecycle events with ids, time and request metadata.
type Builder struct {
	clock clock.Clock
}

func NewBuilder(clk clock.Clock) *Builder {
	return &Builder{clock: clk}
}

func (b *Builder) Booking(ctx context.Context, eventType model.EventType, booking *model.ShortletBooking, previous map[string]any) model.LifecycleEvent {
	snapshot := *booking
	return b.build(ctx, eventType, model.EntityBooking, booking.ID, &snapshot, previous)
}

func (b *Builder) Visit(ctx context.Context, eventType model.EventType, visit *model.Visit, previous map[string]any) model.LifecycleEvent {
	snapshot := *visit
	return b.build(ctx, eventType, model.EntityVisit, visit.ID, &snapshot, previous)
}

func (b *Builder) build(ctx context.Context, eventType model.EventType, entityType model.EntityType, entityID string, current any, previous map[string]any) model.LifecycleEvent {
	return model.LifecycleEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   entityID,
		Timestamp:  b.clock.Now(),
		Payload: model.EventPayload{
			Current:  current,
			Previous: previous,
			Context:  MetadataFrom(ctx).toContext(),
		},
	}
}

// ToMessage encodes ev for the broker. The entity id is the partition key so
// every event for one booking or visit lands on the same partition in order.
func ToMessage(ev model.LifecycleEvent) (kafka.Message, error) {
	msg, err := kafka.NewMessage().
		WithKey(ev.EntityID).
		WithValue(ev).
		WithEventID(ev.EventID).
		WithEventType(string(ev.EventType)).
		WithEntityType(string(ev.EntityType)).
		WithCorrelationID(ev.Payload.Context["correlationId"]).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithTimestamp(ev.Timestamp).
		BuildE()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s %s: %w", ev.EventType, ev.EventID, err)
	}
	return msg, nil
}

func ToMessages(evs []model.LifecycleEvent) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		msg, err := ToMessage(ev)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
