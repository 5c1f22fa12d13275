package events

import (
	"context"
	"fmt"
	"propbook/pkg/clock"
	"propbook/pkg/config"
	apperrors "propbook/pkg/errors"
	"propbook/pkg/logger"
	"propbook/pkg/model"

	"github.com/google/uuid"
)

// Emitter hands lifecycle events to the broker in two phases.
//
// Stage runs inside the entity's unit of work. Deliver runs after that unit
// of work has committed; its error is an EventDelivery AppError and never
// undoes the mutation.
//
// Events passed in one call are kept together in a single outbox record. The
// relay republishes that record whole until every message lands, and
// consumers drop repeats by event id.
type Emitter interface {
	Stage(txCtx context.Context, evs ...model.LifecycleEvent) error
	Deliver(ctx context.Context, evs ...model.LifecycleEvent) error
}

// NewEmitter picks the delivery mode named by cfg.EventsDelivery.
func NewEmitter(cfg *config.Config, outbox OutboxRepository, publisher Publisher, clk clock.Clock) Emitter {
	if cfg.EventsDelivery == config.DeliveryDirect {
		return NewDirectEmitter(publisher, outbox, clk, cfg.Log)
	}
	return NewOutboxEmitter(outbox, clk, cfg.Log)
}

type outboxEmitter struct {
	repo  OutboxRepository
	clock clock.Clock
	log   *logger.Logger
}

// NewOutboxEmitter stores each call's events as one outbox document in the
// caller's transaction. A Relay publishes them later.
func NewOutboxEmitter(repo OutboxRepository, clk clock.Clock, log *logger.Logger) Emitter {
	return &outboxEmitter{repo: repo, clock: clk, log: log}
}

func (e *outboxEmitter) Stage(txCtx context.Context, evs ...model.LifecycleEvent) error {
	if len(evs) == 0 {
		return nil
	}
	msgs, err := ToMessages(evs)
	if err != nil {
		return apperrors.Internal("Failed to encode lifecycle events", err)
	}

	batch := &model.OutboxBatch{
		ID:        uuid.NewString(),
		Messages:  toOutboxMessages(msgs),
		Status:    model.OutboxPending,
		CreatedAt: e.clock.Now(),
	}
	if err := e.repo.Insert(txCtx, batch); err != nil {
		return apperrors.Internal("Failed to stage lifecycle events", err)
	}

	e.log.Debug("Staged lifecycle events", "batch_id", batch.ID, "count", len(evs), "first_event", evs[0].EventType)
	return nil
}

func (e *outboxEmitter) Deliver(context.Context, ...model.LifecycleEvent) error {
	return nil
}

type directEmitter struct {
	publisher Publisher
	batches   Emitter
	log       *logger.Logger
}

// NewDirectEmitter publishes a single event after commit. A broker failure is
// reported and that event is dropped. Calls carrying several events go to the
// outbox instead, since a kafka-go write spanning partitions can partly fail.
func NewDirectEmitter(publisher Publisher, outbox OutboxRepository, clk clock.Clock, log *logger.Logger) Emitter {
	return &directEmitter{
		publisher: publisher,
		batches:   NewOutboxEmitter(outbox, clk, log),
		log:       log,
	}
}

func (e *directEmitter) Stage(txCtx context.Context, evs ...model.LifecycleEvent) error {
	if len(evs) > 1 {
		return e.batches.Stage(txCtx, evs...)
	}
	return nil
}

func (e *directEmitter) Deliver(ctx context.Context, evs ...model.LifecycleEvent) error {
	if len(evs) != 1 {
		return nil
	}
	msgs, err := ToMessages(evs)
	if err != nil {
		return apperrors.EventDelivery("Failed to encode lifecycle events", err)
	}

	if err := e.publisher.PublishBatch(ctx, msgs); err != nil {
		e.log.Error("Failed to publish lifecycle event",
			"entity_id", evs[0].EntityID,
			"event_type", evs[0].EventType,
			"error", err,
		)
		return apperrors.EventDelivery(fmt.Sprintf("Failed to publish %s", evs[0].EventType), err)
	}
	return nil
}
