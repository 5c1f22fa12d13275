package events

import (
	"context"
	"propbook/pkg/kafka"
	kafka_middleware "propbook/pkg/kafka/middleware"
	"sync"
	"time"
)

// Publisher sends a batch of messages in one broker call. *kafka.Producer
// satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, messages []kafka.Message) error
}

var _ Publisher = (*kafka.Producer)(nil)

// MeteredPublisher counts every message of a batch as published or failed
// with the batch's outcome.
type MeteredPublisher struct {
	next    Publisher
	metrics *kafka_middleware.Metrics
}

func NewMeteredPublisher(next Publisher, metrics *kafka_middleware.Metrics) *MeteredPublisher {
	return &MeteredPublisher{next: next, metrics: metrics}
}

func (p *MeteredPublisher) PublishBatch(ctx context.Context, messages []kafka.Message) error {
	start := time.Now()
	err := p.next.PublishBatch(ctx, messages)
	elapsed := time.Since(start)
	for range messages {
		p.metrics.RecordPublish(elapsed, err)
	}
	return err
}

// MemoryPublisher keeps published batches in memory. Once SetErr is given a
// non-nil error every call fails without recording anything.
type MemoryPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Message
	err     error
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) PublishBatch(_ context.Context, messages []kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	batch := make([]kafka.Message, len(messages))
	copy(batch, messages)
	p.batches = append(p.batches, batch)
	return nil
}

func (p *MemoryPublisher) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *MemoryPublisher) Batches() [][]kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]kafka.Message, len(p.batches))
	copy(out, p.batches)
	return out
}

// EventTypes flattens every published message into its event type, in order.
func (p *MemoryPublisher) EventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, b := range p.batches {
		for _, m := range b {
			out = append(out, m.GetEventType())
		}
	}
	return out
}
