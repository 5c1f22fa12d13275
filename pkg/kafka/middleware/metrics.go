package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"propbook/pkg/kafka"
)

// Metrics holds Kafka operation counters
type Metrics struct {
	MessagesPublished       int64
	MessagesPublishedFailed int64
	PublishDurationTotal    int64 // Nanoseconds

	MessagesConsumed       int64
	MessagesConsumedFailed int64
	ConsumeDurationTotal   int64 // Nanoseconds
}

// Snapshot is a point-in-time copy of Metrics for reporting.
type Snapshot struct {
	Published          int64  `json:"published"`
	PublishFailed      int64  `json:"publish_failed"`
	AvgPublishDuration string `json:"avg_publish_duration"`
	Consumed           int64  `json:"consumed"`
	ConsumeFailed      int64  `json:"consume_failed"`
	AvgConsumeDuration string `json:"avg_consume_duration"`
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Reset() {
	atomic.StoreInt64(&m.MessagesPublished, 0)
	atomic.StoreInt64(&m.MessagesPublishedFailed, 0)
	atomic.StoreInt64(&m.PublishDurationTotal, 0)
	atomic.StoreInt64(&m.MessagesConsumed, 0)
	atomic.StoreInt64(&m.MessagesConsumedFailed, 0)
	atomic.StoreInt64(&m.ConsumeDurationTotal, 0)
}

func (m *Metrics) GetAvgPublishDuration() time.Duration {
	published := atomic.LoadInt64(&m.MessagesPublished)
	if published == 0 {
		return 0
	}
	total := atomic.LoadInt64(&m.PublishDurationTotal)
	return time.Duration(total / published)
}

func (m *Metrics) GetAvgConsumeDuration() time.Duration {
	consumed := atomic.LoadInt64(&m.MessagesConsumed)
	if consumed == 0 {
		return 0
	}
	total := atomic.LoadInt64(&m.ConsumeDurationTotal)
	return time.Duration(total / consumed)
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Published:          atomic.LoadInt64(&m.MessagesPublished),
		PublishFailed:      atomic.LoadInt64(&m.MessagesPublishedFailed),
		AvgPublishDuration: m.GetAvgPublishDuration().String(),
		Consumed:           atomic.LoadInt64(&m.MessagesConsumed),
		ConsumeFailed:      atomic.LoadInt64(&m.MessagesConsumedFailed),
		AvgConsumeDuration: m.GetAvgConsumeDuration().String(),
	}
}

// ProducerMiddleware tracks publish outcomes into m
func (m *Metrics) ProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		m.RecordPublish(time.Since(start), err)
		return err
	}
}

// RecordPublish counts one publish attempt. Batch publishers call it directly.
func (m *Metrics) RecordPublish(d time.Duration, err error) {
	atomic.AddInt64(&m.PublishDurationTotal, int64(d))
	if err != nil {
		atomic.AddInt64(&m.MessagesPublishedFailed, 1)
	} else {
		atomic.AddInt64(&m.MessagesPublished, 1)
	}
}

// ConsumerMiddleware tracks consume outcomes into m
func (m *Metrics) ConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()

		err := next(ctx, msg)

		atomic.AddInt64(&m.ConsumeDurationTotal, int64(time.Since(start)))
		if err != nil {
			atomic.AddInt64(&m.MessagesConsumedFailed, 1)
		} else {
			atomic.AddInt64(&m.MessagesConsumed, 1)
		}

		return err
	}
}
