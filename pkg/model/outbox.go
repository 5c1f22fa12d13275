package model

import "time"

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
)

// OutboxMessage is a broker-ready encoding of one LifecycleEvent.
type OutboxMessage struct {
	EventID   string            `bson:"event_id" json:"event_id"`
	EventType string            `bson:"event_type" json:"event_type"`
	Key       string            `bson:"key" json:"key"`
	Value     []byte            `bson:"value" json:"value"`
	Headers   map[string]string `bson:"headers" json:"headers"`
	Timestamp time.Time         `bson:"timestamp" json:"timestamp"`
}

// OutboxBatch groups events that must become visible together. It is stored
// as a single document so staging is all-or-nothing.
type OutboxBatch struct {
	ID          string          `bson:"_id" json:"id"`
	Messages    []OutboxMessage `bson:"messages" json:"messages"`
	Status      OutboxStatus    `bson:"status" json:"status"`
	Attempts    int             `bson:"attempts" json:"attempts"`
	LastError   string          `bson:"last_error,omitempty" json:"last_error,omitempty"`
	CreatedAt   time.Time       `bson:"created_at" json:"created_at"`
	PublishedAt *time.Time      `bson:"published_at,omitempty" json:"published_at,omitempty"`
}
