package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "propbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisDB          = 0
	DefaultRedisConnTimeout = 5 * time.Second

	DefaultPort = "8080"

	DefaultLockTimeout      = 30 * time.Second
	DefaultLockTTL          = 45 * time.Second
	DefaultLockPollInterval = 50 * time.Millisecond

	DefaultEventsTopic        = "propbook.lifecycle"
	DefaultEventsDLQTopic     = "propbook.lifecycle.dlq"
	DefaultEventsDelivery     = DeliveryOutbox
	DefaultOutboxPollInterval = 2 * time.Second
	DefaultOutboxBatchSize    = 100
	DefaultAuditGroupID       = "propbook-audit"
	DefaultDedupTTL           = 72 * time.Hour

	DefaultDirectoryTimeout = 5 * time.Second
	DefaultNotifyTimeout    = 5 * time.Second

	DefaultSchedulerInterval   = 5 * time.Minute
	DefaultVisitReminderWindow = 24 * time.Hour
	DefaultBookingReminderDays = 1
	DefaultBookingOverlap      = "same_day_turnover"

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultLogLevel = "info"
)

const (
	DeliveryOutbox = "outbox"
	DeliveryDirect = "direct"
)
