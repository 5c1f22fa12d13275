package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr        = "REDIS_ADDR"
	EnvRedisPassword    = "REDIS_PASSWORD"
	EnvRedisDB          = "REDIS_DB"
	EnvRedisConnTimeout = "REDIS_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"
	EnvEnvFile  = "ENV_FILE"

	EnvLockTimeout      = "LOCK_TIMEOUT"
	EnvLockTTL          = "LOCK_TTL"
	EnvLockPollInterval = "LOCK_POLL_INTERVAL"

	EnvEventsTopic        = "EVENTS_TOPIC"
	EnvEventsDLQTopic     = "EVENTS_DLQ_TOPIC"
	EnvEventsDelivery     = "EVENTS_DELIVERY"
	EnvOutboxPollInterval = "OUTBOX_POLL_INTERVAL"
	EnvOutboxBatchSize    = "OUTBOX_BATCH_SIZE"
	EnvAuditGroupID       = "AUDIT_GROUP_ID"
	EnvDedupTTL           = "DEDUP_TTL"

	EnvPropertyDirectoryURL = "PROPERTY_DIRECTORY_URL"
	EnvUserDirectoryURL     = "USER_DIRECTORY_URL"
	EnvDirectoryTimeout     = "DIRECTORY_TIMEOUT"
	EnvNotifierURL          = "NOTIFIER_URL"
	EnvNotifyTimeout        = "NOTIFY_TIMEOUT"

	EnvSchedulerInterval   = "SCHEDULER_INTERVAL"
	EnvVisitReminderWindow = "VISIT_REMINDER_WINDOW"
	EnvBookingReminderDays = "BOOKING_REMINDER_DAYS"
	EnvBookingOverlap      = "BOOKING_OVERLAP_POLICY"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
