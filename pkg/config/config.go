package config

import (
	"fmt"
	"os"
	"propbook/pkg/client"
	"propbook/pkg/logger"
	"propbook/pkg/model"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	Port string

	LockTimeout      time.Duration
	LockTTL          time.Duration
	LockPollInterval time.Duration

	EventsTopic        string
	EventsDLQTopic     string
	EventsDelivery     string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	AuditGroupID       string
	DedupTTL           time.Duration

	PropertyDirectoryURL string
	UserDirectoryURL     string
	DirectoryTimeout     time.Duration
	NotifierURL          string
	NotifyTimeout        time.Duration

	SchedulerInterval   time.Duration
	VisitReminderWindow time.Duration
	BookingReminderDays int
	BookingOverlap      model.OverlapPolicy

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

// Load reads configuration for serviceName from the environment, after
// applying an optional .env file, and exits the process if it is invalid.
func Load(serviceName string) *Config {
	_ = godotenv.Load(getEnvStr(EnvEnvFile, ".env"))

	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from environment variables and defaults without
// validating it or opening any connection.
func FromEnv() *Config {
	overlap, err := model.ParseOverlapPolicy(getEnvStr(EnvBookingOverlap, DefaultBookingOverlap))
	if err != nil {
		overlap = model.OverlapPolicy(os.Getenv(EnvBookingOverlap))
	}

	return &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:        getEnvStr(EnvRedisAddr, ""),
		RedisPassword:    getEnvStr(EnvRedisPassword, ""),
		RedisDB:          getEnvNum(EnvRedisDB, DefaultRedisDB),
		RedisConnTimeout: getEnvDuration(EnvRedisConnTimeout, DefaultRedisConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		LockTimeout:      getEnvDuration(EnvLockTimeout, DefaultLockTimeout),
		LockTTL:          getEnvDuration(EnvLockTTL, DefaultLockTTL),
		LockPollInterval: getEnvDuration(EnvLockPollInterval, DefaultLockPollInterval),

		EventsTopic:        getEnvStr(EnvEventsTopic, DefaultEventsTopic),
		EventsDLQTopic:     getEnvStr(EnvEventsDLQTopic, DefaultEventsDLQTopic),
		EventsDelivery:     getEnvStr(EnvEventsDelivery, DefaultEventsDelivery),
		OutboxPollInterval: getEnvDuration(EnvOutboxPollInterval, DefaultOutboxPollInterval),
		OutboxBatchSize:    getEnvNum(EnvOutboxBatchSize, DefaultOutboxBatchSize),
		AuditGroupID:       getEnvStr(EnvAuditGroupID, DefaultAuditGroupID),
		DedupTTL:           getEnvDuration(EnvDedupTTL, DefaultDedupTTL),

		PropertyDirectoryURL: getEnvStr(EnvPropertyDirectoryURL, ""),
		UserDirectoryURL:     getEnvStr(EnvUserDirectoryURL, ""),
		DirectoryTimeout:     getEnvDuration(EnvDirectoryTimeout, DefaultDirectoryTimeout),
		NotifierURL:          getEnvStr(EnvNotifierURL, ""),
		NotifyTimeout:        getEnvDuration(EnvNotifyTimeout, DefaultNotifyTimeout),

		SchedulerInterval:   getEnvDuration(EnvSchedulerInterval, DefaultSchedulerInterval),
		VisitReminderWindow: getEnvDuration(EnvVisitReminderWindow, DefaultVisitReminderWindow),
		BookingReminderDays: getEnvNum(EnvBookingReminderDays, DefaultBookingReminderDays),
		BookingOverlap:      overlap,

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RedisConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RedisConnTimeout must be positive, got: %s", cfg.RedisConnTimeout))
	}

	if cfg.LockTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("LockTimeout must be positive, got: %s", cfg.LockTimeout))
	}
	if cfg.LockTTL < cfg.LockTimeout {
		errors = append(errors, fmt.Sprintf("LockTTL (%s) must be >= LockTimeout (%s)", cfg.LockTTL, cfg.LockTimeout))
	}
	if cfg.LockPollInterval <= 0 {
		errors = append(errors, fmt.Sprintf("LockPollInterval must be positive, got: %s", cfg.LockPollInterval))
	}

	if cfg.EventsTopic == "" {
		errors = append(errors, "EventsTopic cannot be empty")
	}
	if cfg.EventsDelivery != DeliveryOutbox && cfg.EventsDelivery != DeliveryDirect {
		errors = append(errors, fmt.Sprintf("EventsDelivery must be %q or %q, got: %s", DeliveryOutbox, DeliveryDirect, cfg.EventsDelivery))
	}
	if cfg.OutboxPollInterval <= 0 {
		errors = append(errors, fmt.Sprintf("OutboxPollInterval must be positive, got: %s", cfg.OutboxPollInterval))
	}
	if cfg.OutboxBatchSize <= 0 {
		errors = append(errors, fmt.Sprintf("OutboxBatchSize must be positive, got: %d", cfg.OutboxBatchSize))
	}
	if cfg.DedupTTL <= 0 {
		errors = append(errors, fmt.Sprintf("DedupTTL must be positive, got: %s", cfg.DedupTTL))
	}

	if cfg.DirectoryTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("DirectoryTimeout must be positive, got: %s", cfg.DirectoryTimeout))
	}
	if cfg.NotifyTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyTimeout must be positive, got: %s", cfg.NotifyTimeout))
	}

	if cfg.SchedulerInterval <= 0 {
		errors = append(errors, fmt.Sprintf("SchedulerInterval must be positive, got: %s", cfg.SchedulerInterval))
	}
	if cfg.VisitReminderWindow <= 0 {
		errors = append(errors, fmt.Sprintf("VisitReminderWindow must be positive, got: %s", cfg.VisitReminderWindow))
	}
	if cfg.BookingReminderDays < 0 {
		errors = append(errors, fmt.Sprintf("BookingReminderDays cannot be negative, got: %d", cfg.BookingReminderDays))
	}
	if _, err := model.ParseOverlapPolicy(string(cfg.BookingOverlap)); err != nil {
		errors = append(errors, fmt.Sprintf("BookingOverlap: %v", err))
	}

	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"port", cfg.Port,
		"lock_timeout", cfg.LockTimeout,
		"lock_ttl", cfg.LockTTL,
		"events_topic", cfg.EventsTopic,
		"events_dlq_topic", cfg.EventsDLQTopic,
		"events_delivery", cfg.EventsDelivery,
		"outbox_poll_interval", cfg.OutboxPollInterval,
		"outbox_batch_size", cfg.OutboxBatchSize,
		"property_directory_url", cfg.PropertyDirectoryURL,
		"user_directory_url", cfg.UserDirectoryURL,
		"notifier_url", cfg.NotifierURL,
		"notify_timeout", cfg.NotifyTimeout,
		"scheduler_interval", cfg.SchedulerInterval,
		"visit_reminder_window", cfg.VisitReminderWindow,
		"booking_reminder_days", cfg.BookingReminderDays,
		"booking_overlap_policy", cfg.BookingOverlap,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}
