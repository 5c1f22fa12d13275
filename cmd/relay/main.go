package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"propbook/internal/events"
	"propbook/internal/health"
	"propbook/pkg/app"
	"propbook/pkg/clock"
	"propbook/pkg/config"
	"propbook/pkg/kafka"
	kafka_config "propbook/pkg/kafka/config"
	kafka_middleware "propbook/pkg/kafka/middleware"
	"syscall"

	"github.com/spf13/cobra"
)

const ServiceName = "relay"

func main() {
	var audit bool

	rootCmd := &cobra.Command{
		Use:   ServiceName,
		Short: "Publish staged lifecycle events from the outbox to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, audit)
		},
	}
	rootCmd.Flags().BoolVar(&audit, "audit", false, "also consume the lifecycle topic and log each event once")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, audit bool) error {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.Client.GracefulShutdown()

	kafkaCfg := kafka_config.FromEnv()
	if err := kafkaCfg.Validate(); err != nil {
		return fmt.Errorf("invalid kafka configuration: %w", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.EventsTopic, cfg.EventsDLQTopic)
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}
	defer producer.Close()

	metrics := kafka_middleware.NewMetrics()
	relay := events.NewRelay(
		events.NewMongoOutboxRepository(cfg),
		events.NewMeteredPublisher(producer, metrics),
		clock.NewSystem(),
		cfg.Log,
		cfg.OutboxBatchSize,
		cfg.OutboxPollInterval,
	)

	checks := []health.Check{
		health.MongoCheck(cfg.Client.Mongo),
		health.KafkaCheck(kafkaCfg.Brokers),
	}
	if cfg.Client.Redis != nil {
		checks = append(checks, health.RedisCheck(cfg.Client.Redis))
	}

	serverApp := app.NewApplication(cfg)
	serverApp.SetHealth(health.NewHandler(cfg.Log, checks...))
	serverApp.AddWorker("outbox-relay", relay.Run)

	if audit {
		consumer, err := newAuditConsumer(cfg, kafkaCfg, metrics)
		if err != nil {
			return err
		}
		defer consumer.Close()
		serverApp.AddWorker("audit-consumer", consumer.Start)
	}

	err = serverApp.RunContext(ctx)
	cfg.Log.Info("Relay metrics", "snapshot", metrics.Snapshot())
	return err
}

// newAuditConsumer dedups by event id in Redis when it is configured and
// in process memory otherwise.
func newAuditConsumer(cfg *config.Config, kafkaCfg *kafka_config.Config, metrics *kafka_middleware.Metrics) (*kafka.Consumer, error) {
	var dedup events.Deduplicator
	if cfg.Client.Redis != nil {
		dedup = events.NewRedisDeduplicator(cfg.Client.Redis, cfg.DedupTTL)
	} else {
		cfg.Log.Warn("Redis not configured, audit dedup is per process")
		dedup = events.NewMemoryDeduplicator(cfg.DedupTTL)
	}

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.Log,
		cfg.EventsTopic,
		cfg.AuditGroupID,
		cfg.EventsDLQTopic,
		events.AuditHandler(dedup, cfg.Log),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit consumer: %w", err)
	}
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(metrics.ConsumerMiddleware())
	}
	return consumer, nil
}
