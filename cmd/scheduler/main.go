package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	availabilityRepository "propbook/internal/availability/repository"
	availabilityService "propbook/internal/availability/service"
	bookingRepository "propbook/internal/bookings/repository"
	bookingService "propbook/internal/bookings/service"
	bookingValidator "propbook/internal/bookings/validator"
	"propbook/internal/directory"
	"propbook/internal/events"
	"propbook/internal/guard"
	"propbook/internal/health"
	"propbook/internal/notify"
	"propbook/internal/scheduler"
	slotRepository "propbook/internal/slots/repository"
	slotService "propbook/internal/slots/service"
	visitRepository "propbook/internal/visits/repository"
	visitService "propbook/internal/visits/service"
	"propbook/pkg/app"
	"propbook/pkg/clock"
	"propbook/pkg/config"
	dbmongo "propbook/pkg/db/mongo"
	"propbook/pkg/kafka"
	kafka_config "propbook/pkg/kafka/config"
	kafka_middleware "propbook/pkg/kafka/middleware"
	"propbook/pkg/validation"
	"syscall"

	"github.com/spf13/cobra"
)

const ServiceName = "scheduler"

func main() {
	rootCmd := &cobra.Command{
		Use:   ServiceName,
		Short: "Periodic expiry, reminder and completion jobs for bookings and visits",
	}
	rootCmd.AddCommand(runCmd(), onceCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every job on SCHEDULER_INTERVAL and serve /health and /ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			defer cfg.Client.GracefulShutdown()

			deps, err := initServices(cfg)
			if err != nil {
				return err
			}
			defer deps.close()

			serverApp := app.NewApplication(cfg)
			serverApp.SetHealth(health.NewHandler(cfg.Log, deps.checks...))
			serverApp.AddWorker(ServiceName, func(ctx context.Context) error {
				deps.scheduler.Run(ctx)
				return nil
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serverApp.RunContext(ctx)
		},
	}
}

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once <job>",
		Short: "Run a single job once and exit",
		Args:  cobra.ExactArgs(1),
		ValidArgs: []string{
			scheduler.JobAutoCompletePastVisits,
			scheduler.JobExpirePendingBookings,
			scheduler.JobExpirePendingVisits,
			scheduler.JobSendReminders,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			defer cfg.Client.GracefulShutdown()

			deps, err := initServices(cfg)
			if err != nil {
				return err
			}
			defer deps.close()

			result, err := deps.scheduler.RunJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%s: %d of %d items failed", result.Job, result.Failed, result.Processed)
			}
			return nil
		},
	}
}

func load() *config.Config {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	return cfg
}

type services struct {
	scheduler *scheduler.Scheduler
	checks    []health.Check
	close     func()
}

func initServices(cfg *config.Config) (*services, error) {
	if cfg.PropertyDirectoryURL == "" || cfg.UserDirectoryURL == "" {
		return nil, fmt.Errorf("PROPERTY_DIRECTORY_URL and USER_DIRECTORY_URL are required")
	}

	clk := clock.NewSystem()
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	tx := dbmongo.NewTransactionManager(cfg.Client.Mongo)
	checks := []health.Check{health.MongoCheck(cfg.Client.Mongo)}

	var locker guard.Locker
	if cfg.Client.Redis != nil {
		locker = guard.NewRedisLocker(cfg.Client.Redis, cfg.LockPollInterval)
		checks = append(checks, health.RedisCheck(cfg.Client.Redis))
	} else {
		locker = guard.NewMongoLocker(db, tx, clk, cfg.LockPollInterval)
	}
	g := guard.New(locker, tx, cfg.Log, guard.WithTimeout(cfg.LockTimeout), guard.WithTTL(cfg.LockTTL))

	closeFn := func() {}
	var publisher events.Publisher
	if cfg.EventsDelivery == config.DeliveryDirect {
		producer, kafkaCfg, err := newProducer(cfg)
		if err != nil {
			return nil, err
		}
		publisher = producer
		checks = append(checks, health.KafkaCheck(kafkaCfg.Brokers))
		closeFn = func() {
			if err := producer.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka producer", "error", err)
			}
		}
	}
	emitter := events.NewEmitter(cfg, events.NewMongoOutboxRepository(cfg), publisher, clk)

	dir := directory.NewHTTPDirectory(cfg.PropertyDirectoryURL, cfg.UserDirectoryURL, cfg.DirectoryTimeout)
	var notifier notify.Notifier = notify.NewLogNotifier(cfg.Log)
	if cfg.NotifierURL != "" {
		notifier = notify.NewHTTPNotifier(cfg.NotifierURL, cfg.NotifyTimeout)
	}

	validator := validation.New()
	availability := availabilityService.NewAvailabilityService(
		availabilityRepository.NewMongoAvailabilityRepository(cfg),
		g,
		validator,
		clk,
		cfg,
	)
	slots := slotService.NewSlotService(
		slotRepository.NewMongoSlotRepository(cfg),
		g,
		validator,
		clk,
		cfg,
	)
	bookings := bookingService.NewBookingService(
		bookingRepository.NewMongoBookingRepository(cfg),
		availability,
		g,
		bookingValidator.NewBookingValidator(cfg.Log),
		dir,
		dir,
		emitter,
		notifier,
		clk,
		cfg,
	)
	visits := visitService.NewVisitService(
		visitRepository.NewMongoVisitRepository(cfg),
		slots,
		g,
		validator,
		dir,
		dir,
		emitter,
		notifier,
		clk,
		cfg,
	)

	cfg.Log.Info("Scheduler services initialized",
		"database", cfg.MongoDatabaseName,
		"events_delivery", cfg.EventsDelivery,
		"redis_locks", cfg.Client.Redis != nil,
	)
	return &services{
		scheduler: scheduler.New(bookings, visits, clk, cfg),
		checks:    checks,
		close:     closeFn,
	}, nil
}

func newProducer(cfg *config.Config) (*kafka.Producer, *kafka_config.Config, error) {
	kafkaCfg := kafka_config.FromEnv()
	if err := kafkaCfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.EventsTopic, cfg.EventsDLQTopic)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	return producer, kafkaCfg, nil
}
