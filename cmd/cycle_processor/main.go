package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pfin-cycle-ledger/internal/config"
	"github.com/pfin-cycle-ledger/internal/cycle_processor/components"
	"github.com/pfin-cycle-ledger/internal/cycle_processor/consumer"
	"github.com/pfin-cycle-ledger/internal/cycle_processor/outbox_poller"
	"github.com/pfin-cycle-ledger/internal/cycle_processor/service"
	"github.com/pfin-cycle-ledger/internal/data/mongo"
	"github.com/pfin-cycle-ledger/internal/data/postgres"
	"github.com/pfin-cycle-ledger/internal/logger"
	"github.com/pfin-cycle-ledger/internal/platform/messaging/consumers"
	"github.com/pfin-cycle-ledger/internal/platform/messaging/producers"
	"github.com/pfin-cycle-ledger/internal/platform/notify"
	"github.com/pfin-cycle-ledger/internal/platform/persistence"
	"github.com/pfin-cycle-ledger/internal/platform/scheduler"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("cycle_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Cycle Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	repos := components.Repositories{
		Liabilities: postgres.NewLiabilityRepository(log, postgresDB),
		Runs:        postgres.NewCycleRunRepository(log, postgresDB),
		Outbox:      postgres.NewOutboxRepository(log, postgresDB),
		Snapshots:   mongo.NewSnapshotRepository(log, mongoDB.Database()),
		Audits:      mongo.NewAuditRepository(log, mongoDB.Database()),
		Profiles:    mongo.NewProfileRepository(log, mongoDB.Database()),
	}
	ledgerRepo := mongo.NewLedgerRepository(log, mongoDB.Database())

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// nil when no DLQ topic is configured; the handler copes with that
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	cycleService := components.CreateCycleService(postgresDB, repos, log, cfg)

	triggerHandler := consumer.NewTriggerEventHandler(
		log,
		cycleService,
		dlqProducer,
		notify.NewEmailAlerter(cfg.Alert, log),
	)

	ledgerPublisher := outbox_poller.NewLedgerPublisher(repos.Outbox, ledgerRepo, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, repos.Outbox, ledgerPublisher, log)

	var (
		triggerProducer *producers.TriggerProducer
		cycleScheduler  *scheduler.Scheduler
	)
	if cfg.Scheduler.Enabled {
		triggerProducer, err = producers.NewTriggerProducer(appCtx, log, &cfg.Kafka)
		if err != nil {
			log.Error("Failed to initialize cycle trigger producer", "error", err)
			os.Exit(1)
		}
		cycleScheduler, err = scheduler.New(cfg.Scheduler, repos.Liabilities, triggerProducer, log)
		if err != nil {
			log.Error("Failed to initialize cycle scheduler", "error", err)
			os.Exit(1)
		}
	}

	errChan := make(chan error, 2)

	var wg sync.WaitGroup

	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.TriggerTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Subscribe(appCtx, triggerHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Outbox Poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(appCtx)
	}()

	if cycleScheduler != nil {
		cycleScheduler.Start(appCtx)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	log.Info("Starting graceful shutdown...")

	// No new triggers once shutdown starts
	if cycleScheduler != nil {
		cycleScheduler.Stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Close waits for the fetch loop, so in-flight runs finish before the pool is released
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if wpService, ok := cycleService.(*service.WorkerPoolCycleService); ok {
		log.Info("Shutting down worker pool", "running_workers", wpService.Running())
		wpService.Shutdown()
	}

	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit", "timeout", cfg.Server.ShutdownTimeout.String())
	}

	if triggerProducer != nil {
		if err = triggerProducer.Close(); err != nil {
			log.Error("Error closing cycle trigger producer", "error", err)
		}
	}

	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	postgresDB.Close()

	mongoCtx, cancelMongo := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelMongo()
	if err = mongoDB.Close(mongoCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Cycle Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Cycle Processor shutdown completed with errors")
	} else {
		log.Info("Cycle Processor shutdown completed successfully")
	}
}
