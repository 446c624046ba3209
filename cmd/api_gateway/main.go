package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pfin-cycle-ledger/internal/api_gateway"
	"github.com/pfin-cycle-ledger/internal/api_gateway/service"
	"github.com/pfin-cycle-ledger/internal/config"
	"github.com/pfin-cycle-ledger/internal/cycle_processor/components"
	"github.com/pfin-cycle-ledger/internal/data/mongo"
	"github.com/pfin-cycle-ledger/internal/data/postgres"
	"github.com/pfin-cycle-ledger/internal/logger"
	"github.com/pfin-cycle-ledger/internal/platform/messaging/producers"
	"github.com/pfin-cycle-ledger/internal/platform/persistence"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

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

	// Queued runs go through the cycle processor
	triggerProducer, err := producers.NewTriggerProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize cycle trigger producer", "error", err)
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

	// Synchronous runs execute in-process against the same stores
	orchestrator := components.CreateOrchestrator(postgresDB, repos, time.Now, log, cfg)

	services := api_gateway.Services{
		Cycles: service.NewCycleService(log, orchestrator, repos.Runs, repos.Snapshots, repos.Audits, triggerProducer, time.Now),
		Ledger: service.NewLedgerService(log, ledgerRepo, time.Now),
		Liabilities: service.NewLiabilityService(
			log,
			postgresDB,
			repos.Liabilities,
			components.NewOutboxManager(repos.Outbox, time.Now, log),
			time.Now,
		),
	}

	server := api_gateway.NewServer(log, cfg, services, time.Now)
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before the stores go away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = triggerProducer.Close(); err != nil {
		log.Error("Error closing cycle trigger producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
