package components

import (
	"log/slog"
	"time"

	"github.com/pfin-cycle-ledger/internal/config"
	"github.com/pfin-cycle-ledger/internal/cycle_processor/service"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/domain/outbox"
	"github.com/pfin-cycle-ledger/internal/platform/persistence"
)

// Repositories groups the stores the orchestrator depends on
type Repositories struct {
	Liabilities liability.Repository
	Runs        cycle.RunRepository
	Outbox      outbox.Repository
	Snapshots   cycle.SnapshotRepository
	Audits      cycle.AuditRepository
	Profiles    cycle.ProfileReader
}

// CreateOrchestrator wires the orchestrator with its components
func CreateOrchestrator(
	txRunner persistence.TxRunner,
	repos Repositories,
	clock func() time.Time,
	logger *slog.Logger,
	cfg *config.Config,
) *service.Orchestrator {
	if clock == nil {
		clock = time.Now
	}
	outboxManager := NewOutboxManager(repos.Outbox, clock, logger)

	return service.NewOrchestrator(
		repos.Liabilities,
		NewRunGuard(repos.Runs, cfg.Cycle.StaleRunAfter, clock, logger),
		NewLiabilityAdvancer(txRunner, repos.Liabilities, outboxManager, clock, logger),
		NewSnapshotBuilder(repos.Profiles, repos.Snapshots, clock, logger),
		NewFailureRecorder(repos.Runs, cfg.Cycle.FailureReasonMaxLen, clock, logger),
		NewAuditRecorder(repos.Audits, clock, logger),
		service.OrchestratorConfig{PreviewMaxCycles: cfg.Cycle.PreviewMaxCycles},
		clock,
		logger.With("component", "orchestrator"),
	)
}

// CreateCycleService returns the orchestrator behind a worker pool, falling back
// to the bare orchestrator if the pool cannot be created
func CreateCycleService(
	txRunner persistence.TxRunner,
	repos Repositories,
	logger *slog.Logger,
	cfg *config.Config,
) service.CycleService {
	baseService := CreateOrchestrator(txRunner, repos, time.Now, logger, cfg)

	workerPoolService, err := service.NewWorkerPoolCycleService(
		baseService,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool cycle service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
