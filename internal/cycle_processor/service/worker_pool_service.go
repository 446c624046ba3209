package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
)

// WorkerPoolCycleService bounds the number of cycle runs executing at once
type WorkerPoolCycleService struct {
	baseService CycleService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

type runOutcome struct {
	result *cycle.Result
	err    error
}

func NewWorkerPoolCycleService(
	baseService CycleService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolCycleService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolCycleService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// RunMonthlyCycle submits the run to the pool and waits for its outcome.
// Cancelling ctx stops the wait; the run itself observes the same ctx.
func (s *WorkerPoolCycleService) RunMonthlyCycle(ctx context.Context, req cycle.RunRequest) (*cycle.Result, error) {
	logger := s.logger
	if req.CorrelationID != "" {
		logger = s.logger.With("correlation_id", req.CorrelationID)
	}

	logger.Info("Submitting cycle run to worker pool", "user_id", req.UserID, "source", string(req.Source))

	done := make(chan runOutcome, 1)
	err := s.pool.Submit(func() {
		res, err := s.baseService.RunMonthlyCycle(ctx, req)
		done <- runOutcome{result: res, err: err}
	})
	if err != nil {
		logger.Error("Failed to submit cycle run to worker pool", "user_id", req.UserID, "error", err)
		return nil, err
	}

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PreviewLiability is cheap and pure, so it bypasses the pool
func (s *WorkerPoolCycleService) PreviewLiability(ctx context.Context, userID string, liabilityID uuid.UUID, cycles int) (*liability.Preview, error) {
	return s.baseService.PreviewLiability(ctx, userID, liabilityID, cycles)
}

func (s *WorkerPoolCycleService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

func (s *WorkerPoolCycleService) Running() int {
	return s.pool.Running()
}

func (s *WorkerPoolCycleService) Capacity() int {
	return s.pool.Cap()
}
