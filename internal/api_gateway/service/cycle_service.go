package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
	"github.com/pfin-cycle-ledger/internal/platform/messaging/producers"

	processor "github.com/pfin-cycle-ledger/internal/cycle_processor/service"
)

// CycleServiceImpl runs cycles in-process and reads run history
type CycleServiceImpl struct {
	runner       processor.CycleService
	runRepo      cycle.RunRepository
	snapshotRepo cycle.SnapshotRepository
	auditRepo    cycle.AuditRepository
	publisher    producers.TriggerPublisher
	clock        func() time.Time
	logger       *slog.Logger
}

// NewCycleService creates a cycle service. A nil publisher disables TriggerCycle.
func NewCycleService(
	logger *slog.Logger,
	runner processor.CycleService,
	runRepo cycle.RunRepository,
	snapshotRepo cycle.SnapshotRepository,
	auditRepo cycle.AuditRepository,
	publisher producers.TriggerPublisher,
	clock func() time.Time,
) CycleService {
	if clock == nil {
		clock = time.Now
	}
	return &CycleServiceImpl{
		runner:       runner,
		runRepo:      runRepo,
		snapshotRepo: snapshotRepo,
		auditRepo:    auditRepo,
		publisher:    publisher,
		clock:        clock,
		logger:       logger,
	}
}

func (s *CycleServiceImpl) RunCycle(ctx context.Context, req cycle.RunRequest) (*cycle.Result, error) {
	res, err := s.runner.RunMonthlyCycle(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Cycle run finished",
		"run_id", res.RunID.String(),
		"user_id", res.UserID,
		"cycle_key", res.CycleKey,
		"replayed", res.Replayed,
		"correlation_id", req.CorrelationID,
	)
	return res, nil
}

// TriggerCycle publishes the request for asynchronous processing
func (s *CycleServiceImpl) TriggerCycle(ctx context.Context, req cycle.RunRequest) (uuid.UUID, error) {
	if err := req.Validate(); err != nil {
		return uuid.Nil, err
	}
	if s.publisher == nil {
		return uuid.Nil, fmt.Errorf("cycle triggers are not configured")
	}

	now := s.clock().UTC()
	ref := req.ReferenceInstant
	if ref.IsZero() {
		ref = now
	}
	trigger := shared.CycleTrigger{
		TriggerID:        uuid.New(),
		UserID:           req.UserID,
		ReferenceInstant: ref.UTC(),
		Source:           req.Source,
		IdempotencyKey:   req.IdempotencyKey,
		CorrelationID:    req.CorrelationID,
		Timestamp:        now,
	}
	if err := s.publisher.PublishTrigger(ctx, trigger); err != nil {
		s.logger.Error("Failed to publish cycle trigger",
			"user_id", req.UserID,
			"correlation_id", req.CorrelationID,
			"error", err,
		)
		return uuid.Nil, err
	}

	s.logger.Info("Cycle trigger published",
		"trigger_id", trigger.TriggerID.String(),
		"user_id", trigger.UserID,
		"cycle_key", cadence.CycleKey(trigger.ReferenceInstant),
	)
	return trigger.TriggerID, nil
}

func (s *CycleServiceImpl) ListRuns(ctx context.Context, userID string, page, perPage int) ([]*cycle.Run, int64, error) {
	offset := (page - 1) * perPage

	runs, err := s.runRepo.ListByUser(ctx, userID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.runRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

func (s *CycleServiceImpl) GetSnapshot(ctx context.Context, userID, cycleKey string) (*cycle.Snapshot, error) {
	if _, err := cadence.ParseCycleKey(cycleKey); err != nil {
		return nil, fmt.Errorf("%w: %v", cycle.ErrInvalidRunRequest, err)
	}
	return s.snapshotRepo.Get(ctx, userID, cycleKey)
}

func (s *CycleServiceImpl) ListAudits(ctx context.Context, userID string, limit int) ([]*cycle.AuditLog, error) {
	return s.auditRepo.ListByUser(ctx, userID, limit)
}

func (s *CycleServiceImpl) PreviewLiability(ctx context.Context, userID string, liabilityID uuid.UUID, cycles int) (*liability.Preview, error) {
	return s.runner.PreviewLiability(ctx, userID, liabilityID, cycles)
}
