package components

import (
	"context"
	"log/slog"
	"time"

	"github.com/pfin-cycle-ledger/internal/cycle_processor/service"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
)

type FailureRecorderImpl struct {
	runRepo   cycle.RunRepository
	maxReason int
	clock     func() time.Time
	logger    *slog.Logger
}

func NewFailureRecorder(runRepo cycle.RunRepository, maxReason int, clock func() time.Time, logger *slog.Logger) service.FailureRecorder {
	return &FailureRecorderImpl{
		runRepo:   runRepo,
		maxReason: maxReason,
		clock:     clock,
		logger:    logger,
	}
}

// RecordFailure marks the run FAILED. It survives a cancelled ctx so a timed
// out run still frees its idempotency key.
func (r *FailureRecorderImpl) RecordFailure(ctx context.Context, run *cycle.Run, cause error) error {
	run.Fail(cause.Error(), r.maxReason, r.clock())

	if err := r.runRepo.MarkFailed(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Error("Failed to mark cycle run as failed", "run_id", run.ID.String(), "error", err)
		return err
	}
	r.logger.Info("Recorded failed cycle run", "run_id", run.ID.String(), "reason", run.FailureReason)
	return nil
}
