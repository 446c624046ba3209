package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pfin-cycle-ledger/internal/cycle_processor/service"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
)

const staleRunReason = "abandoned: run exceeded the stale threshold without finishing"

type RunGuardImpl struct {
	runRepo    cycle.RunRepository
	staleAfter time.Duration
	clock      func() time.Time
	logger     *slog.Logger
}

func NewRunGuard(runRepo cycle.RunRepository, staleAfter time.Duration, clock func() time.Time, logger *slog.Logger) service.RunGuard {
	return &RunGuardImpl{
		runRepo:    runRepo,
		staleAfter: staleAfter,
		clock:      clock,
		logger:     logger,
	}
}

// Claim replays a completed run for the key or inserts a new RUNNING row.
// Losing the insert race to another worker yields ErrRunInProgress unless
// that worker has already completed.
func (g *RunGuardImpl) Claim(ctx context.Context, req cycle.RunRequest, ref time.Time, key string) (*cycle.Run, *cycle.Result, error) {
	now := g.clock()

	if key != "" {
		replay, err := g.completed(ctx, req.UserID, key)
		if err != nil || replay != nil {
			return nil, replay, err
		}
		if g.staleAfter > 0 {
			released, err := g.runRepo.FailStale(ctx, req.UserID, key, now.Add(-g.staleAfter), staleRunReason)
			if err != nil {
				return nil, nil, err
			}
			if released > 0 {
				g.logger.Warn("Released stale cycle run", "user_id", req.UserID, "idempotency_key", key, "count", released)
			}
		}
	}

	run := cycle.NewRun(req, ref, key, now)
	if err := g.runRepo.Create(ctx, run); err != nil {
		if !errors.Is(err, cycle.ErrDuplicateRun{}) {
			return nil, nil, fmt.Errorf("failed to claim cycle run: %w", err)
		}
		replay, err := g.completed(ctx, req.UserID, key)
		if err != nil {
			return nil, nil, err
		}
		if replay != nil {
			return nil, replay, nil
		}
		return nil, nil, cycle.ErrRunInProgress
	}
	return run, nil, nil
}

func (g *RunGuardImpl) completed(ctx context.Context, userID, key string) (*cycle.Result, error) {
	run, err := g.runRepo.GetCompletedByKey(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up completed run: %w", err)
	}
	if run == nil {
		return nil, nil
	}
	res, err := run.DecodeResult()
	if err != nil {
		return nil, err
	}
	res.Replayed = true
	return res, nil
}

// Complete persists the result and hands back the decoded payload, so the first
// caller sees exactly what a replay would
func (g *RunGuardImpl) Complete(ctx context.Context, run *cycle.Run, res *cycle.Result) (*cycle.Result, error) {
	if err := run.Complete(res, g.clock()); err != nil {
		return nil, err
	}
	if err := g.runRepo.MarkCompleted(ctx, run); err != nil {
		return nil, err
	}
	return run.DecodeResult()
}
