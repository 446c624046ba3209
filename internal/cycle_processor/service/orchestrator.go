package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
)

var ErrInvalidPreviewCycles = errors.New("preview cycles out of range")

type OrchestratorConfig struct {
	PreviewMaxCycles int
}

// Orchestrator drives a user's cycle run from claim to completion
type Orchestrator struct {
	liabilityRepo   liability.Repository
	runGuard        RunGuard
	advancer        LiabilityAdvancer
	snapshotBuilder SnapshotBuilder
	failureRecorder FailureRecorder
	auditRecorder   AuditRecorder
	config          OrchestratorConfig
	clock           func() time.Time
	logger          *slog.Logger
}

func NewOrchestrator(
	liabilityRepo liability.Repository,
	runGuard RunGuard,
	advancer LiabilityAdvancer,
	snapshotBuilder SnapshotBuilder,
	failureRecorder FailureRecorder,
	auditRecorder AuditRecorder,
	config OrchestratorConfig,
	clock func() time.Time,
	logger *slog.Logger,
) *Orchestrator {
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		liabilityRepo:   liabilityRepo,
		runGuard:        runGuard,
		advancer:        advancer,
		snapshotBuilder: snapshotBuilder,
		failureRecorder: failureRecorder,
		auditRecorder:   auditRecorder,
		config:          config,
		clock:           clock,
		logger:          logger,
	}
}

// RunMonthlyCycle catches every liability of the user up to the reference
// instant. A repeated request with the same idempotency key returns the stored
// result of the completed run without touching any balance.
func (o *Orchestrator) RunMonthlyCycle(ctx context.Context, req cycle.RunRequest) (*cycle.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ref := req.ReferenceInstant
	if ref.IsZero() {
		ref = o.clock()
	}
	ref = ref.UTC()
	cycleKey := cadence.CycleKey(ref)
	key := req.ResolveKey(cycleKey)

	logger := o.logger.With("user_id", req.UserID, "cycle_key", cycleKey, "source", string(req.Source))
	if req.CorrelationID != "" {
		logger = logger.With("correlation_id", req.CorrelationID)
	}

	run, replay, err := o.runGuard.Claim(ctx, req, ref, key)
	if err != nil {
		if errors.Is(err, cycle.ErrRunInProgress) {
			logger.Warn("Cycle run already in progress", "idempotency_key", key)
		}
		return nil, err
	}
	if replay != nil {
		logger.Info("Returning stored cycle result", "run_id", replay.RunID.String(), "idempotency_key", key)
		return replay, nil
	}

	logger = logger.With("run_id", run.ID.String())
	logger.Info("Cycle run started", "reference_instant", ref)

	res, err := o.execute(ctx, run, req, ref, cycleKey, logger)
	if err == nil {
		var final *cycle.Result
		if final, err = o.runGuard.Complete(ctx, run, res); err == nil {
			o.audit(ctx, final, req.CorrelationID, logger)
			logger.Info("Cycle run completed",
				"updated_cards", final.UpdatedCardCount,
				"updated_loans", final.UpdatedLoanCount,
				"ledger_entries", len(final.LedgerEntryIDs),
			)
			return final, nil
		}
	}

	logger.Error("Cycle run failed", "error", err)
	if recErr := o.failureRecorder.RecordFailure(ctx, run, err); recErr != nil {
		logger.Error("Failed to record cycle run failure", "error", recErr)
	}
	return nil, &cycle.RunFailedError{RunID: run.ID, Reason: run.FailureReason, Err: err}
}

func (o *Orchestrator) execute(ctx context.Context, run *cycle.Run, req cycle.RunRequest, ref time.Time, cycleKey string, logger *slog.Logger) (*cycle.Result, error) {
	liabilities, err := o.liabilityRepo.ListByUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load liabilities: %w", err)
	}

	res := &cycle.Result{
		RunID:            run.ID,
		UserID:           req.UserID,
		CycleKey:         cycleKey,
		Source:           req.Source,
		IdempotencyKey:   run.IdempotencyKey,
		ReferenceInstant: ref,
		Liabilities:      make([]liability.AdvanceResult, 0),
		LedgerEntryIDs:   make([]uuid.UUID, 0),
	}

	current := make([]liability.Liability, 0, len(liabilities))
	for _, l := range liabilities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := l.Info().ID
		adv, err := o.advancer.Advance(ctx, id, ref, cycleKey)
		if err != nil {
			return nil, fmt.Errorf("failed to advance liability %s: %w", id, err)
		}
		if adv.Liability == nil {
			logger.Warn("Liability disappeared during cycle run", "liability_id", id.String())
			continue
		}
		current = append(current, adv.Liability)
		if adv.Result == nil {
			continue
		}

		switch adv.Result.Kind {
		case liability.KindCard:
			res.UpdatedCardCount++
		case liability.KindLoan:
			res.UpdatedLoanCount++
		}
		res.Aggregates.Add(*adv.Result)
		res.Liabilities = append(res.Liabilities, *adv.Result)
		res.LedgerEntryIDs = append(res.LedgerEntryIDs, adv.EntryIDs...)
		logger.Debug("Liability advanced", "liability_id", id.String(), "cycles", adv.Result.Cycles)
	}

	summary, err := o.snapshotBuilder.Build(ctx, req.UserID, cycleKey, run.ID, current)
	if err != nil {
		return nil, fmt.Errorf("failed to build month-close snapshot: %w", err)
	}
	res.Snapshot = summary
	res.CompletedAt = o.clock().UTC()
	return res, nil
}

// audit failures never undo a completed run
func (o *Orchestrator) audit(ctx context.Context, res *cycle.Result, correlationID string, logger *slog.Logger) {
	if err := o.auditRecorder.Record(ctx, res, correlationID); err != nil {
		logger.Error("Failed to write cycle audit log", "error", err)
	}
}

// PreviewLiability simulates a stored liability. Zero cycles means the cycles
// that have elapsed but not yet been applied.
func (o *Orchestrator) PreviewLiability(ctx context.Context, userID string, liabilityID uuid.UUID, cycles int) (*liability.Preview, error) {
	if cycles < 0 || (o.config.PreviewMaxCycles > 0 && cycles > o.config.PreviewMaxCycles) {
		return nil, fmt.Errorf("%w: must be between 0 and %d", ErrInvalidPreviewCycles, o.config.PreviewMaxCycles)
	}

	l, err := o.liabilityRepo.GetByID(ctx, liabilityID)
	if err != nil {
		return nil, err
	}
	if l.Info().UserID != userID {
		return nil, liability.ErrLiabilityNotFound{LiabilityID: liabilityID}
	}

	if cycles == 0 {
		cycles = l.ElapsedCycles(o.clock())
	}
	preview := liability.PreviewOf(l, cycles)
	return &preview, nil
}
