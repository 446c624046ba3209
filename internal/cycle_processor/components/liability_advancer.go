package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pfin-cycle-ledger/internal/cycle_processor/service"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/platform/persistence"
)

// LiabilityAdvancerImpl catches one liability up inside a single transaction:
// lock, simulate, update and queue the ledger entries commit or roll back together.
type LiabilityAdvancerImpl struct {
	txRunner      persistence.TxRunner
	liabilityRepo liability.Repository
	outboxManager service.OutboxManager
	clock         func() time.Time
	logger        *slog.Logger
}

func NewLiabilityAdvancer(
	txRunner persistence.TxRunner,
	liabilityRepo liability.Repository,
	outboxManager service.OutboxManager,
	clock func() time.Time,
	logger *slog.Logger,
) service.LiabilityAdvancer {
	return &LiabilityAdvancerImpl{
		txRunner:      txRunner,
		liabilityRepo: liabilityRepo,
		outboxManager: outboxManager,
		clock:         clock,
		logger:        logger,
	}
}

func (a *LiabilityAdvancerImpl) Advance(ctx context.Context, liabilityID uuid.UUID, ref time.Time, cycleKey string) (*service.Advancement, error) {
	var out service.Advancement

	err := a.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		out = service.Advancement{}
		repoTx := a.liabilityRepo.WithTx(tx)

		locked, err := repoTx.LockForUpdate(ctx, liabilityID)
		if err != nil {
			if errors.Is(err, liability.ErrLiabilityNotFound{LiabilityID: liabilityID}) {
				return nil
			}
			return fmt.Errorf("failed to lock liability: %w", err)
		}
		out.Liability = locked

		// elapsed cycles come from the locked anchor, never from the caller's copy
		cycles := locked.ElapsedCycles(ref)
		if cycles == 0 {
			return nil
		}

		now := a.clock()
		res := locked.Advance(cycles, now)
		if err := repoTx.Update(ctx, locked); err != nil {
			return err
		}

		drafts := liability.CycleDrafts(locked, res, cycleKey, locked.Info().LastCycleAnchor)
		entries := make([]*ledger.Entry, 0, len(drafts))
		for _, d := range drafts {
			entry, err := ledger.NewEntry(d, now)
			if err != nil {
				return fmt.Errorf("failed to build %s entry: %w", d.EntryType, err)
			}
			entries = append(entries, entry)
			out.EntryIDs = append(out.EntryIDs, entry.ID)
		}
		if err := a.outboxManager.Enqueue(ctx, tx, entries); err != nil {
			return err
		}

		out.Result = &res
		a.logger.Info("Liability advanced",
			"liability_id", liabilityID.String(),
			"kind", string(res.Kind),
			"cycles", res.Cycles,
			"balance_before", res.BalanceBefore,
			"balance_after", res.BalanceAfter,
		)
		return nil
	})
	if err != nil {
		a.logger.Error("Failed to advance liability", "liability_id", liabilityID.String(), "error", err)
		return nil, err
	}
	return &out, nil
}
