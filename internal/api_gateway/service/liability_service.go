package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/platform/persistence"

	processor "github.com/pfin-cycle-ledger/internal/cycle_processor/service"
)

// LiabilityServiceImpl implements the LiabilityService interface
type LiabilityServiceImpl struct {
	txRunner      persistence.TxRunner
	liabilityRepo liability.Repository
	outboxManager processor.OutboxManager
	clock         func() time.Time
	logger        *slog.Logger
}

func NewLiabilityService(
	logger *slog.Logger,
	txRunner persistence.TxRunner,
	liabilityRepo liability.Repository,
	outboxManager processor.OutboxManager,
	clock func() time.Time,
) LiabilityService {
	if clock == nil {
		clock = time.Now
	}
	return &LiabilityServiceImpl{
		txRunner:      txRunner,
		liabilityRepo: liabilityRepo,
		outboxManager: outboxManager,
		clock:         clock,
		logger:        logger,
	}
}

func (s *LiabilityServiceImpl) ListLiabilities(ctx context.Context, userID string) ([]liability.Liability, error) {
	return s.liabilityRepo.ListByUser(ctx, userID)
}

func (s *LiabilityServiceImpl) CreateCard(ctx context.Context, params CardParams) (*liability.Card, error) {
	now := s.clock().UTC()
	anchor := params.Anchor
	if anchor.IsZero() {
		anchor = now
	}

	card := liability.NewCard(params.UserID, params.Name, params.CreditLimit, anchor, now)
	card.APR = params.APR
	card.MinimumPayment = params.MinimumPayment
	card.StatementBalance = params.StatementBalance
	card.Balance = params.StatementBalance
	card.SpendPerMonth = params.SpendPerMonth
	card.ExtraPayment = params.ExtraPayment
	card.MinimumPaymentPercent = params.MinimumPaymentPercent
	if params.MinimumPaymentPolicy != "" {
		card.MinimumPaymentPolicy = params.MinimumPaymentPolicy
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}
	if err := s.liabilityRepo.Create(ctx, card); err != nil {
		s.logger.Error("Failed to create card", "user_id", params.UserID, "error", err)
		return nil, err
	}

	s.logger.Info("Card created", "liability_id", card.ID.String(), "user_id", card.UserID)
	return card, nil
}

func (s *LiabilityServiceImpl) CreateLoan(ctx context.Context, params LoanParams) (*liability.Loan, error) {
	now := s.clock().UTC()

	loan := liability.NewLoan(params.UserID, params.Name, params.Principal, params.Recurrence, now)
	loan.APR = params.APR
	loan.MinimumPayment = params.MinimumPayment

	if err := loan.Validate(); err != nil {
		return nil, err
	}
	if err := s.liabilityRepo.Create(ctx, loan); err != nil {
		s.logger.Error("Failed to create loan", "user_id", params.UserID, "error", err)
		return nil, err
	}

	s.logger.Info("Loan created", "liability_id", loan.ID.String(), "user_id", loan.UserID)
	return loan, nil
}

func (s *LiabilityServiceImpl) Charge(ctx context.Context, userID string, id uuid.UUID, amount float64, description string) (liability.Liability, *ledger.Entry, error) {
	return s.apply(ctx, userID, id, "charge", func(l liability.Liability, now time.Time) (ledger.Draft, error) {
		card, ok := l.(*liability.Card)
		if !ok {
			return ledger.Draft{}, liability.ErrOperationNotPermitted
		}
		if err := card.Charge(amount, now); err != nil {
			return ledger.Draft{}, err
		}
		return liability.ChargeDraft(card, amount, description, now), nil
	})
}

func (s *LiabilityServiceImpl) Pay(ctx context.Context, userID string, id uuid.UUID, amount float64, description string) (liability.Liability, *ledger.Entry, error) {
	return s.apply(ctx, userID, id, "payment", func(l liability.Liability, now time.Time) (ledger.Draft, error) {
		if err := l.Pay(amount, now); err != nil {
			return ledger.Draft{}, err
		}
		return liability.PaymentDraft(l, amount, description, now), nil
	})
}

// apply locks the liability, mutates it and queues the resulting ledger entry
// in the same transaction
func (s *LiabilityServiceImpl) apply(
	ctx context.Context,
	userID string,
	id uuid.UUID,
	operation string,
	mutate func(l liability.Liability, now time.Time) (ledger.Draft, error),
) (liability.Liability, *ledger.Entry, error) {
	var (
		updated liability.Liability
		entry   *ledger.Entry
	)

	err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repoTx := s.liabilityRepo.WithTx(tx)

		locked, err := repoTx.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked.Info().UserID != userID {
			return liability.ErrLiabilityNotFound{LiabilityID: id}
		}

		now := s.clock().UTC()
		draft, err := mutate(locked, now)
		if err != nil {
			return err
		}
		if err := repoTx.Update(ctx, locked); err != nil {
			return err
		}

		e, err := ledger.NewEntry(draft, now)
		if err != nil {
			return fmt.Errorf("failed to build %s entry: %w", operation, err)
		}
		if err := s.outboxManager.Enqueue(ctx, tx, []*ledger.Entry{e}); err != nil {
			return err
		}

		updated, entry = locked, e
		return nil
	})
	if err != nil {
		s.logger.Info("Liability operation rejected",
			"operation", operation,
			"liability_id", id.String(),
			"user_id", userID,
			"error", err,
		)
		return nil, nil, err
	}

	s.logger.Info("Liability operation applied",
		"operation", operation,
		"liability_id", id.String(),
		"entry_id", entry.ID.String(),
		"balance", updated.Info().Balance,
	)
	return updated, entry, nil
}
