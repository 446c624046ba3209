package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newLiabilityService(repo *MockLiabilityRepository, outbox *MockOutboxManager) LiabilityService {
	return NewLiabilityService(discardLogger(), stubTxRunner{}, repo, outbox, testClock)
}

func testCard(userID string) *liability.Card {
	c := liability.NewCard(userID, "Everyday Visa", 2000, testNow.AddDate(0, 0, -10), testNow.AddDate(0, -1, 0))
	c.StatementBalance = 300
	c.Balance = 300
	return c
}

func testLoan(userID string) *liability.Loan {
	return liability.NewLoan(userID, "Car", 5000, cadence.Recurrence{Cadence: cadence.CadenceMonthly, Anchor: testNow.AddDate(0, 0, -5)}, testNow)
}

func TestLiabilityService_CreateCard(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockLiabilityRepository)
		svc := newLiabilityService(repo, new(MockOutboxManager))
		repo.On("Create", ctx, mock.AnythingOfType("*liability.Card")).Return(nil).Once()

		card, err := svc.CreateCard(ctx, CardParams{
			UserID:           "user-1",
			Name:             "Travel card",
			CreditLimit:      5000,
			APR:              19.9,
			StatementBalance: 120,
			MinimumPayment:   25,
		})

		require.NoError(t, err)
		assert.Equal(t, 120.0, card.Balance)
		assert.Equal(t, liability.MinimumPaymentFixed, card.MinimumPaymentPolicy)
		assert.Equal(t, testNow, card.LastCycleAnchor)
		repo.AssertExpectations(t)
	})

	t.Run("PercentPolicyNeedsPercent", func(t *testing.T) {
		repo := new(MockLiabilityRepository)
		svc := newLiabilityService(repo, new(MockOutboxManager))

		_, err := svc.CreateCard(ctx, CardParams{
			UserID:               "user-1",
			Name:                 "Travel card",
			CreditLimit:          5000,
			MinimumPaymentPolicy: liability.MinimumPaymentPercentPlusInterest,
		})

		assert.ErrorIs(t, err, liability.ErrMissingMinimumPercent)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestLiabilityService_CreateLoan(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockLiabilityRepository)
		svc := newLiabilityService(repo, new(MockOutboxManager))
		repo.On("Create", ctx, mock.AnythingOfType("*liability.Loan")).Return(nil).Once()

		loan, err := svc.CreateLoan(ctx, LoanParams{
			UserID:         "user-1",
			Name:           "Car",
			Principal:      8000,
			APR:            6,
			MinimumPayment: 250,
			Recurrence:     cadence.Recurrence{Cadence: cadence.CadenceMonthly, Anchor: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		})

		require.NoError(t, err)
		assert.Equal(t, 8000.0, loan.Balance)
		assert.Equal(t, 31, loan.CycleDay)
	})

	t.Run("InvalidRecurrence", func(t *testing.T) {
		repo := new(MockLiabilityRepository)
		svc := newLiabilityService(repo, new(MockOutboxManager))

		_, err := svc.CreateLoan(ctx, LoanParams{
			UserID:     "user-1",
			Name:       "Car",
			Principal:  8000,
			Recurrence: cadence.Recurrence{Cadence: cadence.CadenceCustom, CustomInterval: 0, Anchor: testNow},
		})

		assert.ErrorIs(t, err, cadence.ErrInvalidRecurrence)
	})
}

func TestLiabilityService_Charge(t *testing.T) {
	ctx := context.Background()

	t.Run("UpdatesBalanceAndQueuesEntry", func(t *testing.T) {
		repo := new(MockLiabilityRepository)
		outbox := new(MockOutboxManager)
		svc := newLiabilityService(repo, outbox)
		card := testCard("user-1")

		repo.On("LockForUpdate", ctx, card.ID).Return(card, nil).Once()
		repo.On("Update", ctx, card).Return(nil).Once()
		outbox.On("Enqueue", ctx, mock.Anything, mock.MatchedBy(func(entries []*ledger.Entry) bool {
			return len(entries) == 1 && entries[0].EntryType == ledger.EntryTypeCardSpend
		})).Return(nil).Once()

		updated, entry, err := svc.Charge(ctx, "user-1", card.ID, 45.5, "Dinner")

		require.NoError(t, err)
		assert.Equal(t, 345.5, updated.Info().Balance)
		assert.Equal(t, 45.5, updated.(*liability.Card).PendingCharges)
		assert.Equal(t, "Dinner", entry.Description)
		assert.Equal(t, card.ID.String(), entry.ReferenceID)
		repo.AssertExpectations(t)
		outbox.AssertExpectations(t)
	})

	t.Run("LoanCannotBeCharged", func(t *testing.T) {
		repo := new(MockLiabilityRepository)
		outbox := new(MockOutboxManager)
		svc := newLiabilityService(repo, outbox)
		loan := testLoan("user-1")
		repo.On("LockForUpdate", ctx, loan.ID).Return(loan, nil).Once()

		_, _, err := svc.Charge(ctx, "user-1", loan.ID, 10, "")

		assert.ErrorIs(t, err, liability.ErrOperationNotPermitted)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("OverLimit", func(t *testing.T) {
		repo := new(MockLiabilityRepository)
		svc := newLiabilityService(repo, new(MockOutboxManager))
		card := testCard("user-1")
		repo.On("LockForUpdate", ctx, card.ID).Return(card, nil).Once()

		_, _, err := svc.Charge(ctx, "user-1", card.ID, 1800, "")

		assert.ErrorIs(t, err, liability.ErrChargeExceedsLimit)
	})

	t.Run("OtherUsersLiability", func(t *testing.T) {
		repo := new(MockLiabilityRepository)
		svc := newLiabilityService(repo, new(MockOutboxManager))
		card := testCard("user-2")
		repo.On("LockForUpdate", ctx, card.ID).Return(card, nil).Once()

		_, _, err := svc.Charge(ctx, "user-1", card.ID, 10, "")

		assert.ErrorIs(t, err, liability.ErrLiabilityNotFound{})
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestLiabilityService_Pay(t *testing.T) {
	ctx := context.Background()

	t.Run("LoanPayment", func(t *testing.T) {
		repo := new(MockLiabilityRepository)
		outbox := new(MockOutboxManager)
		svc := newLiabilityService(repo, outbox)
		loan := testLoan("user-1")

		repo.On("LockForUpdate", ctx, loan.ID).Return(loan, nil).Once()
		repo.On("Update", ctx, loan).Return(nil).Once()
		outbox.On("Enqueue", ctx, mock.Anything, mock.MatchedBy(func(entries []*ledger.Entry) bool {
			return len(entries) == 1 && entries[0].EntryType == ledger.EntryTypeLoanPayment
		})).Return(nil).Once()

		updated, entry, err := svc.Pay(ctx, "user-1", loan.ID, 500, "")

		require.NoError(t, err)
		assert.Equal(t, 4500.0, updated.Info().Balance)
		assert.Equal(t, "Payment to Car", entry.Description)
	})

	t.Run("OutboxFailureRollsBack", func(t *testing.T) {
		repo := new(MockLiabilityRepository)
		outbox := new(MockOutboxManager)
		svc := newLiabilityService(repo, outbox)
		card := testCard("user-1")
		queueErr := errors.New("outbox insert failed")

		repo.On("LockForUpdate", ctx, card.ID).Return(card, nil).Once()
		repo.On("Update", ctx, card).Return(nil).Once()
		outbox.On("Enqueue", ctx, mock.Anything, mock.Anything).Return(queueErr).Once()

		updated, entry, err := svc.Pay(ctx, "user-1", card.ID, 100, "")

		assert.ErrorIs(t, err, queueErr)
		assert.Nil(t, updated)
		assert.Nil(t, entry)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(MockLiabilityRepository)
		svc := newLiabilityService(repo, new(MockOutboxManager))
		id := uuid.New()
		repo.On("LockForUpdate", ctx, id).Return(nil, liability.ErrLiabilityNotFound{LiabilityID: id}).Once()

		_, _, err := svc.Pay(ctx, "user-1", id, 100, "")

		assert.ErrorIs(t, err, liability.ErrLiabilityNotFound{LiabilityID: id})
	})
}
