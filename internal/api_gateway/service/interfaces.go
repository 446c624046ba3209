package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
)

// CycleService exposes monthly cycle runs to the HTTP API
type CycleService interface {
	// RunCycle runs the caller's cycle synchronously.
	// A replayed result has Replayed set.
	RunCycle(ctx context.Context, req cycle.RunRequest) (*cycle.Result, error)

	// TriggerCycle queues the run for the cycle processor and returns the trigger id
	TriggerCycle(ctx context.Context, req cycle.RunRequest) (uuid.UUID, error)

	// ListRuns returns the user's runs newest first and the total count
	ListRuns(ctx context.Context, userID string, page, perPage int) ([]*cycle.Run, int64, error)

	// GetSnapshot returns cycle.ErrSnapshotNotFound when the cycle never closed
	GetSnapshot(ctx context.Context, userID, cycleKey string) (*cycle.Snapshot, error)

	// ListAudits returns at most limit audit logs, newest first
	ListAudits(ctx context.Context, userID string, limit int) ([]*cycle.AuditLog, error)

	PreviewLiability(ctx context.Context, userID string, liabilityID uuid.UUID, cycles int) (*liability.Preview, error)
}

// LedgerService appends and reads ledger entries
type LedgerService interface {
	// AppendEntry validates the draft and stores it.
	// Returns ledger.ImbalancedEntryError or ledger.InvalidLineAmountError for bad drafts.
	AppendEntry(ctx context.Context, draft ledger.Draft) (*ledger.Entry, error)

	// GetEntry returns ledger.ErrEntryNotFound for entries of other users too
	GetEntry(ctx context.Context, userID string, id uuid.UUID) (*ledger.Entry, error)

	// ListEntries pages through the user's entries, optionally limited to one cycle
	ListEntries(ctx context.Context, userID, cycleKey string, page, perPage int) ([]*ledger.Entry, int64, error)

	// ReverseEntry appends the correcting entry. Returns ledger.ErrAlreadyReversed
	// when a reversal already exists.
	ReverseEntry(ctx context.Context, userID string, id uuid.UUID, description string) (*ledger.Entry, error)
}

// CardParams describes a new credit card
type CardParams struct {
	UserID                string
	Name                  string
	CreditLimit           float64
	APR                   float64
	StatementBalance      float64
	MinimumPayment        float64
	MinimumPaymentPolicy  liability.MinimumPaymentPolicy
	MinimumPaymentPercent float64
	SpendPerMonth         float64
	ExtraPayment          float64
	Anchor                time.Time
}

// LoanParams describes a new installment loan
type LoanParams struct {
	UserID         string
	Name           string
	Principal      float64
	APR            float64
	MinimumPayment float64
	Recurrence     cadence.Recurrence
}

// LiabilityService manages the user's cards and loans outside of cycle runs
type LiabilityService interface {
	ListLiabilities(ctx context.Context, userID string) ([]liability.Liability, error)
	CreateCard(ctx context.Context, params CardParams) (*liability.Card, error)
	CreateLoan(ctx context.Context, params LoanParams) (*liability.Loan, error)

	// Charge and Pay update the balance and queue the ledger entry in one transaction
	Charge(ctx context.Context, userID string, id uuid.UUID, amount float64, description string) (liability.Liability, *ledger.Entry, error)
	Pay(ctx context.Context, userID string, id uuid.UUID, amount float64, description string) (liability.Liability, *ledger.Entry, error)
}
