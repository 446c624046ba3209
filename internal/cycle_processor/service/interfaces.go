package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
)

// CycleService runs monthly cycles and previews stored liabilities
type CycleService interface {
	RunMonthlyCycle(ctx context.Context, req cycle.RunRequest) (*cycle.Result, error)
	PreviewLiability(ctx context.Context, userID string, liabilityID uuid.UUID, cycles int) (*liability.Preview, error)
}

// RunGuard enforces one effective run per user and idempotency key
type RunGuard interface {
	// Claim returns either a new RUNNING run or the stored result of a completed one
	Claim(ctx context.Context, req cycle.RunRequest, ref time.Time, key string) (*cycle.Run, *cycle.Result, error)

	// Complete stores the result and returns it as a later replay would see it
	Complete(ctx context.Context, run *cycle.Run, res *cycle.Result) (*cycle.Result, error)
}

// Advancement is the outcome of catching one liability up to the reference date.
// Result is nil when no cycle had elapsed; Liability is nil when the row vanished.
type Advancement struct {
	Liability liability.Liability
	Result    *liability.AdvanceResult
	EntryIDs  []uuid.UUID
}

// LiabilityAdvancer applies elapsed cycles to one liability in its own transaction
type LiabilityAdvancer interface {
	Advance(ctx context.Context, liabilityID uuid.UUID, ref time.Time, cycleKey string) (*Advancement, error)
}

// OutboxManager queues ledger entries inside the caller's transaction
type OutboxManager interface {
	Enqueue(ctx context.Context, tx pgx.Tx, entries []*ledger.Entry) error
}

// SnapshotBuilder computes and stores the month-close snapshot
type SnapshotBuilder interface {
	Build(ctx context.Context, userID, cycleKey string, runID uuid.UUID, liabilities []liability.Liability) (cycle.Summary, error)
}

// FailureRecorder marks a run FAILED
type FailureRecorder interface {
	RecordFailure(ctx context.Context, run *cycle.Run, cause error) error
}

// AuditRecorder writes the audit log for runs that need one
type AuditRecorder interface {
	Record(ctx context.Context, res *cycle.Result, correlationID string) error
}
