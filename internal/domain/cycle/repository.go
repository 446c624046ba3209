package cycle

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunRepository persists cycle runs. At most one RUNNING or COMPLETED run may
// exist per user and idempotency key.
type RunRepository interface {
	// Create inserts a RUNNING run. It returns ErrDuplicateRun when another
	// active or completed run holds the same idempotency key.
	Create(ctx context.Context, run *Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)

	// GetCompletedByKey returns nil, nil when no completed run holds the key
	GetCompletedByKey(ctx context.Context, userID, idempotencyKey string) (*Run, error)
	MarkCompleted(ctx context.Context, run *Run) error
	MarkFailed(ctx context.Context, run *Run) error

	// FailStale fails RUNNING runs for the key that started before the cutoff,
	// releasing keys held by a crashed processor. It returns the number released.
	FailStale(ctx context.Context, userID, idempotencyKey string, startedBefore time.Time, reason string) (int64, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Run, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// SnapshotRepository stores month-close snapshots keyed by user and cycle
type SnapshotRepository interface {
	Upsert(ctx context.Context, snapshot *Snapshot) error
	Get(ctx context.Context, userID, cycleKey string) (*Snapshot, error)
}

// AuditRepository stores cycle audit logs
type AuditRepository interface {
	Create(ctx context.Context, log *AuditLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*AuditLog, error)
}

// ProfileReader loads the cash and recurring income/bill data owned elsewhere
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// ErrDuplicateRun indicates the idempotency key is already claimed
type ErrDuplicateRun struct {
	UserID         string
	IdempotencyKey string
}

func (e ErrDuplicateRun) Error() string {
	return "cycle run already exists for key " + e.IdempotencyKey
}

// Is matches any ErrDuplicateRun when the target has no key
func (e ErrDuplicateRun) Is(target error) bool {
	t, ok := target.(ErrDuplicateRun)
	if !ok {
		return false
	}
	return t.IdempotencyKey == "" || (t.UserID == e.UserID && t.IdempotencyKey == e.IdempotencyKey)
}

// ErrRunNotFound indicates missing cycle run
type ErrRunNotFound struct {
	RunID uuid.UUID
}

func (e ErrRunNotFound) Error() string {
	return "cycle run not found: " + e.RunID.String()
}

// Is matches any ErrRunNotFound when the target carries no id
func (e ErrRunNotFound) Is(target error) bool {
	t, ok := target.(ErrRunNotFound)
	if !ok {
		return false
	}
	return t.RunID == uuid.Nil || t.RunID == e.RunID
}

// ErrSnapshotNotFound indicates missing month-close snapshot
type ErrSnapshotNotFound struct {
	UserID   string
	CycleKey string
}

func (e ErrSnapshotNotFound) Error() string {
	return "month-close snapshot not found for cycle " + e.CycleKey
}
