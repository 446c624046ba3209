package outbox

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

// Repository stores ledger entries waiting for delivery to the ledger store.
// Create is used inside the liability transaction via WithTx; the poller uses the rest.
type Repository interface {
	Create(ctx context.Context, message *Message) error

	// GetPending returns PENDING messages oldest first
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error

	// PurgeProcessed deletes PROCESSED messages last touched before the cutoff.
	// FAILED_TO_PUBLISH messages are kept for inspection.
	PurgeProcessed(ctx context.Context, before time.Time) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

// Is matches any ErrMessageNotFound when the target carries no id
func (e ErrMessageNotFound) Is(target error) bool {
	t, ok := target.(ErrMessageNotFound)
	if !ok {
		return false
	}
	return t.ID == 0 || t.ID == e.ID
}

// ErrDuplicateMessage indicates an entry was already queued
type ErrDuplicateMessage struct {
	EntryID uuid.UUID
}

func (e ErrDuplicateMessage) Error() string {
	return "duplicate outbox message for entry: " + e.EntryID.String()
}
