package liability

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines liability persistence operations. Cards and loans share
// one table tagged by Kind.
type Repository interface {
	Create(ctx context.Context, l Liability) error
	GetByID(ctx context.Context, id uuid.UUID) (Liability, error)
	ListByUser(ctx context.Context, userID string) ([]Liability, error)

	// ListUserIDs returns every user owning at least one liability
	ListUserIDs(ctx context.Context) ([]string, error)

	// Update persists balances and the cycle anchor using optimistic locking
	Update(ctx context.Context, l Liability) error

	// LockForUpdate acquires a pessimistic lock for cycle processing
	LockForUpdate(ctx context.Context, id uuid.UUID) (Liability, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	LiabilityID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for liability: " + e.LiabilityID.String()
}

// ErrLiabilityNotFound indicates missing liability
type ErrLiabilityNotFound struct {
	LiabilityID uuid.UUID
}

func (e ErrLiabilityNotFound) Error() string {
	return "liability not found: " + e.LiabilityID.String()
}

// Is matches any ErrLiabilityNotFound when the target carries no id
func (e ErrLiabilityNotFound) Is(target error) bool {
	t, ok := target.(ErrLiabilityNotFound)
	if !ok {
		return false
	}
	return t.LiabilityID == uuid.Nil || t.LiabilityID == e.LiabilityID
}
