package cycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

// AuditLog is written for every manual run and every run that changed balances
type AuditLog struct {
	ID               uuid.UUID                 `json:"id" bson:"_id"`
	UserID           string                    `json:"user_id" bson:"user_id"`
	RunID            uuid.UUID                 `json:"run_id" bson:"run_id"`
	CycleKey         string                    `json:"cycle_key" bson:"cycle_key"`
	Source           shared.RunSource          `json:"source" bson:"source"`
	UpdatedCardCount int                       `json:"updated_card_count" bson:"updated_card_count"`
	UpdatedLoanCount int                       `json:"updated_loan_count" bson:"updated_loan_count"`
	Aggregates       Aggregates                `json:"aggregates" bson:"aggregates"`
	LedgerEntryIDs   []uuid.UUID               `json:"ledger_entry_ids" bson:"ledger_entry_ids"`
	Liabilities      []liability.AdvanceResult `json:"liabilities" bson:"liabilities"`
	CorrelationID    string                    `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CreatedAt        time.Time                 `json:"created_at" bson:"created_at"`
}

// ShouldAudit reports whether a finished run needs an audit row
func ShouldAudit(res *Result) bool {
	return res.Source == shared.RunSourceManual || res.Changed()
}

// NewAuditLog builds the audit row for a completed run
func NewAuditLog(res *Result, correlationID string, now time.Time) *AuditLog {
	return &AuditLog{
		ID:               uuid.New(),
		UserID:           res.UserID,
		RunID:            res.RunID,
		CycleKey:         res.CycleKey,
		Source:           res.Source,
		UpdatedCardCount: res.UpdatedCardCount,
		UpdatedLoanCount: res.UpdatedLoanCount,
		Aggregates:       res.Aggregates,
		LedgerEntryIDs:   res.LedgerEntryIDs,
		Liabilities:      res.Liabilities,
		CorrelationID:    correlationID,
		CreatedAt:        now.UTC(),
	}
}
