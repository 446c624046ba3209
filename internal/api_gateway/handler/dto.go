package handler

import (
	"time"

	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RunCycleRequest asks for the caller's monthly cycle. Both fields are optional.
type RunCycleRequest struct {
	ReferenceInstant *time.Time `json:"reference_instant,omitempty"`
	IdempotencyKey   string     `json:"idempotency_key,omitempty" binding:"max=255"`
}

// TriggerResponse acknowledges a queued cycle run
type TriggerResponse struct {
	TriggerID string `json:"trigger_id"`
	Status    string `json:"status"`
}

// RunResponse represents a cycle run in API responses
type RunResponse struct {
	ID               string           `json:"id"`
	CycleKey         string           `json:"cycle_key"`
	Source           string           `json:"source"`
	IdempotencyKey   string           `json:"idempotency_key,omitempty"`
	Status           string           `json:"status"`
	UpdatedCardCount int              `json:"updated_card_count"`
	UpdatedLoanCount int              `json:"updated_loan_count"`
	Aggregates       cycle.Aggregates `json:"aggregates"`
	FailureReason    string           `json:"failure_reason,omitempty"`
	ReferenceInstant string           `json:"reference_instant"`
	StartedAt        string           `json:"started_at"`
	FinishedAt       string           `json:"finished_at,omitempty"`
}

// RecurrenceRequest is a recurrence definition as posted by clients
type RecurrenceRequest struct {
	Cadence        string     `json:"cadence" binding:"required"`
	CustomInterval int        `json:"custom_interval,omitempty"`
	CustomUnit     string     `json:"custom_unit,omitempty"`
	Anchor         *time.Time `json:"anchor,omitempty"`
	DayOfMonth     int        `json:"day_of_month,omitempty"`
}

// NextOccurrenceRequest asks for the next due date of a recurring amount
type NextOccurrenceRequest struct {
	Recurrence RecurrenceRequest `json:"recurrence"`
	Amount     float64           `json:"amount" binding:"gte=0"`
	Reference  *time.Time        `json:"reference,omitempty"`
}

// NextOccurrenceResponse carries the next due date; it is omitted when the
// recurrence has no further occurrence
type NextOccurrenceResponse struct {
	NextOccurrence    string  `json:"next_occurrence,omitempty"`
	Exhausted         bool    `json:"exhausted"`
	MonthlyEquivalent float64 `json:"monthly_equivalent"`
}

// CardPreviewRequest is a card snapshot to simulate without storing it
type CardPreviewRequest struct {
	StatementBalance      float64 `json:"statement_balance" binding:"gte=0"`
	PendingCharges        float64 `json:"pending_charges" binding:"gte=0"`
	APR                   float64 `json:"apr_percent" binding:"gte=0"`
	MinimumPayment        float64 `json:"minimum_payment" binding:"gte=0"`
	MinimumPaymentPolicy  string  `json:"minimum_payment_policy,omitempty"`
	MinimumPaymentPercent float64 `json:"minimum_payment_percent,omitempty"`
	SpendPerMonth         float64 `json:"spend_per_month" binding:"gte=0"`
	ExtraPayment          float64 `json:"extra_payment" binding:"gte=0"`
	Cycles                int     `json:"cycles" binding:"gte=0"`
}

// LoanPreviewRequest is a loan snapshot to simulate without storing it
type LoanPreviewRequest struct {
	Balance        float64           `json:"balance" binding:"gte=0"`
	APR            float64           `json:"apr_percent" binding:"gte=0"`
	MinimumPayment float64           `json:"minimum_payment" binding:"gte=0"`
	Recurrence     RecurrenceRequest `json:"recurrence"`
	Cycles         int               `json:"cycles" binding:"gte=0"`
}

// CreateCardRequest represents a request to register a credit card
type CreateCardRequest struct {
	Name                  string     `json:"name" binding:"required,max=120"`
	CreditLimit           float64    `json:"credit_limit" binding:"required,gt=0"`
	APR                   float64    `json:"apr_percent" binding:"gte=0"`
	StatementBalance      float64    `json:"statement_balance" binding:"gte=0"`
	MinimumPayment        float64    `json:"minimum_payment" binding:"gte=0"`
	MinimumPaymentPolicy  string     `json:"minimum_payment_policy,omitempty"`
	MinimumPaymentPercent float64    `json:"minimum_payment_percent,omitempty"`
	SpendPerMonth         float64    `json:"spend_per_month" binding:"gte=0"`
	ExtraPayment          float64    `json:"extra_payment" binding:"gte=0"`
	StatementAnchor       *time.Time `json:"statement_anchor,omitempty"`
}

// CreateLoanRequest represents a request to register an installment loan
type CreateLoanRequest struct {
	Name           string            `json:"name" binding:"required,max=120"`
	Principal      float64           `json:"principal" binding:"gte=0"`
	APR            float64           `json:"apr_percent" binding:"gte=0"`
	MinimumPayment float64           `json:"minimum_payment" binding:"gte=0"`
	Recurrence     RecurrenceRequest `json:"recurrence"`
}

// AmountRequest is the body of ad-hoc charges and payments
type AmountRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Description string  `json:"description,omitempty" binding:"max=255"`
}

// LiabilityResponse represents a card or loan with its pending cycles
type LiabilityResponse struct {
	ID                string              `json:"id"`
	Kind              string              `json:"kind"`
	Name              string              `json:"name"`
	Balance           float64             `json:"balance"`
	APR               float64             `json:"apr_percent"`
	MinimumPayment    float64             `json:"minimum_payment"`
	MonthlyCommitment float64             `json:"monthly_commitment"`
	LastCycleAnchor   string              `json:"last_cycle_anchor"`
	CycleDay          int                 `json:"cycle_day"`
	ElapsedCycles     int                 `json:"elapsed_cycles"`
	CreditLimit       float64             `json:"credit_limit,omitempty"`
	StatementBalance  float64             `json:"statement_balance,omitempty"`
	PendingCharges    float64             `json:"pending_charges,omitempty"`
	Utilization       *float64            `json:"utilization,omitempty"`
	Recurrence        *cadence.Recurrence `json:"recurrence,omitempty"`
}

// LiabilityOperationResponse is returned by charges and payments
type LiabilityOperationResponse struct {
	Liability LiabilityResponse `json:"liability"`
	EntryID   string            `json:"entry_id"`
}

// LedgerLineRequest is one line of a posted ledger entry
type LedgerLineRequest struct {
	LineType    string          `json:"line_type" binding:"required,oneof=DEBIT CREDIT"`
	AccountCode string          `json:"account_code" binding:"required,max=120"`
	Amount      decimal.Decimal `json:"amount"`
}

// AppendEntryRequest represents a ledger entry draft
type AppendEntryRequest struct {
	EntryType     string              `json:"entry_type,omitempty"`
	Description   string              `json:"description" binding:"max=255"`
	OccurredAt    *time.Time          `json:"occurred_at,omitempty"`
	ReferenceType string              `json:"reference_type,omitempty"`
	ReferenceID   string              `json:"reference_id,omitempty"`
	CycleKey      string              `json:"cycle_key,omitempty"`
	Lines         []LedgerLineRequest `json:"lines" binding:"dive"`
}

// ReverseEntryRequest optionally describes the reversal
type ReverseEntryRequest struct {
	Description string `json:"description,omitempty" binding:"max=255"`
}

// LedgerLineResponse represents a ledger line in API responses
type LedgerLineResponse struct {
	LineType    string `json:"line_type"`
	AccountCode string `json:"account_code"`
	Amount      string `json:"amount"`
}

// LedgerEntryResponse represents a ledger entry in API responses
type LedgerEntryResponse struct {
	ID            string               `json:"id"`
	EntryType     string               `json:"entry_type"`
	Description   string               `json:"description"`
	OccurredAt    string               `json:"occurred_at"`
	ReferenceType string               `json:"reference_type,omitempty"`
	ReferenceID   string               `json:"reference_id,omitempty"`
	CycleKey      string               `json:"cycle_key,omitempty"`
	Lines         []LedgerLineResponse `json:"lines"`
	CreatedAt     string               `json:"created_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// AuditListParams bounds the audit history returned in one call
type AuditListParams struct {
	Limit int `form:"limit,default=20" binding:"min=1,max=100"`
}

// EntryListParams adds the optional cycle filter to pagination
type EntryListParams struct {
	PaginationParams
	CycleKey string `form:"cycle_key"`
}

func (r RecurrenceRequest) toRecurrence(defaultAnchor time.Time) cadence.Recurrence {
	anchor := defaultAnchor
	if r.Anchor != nil {
		anchor = *r.Anchor
	}
	return cadence.Recurrence{
		Cadence:        cadence.Cadence(r.Cadence),
		CustomInterval: r.CustomInterval,
		CustomUnit:     cadence.Unit(r.CustomUnit),
		Anchor:         anchor.UTC(),
		DayOfMonth:     r.DayOfMonth,
	}
}

func mapRunToResponse(run *cycle.Run) RunResponse {
	response := RunResponse{
		ID:               run.ID.String(),
		CycleKey:         run.CycleKey,
		Source:           string(run.Source),
		IdempotencyKey:   run.IdempotencyKey,
		Status:           string(run.Status),
		UpdatedCardCount: run.UpdatedCardCount,
		UpdatedLoanCount: run.UpdatedLoanCount,
		Aggregates:       run.Aggregates,
		FailureReason:    run.FailureReason,
		ReferenceInstant: run.ReferenceInstant.Format(time.RFC3339),
		StartedAt:        run.StartedAt.Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		response.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return response
}

func mapLiabilityToResponse(l liability.Liability, now time.Time) LiabilityResponse {
	b := l.Info()
	response := LiabilityResponse{
		ID:                b.ID.String(),
		Kind:              string(l.Kind()),
		Name:              b.Name,
		Balance:           b.Balance,
		APR:               b.APR,
		MinimumPayment:    b.MinimumPayment,
		MonthlyCommitment: l.MonthlyCommitment(),
		LastCycleAnchor:   b.LastCycleAnchor.Format(time.RFC3339),
		CycleDay:          b.CycleDay,
		ElapsedCycles:     l.ElapsedCycles(now),
	}
	switch v := l.(type) {
	case *liability.Card:
		response.CreditLimit = v.CreditLimit
		response.StatementBalance = v.StatementBalance
		response.PendingCharges = v.PendingCharges
		if v.CreditLimit > 0 {
			u := shared.Round2(v.Utilization())
			response.Utilization = &u
		}
	case *liability.Loan:
		r := v.Recurrence
		response.Recurrence = &r
	}
	return response
}

func mapLedgerEntryToResponse(entry *ledger.Entry) LedgerEntryResponse {
	lines := make([]LedgerLineResponse, 0, len(entry.Lines))
	for _, l := range entry.Lines {
		lines = append(lines, LedgerLineResponse{
			LineType:    string(l.LineType),
			AccountCode: l.AccountCode,
			Amount:      l.Amount.StringFixed(2),
		})
	}
	return LedgerEntryResponse{
		ID:            entry.ID.String(),
		EntryType:     string(entry.EntryType),
		Description:   entry.Description,
		OccurredAt:    entry.OccurredAt.Format(time.RFC3339),
		ReferenceType: entry.ReferenceType,
		ReferenceID:   entry.ReferenceID,
		CycleKey:      entry.CycleKey,
		Lines:         lines,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
	}
}
