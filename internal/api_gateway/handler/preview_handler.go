package handler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pfin-cycle-ledger/internal/api_gateway/middleware"
	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

// PreviewHandler serves pure simulations that read and write nothing
type PreviewHandler struct {
	maxCycles int
	clock     func() time.Time
	logger    *slog.Logger
}

// NewPreviewHandler creates a preview handler. maxCycles bounds every simulation.
func NewPreviewHandler(logger *slog.Logger, maxCycles int, clock func() time.Time) *PreviewHandler {
	if clock == nil {
		clock = time.Now
	}
	return &PreviewHandler{
		maxCycles: maxCycles,
		clock:     clock,
		logger:    logger,
	}
}

// PreviewCard simulates a posted card snapshot
func (h *PreviewHandler) PreviewCard(c *gin.Context) {
	var req CardPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if !h.cyclesInRange(c, req.Cycles) {
		return
	}

	policy := liability.MinimumPaymentPolicy(req.MinimumPaymentPolicy)
	if policy == "" {
		policy = liability.MinimumPaymentFixed
	}
	card := liability.Card{
		Base: liability.Base{
			Balance:        shared.Round2(req.StatementBalance + req.PendingCharges),
			APR:            req.APR,
			MinimumPayment: req.MinimumPayment,
		},
		StatementBalance:      req.StatementBalance,
		PendingCharges:        req.PendingCharges,
		SpendPerMonth:         req.SpendPerMonth,
		MinimumPaymentPolicy:  policy,
		MinimumPaymentPercent: req.MinimumPaymentPercent,
		ExtraPayment:          req.ExtraPayment,
	}
	if err := card.ValidateTerms(); err != nil {
		RespondValidationError(c, CodeInvalidLiability, err.Error())
		return
	}

	RespondOK(c, liability.SimulateCard(card, req.Cycles))
}

// PreviewLoan simulates a posted loan snapshot
func (h *PreviewHandler) PreviewLoan(c *gin.Context) {
	var req LoanPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if !h.cyclesInRange(c, req.Cycles) {
		return
	}

	recurrence := req.Recurrence.toRecurrence(h.clock())
	if err := recurrence.Validate(); err != nil {
		RespondValidationError(c, CodeInvalidRecurrence, err.Error())
		return
	}
	loan := liability.Loan{
		Base: liability.Base{
			Balance:        req.Balance,
			APR:            req.APR,
			MinimumPayment: req.MinimumPayment,
		},
		Recurrence: recurrence,
	}

	RespondOK(c, liability.SimulateLoan(loan, req.Cycles))
}

// NextOccurrence returns the next due date of a recurrence and its monthly equivalent
func (h *PreviewHandler) NextOccurrence(c *gin.Context) {
	var req NextOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	now := h.clock()
	recurrence := req.Recurrence.toRecurrence(now)
	if err := recurrence.Validate(); err != nil {
		RespondValidationError(c, CodeInvalidRecurrence, err.Error())
		return
	}

	ref := now
	if req.Reference != nil {
		ref = *req.Reference
	}

	response := NextOccurrenceResponse{
		MonthlyEquivalent: shared.Round2(cadence.MonthlyEquivalent(req.Amount, recurrence)),
	}
	next, ok := cadence.NextOccurrence(recurrence, ref)
	if ok {
		response.NextOccurrence = next.Format(time.DateOnly)
	} else {
		response.Exhausted = true
	}

	h.logger.Debug("Computed next occurrence",
		"cadence", string(recurrence.Cadence),
		"exhausted", response.Exhausted,
		"correlation_id", middleware.GetCorrelationID(c),
	)
	RespondOK(c, response)
}

func (h *PreviewHandler) cyclesInRange(c *gin.Context, cycles int) bool {
	if h.maxCycles > 0 && cycles > h.maxCycles {
		RespondBadRequest(c, fmt.Sprintf("cycles must be between 0 and %d", h.maxCycles))
		return false
	}
	return true
}
