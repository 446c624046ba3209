package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/api_gateway/middleware"
	"github.com/pfin-cycle-ledger/internal/api_gateway/service"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/liability"

	processor "github.com/pfin-cycle-ledger/internal/cycle_processor/service"
)

// LiabilityHandler handles HTTP requests for cards and loans
type LiabilityHandler struct {
	liabilityService service.LiabilityService
	cycleService     service.CycleService
	clock            func() time.Time
	logger           *slog.Logger
}

// NewLiabilityHandler creates a new liability handler
func NewLiabilityHandler(logger *slog.Logger, liabilityService service.LiabilityService, cycleService service.CycleService, clock func() time.Time) *LiabilityHandler {
	if clock == nil {
		clock = time.Now
	}
	return &LiabilityHandler{
		liabilityService: liabilityService,
		cycleService:     cycleService,
		clock:            clock,
		logger:           logger,
	}
}

// List returns the caller's liabilities with the cycles still to be applied
func (h *LiabilityHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	liabilities, err := h.liabilityService.ListLiabilities(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list liabilities", "user_id", userID, "error", err)
		RespondInternalError(c)
		return
	}

	now := h.clock()
	response := make([]LiabilityResponse, 0, len(liabilities))
	for _, l := range liabilities {
		response = append(response, mapLiabilityToResponse(l, now))
	}
	RespondOK(c, response)
}

// CreateCard registers a credit card
func (h *LiabilityHandler) CreateCard(c *gin.Context) {
	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	params := service.CardParams{
		UserID:                middleware.GetUserID(c),
		Name:                  req.Name,
		CreditLimit:           req.CreditLimit,
		APR:                   req.APR,
		StatementBalance:      req.StatementBalance,
		MinimumPayment:        req.MinimumPayment,
		MinimumPaymentPolicy:  liability.MinimumPaymentPolicy(req.MinimumPaymentPolicy),
		MinimumPaymentPercent: req.MinimumPaymentPercent,
		SpendPerMonth:         req.SpendPerMonth,
		ExtraPayment:          req.ExtraPayment,
	}
	if req.StatementAnchor != nil {
		params.Anchor = req.StatementAnchor.UTC()
	}

	card, err := h.liabilityService.CreateCard(c.Request.Context(), params)
	if err != nil {
		h.respondLiabilityError(c, err, "create card")
		return
	}
	RespondCreated(c, mapLiabilityToResponse(card, h.clock()))
}

// CreateLoan registers an installment loan
func (h *LiabilityHandler) CreateLoan(c *gin.Context) {
	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	loan, err := h.liabilityService.CreateLoan(c.Request.Context(), service.LoanParams{
		UserID:         middleware.GetUserID(c),
		Name:           req.Name,
		Principal:      req.Principal,
		APR:            req.APR,
		MinimumPayment: req.MinimumPayment,
		Recurrence:     req.Recurrence.toRecurrence(h.clock()),
	})
	if err != nil {
		h.respondLiabilityError(c, err, "create loan")
		return
	}
	RespondCreated(c, mapLiabilityToResponse(loan, h.clock()))
}

// Preview simulates a stored liability. Without ?cycles the pending cycles are used.
func (h *LiabilityHandler) Preview(c *gin.Context) {
	id, ok := h.liabilityID(c)
	if !ok {
		return
	}

	cycles := 0
	if raw := c.Query("cycles"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			RespondBadRequest(c, "cycles must be an integer")
			return
		}
		cycles = n
	}

	preview, err := h.cycleService.PreviewLiability(c.Request.Context(), middleware.GetUserID(c), id, cycles)
	if err != nil {
		if errors.Is(err, processor.ErrInvalidPreviewCycles) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.respondLiabilityError(c, err, "preview liability")
		return
	}
	RespondOK(c, preview)
}

// Charge records a purchase on a card
func (h *LiabilityHandler) Charge(c *gin.Context) {
	h.applyAmount(c, "charge", h.liabilityService.Charge)
}

// Pay records a payment towards a card or loan
func (h *LiabilityHandler) Pay(c *gin.Context) {
	h.applyAmount(c, "payment", h.liabilityService.Pay)
}

type amountOperation func(ctx context.Context, userID string, id uuid.UUID, amount float64, description string) (liability.Liability, *ledger.Entry, error)

func (h *LiabilityHandler) applyAmount(c *gin.Context, operation string, apply amountOperation) {
	id, ok := h.liabilityID(c)
	if !ok {
		return
	}

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	updated, entry, err := apply(c.Request.Context(), middleware.GetUserID(c), id, req.Amount, req.Description)
	if err != nil {
		h.respondLiabilityError(c, err, operation)
		return
	}

	RespondOK(c, LiabilityOperationResponse{
		Liability: mapLiabilityToResponse(updated, h.clock()),
		EntryID:   entry.ID.String(),
	})
}

func (h *LiabilityHandler) liabilityID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid liability ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid liability ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *LiabilityHandler) respondLiabilityError(c *gin.Context, err error, operation string) {
	var concurrent liability.ErrConcurrentModification
	switch {
	case errors.Is(err, liability.ErrLiabilityNotFound{}):
		RespondNotFound(c, "Liability not found")
	case errors.Is(err, liability.ErrChargeExceedsLimit):
		RespondWithError(c, http.StatusUnprocessableEntity, CodeInsufficientCredit, err.Error())
	case errors.Is(err, liability.ErrPaymentExceedsBalance):
		RespondWithError(c, http.StatusUnprocessableEntity, CodeOverpayment, err.Error())
	case errors.As(err, &concurrent):
		RespondConflict(c, "Liability was modified concurrently, retry the request")
	default:
		if code := validationCode(err); code != "" {
			RespondValidationError(c, code, err.Error())
			return
		}
		h.logger.Error("Liability operation failed", "operation", operation, "error", err)
		RespondInternalError(c)
	}
}
