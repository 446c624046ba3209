package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/api_gateway/middleware"
	"github.com/pfin-cycle-ledger/internal/api_gateway/service"
	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
)

// LedgerHandler handles HTTP requests for ledger entries
type LedgerHandler struct {
	ledgerService service.LedgerService
	logger        *slog.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(logger *slog.Logger, ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
		logger:        logger,
	}
}

// Append stores a balanced entry for the caller
func (h *LedgerHandler) Append(c *gin.Context) {
	var req AppendEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.CycleKey != "" {
		if _, err := cadence.ParseCycleKey(req.CycleKey); err != nil {
			RespondBadRequest(c, "cycle_key must look like YYYY-MM")
			return
		}
	}

	draft := ledger.Draft{
		UserID:        middleware.GetUserID(c),
		EntryType:     ledger.EntryType(req.EntryType),
		Description:   req.Description,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		CycleKey:      req.CycleKey,
		Lines:         make([]ledger.DraftLine, 0, len(req.Lines)),
	}
	if draft.EntryType == "" {
		draft.EntryType = ledger.EntryTypeManual
	}
	if req.OccurredAt != nil {
		draft.OccurredAt = *req.OccurredAt
	}
	for _, l := range req.Lines {
		draft.Lines = append(draft.Lines, ledger.DraftLine{
			LineType:    ledger.LineType(l.LineType),
			AccountCode: l.AccountCode,
			Amount:      l.Amount,
		})
	}

	entry, err := h.ledgerService.AppendEntry(c.Request.Context(), draft)
	if err != nil {
		if code := validationCode(err); code != "" {
			RespondValidationError(c, code, err.Error())
			return
		}
		h.logger.Error("Failed to append ledger entry", "user_id", draft.UserID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapLedgerEntryToResponse(entry))
}

// GetByID returns one of the caller's entries, 404 if it does not exist
func (h *LedgerHandler) GetByID(c *gin.Context) {
	id, ok := h.entryID(c)
	if !ok {
		return
	}

	entry, err := h.ledgerService.GetEntry(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound{}) {
			RespondNotFound(c, "Ledger entry not found")
			return
		}
		h.logger.Error("Failed to get ledger entry", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapLedgerEntryToResponse(entry))
}

// List pages through the caller's entries, optionally for one cycle
func (h *LedgerHandler) List(c *gin.Context) {
	var params EntryListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}
	if params.CycleKey != "" {
		if _, err := cadence.ParseCycleKey(params.CycleKey); err != nil {
			RespondBadRequest(c, "cycle_key must look like YYYY-MM")
			return
		}
	}

	userID := middleware.GetUserID(c)
	entries, total, err := h.ledgerService.ListEntries(c.Request.Context(), userID, params.CycleKey, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list ledger entries", "user_id", userID, "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]LedgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, mapLedgerEntryToResponse(entry))
	}
	RespondWithPaginatedData(c, http.StatusOK, response, params.Page, params.PerPage, total)
}

// Reverse appends the correcting entry of an existing one
func (h *LedgerHandler) Reverse(c *gin.Context) {
	id, ok := h.entryID(c)
	if !ok {
		return
	}

	var req ReverseEntryRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	reversal, err := h.ledgerService.ReverseEntry(c.Request.Context(), middleware.GetUserID(c), id, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrEntryNotFound{}):
			RespondNotFound(c, "Ledger entry not found")
		case errors.Is(err, ledger.ErrAlreadyReversed):
			RespondWithError(c, http.StatusConflict, CodeAlreadyReversed, "Ledger entry has already been reversed")
		default:
			h.logger.Error("Failed to reverse ledger entry", "id", id.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapLedgerEntryToResponse(reversal))
}

func (h *LedgerHandler) entryID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid ledger entry ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid ledger entry ID")
		return uuid.Nil, false
	}
	return id, true
}
