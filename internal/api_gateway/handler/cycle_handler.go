package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pfin-cycle-ledger/internal/api_gateway/middleware"
	"github.com/pfin-cycle-ledger/internal/api_gateway/service"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

const (
	IdempotencyKeyHeader    = "Idempotency-Key"
	IdempotentReplayHeader  = "X-Idempotent-Replay"
	maxIdempotencyKeyLength = 255
)

// CycleHandler handles HTTP requests for monthly cycle runs
type CycleHandler struct {
	cycleService service.CycleService
	logger       *slog.Logger
}

// NewCycleHandler creates a new cycle handler
func NewCycleHandler(logger *slog.Logger, cycleService service.CycleService) *CycleHandler {
	return &CycleHandler{
		cycleService: cycleService,
		logger:       logger,
	}
}

// Run executes the caller's monthly cycle and returns its result.
// A replayed result is flagged with the X-Idempotent-Replay header.
func (h *CycleHandler) Run(c *gin.Context) {
	req, ok := h.bindRunRequest(c)
	if !ok {
		return
	}

	res, err := h.cycleService.RunCycle(c.Request.Context(), req)
	if err != nil {
		var failed *cycle.RunFailedError
		switch {
		case errors.Is(err, cycle.ErrInvalidRunRequest):
			RespondBadRequest(c, err.Error())
		case errors.Is(err, cycle.ErrRunInProgress):
			RespondWithError(c, http.StatusConflict, CodeRunInProgress, "A cycle run with this idempotency key is in progress")
		case errors.As(err, &failed):
			h.logger.Error("Cycle run failed", "run_id", failed.RunID.String(), "reason", failed.Reason, "correlation_id", req.CorrelationID)
			RespondWithError(c, http.StatusInternalServerError, CodeRunFailed, "Cycle run "+failed.RunID.String()+" failed")
		default:
			h.logger.Error("Failed to run cycle", "user_id", req.UserID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	if res.Replayed {
		c.Header(IdempotentReplayHeader, "true")
	}
	RespondOK(c, res)
}

// Trigger queues the caller's cycle for the cycle processor
func (h *CycleHandler) Trigger(c *gin.Context) {
	req, ok := h.bindRunRequest(c)
	if !ok {
		return
	}

	triggerID, err := h.cycleService.TriggerCycle(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, cycle.ErrInvalidRunRequest) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to queue cycle run", "user_id", req.UserID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, TriggerResponse{TriggerID: triggerID.String(), Status: "QUEUED"})
}

// ListRuns returns the caller's cycle runs, newest first
func (h *CycleHandler) ListRuns(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	userID := middleware.GetUserID(c)
	runs, total, err := h.cycleService.ListRuns(c.Request.Context(), userID, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list cycle runs", "user_id", userID, "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		response = append(response, mapRunToResponse(run))
	}
	RespondWithPaginatedData(c, http.StatusOK, response, pagination.Page, pagination.PerPage, total)
}

// GetSnapshot returns the month-close snapshot of one cycle
func (h *CycleHandler) GetSnapshot(c *gin.Context) {
	userID := middleware.GetUserID(c)
	cycleKey := c.Param("cycle_key")

	snapshot, err := h.cycleService.GetSnapshot(c.Request.Context(), userID, cycleKey)
	if err != nil {
		var notFound cycle.ErrSnapshotNotFound
		switch {
		case errors.Is(err, cycle.ErrInvalidRunRequest):
			RespondBadRequest(c, "Cycle key must look like YYYY-MM")
		case errors.As(err, &notFound):
			RespondNotFound(c, "No snapshot for cycle "+cycleKey)
		default:
			h.logger.Error("Failed to get snapshot", "user_id", userID, "cycle_key", cycleKey, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, snapshot)
}

// ListAudits returns the caller's most recent cycle audit logs
func (h *CycleHandler) ListAudits(c *gin.Context) {
	var params AuditListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "limit must be between 1 and 100")
		return
	}

	userID := middleware.GetUserID(c)
	logs, err := h.cycleService.ListAudits(c.Request.Context(), userID, params.Limit)
	if err != nil {
		h.logger.Error("Failed to list cycle audit logs", "user_id", userID, "error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, logs)
}

// bindRunRequest reads the optional body and the Idempotency-Key header. The
// body key wins when both are present.
func (h *CycleHandler) bindRunRequest(c *gin.Context) (cycle.RunRequest, bool) {
	var body RunCycleRequest
	if c.Request.Body != nil {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			h.logger.Error("Invalid request body", "error", err)
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return cycle.RunRequest{}, false
		}
	}

	key := body.IdempotencyKey
	if key == "" {
		key = c.GetHeader(IdempotencyKeyHeader)
	}
	if len(key) > maxIdempotencyKeyLength {
		RespondBadRequest(c, "Idempotency key must not exceed 255 characters")
		return cycle.RunRequest{}, false
	}

	var ref time.Time
	if body.ReferenceInstant != nil {
		ref = body.ReferenceInstant.UTC()
	}
	return cycle.RunRequest{
		UserID:           middleware.GetUserID(c),
		ReferenceInstant: ref,
		Source:           shared.RunSourceManual,
		IdempotencyKey:   key,
		CorrelationID:    middleware.GetCorrelationID(c),
	}, true
}
