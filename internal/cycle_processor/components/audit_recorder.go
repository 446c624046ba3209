package components

import (
	"context"
	"log/slog"
	"time"

	"github.com/pfin-cycle-ledger/internal/cycle_processor/service"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
)

type AuditRecorderImpl struct {
	auditRepo cycle.AuditRepository
	clock     func() time.Time
	logger    *slog.Logger
}

func NewAuditRecorder(auditRepo cycle.AuditRepository, clock func() time.Time, logger *slog.Logger) service.AuditRecorder {
	return &AuditRecorderImpl{auditRepo: auditRepo, clock: clock, logger: logger}
}

// Record skips automatic runs that changed nothing
func (r *AuditRecorderImpl) Record(ctx context.Context, res *cycle.Result, correlationID string) error {
	if !cycle.ShouldAudit(res) {
		return nil
	}
	return r.auditRepo.Create(ctx, cycle.NewAuditLog(res, correlationID, r.clock()))
}
