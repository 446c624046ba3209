package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/platform/persistence"
)

type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewAuditRepository(logger *slog.Logger, db *mongo.Database) cycle.AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

func (r *AuditRepository) Create(ctx context.Context, log *cycle.AuditLog) error {
	if _, err := r.db.Collection(persistence.CollectionAuditLogs).InsertOne(ctx, log); err != nil {
		r.logger.Error("Failed to write cycle audit log",
			"run_id", log.RunID.String(),
			"error", err)
		return fmt.Errorf("failed to write cycle audit log: %w", err)
	}
	return nil
}

// ListByUser returns the most recent audit logs first
func (r *AuditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*cycle.AuditLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.db.Collection(persistence.CollectionAuditLogs).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		r.logger.Error("Failed to list cycle audit logs", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list cycle audit logs: %w", err)
	}
	defer cursor.Close(ctx)

	logs := make([]*cycle.AuditLog, 0)
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode cycle audit logs: %w", err)
	}
	return logs, nil
}
