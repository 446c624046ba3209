package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/platform/persistence"
)

// SnapshotRepository stores one month-close snapshot per user and cycle key
type SnapshotRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewSnapshotRepository(logger *slog.Logger, db *mongo.Database) cycle.SnapshotRepository {
	return &SnapshotRepository{db: db, logger: logger}
}

// Upsert replaces the snapshot for the cycle, inserting it on first close
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *cycle.Snapshot) error {
	filter := bson.M{"user_id": snapshot.UserID, "cycle_key": snapshot.CycleKey}
	opts := options.Replace().SetUpsert(true)

	_, err := r.db.Collection(persistence.CollectionSnapshots).ReplaceOne(ctx, filter, snapshot, opts)
	if err != nil {
		r.logger.Error("Failed to upsert month-close snapshot",
			"user_id", snapshot.UserID,
			"cycle_key", snapshot.CycleKey,
			"error", err)
		return fmt.Errorf("failed to upsert month-close snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) Get(ctx context.Context, userID, cycleKey string) (*cycle.Snapshot, error) {
	var snapshot cycle.Snapshot
	filter := bson.M{"user_id": userID, "cycle_key": cycleKey}
	err := r.db.Collection(persistence.CollectionSnapshots).FindOne(ctx, filter).Decode(&snapshot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cycle.ErrSnapshotNotFound{UserID: userID, CycleKey: cycleKey}
		}
		r.logger.Error("Failed to get month-close snapshot",
			"user_id", userID,
			"cycle_key", cycleKey,
			"error", err)
		return nil, fmt.Errorf("failed to get month-close snapshot: %w", err)
	}
	return &snapshot, nil
}
