// Package mongo provides MongoDB implementations of the ledger, snapshot, audit
// and profile stores.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/platform/persistence"
)

// LedgerRepository implements the ledger.Repository interface for MongoDB.
// Each entry is one document with its lines embedded, keyed by the entry id.
type LedgerRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewLedgerRepository(logger *slog.Logger, db *mongo.Database) ledger.Repository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

func (r *LedgerRepository) collection() *mongo.Collection {
	return r.db.Collection(persistence.CollectionLedgerEntries)
}

// Create inserts the entry. A duplicate key on _id or on the reversal
// reference index yields ErrDuplicateEntry.
func (r *LedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	if _, err := r.collection().InsertOne(ctx, entry); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ledger.ErrDuplicateEntry{EntryID: entry.ID}
		}
		r.logger.Error("Failed to create ledger entry",
			"entry_id", entry.ID.String(),
			"error", err)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	var entry ledger.Entry
	err := r.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrEntryNotFound{EntryID: id}
		}
		r.logger.Error("Failed to get ledger entry",
			"entry_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return &entry, nil
}

// GetByUserID returns a page of the user's entries, newest first
func (r *LedgerRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*ledger.Entry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	return r.find(ctx, bson.M{"user_id": userID}, opts, "user_id", userID)
}

func (r *LedgerRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	count, err := r.collection().CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		r.logger.Error("Failed to count ledger entries",
			"user_id", userID,
			"error", err)
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}

// GetByCycleKey returns the entries a cycle run posted, in posting order
func (r *LedgerRepository) GetByCycleKey(ctx context.Context, userID, cycleKey string) ([]*ledger.Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "created_at", Value: 1}})
	return r.find(ctx, bson.M{"user_id": userID, "cycle_key": cycleKey}, opts, "cycle_key", cycleKey)
}

func (r *LedgerRepository) GetByReference(ctx context.Context, referenceType, referenceID string) ([]*ledger.Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	filter := bson.M{"reference_type": referenceType, "reference_id": referenceID}
	return r.find(ctx, filter, opts, "reference_id", referenceID)
}

func (r *LedgerRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions, logKey, logValue string) ([]*ledger.Entry, error) {
	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get ledger entries", logKey, logValue, "error", err)
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]*ledger.Entry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode ledger entries", logKey, logValue, "error", err)
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}
	return entries, nil
}
