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

// ProfileRepository reads the cash accounts, incomes and bills that other
// services own. It never writes to these collections.
type ProfileRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewProfileRepository(logger *slog.Logger, db *mongo.Database) cycle.ProfileReader {
	return &ProfileRepository{db: db, logger: logger}
}

type cashAccountDocument struct {
	Name    string  `bson:"name"`
	Balance float64 `bson:"balance"`
}

func activeFilter(userID string) bson.M {
	return bson.M{"user_id": userID, "archived": bson.M{"$ne": true}}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*cycle.Profile, error) {
	var accounts []cashAccountDocument
	if err := r.findAll(ctx, persistence.CollectionCashAccounts, userID, &accounts); err != nil {
		return nil, err
	}

	profile := &cycle.Profile{
		Incomes: make([]cycle.RecurringAmount, 0),
		Bills:   make([]cycle.RecurringAmount, 0),
	}
	for _, a := range accounts {
		profile.CashBalance += a.Balance
	}
	if err := r.findAll(ctx, persistence.CollectionIncomes, userID, &profile.Incomes); err != nil {
		return nil, err
	}
	if err := r.findAll(ctx, persistence.CollectionBills, userID, &profile.Bills); err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *ProfileRepository) findAll(ctx context.Context, collection, userID string, out any) error {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.db.Collection(collection).Find(ctx, activeFilter(userID), opts)
	if err != nil {
		r.logger.Error("Failed to read profile collection",
			"collection", collection,
			"user_id", userID,
			"error", err)
		return fmt.Errorf("failed to read %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}
