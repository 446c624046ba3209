package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pfin-cycle-ledger/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names
const (
	CollectionLedgerEntries = "ledger_entries"
	CollectionSnapshots     = "month_close_snapshots"
	CollectionAuditLogs     = "cycle_audit_logs"
	CollectionCashAccounts  = "cash_accounts"
	CollectionIncomes       = "incomes"
	CollectionBills         = "bills"
)

type MongoDB struct {
	logger   *slog.Logger
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoDB connects with the decimal-aware registry and ensures indexes exist
func NewMongoDB(ctx context.Context, logger *slog.Logger, cfg *config.MongoDBConfig) (*MongoDB, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetRegistry(NewRegistry()).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := &MongoDB{
		logger:   logger,
		client:   client,
		database: client.Database(cfg.Database),
	}

	indexCtx, cancelIdx := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelIdx()
	if err := db.EnsureIndexes(indexCtx); err != nil {
		return nil, err
	}

	logger.Info("Connected to MongoDB", "database", cfg.Database)
	return db, nil
}

func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Indexes lists the indexes each collection needs
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		CollectionLedgerEntries: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "cycle_key", Value: 1}}},
			{Keys: bson.D{{Key: "reference_type", Value: 1}, {Key: "reference_id", Value: 1}}},
			{
				// an entry can be reversed at most once
				Keys: bson.D{{Key: "reference_type", Value: 1}, {Key: "reference_id", Value: 1}},
				Options: options.Index().
					SetName("uq_reversal_reference").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"entry_type": "REVERSAL"}),
			},
		},
		CollectionSnapshots: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "cycle_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollectionAuditLogs: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}

// EnsureIndexes creates missing indexes; existing ones are left untouched
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	for collection, models := range Indexes() {
		if _, err := m.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	m.logger.Info("Closed MongoDB connection")
	return nil
}
