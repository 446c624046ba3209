package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pfin-cycle-ledger/internal/config"
	"github.com/pfin-cycle-ledger/internal/cycle_processor/components"
	"github.com/pfin-cycle-ledger/internal/cycle_processor/service"
	"github.com/pfin-cycle-ledger/internal/data/mongo"
	"github.com/pfin-cycle-ledger/internal/data/postgres"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
	"github.com/pfin-cycle-ledger/internal/logger"
	"github.com/pfin-cycle-ledger/internal/platform/persistence"
	"github.com/spf13/cobra"
)

// connectFunc opens the stores and returns a runner plus a release func
type connectFunc func(ctx context.Context, cfg *config.Config, log *slog.Logger) (service.CycleService, func(), error)

func newRunCommand(connect connectFunc, clock func() time.Time) *cobra.Command {
	var (
		userID     string
		ref        string
		key        string
		configPath string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one user's monthly cycle against the configured stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := cycle.RunRequest{
				UserID:         userID,
				Source:         shared.RunSourceManual,
				IdempotencyKey: key,
				CorrelationID:  "cyclectl-" + clock().UTC().Format("20060102T150405Z"),
			}
			if ref != "" {
				t, err := parseInstant(ref)
				if err != nil {
					return err
				}
				req.ReferenceInstant = t
			}
			if err := req.Validate(); err != nil {
				return err
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			log := logger.New(cmd.ErrOrStderr(), cfg)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			runner, release, err := connect(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("connecting stores: %w", err)
			}
			defer release()

			res, err := runner.RunMonthlyCycle(ctx, req)
			if err != nil {
				return err
			}
			if res.Replayed {
				log.Info("Returning result of an earlier run", "run_id", res.RunID.String())
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&userID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	f.StringVar(&ref, "ref", "", "reference instant, YYYY-MM-DD or RFC3339 (default now)")
	f.StringVar(&key, "key", "", "idempotency key")
	f.StringVar(&configPath, "config", "", "env file (default configs/cycle_processor.env)")
	f.DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline for the run")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		return config.LoadConfigFile(path)
	}
	return config.LoadConfig("cycle_processor")
}

// connectStores wires the orchestrator the same way the cycle processor does,
// without the worker pool
func connectStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (service.CycleService, func(), error) {
	postgresDB, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	mongoDB, err := persistence.NewMongoDB(ctx, log, &cfg.MongoDB)
	if err != nil {
		postgresDB.Close()
		return nil, nil, err
	}

	repos := components.Repositories{
		Liabilities: postgres.NewLiabilityRepository(log, postgresDB),
		Runs:        postgres.NewCycleRunRepository(log, postgresDB),
		Outbox:      postgres.NewOutboxRepository(log, postgresDB),
		Snapshots:   mongo.NewSnapshotRepository(log, mongoDB.Database()),
		Audits:      mongo.NewAuditRepository(log, mongoDB.Database()),
		Profiles:    mongo.NewProfileRepository(log, mongoDB.Database()),
	}
	orchestrator := components.CreateOrchestrator(postgresDB, repos, time.Now, log, cfg)

	release := func() {
		postgresDB.Close()
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.MongoDB.Timeout)
		defer cancel()
		if err := mongoDB.Close(closeCtx); err != nil {
			log.Error("Error closing MongoDB connection", "error", err)
		}
	}
	return orchestrator, release, nil
}
