package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
	"github.com/pfin-cycle-ledger/internal/platform/persistence"
)

const cycleRunColumns = `id, user_id, cycle_key, source, COALESCE(idempotency_key, ''), status,
		updated_card_count, updated_loan_count, aggregates, result, COALESCE(failure_reason, ''),
		reference_instant, started_at, finished_at`

// CycleRunRepository implements cycle.RunRepository for PostgreSQL. The partial
// unique index on (user_id, idempotency_key) enforces one active or completed run per key.
type CycleRunRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewCycleRunRepository(logger *slog.Logger, db *persistence.PostgresDB) cycle.RunRepository {
	return &CycleRunRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *CycleRunRepository) Create(ctx context.Context, run *cycle.Run) error {
	query := `
		INSERT INTO cycle_runs (id, user_id, cycle_key, source, idempotency_key, status, aggregates, reference_instant, started_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
	`

	aggregates, err := json.Marshal(run.Aggregates)
	if err != nil {
		return fmt.Errorf("failed to encode run aggregates: %w", err)
	}

	_, err = r.querier.Exec(ctx, query,
		run.ID,
		run.UserID,
		run.CycleKey,
		string(run.Source),
		run.IdempotencyKey,
		string(run.Status),
		aggregates,
		run.ReferenceInstant,
		run.StartedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return cycle.ErrDuplicateRun{UserID: run.UserID, IdempotencyKey: run.IdempotencyKey}
		}
		r.logger.Error("Failed to create cycle run", "run_id", run.ID.String(), "error", err)
		return fmt.Errorf("failed to create cycle run: %w", err)
	}
	return nil
}

func (r *CycleRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*cycle.Run, error) {
	query := `
		SELECT ` + cycleRunColumns + `
		FROM cycle_runs
		WHERE id = $1
	`

	run, err := scanRun(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cycle.ErrRunNotFound{RunID: id}
		}
		r.logger.Error("Failed to get cycle run", "run_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get cycle run: %w", err)
	}
	return run, nil
}

func (r *CycleRunRepository) GetCompletedByKey(ctx context.Context, userID, idempotencyKey string) (*cycle.Run, error) {
	query := `
		SELECT ` + cycleRunColumns + `
		FROM cycle_runs
		WHERE user_id = $1 AND idempotency_key = $2 AND status = $3
	`

	run, err := scanRun(r.querier.QueryRow(ctx, query, userID, idempotencyKey, string(cycle.RunStatusCompleted)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get completed cycle run", "user_id", userID, "idempotency_key", idempotencyKey, "error", err)
		return nil, fmt.Errorf("failed to get completed cycle run: %w", err)
	}
	return run, nil
}

// MarkCompleted moves a RUNNING run to COMPLETED with its result payload
func (r *CycleRunRepository) MarkCompleted(ctx context.Context, run *cycle.Run) error {
	query := `
		UPDATE cycle_runs
		SET status = $1, updated_card_count = $2, updated_loan_count = $3, aggregates = $4, result = $5, finished_at = $6
		WHERE id = $7 AND status = $8
	`

	aggregates, err := json.Marshal(run.Aggregates)
	if err != nil {
		return fmt.Errorf("failed to encode run aggregates: %w", err)
	}

	result, err := r.querier.Exec(ctx, query,
		string(cycle.RunStatusCompleted),
		run.UpdatedCardCount,
		run.UpdatedLoanCount,
		aggregates,
		[]byte(run.Result),
		run.FinishedAt,
		run.ID,
		string(cycle.RunStatusRunning),
	)
	if err != nil {
		r.logger.Error("Failed to complete cycle run", "run_id", run.ID.String(), "error", err)
		return fmt.Errorf("failed to complete cycle run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return cycle.ErrRunNotFound{RunID: run.ID}
	}
	return nil
}

// MarkFailed moves a RUNNING run to FAILED, releasing its idempotency key
func (r *CycleRunRepository) MarkFailed(ctx context.Context, run *cycle.Run) error {
	query := `
		UPDATE cycle_runs
		SET status = $1, failure_reason = $2, finished_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.querier.Exec(ctx, query,
		string(cycle.RunStatusFailed),
		run.FailureReason,
		run.FinishedAt,
		run.ID,
		string(cycle.RunStatusRunning),
	)
	if err != nil {
		r.logger.Error("Failed to record cycle run failure", "run_id", run.ID.String(), "error", err)
		return fmt.Errorf("failed to record cycle run failure: %w", err)
	}
	if result.RowsAffected() == 0 {
		return cycle.ErrRunNotFound{RunID: run.ID}
	}
	return nil
}

func (r *CycleRunRepository) FailStale(ctx context.Context, userID, idempotencyKey string, startedBefore time.Time, reason string) (int64, error) {
	query := `
		UPDATE cycle_runs
		SET status = $1, failure_reason = $2, finished_at = NOW()
		WHERE user_id = $3 AND idempotency_key = $4 AND status = $5 AND started_at < $6
	`

	result, err := r.querier.Exec(ctx, query,
		string(cycle.RunStatusFailed),
		reason,
		userID,
		idempotencyKey,
		string(cycle.RunStatusRunning),
		startedBefore,
	)
	if err != nil {
		r.logger.Error("Failed to release stale cycle runs", "user_id", userID, "idempotency_key", idempotencyKey, "error", err)
		return 0, fmt.Errorf("failed to release stale cycle runs: %w", err)
	}
	return result.RowsAffected(), nil
}

// ListByUser returns the user's runs, newest first
func (r *CycleRunRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*cycle.Run, error) {
	query := `
		SELECT ` + cycleRunColumns + `
		FROM cycle_runs
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list cycle runs", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list cycle runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*cycle.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			r.logger.Error("Failed to scan cycle run", "user_id", userID, "error", err)
			return nil, fmt.Errorf("failed to scan cycle run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over cycle runs: %w", err)
	}
	return runs, nil
}

func (r *CycleRunRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM cycle_runs WHERE user_id = $1`, userID).Scan(&count); err != nil {
		r.logger.Error("Failed to count cycle runs", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to count cycle runs: %w", err)
	}
	return count, nil
}

func scanRun(row pgx.Row) (*cycle.Run, error) {
	var (
		run        cycle.Run
		source     string
		status     string
		aggregates []byte
		result     []byte
	)
	err := row.Scan(
		&run.ID,
		&run.UserID,
		&run.CycleKey,
		&source,
		&run.IdempotencyKey,
		&status,
		&run.UpdatedCardCount,
		&run.UpdatedLoanCount,
		&aggregates,
		&result,
		&run.FailureReason,
		&run.ReferenceInstant,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Source = shared.RunSource(source)
	run.Status = cycle.RunStatus(status)
	if len(aggregates) > 0 {
		if err := json.Unmarshal(aggregates, &run.Aggregates); err != nil {
			return nil, fmt.Errorf("failed to decode run aggregates: %w", err)
		}
	}
	if len(result) > 0 {
		run.Result = json.RawMessage(result)
	}
	return &run, nil
}
