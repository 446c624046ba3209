// Package postgres provides PostgreSQL implementations of the domain repositories:
// liabilities, cycle runs and the ledger outbox.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/platform/persistence"
)

const liabilityColumns = `id, user_id, kind, name, balance, apr_percent, minimum_payment, last_cycle_anchor, cycle_day,
		credit_limit, statement_balance, pending_charges, spend_per_month, minimum_payment_policy, minimum_payment_percent, extra_payment,
		recurrence_cadence, recurrence_interval, recurrence_unit, recurrence_anchor, recurrence_day_of_month,
		version, created_at, updated_at`

// LiabilityRepository implements the liability.Repository interface for PostgreSQL
type LiabilityRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

func NewLiabilityRepository(logger *slog.Logger, db *persistence.PostgresDB) liability.Repository {
	return &LiabilityRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to the transaction
func (r *LiabilityRepository) WithTx(tx pgx.Tx) liability.Repository {
	return &LiabilityRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// liabilityRow is the flat shape of a liabilities row. Card and loan specific
// columns hold zero values for the other kind.
type liabilityRow struct {
	base                  liability.Base
	kind                  string
	creditLimit           float64
	statementBalance      float64
	pendingCharges        float64
	spendPerMonth         float64
	minimumPaymentPolicy  string
	minimumPaymentPercent float64
	extraPayment          float64
	cadence               string
	interval              int
	unit                  string
	recurrenceAnchor      *time.Time
	dayOfMonth            int
}

func (row *liabilityRow) dest() []any {
	return []any{
		&row.base.ID, &row.base.UserID, &row.kind, &row.base.Name, &row.base.Balance, &row.base.APR,
		&row.base.MinimumPayment, &row.base.LastCycleAnchor, &row.base.CycleDay,
		&row.creditLimit, &row.statementBalance, &row.pendingCharges, &row.spendPerMonth,
		&row.minimumPaymentPolicy, &row.minimumPaymentPercent, &row.extraPayment,
		&row.cadence, &row.interval, &row.unit, &row.recurrenceAnchor, &row.dayOfMonth,
		&row.base.Version, &row.base.CreatedAt, &row.base.UpdatedAt,
	}
}

func (row *liabilityRow) toDomain() (liability.Liability, error) {
	switch liability.Kind(row.kind) {
	case liability.KindCard:
		return &liability.Card{
			Base:                  row.base,
			CreditLimit:           row.creditLimit,
			StatementBalance:      row.statementBalance,
			PendingCharges:        row.pendingCharges,
			SpendPerMonth:         row.spendPerMonth,
			MinimumPaymentPolicy:  liability.MinimumPaymentPolicy(row.minimumPaymentPolicy),
			MinimumPaymentPercent: row.minimumPaymentPercent,
			ExtraPayment:          row.extraPayment,
		}, nil
	case liability.KindLoan:
		rec := cadence.Recurrence{
			Cadence:        cadence.Cadence(row.cadence),
			CustomInterval: row.interval,
			CustomUnit:     cadence.Unit(row.unit),
			DayOfMonth:     row.dayOfMonth,
		}
		if row.recurrenceAnchor != nil {
			rec.Anchor = *row.recurrenceAnchor
		}
		return &liability.Loan{Base: row.base, Recurrence: rec}, nil
	}
	return nil, fmt.Errorf("unknown liability kind %q for %s", row.kind, row.base.ID)
}

// columnValues flattens a liability in liabilityColumns order
func columnValues(l liability.Liability) []any {
	b := l.Info()
	var (
		creditLimit, statement, pending, spend, percent, extra float64
		policy                                                 string
		rec                                                    cadence.Recurrence
		recAnchor                                              *time.Time
	)
	switch v := l.(type) {
	case *liability.Card:
		creditLimit, statement, pending = v.CreditLimit, v.StatementBalance, v.PendingCharges
		spend, percent, extra = v.SpendPerMonth, v.MinimumPaymentPercent, v.ExtraPayment
		policy = string(v.MinimumPaymentPolicy)
	case *liability.Loan:
		rec = v.Recurrence
		policy = string(liability.MinimumPaymentFixed)
		if !rec.Anchor.IsZero() {
			a := rec.Anchor
			recAnchor = &a
		}
	}
	return []any{
		b.ID, b.UserID, string(l.Kind()), b.Name, b.Balance, b.APR, b.MinimumPayment, b.LastCycleAnchor, b.CycleDay,
		creditLimit, statement, pending, spend, policy, percent, extra,
		string(rec.Cadence), rec.CustomInterval, string(rec.CustomUnit), recAnchor, rec.DayOfMonth,
		b.Version, b.CreatedAt, b.UpdatedAt,
	}
}

func (r *LiabilityRepository) Create(ctx context.Context, l liability.Liability) error {
	query := `
		INSERT INTO liabilities (` + liabilityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`

	if _, err := r.querier.Exec(ctx, query, columnValues(l)...); err != nil {
		r.logger.Error("Failed to create liability", "id", l.Info().ID.String(), "error", err)
		return fmt.Errorf("failed to create liability: %w", err)
	}
	return nil
}

func (r *LiabilityRepository) GetByID(ctx context.Context, id uuid.UUID) (liability.Liability, error) {
	query := `
		SELECT ` + liabilityColumns + `
		FROM liabilities
		WHERE id = $1
	`
	return r.getOne(ctx, "get liability", query, id)
}

// LockForUpdate obtains a row lock on the liability and returns its current state.
// Must run inside a transaction.
func (r *LiabilityRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (liability.Liability, error) {
	query := `
		SELECT ` + liabilityColumns + `
		FROM liabilities
		WHERE id = $1
		FOR UPDATE
	`
	return r.getOne(ctx, "lock liability for update", query, id)
}

func (r *LiabilityRepository) getOne(ctx context.Context, op, query string, id uuid.UUID) (liability.Liability, error) {
	var row liabilityRow
	if err := r.querier.QueryRow(ctx, query, id).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, liability.ErrLiabilityNotFound{LiabilityID: id}
		}
		r.logger.Error("Failed to "+op, "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return row.toDomain()
}

// ListByUser returns the user's liabilities in creation order
func (r *LiabilityRepository) ListByUser(ctx context.Context, userID string) ([]liability.Liability, error) {
	query := `
		SELECT ` + liabilityColumns + `
		FROM liabilities
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.querier.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list liabilities", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list liabilities: %w", err)
	}
	defer rows.Close()

	var result []liability.Liability
	for rows.Next() {
		var row liabilityRow
		if err := rows.Scan(row.dest()...); err != nil {
			r.logger.Error("Failed to scan liability", "user_id", userID, "error", err)
			return nil, fmt.Errorf("failed to scan liability: %w", err)
		}
		l, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over liabilities: %w", err)
	}
	return result, nil
}

func (r *LiabilityRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT user_id FROM liabilities ORDER BY user_id`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list liability owners", "error", err)
		return nil, fmt.Errorf("failed to list liability owners: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over user ids: %w", err)
	}
	return ids, nil
}

// Update writes the mutable state. Domain methods bump Version before the call,
// so the row must still hold Version-1.
func (r *LiabilityRepository) Update(ctx context.Context, l liability.Liability) error {
	query := `
		UPDATE liabilities
		SET name = $1, balance = $2, apr_percent = $3, minimum_payment = $4, last_cycle_anchor = $5, cycle_day = $6,
			credit_limit = $7, statement_balance = $8, pending_charges = $9, spend_per_month = $10,
			minimum_payment_policy = $11, minimum_payment_percent = $12, extra_payment = $13,
			version = $14, updated_at = $15
		WHERE id = $16 AND version = $17
	`

	v := columnValues(l)
	b := l.Info()
	result, err := r.querier.Exec(ctx, query,
		b.Name, b.Balance, b.APR, b.MinimumPayment, b.LastCycleAnchor, b.CycleDay,
		v[9], v[10], v[11], v[12], v[13], v[14], v[15],
		b.Version, b.UpdatedAt,
		b.ID, b.Version-1,
	)
	if err != nil {
		r.logger.Error("Failed to update liability", "id", b.ID.String(), "error", err)
		return fmt.Errorf("failed to update liability: %w", err)
	}

	if result.RowsAffected() == 0 {
		return liability.ErrConcurrentModification{LiabilityID: b.ID}
	}
	return nil
}
