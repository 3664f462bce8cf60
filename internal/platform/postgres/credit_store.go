package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/stringing-api/internal/domain"
	"github.com/courtside/stringing-api/internal/platform/logger"
	"github.com/courtside/stringing-api/internal/store"
)

// PostgresCreditGrantStore implements the store.CreditGrantStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCreditGrantStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCreditGrantStore creates a new PostgreSQL implementation of
// the CreditGrantStore interface. If logger is nil, a default logger is
// used.
func NewPostgresCreditGrantStore(db store.DBTX, logger *slog.Logger) *PostgresCreditGrantStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCreditGrantStore{
		db:     db,
		logger: logger.With(slog.String("component", "credit_store")),
	}
}

// Ensure PostgresCreditGrantStore implements store.CreditGrantStore.
var _ store.CreditGrantStore = (*PostgresCreditGrantStore)(nil)

// WithTx returns a CreditGrantStore bound to the given transaction.
func (s *PostgresCreditGrantStore) WithTx(tx *sql.Tx) store.CreditGrantStore {
	return &PostgresCreditGrantStore{db: tx, logger: s.logger}
}

// ListActiveByUser implements store.CreditGrantStore.ListActiveByUser.
// Grants are ordered soonest-expiring first so the caller's default
// selection burns expiring credit before fresher grants.
func (s *PostgresCreditGrantStore) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.CreditGrant, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, package_size, remaining_count, expires_at, created_at, updated_at
		FROM credit_grants
		WHERE user_id = $1 AND remaining_count > 0 AND expires_at > $2
		ORDER BY expires_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		log.Error("failed to query credit grants",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	grants := []domain.CreditGrant{}
	for rows.Next() {
		var g domain.CreditGrant
		err := rows.Scan(&g.ID, &g.UserID, &g.PackageSize, &g.RemainingCount,
			&g.ExpiresAt, &g.CreatedAt, &g.UpdatedAt)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// GetByID implements store.CreditGrantStore.GetByID.
func (s *PostgresCreditGrantStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.CreditGrant, error) {
	query := `
		SELECT id, user_id, package_size, remaining_count, expires_at, created_at, updated_at
		FROM credit_grants
		WHERE id = $1
	`
	var g domain.CreditGrant
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.UserID, &g.PackageSize, &g.RemainingCount,
		&g.ExpiresAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrGrantNotFound
		}
		return nil, err
	}
	return &g, nil
}

// Debit implements store.CreditGrantStore.Debit.
//
// IMPORTANT: run this within a transaction (WithTx + store.RunInTransaction)
// so the idempotency record and the balance decrement land atomically. The
// decrement is a single guarded UPDATE: a concurrent debit that drains the
// balance first makes this one affect zero rows and fail closed as
// ErrInsufficientBalance, never double-spend.
func (s *PostgresCreditGrantStore) Debit(ctx context.Context, applicationID, grantID uuid.UUID, units int, now time.Time) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	insert := `
		INSERT INTO grant_debits (application_id, grant_id, units, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (application_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, insert, applicationID, grantID, units, now)
	if err != nil {
		log.Error("failed to record grant debit",
			slog.String("error", err.Error()),
			slog.String("application_id", applicationID.String()))
		return 0, err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		// Retried submission; report the current balance without debiting
		// again.
		log.Debug("grant debit already recorded",
			slog.String("application_id", applicationID.String()))
		grant, err := s.GetByID(ctx, grantID)
		if err != nil {
			return 0, err
		}
		return grant.RemainingCount, nil
	}

	update := `
		UPDATE credit_grants
		SET remaining_count = remaining_count - $2, updated_at = $3
		WHERE id = $1 AND remaining_count >= $2 AND expires_at > $3
		RETURNING remaining_count
	`
	var remaining int
	err = s.db.QueryRowContext(ctx, update, grantID, units, now).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, s.classifyFailedDebit(ctx, grantID, units, now)
		}
		log.Error("failed to debit credit grant",
			slog.String("error", err.Error()),
			slog.String("grant_id", grantID.String()))
		return 0, err
	}

	log.Info("credit grant debited",
		slog.String("application_id", applicationID.String()),
		slog.String("grant_id", grantID.String()),
		slog.Int("units", units),
		slog.Int("remaining", remaining))
	return remaining, nil
}

// ReleaseDebit implements store.CreditGrantStore.ReleaseDebit.
// Run it within a transaction for the same reason as Debit.
func (s *PostgresCreditGrantStore) ReleaseDebit(ctx context.Context, applicationID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		grantID uuid.UUID
		units   int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT grant_id, units FROM grant_debits WHERE application_id = $1`,
		applicationID,
	).Scan(&grantID, &units)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM grant_debits WHERE application_id = $1`, applicationID,
	); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE credit_grants
		SET remaining_count = remaining_count + $2, updated_at = $3
		WHERE id = $1
	`, grantID, units, time.Now().UTC())
	if err != nil {
		log.Error("failed to release grant debit",
			slog.String("error", err.Error()),
			slog.String("application_id", applicationID.String()))
		return err
	}

	log.Info("grant debit released",
		slog.String("application_id", applicationID.String()),
		slog.String("grant_id", grantID.String()),
		slog.Int("units", units))
	return nil
}

// classifyFailedDebit distinguishes missing, expired, and underfunded
// grants after the guarded decrement affected zero rows.
func (s *PostgresCreditGrantStore) classifyFailedDebit(ctx context.Context, grantID uuid.UUID, units int, now time.Time) error {
	grant, err := s.GetByID(ctx, grantID)
	if err != nil {
		return err
	}
	if grant.Expired(now) {
		return store.ErrGrantExpired
	}
	if !grant.Sufficient(units) {
		return store.ErrInsufficientBalance
	}
	// The guarded update lost a race it should have won; surface as a
	// conflict the caller can retry.
	return store.ErrInsufficientBalance
}
