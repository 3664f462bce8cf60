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

// PostgresSlotStore implements the store.SlotStore interface using a
// PostgreSQL database as the storage backend.
type PostgresSlotStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSlotStore creates a new PostgreSQL implementation of the
// SlotStore interface. If logger is nil, a default logger is used.
func NewPostgresSlotStore(db store.DBTX, logger *slog.Logger) *PostgresSlotStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSlotStore{
		db:     db,
		logger: logger.With(slog.String("component", "slot_store")),
	}
}

// Ensure PostgresSlotStore implements store.SlotStore.
var _ store.SlotStore = (*PostgresSlotStore)(nil)

// WithTx returns a SlotStore bound to the given transaction.
func (s *PostgresSlotStore) WithTx(tx *sql.Tx) store.SlotStore {
	return &PostgresSlotStore{db: tx, logger: s.logger}
}

// ListByDate implements store.SlotStore.ListByDate.
func (s *PostgresSlotStore) ListByDate(ctx context.Context, date time.Time) ([]domain.TimeSlot, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT slot_date, slot_time, capacity, committed_units
		FROM time_slots
		WHERE slot_date = $1
		ORDER BY slot_time
	`
	rows, err := s.db.QueryContext(ctx, query, date)
	if err != nil {
		log.Error("failed to query time slots",
			slog.String("error", err.Error()),
			slog.String("date", date.Format("2006-01-02")))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	slots := []domain.TimeSlot{}
	for rows.Next() {
		var slot domain.TimeSlot
		if err := rows.Scan(&slot.Date, &slot.Time, &slot.Capacity, &slot.CommittedUnits); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// CommitUnits implements store.SlotStore.CommitUnits.
//
// IMPORTANT: run this within a transaction (WithTx + store.RunInTransaction)
// so the idempotency record and the capacity increment land atomically.
// The commit record is written first: a retried submission for the same
// application finds it and returns without touching the bucket again. The
// increment itself is guarded by the capacity check in its WHERE clause,
// so two racing commits can never push a bucket past capacity.
func (s *PostgresSlotStore) CommitUnits(ctx context.Context, applicationID uuid.UUID, date time.Time, bucket string, units int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	insert := `
		INSERT INTO slot_commits (application_id, slot_date, slot_time, units, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (application_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, insert, applicationID, date, bucket, units, time.Now().UTC())
	if err != nil {
		log.Error("failed to record slot commit",
			slog.String("error", err.Error()),
			slog.String("application_id", applicationID.String()))
		return err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		// Retried submission; the units are already committed.
		log.Debug("slot commit already recorded",
			slog.String("application_id", applicationID.String()))
		return nil
	}

	update := `
		UPDATE time_slots
		SET committed_units = committed_units + $3, updated_at = $4
		WHERE slot_date = $1 AND slot_time = $2 AND committed_units + $3 <= capacity
	`
	result, err = s.db.ExecContext(ctx, update, date, bucket, units, time.Now().UTC())
	if err != nil {
		log.Error("failed to commit slot units",
			slog.String("error", err.Error()),
			slog.String("application_id", applicationID.String()))
		return err
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if updated == 0 {
		return s.classifyFailedCommit(ctx, date, bucket)
	}

	log.Info("slot units committed",
		slog.String("application_id", applicationID.String()),
		slog.String("date", date.Format("2006-01-02")),
		slog.String("time", bucket),
		slog.Int("units", units))
	return nil
}

// ReleaseUnits implements store.SlotStore.ReleaseUnits.
// Run it within a transaction for the same reason as CommitUnits.
func (s *PostgresSlotStore) ReleaseUnits(ctx context.Context, applicationID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		date   time.Time
		bucket string
		units  int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT slot_date, slot_time, units FROM slot_commits WHERE application_id = $1`,
		applicationID,
	).Scan(&date, &bucket, &units)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Nothing committed for this application.
			return nil
		}
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM slot_commits WHERE application_id = $1`, applicationID,
	); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE time_slots
		SET committed_units = GREATEST(committed_units - $3, 0), updated_at = $4
		WHERE slot_date = $1 AND slot_time = $2
	`, date, bucket, units, time.Now().UTC())
	if err != nil {
		log.Error("failed to release slot units",
			slog.String("error", err.Error()),
			slog.String("application_id", applicationID.String()))
		return err
	}

	log.Info("slot units released",
		slog.String("application_id", applicationID.String()),
		slog.Int("units", units))
	return nil
}

// classifyFailedCommit distinguishes a missing bucket from an exhausted
// one after the guarded increment affected zero rows.
func (s *PostgresSlotStore) classifyFailedCommit(ctx context.Context, date time.Time, bucket string) error {
	var capacity int
	err := s.db.QueryRowContext(ctx,
		`SELECT capacity FROM time_slots WHERE slot_date = $1 AND slot_time = $2`,
		date, bucket,
	).Scan(&capacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrSlotNotFound
		}
		return err
	}
	return store.ErrSlotConflict
}
