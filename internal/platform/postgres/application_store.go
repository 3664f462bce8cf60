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

// PostgresApplicationStore implements the store.ApplicationStore interface
// using a PostgreSQL database as the storage backend.
type PostgresApplicationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresApplicationStore creates a new PostgreSQL implementation of
// the ApplicationStore interface. If logger is nil, a default logger is
// used.
func NewPostgresApplicationStore(db store.DBTX, logger *slog.Logger) *PostgresApplicationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresApplicationStore{
		db:     db,
		logger: logger.With(slog.String("component", "application_store")),
	}
}

// Ensure PostgresApplicationStore implements store.ApplicationStore.
var _ store.ApplicationStore = (*PostgresApplicationStore)(nil)

// WithTx returns an ApplicationStore bound to the given transaction.
func (s *PostgresApplicationStore) WithTx(tx *sql.Tx) store.ApplicationStore {
	return &PostgresApplicationStore{db: tx, logger: s.logger}
}

const applicationColumns = `
	id, user_id, order_ref, rental_ref, status,
	name, email, phone,
	postcode, address, address_detail, collection_method, pickup_date, pickup_window,
	preferred_date, preferred_time,
	funding_mode, bank, depositor, package_grant_id, catalog_fee,
	base_fee, logistics_fee, total_amount,
	slot_committed_at, debit_grant_id, notes, created_at, updated_at`

// CreateDraft implements store.ApplicationStore.CreateDraft.
// It inserts the application row and its lines. Run it within a
// transaction (WithTx + store.RunInTransaction) so the row and lines land
// atomically. Returns store.ErrDuplicateDraft when the partial unique
// index on (order_ref)/(rental_ref) for non-terminal rows rejects the
// insert.
func (s *PostgresApplicationStore) CreateDraft(ctx context.Context, app *domain.Application) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
	`
	_, err := s.db.ExecContext(ctx, query,
		app.ID, app.UserID, app.OrderRef, app.RentalRef, app.Status,
		app.Name, app.Email, app.Phone,
		app.Postcode, app.Address, app.AddressDetail, app.Collection, app.PickupDate, app.PickupWindow,
		app.PreferredDate, app.PreferredTime,
		app.Funding, app.Bank, app.Depositor, app.PackageGrantID, app.CatalogFee,
		app.BaseFee, app.LogisticsFee, app.TotalAmount,
		app.SlotCommittedAt, app.DebitGrantID, app.Notes, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			log.Debug("draft already exists for reference",
				slog.String("application_id", app.ID.String()))
			return store.ErrDuplicateDraft
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: referenced entity missing", store.ErrInvalidEntity)
		}
		log.Error("failed to create draft application",
			slog.String("error", err.Error()),
			slog.String("application_id", app.ID.String()))
		return err
	}

	if err := s.insertLines(ctx, app.ID, app.Lines); err != nil {
		log.Error("failed to insert application lines",
			slog.String("error", err.Error()),
			slog.String("application_id", app.ID.String()))
		return err
	}

	log.Info("draft application created",
		slog.String("application_id", app.ID.String()),
		slog.String("user_id", app.UserID.String()))
	return nil
}

// GetByID implements store.ApplicationStore.GetByID.
func (s *PostgresApplicationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	return s.getOne(ctx, query, id)
}

// FindActiveByOrderRef implements store.ApplicationStore.FindActiveByOrderRef.
func (s *PostgresApplicationStore) FindActiveByOrderRef(ctx context.Context, orderRef uuid.UUID) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + `
		FROM applications
		WHERE order_ref = $1 AND status IN ('draft', 'submitted')`
	return s.getOne(ctx, query, orderRef)
}

// FindActiveByRentalRef implements store.ApplicationStore.FindActiveByRentalRef.
func (s *PostgresApplicationStore) FindActiveByRentalRef(ctx context.Context, rentalRef uuid.UUID) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + `
		FROM applications
		WHERE rental_ref = $1 AND status IN ('draft', 'submitted')`
	return s.getOne(ctx, query, rentalRef)
}

// Update implements store.ApplicationStore.Update.
// The WHERE clause pins the draft state; edits to a submitted application
// surface as store.ErrAlreadySubmitted. Run it within a transaction so the
// row update and line replacement land atomically.
func (s *PostgresApplicationStore) Update(ctx context.Context, app *domain.Application) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE applications
		SET name = $2, email = $3, phone = $4,
			postcode = $5, address = $6, address_detail = $7,
			collection_method = $8, pickup_date = $9, pickup_window = $10,
			preferred_date = $11, preferred_time = $12,
			funding_mode = $13, bank = $14, depositor = $15,
			package_grant_id = $16, catalog_fee = $17,
			base_fee = $18, logistics_fee = $19, total_amount = $20,
			notes = $21, updated_at = $22
		WHERE id = $1 AND status = 'draft'
	`
	result, err := s.db.ExecContext(ctx, query,
		app.ID,
		app.Name, app.Email, app.Phone,
		app.Postcode, app.Address, app.AddressDetail,
		app.Collection, app.PickupDate, app.PickupWindow,
		app.PreferredDate, app.PreferredTime,
		app.Funding, app.Bank, app.Depositor,
		app.PackageGrantID, app.CatalogFee,
		app.BaseFee, app.LogisticsFee, app.TotalAmount,
		app.Notes, time.Now().UTC(),
	)
	if err != nil {
		log.Error("failed to update application",
			slog.String("error", err.Error()),
			slog.String("application_id", app.ID.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return s.classifyMissingDraft(ctx, app.ID)
	}

	deleteQuery := `DELETE FROM application_lines WHERE application_id = $1`
	if _, err := s.db.ExecContext(ctx, deleteQuery, app.ID); err != nil {
		log.Error("failed to clear application lines",
			slog.String("error", err.Error()),
			slog.String("application_id", app.ID.String()))
		return err
	}
	if err := s.insertLines(ctx, app.ID, app.Lines); err != nil {
		log.Error("failed to replace application lines",
			slog.String("error", err.Error()),
			slog.String("application_id", app.ID.String()))
		return err
	}

	log.Debug("application updated",
		slog.String("application_id", app.ID.String()))
	return nil
}

// Promote implements store.ApplicationStore.Promote.
func (s *PostgresApplicationStore) Promote(ctx context.Context, app *domain.Application) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE applications
		SET status = 'submitted', slot_committed_at = $2, debit_grant_id = $3, updated_at = $4
		WHERE id = $1 AND status = 'draft'
	`
	result, err := s.db.ExecContext(ctx, query,
		app.ID, app.SlotCommittedAt, app.DebitGrantID, app.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to promote application",
			slog.String("error", err.Error()),
			slog.String("application_id", app.ID.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return s.classifyMissingDraft(ctx, app.ID)
	}

	log.Info("application promoted to submitted",
		slog.String("application_id", app.ID.String()))
	return nil
}

// SumSubmittedUnitsByOrderRef implements store.ApplicationStore.SumSubmittedUnitsByOrderRef.
func (s *PostgresApplicationStore) SumSubmittedUnitsByOrderRef(ctx context.Context, orderRef uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(SUM(l.required_units), 0)
		FROM application_lines l
		JOIN applications a ON a.id = l.application_id
		WHERE a.order_ref = $1 AND a.status = 'submitted'
	`
	return s.sumUnits(ctx, query, orderRef)
}

// SumSubmittedUnitsByRentalRef implements store.ApplicationStore.SumSubmittedUnitsByRentalRef.
func (s *PostgresApplicationStore) SumSubmittedUnitsByRentalRef(ctx context.Context, rentalRef uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(SUM(l.required_units), 0)
		FROM application_lines l
		JOIN applications a ON a.id = l.application_id
		WHERE a.rental_ref = $1 AND a.status = 'submitted'
	`
	return s.sumUnits(ctx, query, rentalRef)
}

func (s *PostgresApplicationStore) sumUnits(ctx context.Context, query string, ref uuid.UUID) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, query, ref).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum submitted units: %w", err)
	}
	return total, nil
}

// classifyMissingDraft distinguishes "row does not exist" from "row exists
// but already left draft" after a guarded update affected zero rows.
func (s *PostgresApplicationStore) classifyMissingDraft(ctx context.Context, id uuid.UUID) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM applications WHERE id = $1`, id,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrApplicationNotFound
		}
		return err
	}
	return store.ErrAlreadySubmitted
}

func (s *PostgresApplicationStore) insertLines(ctx context.Context, applicationID uuid.UUID, lines []domain.ApplicationLine) error {
	query := `
		INSERT INTO application_lines
			(id, application_id, racket_label, string_item_id, custom_name,
			 tension_main, tension_cross, required_units)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, line := range lines {
		id := line.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := s.db.ExecContext(ctx, query,
			id, applicationID, line.RacketLabel, line.StringItemID, line.CustomName,
			line.TensionMain, line.TensionCross, line.RequiredUnits,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresApplicationStore) getOne(ctx context.Context, query string, arg any) (*domain.Application, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		app           domain.Application
		orderRef      uuid.NullUUID
		rentalRef     uuid.NullUUID
		status        string
		collection    sql.NullString
		pickupDate    sql.NullTime
		pickupWindow  sql.NullString
		preferredDate sql.NullTime
		preferredTime sql.NullString
		funding       sql.NullString
		bank          sql.NullString
		depositor     sql.NullString
		grantID       uuid.NullUUID
		catalogFee    sql.NullInt64
		committedAt   sql.NullTime
		debitGrantID  uuid.NullUUID
		notes         sql.NullString
	)

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&app.ID, &app.UserID, &orderRef, &rentalRef, &status,
		&app.Name, &app.Email, &app.Phone,
		&app.Postcode, &app.Address, &app.AddressDetail, &collection, &pickupDate, &pickupWindow,
		&preferredDate, &preferredTime,
		&funding, &bank, &depositor, &grantID, &catalogFee,
		&app.BaseFee, &app.LogisticsFee, &app.TotalAmount,
		&committedAt, &debitGrantID, &notes, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrApplicationNotFound
		}
		log.Error("failed to query application", slog.String("error", err.Error()))
		return nil, err
	}

	app.Status = domain.ApplicationStatus(status)
	app.Collection = domain.CollectionMethod(collection.String)
	app.PickupWindow = pickupWindow.String
	app.PreferredTime = preferredTime.String
	app.Funding = domain.FundingMode(funding.String)
	app.Bank = bank.String
	app.Depositor = depositor.String
	app.Notes = notes.String
	if orderRef.Valid {
		app.OrderRef = &orderRef.UUID
	}
	if rentalRef.Valid {
		app.RentalRef = &rentalRef.UUID
	}
	if pickupDate.Valid {
		t := pickupDate.Time
		app.PickupDate = &t
	}
	if preferredDate.Valid {
		t := preferredDate.Time
		app.PreferredDate = &t
	}
	if grantID.Valid {
		app.PackageGrantID = &grantID.UUID
	}
	if catalogFee.Valid {
		v := catalogFee.Int64
		app.CatalogFee = &v
	}
	if committedAt.Valid {
		t := committedAt.Time
		app.SlotCommittedAt = &t
	}
	if debitGrantID.Valid {
		app.DebitGrantID = &debitGrantID.UUID
	}

	lines, err := s.loadLines(ctx, app.ID)
	if err != nil {
		log.Error("failed to load application lines",
			slog.String("error", err.Error()),
			slog.String("application_id", app.ID.String()))
		return nil, err
	}
	app.Lines = lines

	return &app, nil
}

func (s *PostgresApplicationStore) loadLines(ctx context.Context, applicationID uuid.UUID) ([]domain.ApplicationLine, error) {
	query := `
		SELECT id, application_id, racket_label, string_item_id, custom_name,
			tension_main, tension_cross, required_units
		FROM application_lines
		WHERE application_id = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	lines := []domain.ApplicationLine{}
	for rows.Next() {
		var (
			line       domain.ApplicationLine
			itemID     uuid.NullUUID
			customName sql.NullString
		)
		err := rows.Scan(
			&line.ID, &line.ApplicationID, &line.RacketLabel, &itemID, &customName,
			&line.TensionMain, &line.TensionCross, &line.RequiredUnits,
		)
		if err != nil {
			return nil, err
		}
		if itemID.Valid {
			line.StringItemID = &itemID.UUID
		}
		line.CustomName = customName.String
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
