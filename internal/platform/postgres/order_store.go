package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/courtside/stringing-api/internal/domain"
	"github.com/courtside/stringing-api/internal/platform/logger"
	"github.com/courtside/stringing-api/internal/store"
)

// PostgresOrderStore implements the read-only store.OrderStore interface
// over the order service's tables. The booking workflow never writes them.
type PostgresOrderStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresOrderStore creates a new PostgreSQL implementation of the
// OrderStore interface. If logger is nil, a default logger is used.
func NewPostgresOrderStore(db store.DBTX, logger *slog.Logger) *PostgresOrderStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresOrderStore{
		db:     db,
		logger: logger.With(slog.String("component", "order_store")),
	}
}

// Ensure PostgresOrderStore implements store.OrderStore.
var _ store.OrderStore = (*PostgresOrderStore)(nil)

// GetOrder implements store.OrderStore.GetOrder.
func (s *PostgresOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.OrderSummary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var order domain.OrderSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at FROM orders WHERE id = $1`, id,
	).Scan(&order.ID, &order.UserID, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrOrderNotFound
		}
		log.Error("failed to query order",
			slog.String("error", err.Error()),
			slog.String("order_id", id.String()))
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, kind, quantity, mounting_fee
		FROM order_lines
		WHERE order_id = $1
		ORDER BY item_id
	`, id)
	if err != nil {
		log.Error("failed to query order lines",
			slog.String("error", err.Error()),
			slog.String("order_id", id.String()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	for rows.Next() {
		var (
			line domain.OrderLine
			kind string
		)
		if err := rows.Scan(&line.ItemID, &kind, &line.Quantity, &line.MountingFee); err != nil {
			return nil, err
		}
		line.Kind = domain.OrderLineKind(kind)
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetRental implements store.OrderStore.GetRental.
func (s *PostgresOrderStore) GetRental(ctx context.Context, id uuid.UUID) (*domain.RentalSummary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		rental       domain.RentalSummary
		stringingFee sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, deposit, rental_fee, string_price, stringing_fee, created_at
		FROM rentals
		WHERE id = $1
	`, id).Scan(
		&rental.ID, &rental.UserID, &rental.Deposit, &rental.RentalFee,
		&rental.StringPrice, &stringingFee, &rental.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRentalNotFound
		}
		log.Error("failed to query rental",
			slog.String("error", err.Error()),
			slog.String("rental_id", id.String()))
		return nil, err
	}
	if stringingFee.Valid {
		v := stringingFee.Int64
		rental.StringingFee = &v
	}
	return &rental, nil
}
