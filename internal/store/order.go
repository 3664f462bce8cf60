package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/courtside/stringing-api/internal/domain"
)

// OrderStore is the read-only view of the order/rental collaborator.
// The booking workflow never writes these tables.
type OrderStore interface {
	// GetOrder retrieves an order summary with its line items.
	// Returns ErrOrderNotFound if it does not exist.
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.OrderSummary, error)

	// GetRental retrieves a rental summary including its prepaid snapshot.
	// Returns ErrRentalNotFound if it does not exist.
	GetRental(ctx context.Context, id uuid.UUID) (*domain.RentalSummary, error)
}
