package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/stringing-api/internal/domain"
)

// CreditGrantStore defines the interface for package-pass persistence.
type CreditGrantStore interface {
	// ListActiveByUser returns the user's unexpired grants with a positive
	// balance, soonest-expiring first.
	ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.CreditGrant, error)

	// GetByID retrieves a grant. Returns ErrGrantNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CreditGrant, error)

	// Debit atomically subtracts units from the grant's remaining count.
	// The decrement only applies when the balance is sufficient and the
	// grant unexpired, so concurrent debits fail closed instead of
	// double-spending. The application ID is the idempotency key: a retried
	// debit for an application that already debited succeeds and reports
	// the current balance. Returns the remaining count after the debit, or
	// ErrInsufficientBalance, ErrGrantExpired, ErrGrantNotFound.
	Debit(ctx context.Context, applicationID, grantID uuid.UUID, units int, now time.Time) (int, error)

	// ReleaseDebit undoes a prior debit for the application, restoring its
	// units to the grant. A release with no matching debit is a no-op.
	ReleaseDebit(ctx context.Context, applicationID uuid.UUID) error

	// WithTx returns a CreditGrantStore bound to the given transaction.
	WithTx(tx *sql.Tx) CreditGrantStore
}
