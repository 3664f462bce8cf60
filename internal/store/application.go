package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/courtside/stringing-api/internal/domain"
)

// ApplicationStore defines the interface for application persistence.
type ApplicationStore interface {
	// CreateDraft inserts a new draft application together with its lines.
	// Returns ErrDuplicateDraft when a partial unique index rejects a second
	// non-terminal application for the same order or rental reference. The
	// index, not a check-then-insert, is what makes EnsureDraft safe under
	// concurrent duplicate calls.
	CreateDraft(ctx context.Context, app *domain.Application) error

	// GetByID retrieves an application and its lines.
	// Returns ErrApplicationNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error)

	// FindActiveByOrderRef returns the non-terminal application for the
	// order reference, or ErrApplicationNotFound.
	FindActiveByOrderRef(ctx context.Context, orderRef uuid.UUID) (*domain.Application, error)

	// FindActiveByRentalRef returns the non-terminal application for the
	// rental reference, or ErrApplicationNotFound.
	FindActiveByRentalRef(ctx context.Context, rentalRef uuid.UUID) (*domain.Application, error)

	// Update replaces the editable fields and lines of a draft application.
	// Returns ErrAlreadySubmitted if the row is no longer in draft state and
	// ErrApplicationNotFound if it does not exist.
	Update(ctx context.Context, app *domain.Application) error

	// Promote transitions draft -> submitted, persisting the audit
	// references set by Application.Promote. The WHERE clause pins the draft
	// state so a retried promotion is a no-op surfaced as
	// ErrAlreadySubmitted rather than a double transition.
	Promote(ctx context.Context, app *domain.Application) error

	// SumSubmittedUnitsByOrderRef sums RequiredUnits over submitted
	// applications for the order reference. Drafts are excluded so an
	// in-progress draft does not count against its own entitlement.
	SumSubmittedUnitsByOrderRef(ctx context.Context, orderRef uuid.UUID) (int, error)

	// SumSubmittedUnitsByRentalRef is the rental-reference counterpart of
	// SumSubmittedUnitsByOrderRef.
	SumSubmittedUnitsByRentalRef(ctx context.Context, rentalRef uuid.UUID) (int, error)

	// WithTx returns an ApplicationStore bound to the given transaction.
	WithTx(tx *sql.Tx) ApplicationStore
}
