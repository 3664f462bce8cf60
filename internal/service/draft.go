package service

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

// DraftResult reports the outcome of an EnsureDraft call.
type DraftResult struct {
	ApplicationID uuid.UUID `json:"application_id"`
	Reused        bool      `json:"reused"`
}

// DraftLifecycle guarantees at most one active application per order or
// rental reference, and creates, reuses, and edits drafts.
type DraftLifecycle struct {
	db          *sql.DB
	apps        store.ApplicationStore
	entitlement *EntitlementResolver
	logger      *slog.Logger
}

// NewDraftLifecycle creates a new DraftLifecycle.
// It returns an error if any of the required dependencies are nil.
func NewDraftLifecycle(
	db *sql.DB,
	apps store.ApplicationStore,
	entitlement *EntitlementResolver,
	logger *slog.Logger,
) (*DraftLifecycle, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if apps == nil {
		return nil, domain.NewValidationError("apps", "cannot be nil", domain.ErrValidation)
	}
	if entitlement == nil {
		return nil, domain.NewValidationError("entitlement", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftLifecycle{
		db:          db,
		apps:        apps,
		entitlement: entitlement,
		logger:      logger.With(slog.String("component", "draft_lifecycle")),
	}, nil
}

// EnsureDraft returns the active application for the order reference,
// creating a draft if none exists. Idempotent under concurrent duplicate
// calls: the partial unique index, not a check-then-insert, decides the
// winner, and the loser re-fetches the winning row.
//
// Rental references are rejected with ErrRentalDraftNotBootstrapped; the
// rental checkout flow is authoritative for those drafts, which are only
// discoverable here. A nil orderRef creates a standalone draft, which
// carries no uniqueness constraint.
func (d *DraftLifecycle) EnsureDraft(ctx context.Context, userID uuid.UUID, orderRef, rentalRef *uuid.UUID) (DraftResult, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	if rentalRef != nil {
		return DraftResult{}, ErrRentalDraftNotBootstrapped
	}

	if orderRef != nil {
		window, err := d.entitlement.Resolve(ctx, orderRef, nil)
		if err != nil {
			return DraftResult{}, err
		}
		if window.Blocked() {
			log.Info("draft creation blocked by entitlement",
				slog.String("order_ref", orderRef.String()),
				slog.Int("total_slots", window.TotalSlots),
				slog.Int("used_slots", window.UsedSlots))
			return DraftResult{}, ErrEntitlementBlocked
		}

		existing, err := d.apps.FindActiveByOrderRef(ctx, *orderRef)
		if err == nil {
			return DraftResult{ApplicationID: existing.ID, Reused: true}, nil
		}
		if !store.IsNotFoundError(err) {
			return DraftResult{}, NewWorkflowError("ensure_draft", "failed to look up active draft", err)
		}
	}

	app, err := domain.NewDraftApplication(userID, orderRef, nil)
	if err != nil {
		return DraftResult{}, err
	}

	err = store.RunInTransaction(ctx, d.db, func(ctx context.Context, tx *sql.Tx) error {
		return d.apps.WithTx(tx).CreateDraft(ctx, app)
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateDraft) && orderRef != nil {
			// Lost the creation race; the winner's draft is the one to use.
			existing, ferr := d.apps.FindActiveByOrderRef(ctx, *orderRef)
			if ferr != nil {
				return DraftResult{}, NewWorkflowError("ensure_draft", "failed to re-fetch winning draft", ferr)
			}
			return DraftResult{ApplicationID: existing.ID, Reused: true}, nil
		}
		return DraftResult{}, NewWorkflowError("ensure_draft", "failed to create draft", err)
	}

	log.Info("draft created",
		slog.String("application_id", app.ID.String()),
		slog.String("user_id", userID.String()))
	return DraftResult{ApplicationID: app.ID, Reused: false}, nil
}

// FindByOrder returns the active application for the order reference, or
// store.ErrApplicationNotFound. Used by clients to resume a draft.
func (d *DraftLifecycle) FindByOrder(ctx context.Context, orderRef uuid.UUID) (*domain.Application, error) {
	return d.apps.FindActiveByOrderRef(ctx, orderRef)
}

// FindByRental returns the active application for the rental reference, or
// store.ErrApplicationNotFound.
func (d *DraftLifecycle) FindByRental(ctx context.Context, rentalRef uuid.UUID) (*domain.Application, error) {
	return d.apps.FindActiveByRentalRef(ctx, rentalRef)
}

// Get returns the application, enforcing ownership.
func (d *DraftLifecycle) Get(ctx context.Context, userID, applicationID uuid.UUID) (*domain.Application, error) {
	app, err := d.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.UserID != userID {
		return nil, ErrNotOwned
	}
	return app, nil
}

// Save persists draft edits. Only drafts are editable; edits to a
// submitted application surface as store.ErrAlreadySubmitted.
func (d *DraftLifecycle) Save(ctx context.Context, userID uuid.UUID, app *domain.Application) error {
	log := logger.FromContextOrDefault(ctx, d.logger)

	current, err := d.apps.GetByID(ctx, app.ID)
	if err != nil {
		return err
	}
	if current.UserID != userID {
		return ErrNotOwned
	}

	err = store.RunInTransaction(ctx, d.db, func(ctx context.Context, tx *sql.Tx) error {
		return d.apps.WithTx(tx).Update(ctx, app)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadySubmitted) || store.IsNotFoundError(err) {
			return err
		}
		return NewWorkflowError("save_draft", "failed to save draft", err)
	}

	log.Debug("draft saved", slog.String("application_id", app.ID.String()))
	return nil
}
