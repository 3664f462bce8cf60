package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/stringing-api/internal/domain"
	"github.com/courtside/stringing-api/internal/platform/logger"
	"github.com/courtside/stringing-api/internal/platform/metrics"
	"github.com/courtside/stringing-api/internal/store"
)

// SubmissionCoordinator turns a validated draft into a submitted
// application: entitlement precondition, full gate re-validation, slot
// commit, ledger debit, and promotion, in that order.
//
// The slot commit and the ledger debit each run in their own transaction,
// keyed by the application ID for retry idempotency. The commit goes
// first: capacity is the harder resource to hand back, and the debit is
// the most reversible step. When a later step fails, the earlier commits
// are compensated and the application stays in draft.
type SubmissionCoordinator struct {
	db       *sql.DB
	apps     store.ApplicationStore
	grants   store.CreditGrantStore
	orders   store.OrderStore
	resolver *EntitlementResolver
	machine  *StepValidationMachine
	pricing  *PricingEngine
	ledger   *CreditLedger
	capacity *CapacityNegotiator
	logger   *slog.Logger
	now      func() time.Time
}

// NewSubmissionCoordinator creates a new SubmissionCoordinator.
// It returns an error if any of the required dependencies are nil.
func NewSubmissionCoordinator(
	db *sql.DB,
	apps store.ApplicationStore,
	grants store.CreditGrantStore,
	orders store.OrderStore,
	resolver *EntitlementResolver,
	machine *StepValidationMachine,
	pricing *PricingEngine,
	ledger *CreditLedger,
	capacity *CapacityNegotiator,
	logger *slog.Logger,
) (*SubmissionCoordinator, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if apps == nil {
		return nil, domain.NewValidationError("apps", "cannot be nil", domain.ErrValidation)
	}
	if grants == nil {
		return nil, domain.NewValidationError("grants", "cannot be nil", domain.ErrValidation)
	}
	if orders == nil {
		return nil, domain.NewValidationError("orders", "cannot be nil", domain.ErrValidation)
	}
	if resolver == nil {
		return nil, domain.NewValidationError("resolver", "cannot be nil", domain.ErrValidation)
	}
	if machine == nil {
		return nil, domain.NewValidationError("machine", "cannot be nil", domain.ErrValidation)
	}
	if pricing == nil {
		return nil, domain.NewValidationError("pricing", "cannot be nil", domain.ErrValidation)
	}
	if ledger == nil {
		return nil, domain.NewValidationError("ledger", "cannot be nil", domain.ErrValidation)
	}
	if capacity == nil {
		return nil, domain.NewValidationError("capacity", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionCoordinator{
		db:       db,
		apps:     apps,
		grants:   grants,
		orders:   orders,
		resolver: resolver,
		machine:  machine,
		pricing:  pricing,
		ledger:   ledger,
		capacity: capacity,
		logger:   logger.With(slog.String("component", "submission_coordinator")),
		now:      time.Now,
	}, nil
}

// Submit performs the one logical action of the workflow. Safe to retry
// against the same application ID: an already-submitted application is
// returned as is, and the commit and debit steps key their idempotency
// records on the application ID.
func (c *SubmissionCoordinator) Submit(ctx context.Context, userID, applicationID uuid.UUID) (*domain.Application, error) {
	timer := time.Now()
	app, err := c.submit(ctx, userID, applicationID)
	metrics.SubmissionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	metrics.SubmissionDuration.Observe(time.Since(timer).Seconds())
	return app, err
}

func (c *SubmissionCoordinator) submit(ctx context.Context, userID, applicationID uuid.UUID) (*domain.Application, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	app, err := c.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.UserID != userID {
		return nil, ErrNotOwned
	}
	if !app.IsDraft() {
		// Retried submit; the earlier attempt won.
		log.Debug("submission retried for submitted application",
			slog.String("application_id", app.ID.String()))
		return app, nil
	}

	order, rental, err := c.loadReferences(ctx, app)
	if err != nil {
		return nil, err
	}
	// Derived units are written back onto the lines here so the promoted
	// rows carry the same unit counts the commit and debit charge.
	requiredUnits := c.pricing.NormalizeLineUnits(app, order)

	window := domain.EntitlementWindow{Known: true}
	if app.IsOrderBased() || app.IsRentalBased() {
		window, err = c.resolver.Resolve(ctx, app.OrderRef, app.RentalRef)
		if err != nil {
			return nil, err
		}
		if window.Blocked() {
			return nil, ErrEntitlementBlocked
		}
		// The cap holds at submission even when a stale client skipped the
		// display-time check.
		if requiredUnits > window.Remaining() {
			return nil, ErrEntitlementBlocked
		}
	}

	if gateErr := c.machine.ValidateThrough(app, window, requiredUnits, GateFunding); gateErr != nil {
		return nil, gateErr
	}
	if err := c.ledger.ValidateFunding(ctx, app, requiredUnits); err != nil {
		return nil, err
	}

	quote := c.pricing.Price(app, order, rental)
	app.BaseFee = quote.BaseFee
	app.LogisticsFee = quote.LogisticsFee
	app.TotalAmount = quote.Total

	var slotCommittedAt *time.Time
	if app.Collection == domain.CollectionVisit {
		if err := c.capacity.Commit(ctx, app.ID, *app.PreferredDate, app.PreferredTime, requiredUnits); err != nil {
			return nil, err
		}
		t := c.now().UTC()
		slotCommittedAt = &t
	}

	var debitGrantID *uuid.UUID
	if app.Funding == domain.FundingPackageCredit {
		if err := c.debit(ctx, app, requiredUnits); err != nil {
			c.compensateSlot(ctx, app, slotCommittedAt, log)
			return nil, err
		}
		debitGrantID = app.PackageGrantID
	}

	if err := c.promote(ctx, app, slotCommittedAt, debitGrantID); err != nil {
		if errors.Is(err, store.ErrAlreadySubmitted) {
			// A concurrent retry promoted first; its commits are ours too.
			return c.apps.GetByID(ctx, applicationID)
		}
		c.compensateDebit(ctx, app, debitGrantID, log)
		c.compensateSlot(ctx, app, slotCommittedAt, log)
		return nil, NewWorkflowError("submit", "failed to promote application", err)
	}

	log.Info("application submitted",
		slog.String("application_id", app.ID.String()),
		slog.String("user_id", userID.String()),
		slog.Int("required_units", requiredUnits),
		slog.Int64("total_amount", app.TotalAmount))
	return app, nil
}

// QuoteResult is the pricing breakdown plus the ledger's package answer
// for the same unit count. A client offers package funding only when
// Package.Sufficient holds, falling back to cash otherwise.
type QuoteResult struct {
	Quote
	Package PackageEligibility `json:"package"`
}

// Quote recomputes the pricing breakdown for an application without
// touching any state. The display total a client renders always comes
// from here; the client never sends an amount.
func (c *SubmissionCoordinator) Quote(ctx context.Context, userID, applicationID uuid.UUID) (QuoteResult, error) {
	app, err := c.apps.GetByID(ctx, applicationID)
	if err != nil {
		return QuoteResult{}, err
	}
	if app.UserID != userID {
		return QuoteResult{}, ErrNotOwned
	}
	order, rental, err := c.loadReferences(ctx, app)
	if err != nil {
		return QuoteResult{}, err
	}
	result := QuoteResult{Quote: c.pricing.Price(app, order, rental)}

	if !app.IsRentalBased() {
		elig, err := c.ledger.EligiblePackage(ctx, app, result.RequiredUnits)
		if err != nil {
			return QuoteResult{}, err
		}
		result.Package = elig
	}
	return result, nil
}

// loadReferences fetches the read-side summaries pricing needs. A missing
// or failed lookup for an application that carries the reference means the
// collaborator cannot be trusted right now.
func (c *SubmissionCoordinator) loadReferences(ctx context.Context, app *domain.Application) (*domain.OrderSummary, *domain.RentalSummary, error) {
	var (
		order  *domain.OrderSummary
		rental *domain.RentalSummary
		err    error
	)
	if app.IsOrderBased() {
		order, err = c.orders.GetOrder(ctx, *app.OrderRef)
		if err != nil {
			if store.IsNotFoundError(err) {
				return nil, nil, ErrEntitlementBlocked
			}
			return nil, nil, NewWorkflowError("submit", "order lookup failed", ErrCollaboratorUnavailable)
		}
	}
	if app.IsRentalBased() {
		rental, err = c.orders.GetRental(ctx, *app.RentalRef)
		if err != nil {
			if store.IsNotFoundError(err) {
				return nil, nil, ErrEntitlementBlocked
			}
			return nil, nil, NewWorkflowError("submit", "rental lookup failed", ErrCollaboratorUnavailable)
		}
	}
	return order, rental, nil
}

func (c *SubmissionCoordinator) debit(ctx context.Context, app *domain.Application, units int) error {
	err := store.RunInTransaction(ctx, c.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := c.grants.WithTx(tx).Debit(ctx, app.ID, *app.PackageGrantID, units, c.now().UTC())
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			metrics.DebitFailuresTotal.WithLabelValues("insufficient_balance").Inc()
		} else if errors.Is(err, store.ErrGrantExpired) {
			metrics.DebitFailuresTotal.WithLabelValues("grant_expired").Inc()
		}
	}
	return err
}

func (c *SubmissionCoordinator) promote(ctx context.Context, app *domain.Application, slotCommittedAt *time.Time, debitGrantID *uuid.UUID) error {
	return store.RunInTransaction(ctx, c.db, func(ctx context.Context, tx *sql.Tx) error {
		txApps := c.apps.WithTx(tx)
		if err := txApps.Update(ctx, app); err != nil {
			return err
		}
		if err := app.Promote(slotCommittedAt, debitGrantID); err != nil {
			return err
		}
		return txApps.Promote(ctx, app)
	})
}

// compensateSlot returns committed slot units after a later step failed.
// Compensation failure is logged, not propagated: the original error is
// the one the caller needs, and a leaked commit is released by the next
// retry's idempotent re-commit or by reconciliation.
func (c *SubmissionCoordinator) compensateSlot(ctx context.Context, app *domain.Application, slotCommittedAt *time.Time, log *slog.Logger) {
	if slotCommittedAt == nil || app.PreferredDate == nil {
		return
	}
	if err := c.capacity.Release(ctx, app.ID, *app.PreferredDate); err != nil {
		log.Error("failed to release slot units after aborted submission",
			slog.String("error", err.Error()),
			slog.String("application_id", app.ID.String()))
	}
}

func (c *SubmissionCoordinator) compensateDebit(ctx context.Context, app *domain.Application, debitGrantID *uuid.UUID, log *slog.Logger) {
	if debitGrantID == nil {
		return
	}
	err := store.RunInTransaction(ctx, c.db, func(ctx context.Context, tx *sql.Tx) error {
		return c.grants.WithTx(tx).ReleaseDebit(ctx, app.ID)
	})
	if err != nil {
		log.Error("failed to release grant debit after aborted submission",
			slog.String("error", err.Error()),
			slog.String("application_id", app.ID.String()))
	}
}

func outcomeLabel(err error) string {
	var gateErr *GateValidationError
	switch {
	case err == nil:
		return "submitted"
	case errors.Is(err, store.ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, store.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, store.ErrGrantExpired):
		return "grant_expired"
	case errors.Is(err, ErrEntitlementBlocked):
		return "blocked"
	case errors.As(err, &gateErr):
		return "invalid"
	default:
		return "error"
	}
}
