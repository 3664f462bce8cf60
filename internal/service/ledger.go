package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/stringing-api/internal/domain"
	"github.com/courtside/stringing-api/internal/platform/logger"
	"github.com/courtside/stringing-api/internal/store"
)

// PackageEligibility is the ledger's answer for a candidate application:
// whether the user holds any active grant, the best grant to use, and
// whether that grant can cover the required units. An insufficient grant
// is surfaced but never auto-selected.
type PackageEligibility struct {
	Has        bool       `json:"has"`
	GrantID    *uuid.UUID `json:"grant_id,omitempty"`
	Remaining  int        `json:"remaining"`
	Sufficient bool       `json:"sufficient"`
}

// CreditLedger is the workflow's view of the prepaid package-pass ledger.
// Balances are owned by the grant store; the ledger only reads them here.
// Debits happen inside the submission coordinator.
type CreditLedger struct {
	grants store.CreditGrantStore
	logger *slog.Logger
	now    func() time.Time
}

// NewCreditLedger creates a new CreditLedger.
// It returns an error if any of the required dependencies are nil.
func NewCreditLedger(grants store.CreditGrantStore, logger *slog.Logger) (*CreditLedger, error) {
	if grants == nil {
		return nil, domain.NewValidationError("grants", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CreditLedger{
		grants: grants,
		logger: logger.With(slog.String("component", "credit_ledger")),
		now:    time.Now,
	}, nil
}

// ActiveGrants returns the user's unexpired grants with a positive balance,
// soonest-expiring first.
func (l *CreditLedger) ActiveGrants(ctx context.Context, userID uuid.UUID) ([]domain.CreditGrant, error) {
	grants, err := l.grants.ListActiveByUser(ctx, userID, l.now().UTC())
	if err != nil {
		return nil, NewWorkflowError("list_grants", "failed to load package passes", err)
	}
	return grants, nil
}

// EligiblePackage reports whether package funding can apply to the
// application at the given unit count. Rental-based applications are
// prepaid and always rejected. When multiple grants are active the
// soonest-expiring one is offered, so expiring credit is burned first.
func (l *CreditLedger) EligiblePackage(ctx context.Context, app *domain.Application, requiredUnits int) (PackageEligibility, error) {
	log := logger.FromContextOrDefault(ctx, l.logger)

	if app.IsRentalBased() {
		return PackageEligibility{}, ErrRentalNotPackageEligible
	}

	grants, err := l.ActiveGrants(ctx, app.UserID)
	if err != nil {
		return PackageEligibility{}, err
	}
	if len(grants) == 0 {
		return PackageEligibility{}, nil
	}

	best := grants[0]
	log.Debug("package eligibility computed",
		slog.String("user_id", app.UserID.String()),
		slog.String("grant_id", best.ID.String()),
		slog.Int("remaining", best.RemainingCount),
		slog.Int("required_units", requiredUnits))
	return PackageEligibility{
		Has:        true,
		GrantID:    &best.ID,
		Remaining:  best.RemainingCount,
		Sufficient: best.Sufficient(requiredUnits),
	}, nil
}

// ValidateFunding checks that the application's funding selection is
// consistent with the ledger: package credit requires a selected grant
// with sufficient unexpired balance, and is never available to rentals.
func (l *CreditLedger) ValidateFunding(ctx context.Context, app *domain.Application, requiredUnits int) error {
	if app.Funding != domain.FundingPackageCredit {
		return nil
	}
	if app.IsRentalBased() {
		return ErrRentalNotPackageEligible
	}
	if app.PackageGrantID == nil {
		return NewGateValidationError(3, "package_grant_id", "no package pass selected")
	}

	grant, err := l.grants.GetByID(ctx, *app.PackageGrantID)
	if err != nil {
		return err
	}
	now := l.now().UTC()
	if grant.UserID != app.UserID {
		return ErrNotOwned
	}
	if grant.Expired(now) {
		return store.ErrGrantExpired
	}
	if !grant.Sufficient(requiredUnits) {
		return store.ErrInsufficientBalance
	}
	return nil
}
