package service

import (
	"log/slog"

	"github.com/courtside/stringing-api/internal/config"
	"github.com/courtside/stringing-api/internal/domain"
)

// Quote is the pricing breakdown for an application draft. Amounts are in
// the smallest currency unit. Base and logistics fees are tracked even when
// package credit or a rental prepayment zeroes the charged total.
type Quote struct {
	BaseFee        int64 `json:"base_fee"`
	LogisticsFee   int64 `json:"logistics_fee"`
	Total          int64 `json:"total"`
	RequiredUnits  int   `json:"required_units"`
	PackageApplied bool  `json:"package_applied"`
	Prepaid        bool  `json:"prepaid"`
}

// PricingEngine computes display totals for application drafts. Rates come
// from configuration; the engine itself is stateless and side-effect free.
type PricingEngine struct {
	cfg    config.PricingConfig
	logger *slog.Logger
}

// NewPricingEngine creates a new PricingEngine with the given rates.
func NewPricingEngine(cfg config.PricingConfig, logger *slog.Logger) *PricingEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PricingEngine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "pricing_engine")),
	}
}

// Price computes the quote for the draft. order and rental are the read-side
// summaries for the draft's references; either may be nil when the draft
// carries no such reference.
func (e *PricingEngine) Price(app *domain.Application, order *domain.OrderSummary, rental *domain.RentalSummary) Quote {
	units := e.RequiredUnits(app, order)

	q := Quote{
		BaseFee:       e.baseFee(app, order, rental),
		LogisticsFee:  e.logisticsFee(app),
		RequiredUnits: units,
	}

	switch {
	case app.IsRentalBased():
		// Paid at rental checkout; nothing further is charged.
		q.Prepaid = true
		q.Total = 0
	case app.Funding == domain.FundingPackageCredit:
		q.PackageApplied = true
		q.Total = 0
	default:
		q.Total = q.BaseFee + q.LogisticsFee
	}
	return q
}

// baseFee resolves the base service fee by priority: customer-supplied
// string flat rate, then the order line's mounting fee, then the catalog
// fee carried in at workflow entry, then the standalone fallback. A rental
// prefers its stored snapshot; live computation is the safety net for rows
// written before the snapshot column existed.
func (e *PricingEngine) baseFee(app *domain.Application, order *domain.OrderSummary, rental *domain.RentalSummary) int64 {
	if app.IsRentalBased() && rental != nil && rental.StringingFee != nil {
		return *rental.StringingFee
	}
	if app.HasCustomString() {
		return e.cfg.CustomStringFee
	}
	if app.IsOrderBased() && order != nil {
		for _, l := range app.Lines {
			if l.StringItemID == nil {
				continue
			}
			if ol, ok := order.StringLine(*l.StringItemID); ok {
				return ol.MountingFee
			}
		}
	}
	if app.CatalogFee != nil {
		return *app.CatalogFee
	}
	return e.cfg.StandaloneFee
}

func (e *PricingEngine) logisticsFee(app *domain.Application) int64 {
	if app.Collection == domain.CollectionCourierPickup {
		return e.cfg.CourierPickupFee
	}
	return 0
}

// RequiredUnits computes the capacity units the draft will consume. Lines
// matching an order line default to the ordered quantity and any override
// is clamped to [1, quantity]. Off-order lines contribute one unit each,
// except customer-supplied strings, whose user-set count is taken as is.
func (e *PricingEngine) RequiredUnits(app *domain.Application, order *domain.OrderSummary) int {
	total := 0
	for _, l := range app.Lines {
		total += e.lineUnits(app, order, l)
	}
	return total
}

// NormalizeLineUnits writes the derived unit count back onto each line and
// returns the total. The submission path persists lines through this so the
// stored required_units match what the slot commit and ledger debit charge;
// entitlement used-slot sums read those stored values.
func (e *PricingEngine) NormalizeLineUnits(app *domain.Application, order *domain.OrderSummary) int {
	total := 0
	for i := range app.Lines {
		units := e.lineUnits(app, order, app.Lines[i])
		app.Lines[i].RequiredUnits = units
		total += units
	}
	return total
}

func (e *PricingEngine) lineUnits(app *domain.Application, order *domain.OrderSummary, l domain.ApplicationLine) int {
	units := l.RequiredUnits

	if app.IsOrderBased() && order != nil && l.StringItemID != nil {
		if ol, ok := order.StringLine(*l.StringItemID); ok {
			if units <= 0 {
				units = ol.Quantity
			}
			if units < 1 {
				units = 1
			}
			if units > ol.Quantity {
				units = ol.Quantity
			}
			return units
		}
	}

	if l.IsCustom() && units > 0 {
		return units
	}
	return 1
}
