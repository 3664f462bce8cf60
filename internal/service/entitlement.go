package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/courtside/stringing-api/internal/domain"
	"github.com/courtside/stringing-api/internal/platform/logger"
	"github.com/courtside/stringing-api/internal/store"
)

// rentalSlotCeiling is the entitlement of a single rental: one stringing
// per rented racket, and every rental record covers one racket.
const rentalSlotCeiling = 1

// EntitlementResolver determines how many more service lines an order or
// rental still permits. Pure read; it never mutates anything.
type EntitlementResolver struct {
	orders store.OrderStore
	apps   store.ApplicationStore
	logger *slog.Logger
}

// NewEntitlementResolver creates a new EntitlementResolver.
// It returns an error if any of the required dependencies are nil.
func NewEntitlementResolver(
	orders store.OrderStore,
	apps store.ApplicationStore,
	logger *slog.Logger,
) (*EntitlementResolver, error) {
	if orders == nil {
		return nil, domain.NewValidationError("orders", "cannot be nil", domain.ErrValidation)
	}
	if apps == nil {
		return nil, domain.NewValidationError("apps", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EntitlementResolver{
		orders: orders,
		apps:   apps,
		logger: logger.With(slog.String("component", "entitlement_resolver")),
	}, nil
}

// Resolve computes the entitlement window for the given reference. Exactly
// one of orderRef and rentalRef must be set; standalone applications carry
// no entitlement and never reach the resolver.
//
// A failed or missing collaborator lookup yields an unknown window, which
// Blocked() treats as blocked. The workflow never assumes unlimited
// capacity when it cannot see the ceiling.
func (r *EntitlementResolver) Resolve(ctx context.Context, orderRef, rentalRef *uuid.UUID) (domain.EntitlementWindow, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	switch {
	case orderRef != nil:
		order, err := r.orders.GetOrder(ctx, *orderRef)
		if err != nil {
			log.Warn("order lookup failed, treating entitlement as unknown",
				slog.String("error", err.Error()),
				slog.String("order_ref", orderRef.String()))
			return domain.EntitlementWindow{}, nil
		}
		used, err := r.apps.SumSubmittedUnitsByOrderRef(ctx, *orderRef)
		if err != nil {
			log.Warn("submitted-unit count failed, treating entitlement as unknown",
				slog.String("error", err.Error()),
				slog.String("order_ref", orderRef.String()))
			return domain.EntitlementWindow{}, nil
		}
		return domain.EntitlementWindow{
			TotalSlots: order.TotalSlots(),
			UsedSlots:  used,
			Known:      true,
		}, nil

	case rentalRef != nil:
		if _, err := r.orders.GetRental(ctx, *rentalRef); err != nil {
			log.Warn("rental lookup failed, treating entitlement as unknown",
				slog.String("error", err.Error()),
				slog.String("rental_ref", rentalRef.String()))
			return domain.EntitlementWindow{}, nil
		}
		used, err := r.apps.SumSubmittedUnitsByRentalRef(ctx, *rentalRef)
		if err != nil {
			log.Warn("submitted-unit count failed, treating entitlement as unknown",
				slog.String("error", err.Error()),
				slog.String("rental_ref", rentalRef.String()))
			return domain.EntitlementWindow{}, nil
		}
		return domain.EntitlementWindow{
			TotalSlots: rentalSlotCeiling,
			UsedSlots:  used,
			Known:      true,
		}, nil
	}

	return domain.EntitlementWindow{}, NewWorkflowError(
		"resolve_entitlement", "neither order nor rental reference given", domain.ErrInvalidRef)
}
