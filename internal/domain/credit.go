package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreditGrant is a prepaid bundle of stringing credits ("package pass").
// The ledger service owns the balance; this workflow reads it and requests
// atomic debits at submission time.
type CreditGrant struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	PackageSize    int       `json:"package_size"`
	RemainingCount int       `json:"remaining_count"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Expired reports whether the grant has passed its expiry at the given time.
func (g *CreditGrant) Expired(now time.Time) bool {
	return !g.ExpiresAt.After(now)
}

// Sufficient reports whether the grant can cover the required units.
// An insufficient grant is surfaced to the user but never auto-selected.
func (g *CreditGrant) Sufficient(requiredUnits int) bool {
	return g.RemainingCount >= requiredUnits
}
