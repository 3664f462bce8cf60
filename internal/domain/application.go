package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus represents the lifecycle state of an application.
// Further states (processing, completed) are driven by the fulfilment
// service and never appear inside this workflow.
type ApplicationStatus string

const (
	// StatusDraft is the initial, freely editable state.
	StatusDraft ApplicationStatus = "draft"

	// StatusSubmitted is reached exactly once, atomically with the slot
	// commit and ledger debit.
	StatusSubmitted ApplicationStatus = "submitted"
)

// CollectionMethod describes how rackets reach the shop.
type CollectionMethod string

const (
	CollectionSelfShip      CollectionMethod = "self_ship"
	CollectionCourierPickup CollectionMethod = "courier_pickup"
	CollectionVisit         CollectionMethod = "visit"
)

// Valid reports whether the collection method is one of the known values.
func (m CollectionMethod) Valid() bool {
	switch m {
	case CollectionSelfShip, CollectionCourierPickup, CollectionVisit:
		return true
	}
	return false
}

// FundingMode describes how the application's cost is settled.
// Rental-based applications are prepaid and carry neither mode.
type FundingMode string

const (
	FundingCash          FundingMode = "cash"
	FundingPackageCredit FundingMode = "package_credit"
)

// Application is the central entity of the workflow: a customer's request
// to have one or more rackets restrung, tracked draft -> submitted.
//
// At most one non-terminal application may exist per distinct order
// reference, and likewise per rental reference. Standalone applications
// (neither reference set) carry no such uniqueness constraint. The
// constraint is enforced by partial unique indexes, not application code.
type Application struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	OrderRef  *uuid.UUID `json:"order_ref,omitempty"`
	RentalRef *uuid.UUID `json:"rental_ref,omitempty"`

	Status ApplicationStatus `json:"status"`

	// Applicant contact details (gate 1).
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`

	// Shipping / collection details (gate 1).
	Postcode      string           `json:"postcode"`
	Address       string           `json:"address"`
	AddressDetail string           `json:"address_detail"`
	Collection    CollectionMethod `json:"collection_method"`
	PickupDate    *time.Time       `json:"pickup_date,omitempty"`
	PickupWindow  string           `json:"pickup_window,omitempty"`

	// Visit appointment selection; only meaningful for CollectionVisit.
	PreferredDate *time.Time `json:"preferred_date,omitempty"`
	PreferredTime string     `json:"preferred_time,omitempty"`

	// Funding selection (gate 3). CatalogFee is the mounting fee carried
	// in from a product page, used as a pricing fallback for standalone
	// applications.
	Funding        FundingMode `json:"funding_mode"`
	Bank           string      `json:"bank,omitempty"`
	Depositor      string      `json:"depositor,omitempty"`
	PackageGrantID *uuid.UUID  `json:"package_grant_id,omitempty"`
	CatalogFee     *int64      `json:"catalog_fee,omitempty"`

	// Pricing record at submission time. Tracked even when package credit
	// zeroes the charged total.
	BaseFee      int64 `json:"base_fee"`
	LogisticsFee int64 `json:"logistics_fee"`
	TotalAmount  int64 `json:"total_amount"`

	// Audit references recorded by the submission coordinator.
	SlotCommittedAt *time.Time `json:"slot_committed_at,omitempty"`
	DebitGrantID    *uuid.UUID `json:"debit_grant_id,omitempty"`

	Notes string `json:"notes,omitempty"`

	Lines []ApplicationLine `json:"lines"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplicationLine is one physical racket/string pairing to be serviced.
// A nil StringItemID with a non-empty CustomName means the customer
// supplies their own string.
type ApplicationLine struct {
	ID            uuid.UUID  `json:"id"`
	ApplicationID uuid.UUID  `json:"application_id"`
	RacketLabel   string     `json:"racket_label"`
	StringItemID  *uuid.UUID `json:"string_item_id,omitempty"`
	CustomName    string     `json:"custom_name,omitempty"`
	TensionMain   string     `json:"tension_main"`
	TensionCross  string     `json:"tension_cross"`
	RequiredUnits int        `json:"required_units"`
}

// IsCustom reports whether the line uses a customer-supplied string.
func (l ApplicationLine) IsCustom() bool {
	return l.StringItemID == nil
}

// Complete reports whether the line has everything submission requires:
// a racket label and both tensions.
func (l ApplicationLine) Complete() bool {
	return l.RacketLabel != "" && l.TensionMain != "" && l.TensionCross != ""
}

// NewDraftApplication creates a new draft application for the given user.
// Either reference may be nil; both nil means a standalone application.
func NewDraftApplication(userID uuid.UUID, orderRef, rentalRef *uuid.UUID) (*Application, error) {
	if userID == uuid.Nil {
		return nil, NewValidationError("user_id", "cannot be empty", ErrValidation)
	}
	now := time.Now().UTC()
	return &Application{
		ID:        uuid.New(),
		UserID:    userID,
		OrderRef:  orderRef,
		RentalRef: rentalRef,
		Status:    StatusDraft,
		Funding:   FundingCash,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsOrderBased reports whether the application funds against an order.
func (a *Application) IsOrderBased() bool {
	return a.OrderRef != nil
}

// IsRentalBased reports whether the application stems from a rental.
func (a *Application) IsRentalBased() bool {
	return a.RentalRef != nil
}

// IsDraft reports whether the application is still editable.
func (a *Application) IsDraft() bool {
	return a.Status == StatusDraft
}

// HasCustomString reports whether any line uses a customer-supplied string.
func (a *Application) HasCustomString() bool {
	for _, l := range a.Lines {
		if l.IsCustom() {
			return true
		}
	}
	return false
}

// Promote transitions the application from draft to submitted, recording
// the slot commit time and/or debited grant for audit. Returns ErrNotDraft
// if the application is already submitted, which callers use to make
// retried submissions idempotent.
func (a *Application) Promote(slotCommittedAt *time.Time, debitGrantID *uuid.UUID) error {
	if a.Status != StatusDraft {
		return ErrNotDraft
	}
	a.Status = StatusSubmitted
	a.SlotCommittedAt = slotCommittedAt
	a.DebitGrantID = debitGrantID
	a.UpdatedAt = time.Now().UTC()
	return nil
}
