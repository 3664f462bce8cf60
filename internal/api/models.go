package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/courtside/stringing-api/internal/domain"
)

// CreateDraftRequest is the body for POST /applications/drafts. A nil
// order reference creates a standalone draft. A rental reference is
// accepted only to be rejected: rental drafts come from rental checkout.
type CreateDraftRequest struct {
	OrderRef  *uuid.UUID `json:"order_ref,omitempty"`
	RentalRef *uuid.UUID `json:"rental_ref,omitempty"`
}

// DraftLookupResponse reports whether an active application exists for a
// reference. Absence is a normal answer, not an error.
type DraftLookupResponse struct {
	Found         bool       `json:"found"`
	ApplicationID *uuid.UUID `json:"application_id,omitempty"`
}

// ApplicationLineRequest is one racket/string pairing in a draft edit.
type ApplicationLineRequest struct {
	RacketLabel   string     `json:"racket_label"`
	StringItemID  *uuid.UUID `json:"string_item_id,omitempty"`
	CustomName    string     `json:"custom_name,omitempty"`
	TensionMain   string     `json:"tension_main"`
	TensionCross  string     `json:"tension_cross"`
	RequiredUnits int        `json:"required_units" validate:"omitempty,min=0,max=50"`
}

// UpdateApplicationRequest is the body for PUT /applications/{id}. Drafts
// are freely mutable, so fields are only format-checked here; completeness
// is enforced by the step gates at submission.
type UpdateApplicationRequest struct {
	Name             string                   `json:"name" validate:"max=100"`
	Email            string                   `json:"email" validate:"omitempty,email"`
	Phone            string                   `json:"phone" validate:"max=20"`
	Postcode         string                   `json:"postcode" validate:"max=10"`
	Address          string                   `json:"address" validate:"max=300"`
	AddressDetail    string                   `json:"address_detail" validate:"max=300"`
	CollectionMethod string                   `json:"collection_method" validate:"omitempty,oneof=self_ship courier_pickup visit"`
	PickupDate       *time.Time               `json:"pickup_date,omitempty"`
	PickupWindow     string                   `json:"pickup_window,omitempty"`
	PreferredDate    *time.Time               `json:"preferred_date,omitempty"`
	PreferredTime    string                   `json:"preferred_time,omitempty"`
	FundingMode      string                   `json:"funding_mode" validate:"omitempty,oneof=cash package_credit"`
	Bank             string                   `json:"bank,omitempty" validate:"max=50"`
	Depositor        string                   `json:"depositor,omitempty" validate:"max=50"`
	PackageGrantID   *uuid.UUID               `json:"package_grant_id,omitempty"`
	CatalogFee       *int64                   `json:"catalog_fee,omitempty"`
	Notes            string                   `json:"notes,omitempty" validate:"max=2000"`
	Lines            []ApplicationLineRequest `json:"lines" validate:"max=20,dive"`
}

// applyTo copies the edit onto the draft. References, status, and pricing
// audit fields are never client-writable.
func (req UpdateApplicationRequest) applyTo(app *domain.Application) {
	app.Name = req.Name
	app.Email = req.Email
	app.Phone = req.Phone
	app.Postcode = req.Postcode
	app.Address = req.Address
	app.AddressDetail = req.AddressDetail
	app.Collection = domain.CollectionMethod(req.CollectionMethod)
	app.PickupDate = req.PickupDate
	app.PickupWindow = req.PickupWindow
	app.PreferredDate = req.PreferredDate
	app.PreferredTime = req.PreferredTime
	app.Funding = domain.FundingMode(req.FundingMode)
	app.Bank = req.Bank
	app.Depositor = req.Depositor
	app.PackageGrantID = req.PackageGrantID
	app.CatalogFee = req.CatalogFee
	app.Notes = req.Notes

	lines := make([]domain.ApplicationLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.ApplicationLine{
			ID:            uuid.New(),
			ApplicationID: app.ID,
			RacketLabel:   l.RacketLabel,
			StringItemID:  l.StringItemID,
			CustomName:    l.CustomName,
			TensionMain:   l.TensionMain,
			TensionCross:  l.TensionCross,
			RequiredUnits: l.RequiredUnits,
		})
	}
	app.Lines = lines
}

// EntitlementResponse is the display-time view of the entitlement window.
type EntitlementResponse struct {
	TotalSlots     int  `json:"total_slots"`
	UsedSlots      int  `json:"used_slots"`
	RemainingSlots int  `json:"remaining_slots"`
	Blocked        bool `json:"blocked"`
}

// SubmitResponse is the body for a successful submission.
type SubmitResponse struct {
	ApplicationID uuid.UUID `json:"application_id"`
}
