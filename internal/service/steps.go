package service

import (
	"regexp"

	"github.com/courtside/stringing-api/internal/domain"
)

// Validation gates, strictly ordered. An application must pass every gate
// up to GateNotes before submission is attempted.
const (
	GateContact = 1 // contact and shipping details
	GateService = 2 // lines, tensions, appointment, entitlement
	GateFunding = 3 // funding selection
	GateNotes   = 4 // free text, always valid
)

var (
	// Domestic 11-digit mobile numbers only.
	phonePattern = regexp.MustCompile(`^01[016789]\d{8}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// StepValidationMachine runs the ordered input-completeness gates over an
// application draft. It is pure: the draft, the entitlement window, and
// the computed unit count are inputs, and the first failing field per gate
// is answered deterministically by a fixed check order.
type StepValidationMachine struct{}

// NewStepValidationMachine creates a new StepValidationMachine.
func NewStepValidationMachine() *StepValidationMachine {
	return &StepValidationMachine{}
}

// Validate runs a single gate. With silent=true only the boolean outcome
// is reported, supporting navigation affordances; otherwise the returned
// error carries the first failing field.
func (m *StepValidationMachine) Validate(
	app *domain.Application,
	window domain.EntitlementWindow,
	requiredUnits int,
	gate int,
	silent bool,
) (bool, *GateValidationError) {
	var gateErr *GateValidationError
	switch gate {
	case GateContact:
		gateErr = m.validateContact(app)
	case GateService:
		gateErr = m.validateService(app, window, requiredUnits)
	case GateFunding:
		gateErr = m.validateFunding(app)
	case GateNotes:
		gateErr = nil
	default:
		gateErr = NewGateValidationError(gate, "", "unknown gate")
	}

	if gateErr == nil {
		return true, nil
	}
	if silent {
		return false, nil
	}
	return false, gateErr
}

// ValidateThrough re-runs gates 1..lastGate non-silently and returns the
// first failure. The submission coordinator uses it so a draft cannot
// reach submission with an earlier gate invalid via direct navigation.
func (m *StepValidationMachine) ValidateThrough(
	app *domain.Application,
	window domain.EntitlementWindow,
	requiredUnits int,
	lastGate int,
) *GateValidationError {
	for gate := GateContact; gate <= lastGate; gate++ {
		if ok, gateErr := m.Validate(app, window, requiredUnits, gate, false); !ok {
			return gateErr
		}
	}
	return nil
}

func (m *StepValidationMachine) validateContact(app *domain.Application) *GateValidationError {
	if app.Name == "" {
		return NewGateValidationError(GateContact, "name", "name is required")
	}
	if app.Email == "" || !emailPattern.MatchString(app.Email) {
		return NewGateValidationError(GateContact, "email", "a valid email is required")
	}
	if !phonePattern.MatchString(app.Phone) {
		return NewGateValidationError(GateContact, "phone", "an 11-digit mobile number is required")
	}
	if app.Postcode == "" {
		return NewGateValidationError(GateContact, "postcode", "postcode is required")
	}
	if app.Address == "" {
		return NewGateValidationError(GateContact, "address", "address is required")
	}
	if !app.Collection.Valid() {
		return NewGateValidationError(GateContact, "collection_method", "a collection method is required")
	}
	if app.Collection == domain.CollectionCourierPickup {
		if app.PickupDate == nil {
			return NewGateValidationError(GateContact, "pickup_date", "a pickup date is required for courier pickup")
		}
		if app.PickupWindow == "" {
			return NewGateValidationError(GateContact, "pickup_window", "a pickup time window is required for courier pickup")
		}
	}
	return nil
}

func (m *StepValidationMachine) validateService(
	app *domain.Application,
	window domain.EntitlementWindow,
	requiredUnits int,
) *GateValidationError {
	if len(app.Lines) == 0 {
		return NewGateValidationError(GateService, "lines", "at least one string selection is required")
	}
	for _, l := range app.Lines {
		if l.IsCustom() && l.CustomName == "" {
			return NewGateValidationError(GateService, "custom_name", "a name is required for a customer-supplied string")
		}
		if l.RacketLabel == "" {
			return NewGateValidationError(GateService, "racket_label", "every line needs a racket label")
		}
		if l.TensionMain == "" || l.TensionCross == "" {
			return NewGateValidationError(GateService, "tension", "every line needs main and cross tensions")
		}
	}
	if app.Collection == domain.CollectionVisit {
		if app.PreferredDate == nil {
			return NewGateValidationError(GateService, "preferred_date", "a visit date is required")
		}
		if app.PreferredTime == "" {
			return NewGateValidationError(GateService, "preferred_time", "a visit time is required")
		}
	}
	if app.IsOrderBased() || app.IsRentalBased() {
		if requiredUnits > window.Remaining() {
			return NewGateValidationError(GateService, "lines", "selection exceeds the remaining entitlement")
		}
	}
	return nil
}

func (m *StepValidationMachine) validateFunding(app *domain.Application) *GateValidationError {
	// Rentals are prepaid; the funding gate does not apply.
	if app.IsRentalBased() {
		return nil
	}
	switch app.Funding {
	case domain.FundingPackageCredit:
		if app.PackageGrantID == nil {
			return NewGateValidationError(GateFunding, "package_grant_id", "a package pass must be selected")
		}
	case domain.FundingCash:
		if app.Bank == "" {
			return NewGateValidationError(GateFunding, "bank", "a bank is required for transfer")
		}
		if app.Depositor == "" {
			return NewGateValidationError(GateFunding, "depositor", "a depositor name is required")
		}
	default:
		return NewGateValidationError(GateFunding, "funding_mode", "a funding method is required")
	}
	return nil
}
