package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/stringing-api/internal/domain"
)

func validDraft() *domain.Application {
	pickup := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	return &domain.Application{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Status:     domain.StatusDraft,
		Name:       "Jamie Doe",
		Email:      "jamie@example.com",
		Phone:      "01012345678",
		Postcode:   "04524",
		Address:    "12 Court Lane",
		Collection: domain.CollectionSelfShip,
		Funding:    domain.FundingCash,
		Bank:       "First Bank",
		Depositor:  "Jamie Doe",
		PickupDate: &pickup,
		Lines: []domain.ApplicationLine{
			{RacketLabel: "main", StringItemID: uuidPtr(uuid.New()), TensionMain: "52", TensionCross: "50", RequiredUnits: 1},
		},
	}
}

func openWindow() domain.EntitlementWindow {
	return domain.EntitlementWindow{TotalSlots: 5, UsedSlots: 0, Known: true}
}

func TestStepValidation_GateContact(t *testing.T) {
	machine := NewStepValidationMachine()

	tests := []struct {
		name      string
		mutate    func(app *domain.Application)
		wantField string
	}{
		{"missing name", func(a *domain.Application) { a.Name = "" }, "name"},
		{"missing email", func(a *domain.Application) { a.Email = "" }, "email"},
		{"bad email", func(a *domain.Application) { a.Email = "not-an-email" }, "email"},
		{"bad phone prefix", func(a *domain.Application) { a.Phone = "02012345678" }, "phone"},
		{"short phone", func(a *domain.Application) { a.Phone = "0101234567" }, "phone"},
		{"missing postcode", func(a *domain.Application) { a.Postcode = "" }, "postcode"},
		{"missing address", func(a *domain.Application) { a.Address = "" }, "address"},
		{"no collection method", func(a *domain.Application) { a.Collection = "" }, "collection_method"},
		{"courier without pickup date", func(a *domain.Application) {
			a.Collection = domain.CollectionCourierPickup
			a.PickupDate = nil
		}, "pickup_date"},
		{"courier without pickup window", func(a *domain.Application) {
			a.Collection = domain.CollectionCourierPickup
			a.PickupWindow = ""
		}, "pickup_window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := validDraft()
			tt.mutate(app)

			ok, gateErr := machine.Validate(app, openWindow(), 1, GateContact, false)

			assert.False(t, ok)
			require.NotNil(t, gateErr)
			assert.Equal(t, tt.wantField, gateErr.Field)
			assert.Equal(t, GateContact, gateErr.Gate)
		})
	}

	t.Run("valid draft passes", func(t *testing.T) {
		ok, gateErr := machine.Validate(validDraft(), openWindow(), 1, GateContact, false)
		assert.True(t, ok)
		assert.Nil(t, gateErr)
	})

	t.Run("silent suppresses the error detail", func(t *testing.T) {
		app := validDraft()
		app.Name = ""

		ok, gateErr := machine.Validate(app, openWindow(), 1, GateContact, true)

		assert.False(t, ok)
		assert.Nil(t, gateErr)
	})

	t.Run("first failing field is deterministic", func(t *testing.T) {
		app := validDraft()
		app.Name = ""
		app.Email = ""
		app.Phone = ""

		_, gateErr := machine.Validate(app, openWindow(), 1, GateContact, false)

		require.NotNil(t, gateErr)
		assert.Equal(t, "name", gateErr.Field)
	})
}

func TestStepValidation_GateService(t *testing.T) {
	machine := NewStepValidationMachine()

	t.Run("requires at least one line", func(t *testing.T) {
		app := validDraft()
		app.Lines = nil

		_, gateErr := machine.Validate(app, openWindow(), 1, GateService, false)

		require.NotNil(t, gateErr)
		assert.Equal(t, "lines", gateErr.Field)
	})

	t.Run("custom string needs a name", func(t *testing.T) {
		app := validDraft()
		app.Lines[0].StringItemID = nil
		app.Lines[0].CustomName = ""

		_, gateErr := machine.Validate(app, openWindow(), 1, GateService, false)

		require.NotNil(t, gateErr)
		assert.Equal(t, "custom_name", gateErr.Field)
	})

	t.Run("every line needs label and tensions", func(t *testing.T) {
		app := validDraft()
		app.Lines[0].TensionCross = ""

		_, gateErr := machine.Validate(app, openWindow(), 1, GateService, false)

		require.NotNil(t, gateErr)
		assert.Equal(t, "tension", gateErr.Field)
	})

	t.Run("visit needs date and time", func(t *testing.T) {
		app := validDraft()
		app.Collection = domain.CollectionVisit
		app.PreferredDate = nil

		_, gateErr := machine.Validate(app, openWindow(), 1, GateService, false)

		require.NotNil(t, gateErr)
		assert.Equal(t, "preferred_date", gateErr.Field)
	})

	t.Run("order-based draft cannot exceed the remaining entitlement", func(t *testing.T) {
		app := validDraft()
		orderRef := uuid.New()
		app.OrderRef = &orderRef
		window := domain.EntitlementWindow{TotalSlots: 2, UsedSlots: 2, Known: true}

		_, gateErr := machine.Validate(app, window, 1, GateService, false)

		require.NotNil(t, gateErr)
		assert.Equal(t, "lines", gateErr.Field)
	})

	t.Run("standalone draft ignores the window", func(t *testing.T) {
		app := validDraft()

		ok, _ := machine.Validate(app, domain.EntitlementWindow{}, 1, GateService, false)

		assert.True(t, ok)
	})
}

func TestStepValidation_GateFunding(t *testing.T) {
	machine := NewStepValidationMachine()

	t.Run("cash needs bank and depositor", func(t *testing.T) {
		app := validDraft()
		app.Bank = ""

		_, gateErr := machine.Validate(app, openWindow(), 1, GateFunding, false)

		require.NotNil(t, gateErr)
		assert.Equal(t, "bank", gateErr.Field)
	})

	t.Run("package credit needs a selected grant", func(t *testing.T) {
		app := validDraft()
		app.Funding = domain.FundingPackageCredit
		app.PackageGrantID = nil

		_, gateErr := machine.Validate(app, openWindow(), 1, GateFunding, false)

		require.NotNil(t, gateErr)
		assert.Equal(t, "package_grant_id", gateErr.Field)
	})

	t.Run("rental drafts skip the funding gate", func(t *testing.T) {
		app := validDraft()
		rentalRef := uuid.New()
		app.RentalRef = &rentalRef
		app.Bank = ""
		app.Depositor = ""
		app.Funding = ""

		ok, gateErr := machine.Validate(app, openWindow(), 1, GateFunding, false)

		assert.True(t, ok)
		assert.Nil(t, gateErr)
	})
}

func TestStepValidation_ValidateThrough(t *testing.T) {
	machine := NewStepValidationMachine()

	t.Run("returns the earliest failing gate", func(t *testing.T) {
		app := validDraft()
		app.Phone = ""
		app.Lines = nil

		gateErr := machine.ValidateThrough(app, openWindow(), 1, GateFunding)

		require.NotNil(t, gateErr)
		assert.Equal(t, GateContact, gateErr.Gate)
		assert.Equal(t, "phone", gateErr.Field)
	})

	t.Run("notes gate is always valid", func(t *testing.T) {
		app := validDraft()
		app.Notes = ""

		assert.Nil(t, machine.ValidateThrough(app, openWindow(), 1, GateNotes))
	})
}
