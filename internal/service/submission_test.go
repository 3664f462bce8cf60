package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/stringing-api/internal/config"
	"github.com/courtside/stringing-api/internal/domain"
	"github.com/courtside/stringing-api/internal/store"
)

type coordinatorFixture struct {
	apps   *fakeApplicationStore
	grants *fakeCreditStore
	orders *fakeOrderStore
	slots  *fakeSlotStore
	coord  *SubmissionCoordinator
}

func newCoordinator(t *testing.T) *coordinatorFixture {
	t.Helper()

	f := &coordinatorFixture{
		apps:   newFakeApplicationStore(),
		grants: newFakeCreditStore(),
		orders: newFakeOrderStore(),
		slots:  newFakeSlotStore(),
	}
	db := newTxDB(t)

	resolver, err := NewEntitlementResolver(f.orders, f.apps, nil)
	require.NoError(t, err)
	ledger, err := NewCreditLedger(f.grants, nil)
	require.NoError(t, err)
	capacity, err := NewCapacityNegotiator(db, f.slots, nil,
		config.ScheduleConfig{SlotIntervalMinutes: 30}, nil)
	require.NoError(t, err)

	f.coord, err = NewSubmissionCoordinator(
		db, f.apps, f.grants, f.orders, resolver,
		NewStepValidationMachine(), NewPricingEngine(testPricing, nil),
		ledger, capacity, nil,
	)
	require.NoError(t, err)
	return f
}

func TestSubmissionCoordinator_Submit(t *testing.T) {
	ctx := context.Background()
	visitDate := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	t.Run("submits a cash standalone draft and records the quote", func(t *testing.T) {
		f := newCoordinator(t)
		app := validDraft()
		f.apps.put(app)

		submitted, err := f.coord.Submit(ctx, app.UserID, app.ID)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusSubmitted, submitted.Status)
		assert.Equal(t, int64(35000), submitted.BaseFee)
		assert.Equal(t, int64(35000), submitted.TotalAmount)

		persisted, err := f.apps.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSubmitted, persisted.Status)
	})

	t.Run("visit submission commits the slot before promotion", func(t *testing.T) {
		f := newCoordinator(t)
		f.slots.addSlot(visitDate, "14:00", 4, 0)
		app := validDraft()
		app.Collection = domain.CollectionVisit
		app.PreferredDate = &visitDate
		app.PreferredTime = "14:00"
		f.apps.put(app)

		submitted, err := f.coord.Submit(ctx, app.UserID, app.ID)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusSubmitted, submitted.Status)
		assert.NotNil(t, submitted.SlotCommittedAt)
		assert.Equal(t, 1, f.slots.slots[slotKey(visitDate, "14:00")].CommittedUnits)
	})

	t.Run("slot conflict aborts and leaves the draft untouched", func(t *testing.T) {
		f := newCoordinator(t)
		f.slots.addSlot(visitDate, "14:00", 1, 1)
		app := validDraft()
		app.Collection = domain.CollectionVisit
		app.PreferredDate = &visitDate
		app.PreferredTime = "14:00"
		f.apps.put(app)

		_, err := f.coord.Submit(ctx, app.UserID, app.ID)

		assert.ErrorIs(t, err, store.ErrSlotConflict)
		persisted, gerr := f.apps.GetByID(ctx, app.ID)
		require.NoError(t, gerr)
		assert.True(t, persisted.IsDraft())
	})

	t.Run("package submission debits the grant", func(t *testing.T) {
		f := newCoordinator(t)
		app := validDraft()
		grantID := uuid.New()
		f.grants.addGrant(domain.CreditGrant{
			ID: grantID, UserID: app.UserID, PackageSize: 10,
			RemainingCount: 3, ExpiresAt: time.Now().Add(24 * time.Hour),
		})
		app.Funding = domain.FundingPackageCredit
		app.PackageGrantID = &grantID
		f.apps.put(app)

		submitted, err := f.coord.Submit(ctx, app.UserID, app.ID)

		require.NoError(t, err)
		require.NotNil(t, submitted.DebitGrantID)
		assert.Equal(t, grantID, *submitted.DebitGrantID)
		assert.Zero(t, submitted.TotalAmount)
		assert.Equal(t, 2, f.grants.grants[grantID].RemainingCount)
	})

	t.Run("promotion persists the derived unit counts", func(t *testing.T) {
		f := newCoordinator(t)
		stringItem := uuid.New()
		orderRef := uuid.New()
		f.orders.orders[orderRef] = &domain.OrderSummary{
			ID:    orderRef,
			Lines: []domain.OrderLine{{ItemID: stringItem, Kind: domain.OrderLineString, Quantity: 3, MountingFee: 12000}},
		}
		app := validDraft()
		grantID := uuid.New()
		f.grants.addGrant(domain.CreditGrant{
			ID: grantID, UserID: app.UserID, PackageSize: 10,
			RemainingCount: 3, ExpiresAt: time.Now().Add(24 * time.Hour),
		})
		app.OrderRef = &orderRef
		app.Funding = domain.FundingPackageCredit
		app.PackageGrantID = &grantID
		app.Lines[0].StringItemID = &stringItem
		app.Lines[0].RequiredUnits = 0 // client default; the ordered quantity decides

		f.apps.put(app)

		submitted, err := f.coord.Submit(ctx, app.UserID, app.ID)

		require.NoError(t, err)
		assert.Equal(t, 3, submitted.Lines[0].RequiredUnits)
		assert.Zero(t, f.grants.grants[grantID].RemainingCount)

		resolver, rerr := NewEntitlementResolver(f.orders, f.apps, nil)
		require.NoError(t, rerr)
		window, werr := resolver.Resolve(ctx, &orderRef, nil)
		require.NoError(t, werr)
		assert.Equal(t, 3, window.UsedSlots,
			"used slots equal the units the submission consumed")
	})

	t.Run("debit failure after slot commit releases the slot", func(t *testing.T) {
		f := newCoordinator(t)
		f.slots.addSlot(visitDate, "14:00", 4, 0)
		app := validDraft()
		grantID := uuid.New()
		f.grants.addGrant(domain.CreditGrant{
			ID: grantID, UserID: app.UserID, PackageSize: 10,
			RemainingCount: 3, ExpiresAt: time.Now().Add(24 * time.Hour),
		})
		app.Collection = domain.CollectionVisit
		app.PreferredDate = &visitDate
		app.PreferredTime = "14:00"
		app.Funding = domain.FundingPackageCredit
		app.PackageGrantID = &grantID
		f.apps.put(app)

		// A concurrent debit drains the grant between the funding check and
		// the guarded decrement.
		f.grants.debitErr = store.ErrInsufficientBalance

		_, err := f.coord.Submit(ctx, app.UserID, app.ID)

		assert.ErrorIs(t, err, store.ErrInsufficientBalance)
		assert.Zero(t, f.slots.slots[slotKey(visitDate, "14:00")].CommittedUnits,
			"committed units are handed back when the debit fails")
		persisted, gerr := f.apps.GetByID(ctx, app.ID)
		require.NoError(t, gerr)
		assert.True(t, persisted.IsDraft())
	})

	t.Run("retried submit of a submitted application is a no-op", func(t *testing.T) {
		f := newCoordinator(t)
		app := validDraft()
		f.apps.put(app)

		first, err := f.coord.Submit(ctx, app.UserID, app.ID)
		require.NoError(t, err)
		second, err := f.coord.Submit(ctx, app.UserID, app.ID)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, domain.StatusSubmitted, second.Status)
	})

	t.Run("gate failure surfaces the first failing field", func(t *testing.T) {
		f := newCoordinator(t)
		app := validDraft()
		app.Phone = "bad"
		f.apps.put(app)

		_, err := f.coord.Submit(ctx, app.UserID, app.ID)

		var gateErr *GateValidationError
		require.ErrorAs(t, err, &gateErr)
		assert.Equal(t, GateContact, gateErr.Gate)
		assert.Equal(t, "phone", gateErr.Field)
	})

	t.Run("entitlement cap holds even when the display check was stale", func(t *testing.T) {
		f := newCoordinator(t)
		stringItem := uuid.New()
		orderRef := uuid.New()
		f.orders.orders[orderRef] = &domain.OrderSummary{
			ID:    orderRef,
			Lines: []domain.OrderLine{{ItemID: stringItem, Kind: domain.OrderLineString, Quantity: 1, MountingFee: 12000}},
		}
		consumed := validDraft()
		consumed.ID = uuid.New()
		consumed.OrderRef = &orderRef
		consumed.Status = domain.StatusSubmitted
		f.apps.put(consumed)

		app := validDraft()
		app.OrderRef = &orderRef
		app.Lines[0].StringItemID = &stringItem
		f.apps.put(app)

		_, err := f.coord.Submit(ctx, app.UserID, app.ID)

		assert.ErrorIs(t, err, ErrEntitlementBlocked)
	})

	t.Run("rejects another user's application", func(t *testing.T) {
		f := newCoordinator(t)
		app := validDraft()
		f.apps.put(app)

		_, err := f.coord.Submit(ctx, uuid.New(), app.ID)

		assert.ErrorIs(t, err, ErrNotOwned)
	})

	t.Run("unknown application is not found", func(t *testing.T) {
		f := newCoordinator(t)

		_, err := f.coord.Submit(ctx, uuid.New(), uuid.New())

		assert.ErrorIs(t, err, store.ErrApplicationNotFound)
	})
}
