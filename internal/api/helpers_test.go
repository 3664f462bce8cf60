package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/courtside/stringing-api/internal/api/shared"
	"github.com/courtside/stringing-api/internal/config"
	"github.com/courtside/stringing-api/internal/domain"
	"github.com/courtside/stringing-api/internal/service"
	"github.com/courtside/stringing-api/internal/store"
)

// newTxDB returns a sqlmock-backed *sql.DB that tolerates any sequence of
// transactions; the in-memory stores hold the actual state.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 24; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type memAppStore struct {
	apps map[uuid.UUID]*domain.Application
}

func newMemAppStore() *memAppStore {
	return &memAppStore{apps: make(map[uuid.UUID]*domain.Application)}
}

func (s *memAppStore) put(app *domain.Application) {
	cp := *app
	s.apps[app.ID] = &cp
}

func (s *memAppStore) CreateDraft(ctx context.Context, app *domain.Application) error {
	if app.OrderRef != nil {
		for _, existing := range s.apps {
			if existing.OrderRef != nil && *existing.OrderRef == *app.OrderRef {
				return store.ErrDuplicateDraft
			}
		}
	}
	s.put(app)
	return nil
}

func (s *memAppStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, store.ErrApplicationNotFound
	}
	cp := *app
	return &cp, nil
}

func (s *memAppStore) FindActiveByOrderRef(ctx context.Context, ref uuid.UUID) (*domain.Application, error) {
	for _, app := range s.apps {
		if app.OrderRef != nil && *app.OrderRef == ref {
			cp := *app
			return &cp, nil
		}
	}
	return nil, store.ErrApplicationNotFound
}

func (s *memAppStore) FindActiveByRentalRef(ctx context.Context, ref uuid.UUID) (*domain.Application, error) {
	for _, app := range s.apps {
		if app.RentalRef != nil && *app.RentalRef == ref {
			cp := *app
			return &cp, nil
		}
	}
	return nil, store.ErrApplicationNotFound
}

func (s *memAppStore) Update(ctx context.Context, app *domain.Application) error {
	current, ok := s.apps[app.ID]
	if !ok {
		return store.ErrApplicationNotFound
	}
	if current.Status != domain.StatusDraft {
		return store.ErrAlreadySubmitted
	}
	cp := *app
	cp.Status = current.Status
	s.apps[app.ID] = &cp
	return nil
}

func (s *memAppStore) Promote(ctx context.Context, app *domain.Application) error {
	current, ok := s.apps[app.ID]
	if !ok {
		return store.ErrApplicationNotFound
	}
	if current.Status != domain.StatusDraft {
		return store.ErrAlreadySubmitted
	}
	cp := *app
	cp.Status = domain.StatusSubmitted
	s.apps[app.ID] = &cp
	return nil
}

func (s *memAppStore) SumSubmittedUnitsByOrderRef(ctx context.Context, ref uuid.UUID) (int, error) {
	total := 0
	for _, app := range s.apps {
		if app.Status == domain.StatusSubmitted && app.OrderRef != nil && *app.OrderRef == ref {
			for _, l := range app.Lines {
				total += l.RequiredUnits
			}
		}
	}
	return total, nil
}

func (s *memAppStore) SumSubmittedUnitsByRentalRef(ctx context.Context, ref uuid.UUID) (int, error) {
	total := 0
	for _, app := range s.apps {
		if app.Status == domain.StatusSubmitted && app.RentalRef != nil && *app.RentalRef == ref {
			for _, l := range app.Lines {
				total += l.RequiredUnits
			}
		}
	}
	return total, nil
}

func (s *memAppStore) WithTx(tx *sql.Tx) store.ApplicationStore { return s }

type memSlotStore struct {
	slots   map[string]*domain.TimeSlot
	commits map[uuid.UUID]string
}

func newMemSlotStore() *memSlotStore {
	return &memSlotStore{
		slots:   make(map[string]*domain.TimeSlot),
		commits: make(map[uuid.UUID]string),
	}
}

func slotKey(date time.Time, bucket string) string {
	return date.Format("2006-01-02") + " " + bucket
}

func (s *memSlotStore) addSlot(date time.Time, bucket string, capacity, committed int) {
	s.slots[slotKey(date, bucket)] = &domain.TimeSlot{
		Date: date, Time: bucket, Capacity: capacity, CommittedUnits: committed,
	}
}

func (s *memSlotStore) ListByDate(ctx context.Context, date time.Time) ([]domain.TimeSlot, error) {
	prefix := date.Format("2006-01-02")
	out := []domain.TimeSlot{}
	for _, slot := range s.slots {
		if slot.Date.Format("2006-01-02") == prefix {
			out = append(out, *slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (s *memSlotStore) CommitUnits(ctx context.Context, applicationID uuid.UUID, date time.Time, bucket string, units int) error {
	if _, ok := s.commits[applicationID]; ok {
		return nil
	}
	slot, ok := s.slots[slotKey(date, bucket)]
	if !ok {
		return store.ErrSlotNotFound
	}
	if slot.CommittedUnits+units > slot.Capacity {
		return store.ErrSlotConflict
	}
	slot.CommittedUnits += units
	s.commits[applicationID] = slotKey(date, bucket)
	return nil
}

func (s *memSlotStore) ReleaseUnits(ctx context.Context, applicationID uuid.UUID) error {
	delete(s.commits, applicationID)
	return nil
}

func (s *memSlotStore) WithTx(tx *sql.Tx) store.SlotStore { return s }

type memCreditStore struct {
	grants map[uuid.UUID]*domain.CreditGrant
	debits map[uuid.UUID]uuid.UUID
}

func newMemCreditStore() *memCreditStore {
	return &memCreditStore{
		grants: make(map[uuid.UUID]*domain.CreditGrant),
		debits: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *memCreditStore) addGrant(g domain.CreditGrant) {
	cp := g
	s.grants[g.ID] = &cp
}

func (s *memCreditStore) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.CreditGrant, error) {
	out := []domain.CreditGrant{}
	for _, g := range s.grants {
		if g.UserID == userID && g.RemainingCount > 0 && g.ExpiresAt.After(now) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (s *memCreditStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.CreditGrant, error) {
	g, ok := s.grants[id]
	if !ok {
		return nil, store.ErrGrantNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *memCreditStore) Debit(ctx context.Context, applicationID, grantID uuid.UUID, units int, now time.Time) (int, error) {
	if _, ok := s.debits[applicationID]; ok {
		g, err := s.GetByID(ctx, grantID)
		if err != nil {
			return 0, err
		}
		return g.RemainingCount, nil
	}
	g, ok := s.grants[grantID]
	if !ok {
		return 0, store.ErrGrantNotFound
	}
	if g.Expired(now) {
		return 0, store.ErrGrantExpired
	}
	if !g.Sufficient(units) {
		return 0, store.ErrInsufficientBalance
	}
	g.RemainingCount -= units
	s.debits[applicationID] = grantID
	return g.RemainingCount, nil
}

func (s *memCreditStore) ReleaseDebit(ctx context.Context, applicationID uuid.UUID) error {
	delete(s.debits, applicationID)
	return nil
}

func (s *memCreditStore) WithTx(tx *sql.Tx) store.CreditGrantStore { return s }

type memOrderStore struct {
	orders  map[uuid.UUID]*domain.OrderSummary
	rentals map[uuid.UUID]*domain.RentalSummary
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{
		orders:  make(map[uuid.UUID]*domain.OrderSummary),
		rentals: make(map[uuid.UUID]*domain.RentalSummary),
	}
}

func (s *memOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.OrderSummary, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	return o, nil
}

func (s *memOrderStore) GetRental(ctx context.Context, id uuid.UUID) (*domain.RentalSummary, error) {
	r, ok := s.rentals[id]
	if !ok {
		return nil, store.ErrRentalNotFound
	}
	return r, nil
}

// testEnv wires real services over in-memory stores behind a chi router
// with a stub auth middleware injecting the given user ID.
type testEnv struct {
	apps   *memAppStore
	slots  *memSlotStore
	grants *memCreditStore
	orders *memOrderStore
	router chi.Router
	userID uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		apps:   newMemAppStore(),
		slots:  newMemSlotStore(),
		grants: newMemCreditStore(),
		orders: newMemOrderStore(),
		userID: uuid.New(),
	}
	db := newTxDB(t)
	log := slog.Default()

	resolver, err := service.NewEntitlementResolver(env.orders, env.apps, log)
	require.NoError(t, err)
	ledger, err := service.NewCreditLedger(env.grants, log)
	require.NoError(t, err)
	capacity, err := service.NewCapacityNegotiator(db, env.slots, nil,
		config.ScheduleConfig{SlotIntervalMinutes: 30}, log)
	require.NoError(t, err)
	drafts, err := service.NewDraftLifecycle(db, env.apps, resolver, log)
	require.NoError(t, err)
	pricing := service.NewPricingEngine(config.PricingConfig{
		CustomStringFee:  15000,
		StandaloneFee:    35000,
		CourierPickupFee: 5000,
	}, log)
	coordinator, err := service.NewSubmissionCoordinator(
		db, env.apps, env.grants, env.orders, resolver,
		service.NewStepValidationMachine(), pricing, ledger, capacity, log,
	)
	require.NoError(t, err)

	appHandler := NewApplicationHandler(drafts, coordinator, resolver, ledger, log)
	availHandler := NewAvailabilityHandler(capacity, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), shared.UserIDContextKey, env.userID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/applications/drafts", appHandler.CreateDraft)
	r.Get("/applications/by-order/{ref}", appHandler.GetByOrder)
	r.Get("/applications/by-rental/{ref}", appHandler.GetByRental)
	r.Get("/applications/{id}", appHandler.GetApplication)
	r.Put("/applications/{id}", appHandler.UpdateApplication)
	r.Get("/applications/{id}/quote", appHandler.GetQuote)
	r.Post("/applications/{id}/submit", appHandler.SubmitApplication)
	r.Get("/entitlements", appHandler.GetEntitlements)
	r.Get("/passes/me", appHandler.GetMyPasses)
	r.Get("/availability", availHandler.GetAvailability)
	env.router = r
	return env
}

// draftForUser seeds a submission-ready draft owned by the env user.
func (env *testEnv) draftForUser() *domain.Application {
	app, _ := domain.NewDraftApplication(env.userID, nil, nil)
	app.Name = "Jamie Doe"
	app.Email = "jamie@example.com"
	app.Phone = "01012345678"
	app.Postcode = "04524"
	app.Address = "12 Baseline Rd"
	app.Collection = domain.CollectionSelfShip
	app.Funding = domain.FundingCash
	app.Bank = "First Bank"
	app.Depositor = "Jamie Doe"
	app.Lines = []domain.ApplicationLine{{
		ID:            uuid.New(),
		ApplicationID: app.ID,
		RacketLabel:   "main racket",
		CustomName:    "owner string",
		TensionMain:   "52",
		TensionCross:  "50",
		RequiredUnits: 1,
	}}
	env.apps.put(app)
	return app
}
