package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/courtside/stringing-api/internal/domain"
	"github.com/courtside/stringing-api/internal/platform/cache"
	"github.com/courtside/stringing-api/internal/store"
)

// errCacheMiss lets the fake cache behave like the Redis-backed one.
var errCacheMiss = cache.ErrMiss

// newTxDB returns a sqlmock-backed *sql.DB that tolerates any sequence of
// transactions. The fakes below hold the actual state; the DB exists only
// so RunInTransaction has something to begin and commit against.
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

// fakeApplicationStore is an in-memory ApplicationStore with the same
// uniqueness and draft-pinning semantics as the Postgres implementation.
type fakeApplicationStore struct {
	apps      map[uuid.UUID]*domain.Application
	createErr error
	updateErr error
}

func newFakeApplicationStore() *fakeApplicationStore {
	return &fakeApplicationStore{apps: make(map[uuid.UUID]*domain.Application)}
}

func (f *fakeApplicationStore) put(app *domain.Application) {
	cp := *app
	f.apps[app.ID] = &cp
}

func (f *fakeApplicationStore) CreateDraft(ctx context.Context, app *domain.Application) error {
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return err
	}
	if app.OrderRef != nil {
		for _, existing := range f.apps {
			if existing.OrderRef != nil && *existing.OrderRef == *app.OrderRef {
				return store.ErrDuplicateDraft
			}
		}
	}
	f.put(app)
	return nil
}

func (f *fakeApplicationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, store.ErrApplicationNotFound
	}
	cp := *app
	return &cp, nil
}

func (f *fakeApplicationStore) FindActiveByOrderRef(ctx context.Context, orderRef uuid.UUID) (*domain.Application, error) {
	for _, app := range f.apps {
		if app.OrderRef != nil && *app.OrderRef == orderRef {
			cp := *app
			return &cp, nil
		}
	}
	return nil, store.ErrApplicationNotFound
}

func (f *fakeApplicationStore) FindActiveByRentalRef(ctx context.Context, rentalRef uuid.UUID) (*domain.Application, error) {
	for _, app := range f.apps {
		if app.RentalRef != nil && *app.RentalRef == rentalRef {
			cp := *app
			return &cp, nil
		}
	}
	return nil, store.ErrApplicationNotFound
}

func (f *fakeApplicationStore) Update(ctx context.Context, app *domain.Application) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	current, ok := f.apps[app.ID]
	if !ok {
		return store.ErrApplicationNotFound
	}
	if current.Status != domain.StatusDraft {
		return store.ErrAlreadySubmitted
	}
	cp := *app
	cp.Status = current.Status
	f.apps[app.ID] = &cp
	return nil
}

func (f *fakeApplicationStore) Promote(ctx context.Context, app *domain.Application) error {
	current, ok := f.apps[app.ID]
	if !ok {
		return store.ErrApplicationNotFound
	}
	if current.Status != domain.StatusDraft {
		return store.ErrAlreadySubmitted
	}
	cp := *app
	cp.Status = domain.StatusSubmitted
	f.apps[app.ID] = &cp
	return nil
}

func (f *fakeApplicationStore) SumSubmittedUnitsByOrderRef(ctx context.Context, orderRef uuid.UUID) (int, error) {
	total := 0
	for _, app := range f.apps {
		if app.Status == domain.StatusSubmitted && app.OrderRef != nil && *app.OrderRef == orderRef {
			for _, l := range app.Lines {
				total += l.RequiredUnits
			}
		}
	}
	return total, nil
}

func (f *fakeApplicationStore) SumSubmittedUnitsByRentalRef(ctx context.Context, rentalRef uuid.UUID) (int, error) {
	total := 0
	for _, app := range f.apps {
		if app.Status == domain.StatusSubmitted && app.RentalRef != nil && *app.RentalRef == rentalRef {
			for _, l := range app.Lines {
				total += l.RequiredUnits
			}
		}
	}
	return total, nil
}

func (f *fakeApplicationStore) WithTx(tx *sql.Tx) store.ApplicationStore { return f }

// fakeSlotStore mirrors the CAS and idempotency semantics of the Postgres
// slot store over an in-memory bucket map.
type fakeSlotStore struct {
	slots   map[string]*domain.TimeSlot
	commits map[uuid.UUID]slotCommit
}

type slotCommit struct {
	key   string
	units int
}

func newFakeSlotStore() *fakeSlotStore {
	return &fakeSlotStore{
		slots:   make(map[string]*domain.TimeSlot),
		commits: make(map[uuid.UUID]slotCommit),
	}
}

func slotKey(date time.Time, bucket string) string {
	return date.Format("2006-01-02") + " " + bucket
}

func (f *fakeSlotStore) addSlot(date time.Time, bucket string, capacity, committed int) {
	f.slots[slotKey(date, bucket)] = &domain.TimeSlot{
		Date: date, Time: bucket, Capacity: capacity, CommittedUnits: committed,
	}
}

func (f *fakeSlotStore) ListByDate(ctx context.Context, date time.Time) ([]domain.TimeSlot, error) {
	prefix := date.Format("2006-01-02")
	out := []domain.TimeSlot{}
	for _, s := range f.slots {
		if s.Date.Format("2006-01-02") == prefix {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (f *fakeSlotStore) CommitUnits(ctx context.Context, applicationID uuid.UUID, date time.Time, bucket string, units int) error {
	if _, ok := f.commits[applicationID]; ok {
		return nil
	}
	slot, ok := f.slots[slotKey(date, bucket)]
	if !ok {
		return store.ErrSlotNotFound
	}
	if slot.CommittedUnits+units > slot.Capacity {
		return store.ErrSlotConflict
	}
	slot.CommittedUnits += units
	f.commits[applicationID] = slotCommit{key: slotKey(date, bucket), units: units}
	return nil
}

func (f *fakeSlotStore) ReleaseUnits(ctx context.Context, applicationID uuid.UUID) error {
	commit, ok := f.commits[applicationID]
	if !ok {
		return nil
	}
	delete(f.commits, applicationID)
	if slot, ok := f.slots[commit.key]; ok {
		slot.CommittedUnits -= commit.units
		if slot.CommittedUnits < 0 {
			slot.CommittedUnits = 0
		}
	}
	return nil
}

func (f *fakeSlotStore) WithTx(tx *sql.Tx) store.SlotStore { return f }

// fakeCreditStore mirrors the guarded-debit semantics of the Postgres
// grant store.
type fakeCreditStore struct {
	grants   map[uuid.UUID]*domain.CreditGrant
	debits   map[uuid.UUID]grantDebit
	debitErr error
}

type grantDebit struct {
	grantID uuid.UUID
	units   int
}

func newFakeCreditStore() *fakeCreditStore {
	return &fakeCreditStore{
		grants: make(map[uuid.UUID]*domain.CreditGrant),
		debits: make(map[uuid.UUID]grantDebit),
	}
}

func (f *fakeCreditStore) addGrant(g domain.CreditGrant) {
	cp := g
	f.grants[g.ID] = &cp
}

func (f *fakeCreditStore) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.CreditGrant, error) {
	out := []domain.CreditGrant{}
	for _, g := range f.grants {
		if g.UserID == userID && g.RemainingCount > 0 && g.ExpiresAt.After(now) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (f *fakeCreditStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.CreditGrant, error) {
	g, ok := f.grants[id]
	if !ok {
		return nil, store.ErrGrantNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeCreditStore) Debit(ctx context.Context, applicationID, grantID uuid.UUID, units int, now time.Time) (int, error) {
	if f.debitErr != nil {
		return 0, f.debitErr
	}
	if _, ok := f.debits[applicationID]; ok {
		g, err := f.GetByID(ctx, grantID)
		if err != nil {
			return 0, err
		}
		return g.RemainingCount, nil
	}
	g, ok := f.grants[grantID]
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
	f.debits[applicationID] = grantDebit{grantID: grantID, units: units}
	return g.RemainingCount, nil
}

func (f *fakeCreditStore) ReleaseDebit(ctx context.Context, applicationID uuid.UUID) error {
	debit, ok := f.debits[applicationID]
	if !ok {
		return nil
	}
	delete(f.debits, applicationID)
	if g, ok := f.grants[debit.grantID]; ok {
		g.RemainingCount += debit.units
	}
	return nil
}

func (f *fakeCreditStore) WithTx(tx *sql.Tx) store.CreditGrantStore { return f }

// fakeOrderStore serves canned order and rental summaries with injectable
// lookup failures.
type fakeOrderStore struct {
	orders  map[uuid.UUID]*domain.OrderSummary
	rentals map[uuid.UUID]*domain.RentalSummary
	failErr error
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:  make(map[uuid.UUID]*domain.OrderSummary),
		rentals: make(map[uuid.UUID]*domain.RentalSummary),
	}
}

func (f *fakeOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.OrderSummary, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrderStore) GetRental(ctx context.Context, id uuid.UUID) (*domain.RentalSummary, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	r, ok := f.rentals[id]
	if !ok {
		return nil, store.ErrRentalNotFound
	}
	return r, nil
}

// fakeCache records availability cache traffic.
type fakeCache struct {
	entries       map[string][]domain.TimeSlot
	invalidations int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]domain.TimeSlot)}
}

func (f *fakeCache) Get(ctx context.Context, date time.Time) ([]domain.TimeSlot, error) {
	slots, ok := f.entries[date.Format("2006-01-02")]
	if !ok {
		return nil, errCacheMiss
	}
	return slots, nil
}

func (f *fakeCache) Set(ctx context.Context, date time.Time, slots []domain.TimeSlot) error {
	f.entries[date.Format("2006-01-02")] = slots
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context, date time.Time) error {
	f.invalidations++
	delete(f.entries, date.Format("2006-01-02"))
	return nil
}
