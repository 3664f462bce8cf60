package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/stringing-api/internal/config"
	"github.com/courtside/stringing-api/internal/domain"
	"github.com/courtside/stringing-api/internal/platform/cache"
	"github.com/courtside/stringing-api/internal/platform/logger"
	"github.com/courtside/stringing-api/internal/platform/metrics"
	"github.com/courtside/stringing-api/internal/store"
)

// AvailabilityCacher caches per-date slot listings. Implemented by the
// Redis cache; a nil cacher disables caching entirely.
type AvailabilityCacher interface {
	Get(ctx context.Context, date time.Time) ([]domain.TimeSlot, error)
	Set(ctx context.Context, date time.Time, slots []domain.TimeSlot) error
	Invalidate(ctx context.Context, date time.Time) error
}

// Availability is the slot picture for one date, sized to an application's
// required units. DurationMinutes is informational only; units are the
// sole capacity currency.
type Availability struct {
	Date            time.Time `json:"date"`
	Slots           []string  `json:"slots"`
	DisabledTimes   []string  `json:"disabled_times"`
	IntervalMinutes int       `json:"interval_minutes"`
	DurationMinutes int       `json:"duration_minutes"`
}

// CapacityNegotiator exposes slot availability and performs the actual
// commit with conflict detection. Commits happen only at submission time
// so abandoned drafts never hold capacity.
type CapacityNegotiator struct {
	db     *sql.DB
	slots  store.SlotStore
	cache  AvailabilityCacher
	cfg    config.ScheduleConfig
	logger *slog.Logger
}

// NewCapacityNegotiator creates a new CapacityNegotiator. cacher may be nil
// to disable availability caching.
// It returns an error if any of the required dependencies are nil.
func NewCapacityNegotiator(
	db *sql.DB,
	slots store.SlotStore,
	cacher AvailabilityCacher,
	cfg config.ScheduleConfig,
	logger *slog.Logger,
) (*CapacityNegotiator, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if slots == nil {
		return nil, domain.NewValidationError("slots", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CapacityNegotiator{
		db:     db,
		slots:  slots,
		cache:  cacher,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "capacity_negotiator")),
	}, nil
}

// Availability returns the open and disabled buckets for the date. A bucket
// is disabled when its committed units plus requiredUnits would exceed its
// capacity. Listings are served from the cache when possible; cache
// failures degrade to a direct read, never an error.
func (n *CapacityNegotiator) Availability(ctx context.Context, date time.Time, requiredUnits int) (Availability, error) {
	log := logger.FromContextOrDefault(ctx, n.logger)

	if requiredUnits < 1 {
		requiredUnits = 1
	}

	slots, err := n.cachedSlots(ctx, date, log)
	if err != nil {
		return Availability{}, NewWorkflowError("availability", "failed to load time slots", err)
	}

	av := Availability{
		Date:            date,
		Slots:           []string{},
		DisabledTimes:   []string{},
		IntervalMinutes: n.cfg.SlotIntervalMinutes,
		DurationMinutes: n.cfg.SlotIntervalMinutes * requiredUnits,
	}
	for _, s := range slots {
		if s.Accepts(requiredUnits) {
			av.Slots = append(av.Slots, s.Time)
		} else {
			av.DisabledTimes = append(av.DisabledTimes, s.Time)
		}
	}
	return av, nil
}

func (n *CapacityNegotiator) cachedSlots(ctx context.Context, date time.Time, log *slog.Logger) ([]domain.TimeSlot, error) {
	if n.cache != nil {
		slots, err := n.cache.Get(ctx, date)
		if err == nil {
			metrics.AvailabilityCacheHits.WithLabelValues("hit").Inc()
			return slots, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn("availability cache read failed",
				slog.String("error", err.Error()))
		}
	}
	metrics.AvailabilityCacheHits.WithLabelValues("miss").Inc()

	slots, err := n.slots.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if n.cache != nil {
		if err := n.cache.Set(ctx, date, slots); err != nil {
			log.Warn("availability cache write failed",
				slog.String("error", err.Error()))
		}
	}
	return slots, nil
}

// Commit reserves units in the bucket for the application, failing with
// store.ErrSlotConflict when a concurrent commit exhausted it. The
// application ID keys the commit, so a retried submission is a no-op. The
// date's cache entry is invalidated so the next availability fetch sees
// the new balance.
func (n *CapacityNegotiator) Commit(ctx context.Context, applicationID uuid.UUID, date time.Time, bucket string, units int) error {
	log := logger.FromContextOrDefault(ctx, n.logger)

	err := store.RunInTransaction(ctx, n.db, func(ctx context.Context, tx *sql.Tx) error {
		return n.slots.WithTx(tx).CommitUnits(ctx, applicationID, date, bucket, units)
	})
	if err != nil {
		if errors.Is(err, store.ErrSlotConflict) {
			metrics.SlotConflictsTotal.WithLabelValues(bucket).Inc()
		}
		return err
	}

	n.invalidate(ctx, date, log)
	return nil
}

// Release returns the application's committed units to their bucket. Used
// as compensation when a later submission step fails. A release with no
// prior commit is a no-op.
func (n *CapacityNegotiator) Release(ctx context.Context, applicationID uuid.UUID, date time.Time) error {
	log := logger.FromContextOrDefault(ctx, n.logger)

	err := store.RunInTransaction(ctx, n.db, func(ctx context.Context, tx *sql.Tx) error {
		return n.slots.WithTx(tx).ReleaseUnits(ctx, applicationID)
	})
	if err != nil {
		return err
	}

	n.invalidate(ctx, date, log)
	return nil
}

func (n *CapacityNegotiator) invalidate(ctx context.Context, date time.Time, log *slog.Logger) {
	if n.cache == nil {
		return
	}
	if err := n.cache.Invalidate(ctx, date); err != nil {
		log.Warn("availability cache invalidation failed",
			slog.String("error", err.Error()),
			slog.String("date", date.Format("2006-01-02")))
	}
}
