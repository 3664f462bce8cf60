package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/stringing-api/internal/domain"
)

// SlotStore defines the interface for time-slot capacity persistence.
// Buckets are mutated only through compare-and-swap updates; the workflow
// never reads a count and writes it back.
type SlotStore interface {
	// ListByDate returns every configured bucket for the date, ordered by
	// bucket time.
	ListByDate(ctx context.Context, date time.Time) ([]domain.TimeSlot, error)

	// CommitUnits adds units to a bucket if and only if capacity allows.
	// The application ID is the idempotency key: a retried commit for an
	// application that already holds a commit succeeds without consuming
	// more capacity. Returns ErrSlotConflict when the bucket cannot absorb
	// the units and ErrSlotNotFound when no bucket exists for the pair.
	CommitUnits(ctx context.Context, applicationID uuid.UUID, date time.Time, bucket string, units int) error

	// ReleaseUnits undoes a prior commit for the application, returning its
	// units to the bucket. Used as compensation when a later submission
	// step fails. A release with no matching commit is a no-op.
	ReleaseUnits(ctx context.Context, applicationID uuid.UUID) error

	// WithTx returns a SlotStore bound to the given transaction.
	WithTx(tx *sql.Tx) SlotStore
}
