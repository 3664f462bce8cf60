package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. Entity-specific variants below wrap it.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate of
	// a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrSlotConflict is returned when a slot commit loses the race for the
	// bucket's remaining capacity. Expected under contention; callers retry
	// after a fresh availability fetch rather than treating it as fatal.
	ErrSlotConflict = errors.New("slot capacity exhausted")

	// ErrInsufficientBalance is returned when a grant debit would overdraw
	// the remaining count, including when a concurrent debit won the race.
	ErrInsufficientBalance = errors.New("insufficient package balance")

	// ErrGrantExpired is returned when a debit is attempted against an
	// expired grant.
	ErrGrantExpired = errors.New("package grant expired")

	// ErrAlreadySubmitted is returned when a mutating operation targets an
	// application that has already been promoted out of draft.
	ErrAlreadySubmitted = errors.New("application already submitted")

	// Entity-specific "not found" errors.

	// ErrApplicationNotFound indicates the requested application does not exist.
	ErrApplicationNotFound = fmt.Errorf("%w: application", ErrNotFound)

	// ErrGrantNotFound indicates the requested credit grant does not exist.
	ErrGrantNotFound = fmt.Errorf("%w: credit grant", ErrNotFound)

	// ErrOrderNotFound indicates the referenced order does not exist.
	ErrOrderNotFound = fmt.Errorf("%w: order", ErrNotFound)

	// ErrRentalNotFound indicates the referenced rental does not exist.
	ErrRentalNotFound = fmt.Errorf("%w: rental", ErrNotFound)

	// ErrSlotNotFound indicates no bucket is configured for the requested
	// date and time.
	ErrSlotNotFound = fmt.Errorf("%w: time slot", ErrNotFound)

	// ErrDuplicateDraft indicates a non-terminal application already exists
	// for the order or rental reference. DraftLifecycle resolves this by
	// reusing the existing draft.
	ErrDuplicateDraft = fmt.Errorf("%w: active draft for reference", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryableConflict reports whether the error is one of the
// expected-under-contention conflicts the submission flow recovers from.
func IsRetryableConflict(err error) bool {
	return errors.Is(err, ErrSlotConflict) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrGrantExpired)
}

// StoreError is a custom error type for store-specific errors with
// additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "application", "time_slot")
	Operation string // The operation that failed (e.g., "create", "commit")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation,
// message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
