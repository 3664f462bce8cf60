package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across the workflow.
// Callers check these with errors.Is(); the API layer maps them to HTTP
// status codes.
var (
	// ErrEntitlementBlocked indicates the order or rental entitlement is
	// exhausted or could not be determined. Terminal for the current
	// attempt: no draft is created and no slots are shown.
	ErrEntitlementBlocked = errors.New("entitlement exhausted or unknown")

	// ErrNotOwned indicates the application belongs to a different user
	// than the one making the request.
	ErrNotOwned = errors.New("application is owned by another user")

	// ErrRentalNotPackageEligible indicates package funding was requested
	// for a rental-based application. Rentals are prepaid at checkout and
	// never draw on a package pass.
	ErrRentalNotPackageEligible = errors.New("rental applications are not package eligible")

	// ErrRentalDraftNotBootstrapped indicates a draft-creation request
	// carried a rental reference. Rental drafts are created by the rental
	// checkout flow and only discoverable here.
	ErrRentalDraftNotBootstrapped = errors.New("rental drafts are not created by this workflow")

	// ErrCollaboratorUnavailable indicates an external lookup failed in a
	// way that is neither a not-found nor a conflict. The application stays
	// in draft; the caller retries later.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// WorkflowError is a custom error type for workflow orchestration errors.
type WorkflowError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for WorkflowError.
func (e *WorkflowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("workflow %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("workflow %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// NewWorkflowError creates a new WorkflowError.
func NewWorkflowError(operation, message string, err error) *WorkflowError {
	return &WorkflowError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// GateValidationError reports the first failing field of a validation gate.
// The API layer maps it to 422 with the gate and field so the client can
// jump to the error location.
type GateValidationError struct {
	Gate    int
	Field   string
	Message string
}

// Error implements the error interface for GateValidationError.
func (e *GateValidationError) Error() string {
	return fmt.Sprintf("gate %d validation failed on %s: %s", e.Gate, e.Field, e.Message)
}

// NewGateValidationError creates a new GateValidationError.
func NewGateValidationError(gate int, field, message string) *GateValidationError {
	return &GateValidationError{Gate: gate, Field: field, Message: message}
}
