package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/courtside/stringing-api/internal/service"
	"github.com/courtside/stringing-api/internal/service/auth"
	"github.com/courtside/stringing-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes based on
// the error type. This prevents leaking internal error types or messages
// to clients.
func MapErrorToStatusCode(err error) int {
	var gateErr *service.GateValidationError

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned),
		errors.Is(err, service.ErrEntitlementBlocked):
		return http.StatusForbidden

	// Gate validation failures carry the gate and field for the client.
	case errors.As(err, &gateErr):
		return http.StatusUnprocessableEntity

	// Contention conflicts, retryable after a refresh.
	case errors.Is(err, store.ErrSlotConflict),
		errors.Is(err, store.ErrInsufficientBalance),
		errors.Is(err, store.ErrGrantExpired),
		errors.Is(err, store.ErrAlreadySubmitted):
		return http.StatusConflict

	// Not found errors
	case store.IsNotFoundError(err):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, service.ErrRentalNotPackageEligible),
		errors.Is(err, service.ErrRentalDraftNotBootstrapped):
		return http.StatusBadRequest

	// Read-side collaborator unreachable.
	case errors.Is(err, service.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var gateErr *service.GateValidationError

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"

	case errors.Is(err, service.ErrNotOwned):
		return "You do not own this application"

	case errors.Is(err, service.ErrEntitlementBlocked):
		return "No stringing slots remain for this reference"

	case errors.As(err, &gateErr):
		return fmt.Sprintf("Invalid %s (step %d)", gateErr.Field, gateErr.Gate)

	case errors.Is(err, store.ErrSlotConflict):
		return "The selected time was just taken; pick another slot"

	case errors.Is(err, store.ErrInsufficientBalance):
		return "Package balance is insufficient; choose another payment method"

	case errors.Is(err, store.ErrGrantExpired):
		return "Package pass has expired; choose another payment method"

	case errors.Is(err, store.ErrAlreadySubmitted):
		return "Application has already been submitted"

	case errors.Is(err, store.ErrApplicationNotFound):
		return "Application not found"

	case errors.Is(err, store.ErrGrantNotFound):
		return "Package pass not found"

	case errors.Is(err, store.ErrOrderNotFound):
		return "Order not found"

	case errors.Is(err, store.ErrRentalNotFound):
		return "Rental not found"

	case store.IsNotFoundError(err):
		return "Not found"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid application data"

	case errors.Is(err, service.ErrRentalNotPackageEligible):
		return "Rental stringing is prepaid and cannot use a package pass"

	case errors.Is(err, service.ErrRentalDraftNotBootstrapped):
		return "Rental applications are created at rental checkout"

	case errors.Is(err, service.ErrCollaboratorUnavailable):
		return "A dependent service is unavailable; try again shortly"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validator errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	if strings.Contains(errMsg, "Field validation") {
		// "Key: 'Req.Email' Error:Field validation for 'Email' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, validationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "invalid identifier"
	default:
		return "validation failed"
	}
}
