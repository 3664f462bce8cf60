// Package api provides HTTP handlers for the API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/courtside/stringing-api/internal/api/shared"
	"github.com/courtside/stringing-api/internal/platform/logger"
	"github.com/courtside/stringing-api/internal/service"
	"github.com/courtside/stringing-api/internal/store"
)

// ApplicationHandler handles application-related HTTP requests.
type ApplicationHandler struct {
	drafts      *service.DraftLifecycle
	coordinator *service.SubmissionCoordinator
	resolver    *service.EntitlementResolver
	ledger      *service.CreditLedger
	logger      *slog.Logger
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(
	drafts *service.DraftLifecycle,
	coordinator *service.SubmissionCoordinator,
	resolver *service.EntitlementResolver,
	ledger *service.CreditLedger,
	logger *slog.Logger,
) *ApplicationHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ApplicationHandler")
	}
	return &ApplicationHandler{
		drafts:      drafts,
		coordinator: coordinator,
		resolver:    resolver,
		ledger:      ledger,
		logger:      logger.With(slog.String("component", "application_handler")),
	}
}

// requestUserID extracts the authenticated user ID set by the auth
// middleware, writing a 401 when it is missing.
func requestUserID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		log.Warn("user ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, false
	}
	return userID, true
}

// pathUUID parses the named chi URL parameter as a UUID, writing a 400
// on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string, log *slog.Logger) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		log.Warn("invalid UUID in URL path", slog.String("param", name), slog.String("value", raw))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid identifier format")
		return uuid.Nil, false
	}
	return id, true
}

// CreateDraft handles POST /applications/drafts. Idempotent per order
// reference: a repeated call returns the existing draft with reused=true.
func (h *ApplicationHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requestUserID(w, r, log)
	if !ok {
		return
	}

	var req CreateDraftRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	result, err := h.drafts.EnsureDraft(r.Context(), userID, req.OrderRef, req.RentalRef)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, result)
}

// GetByOrder handles GET /applications/by-order/{ref}. A missing draft is
// a normal found=false answer so clients can decide whether to bootstrap.
func (h *ApplicationHandler) GetByOrder(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ref, ok := pathUUID(w, r, "ref", log)
	if !ok {
		return
	}

	app, err := h.drafts.FindByOrder(r.Context(), ref)
	if store.IsNotFoundError(err) {
		shared.RespondWithJSON(w, r, http.StatusOK, DraftLookupResponse{Found: false})
		return
	}
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, DraftLookupResponse{Found: true, ApplicationID: &app.ID})
}

// GetByRental handles GET /applications/by-rental/{ref}. Rental drafts are
// bootstrapped at rental checkout; this endpoint only locates them.
func (h *ApplicationHandler) GetByRental(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ref, ok := pathUUID(w, r, "ref", log)
	if !ok {
		return
	}

	app, err := h.drafts.FindByRental(r.Context(), ref)
	if store.IsNotFoundError(err) {
		shared.RespondWithJSON(w, r, http.StatusOK, DraftLookupResponse{Found: false})
		return
	}
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, DraftLookupResponse{Found: true, ApplicationID: &app.ID})
}

// GetApplication handles GET /applications/{id}.
func (h *ApplicationHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requestUserID(w, r, log)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id", log)
	if !ok {
		return
	}

	app, err := h.drafts.Get(r.Context(), userID, id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, app)
}

// UpdateApplication handles PUT /applications/{id}. Only drafts are
// editable; a submitted application answers 409.
func (h *ApplicationHandler) UpdateApplication(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requestUserID(w, r, log)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateApplicationRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	app, err := h.drafts.Get(r.Context(), userID, id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	req.applyTo(app)

	if err := h.drafts.Save(r.Context(), userID, app); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, app)
}

// GetQuote handles GET /applications/{id}/quote. The server-side total is
// the only one that counts; clients never send amounts.
func (h *ApplicationHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requestUserID(w, r, log)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id", log)
	if !ok {
		return
	}

	quote, err := h.coordinator.Quote(r.Context(), userID, id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, quote)
}

// SubmitApplication handles POST /applications/{id}/submit. Contention
// losses (slot races, funding races) answer 409 with conflict=true so the
// client refreshes and retries instead of giving up.
func (h *ApplicationHandler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requestUserID(w, r, log)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id", log)
	if !ok {
		return
	}

	app, err := h.coordinator.Submit(r.Context(), userID, id)
	if err != nil {
		opts := []shared.ResponseOption{}
		if store.IsRetryableConflict(err) {
			opts = append(opts, shared.WithConflictRetry())
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err, opts...)
		return
	}

	log.Info("application submitted via API",
		slog.String("application_id", app.ID.String()),
		slog.String("user_id", userID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, SubmitResponse{ApplicationID: app.ID})
}

// GetEntitlements handles GET /entitlements?orderRef=|rentalRef=.
func (h *ApplicationHandler) GetEntitlements(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if _, ok := requestUserID(w, r, log); !ok {
		return
	}

	orderRef, err := queryUUID(r, "orderRef")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid orderRef format")
		return
	}
	rentalRef, err := queryUUID(r, "rentalRef")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid rentalRef format")
		return
	}
	if orderRef == nil && rentalRef == nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "orderRef or rentalRef is required")
		return
	}

	window, err := h.resolver.Resolve(r.Context(), orderRef, rentalRef)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, EntitlementResponse{
		TotalSlots:     window.TotalSlots,
		UsedSlots:      window.UsedSlots,
		RemainingSlots: window.Remaining(),
		Blocked:        window.Blocked(),
	})
}

// GetMyPasses handles GET /passes/me, listing the authenticated user's
// spendable grants soonest-expiring first.
func (h *ApplicationHandler) GetMyPasses(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requestUserID(w, r, log)
	if !ok {
		return
	}

	grants, err := h.ledger.ActiveGrants(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, grants)
}

// queryUUID parses an optional UUID query parameter. An absent parameter
// yields (nil, nil).
func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
