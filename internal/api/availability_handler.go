package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/courtside/stringing-api/internal/api/shared"
	"github.com/courtside/stringing-api/internal/platform/logger"
	"github.com/courtside/stringing-api/internal/service"
)

// AvailabilityHandler serves the visit slot picture for a date.
type AvailabilityHandler struct {
	capacity *service.CapacityNegotiator
	logger   *slog.Logger
}

// NewAvailabilityHandler creates a new AvailabilityHandler.
func NewAvailabilityHandler(capacity *service.CapacityNegotiator, logger *slog.Logger) *AvailabilityHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AvailabilityHandler")
	}
	return &AvailabilityHandler{
		capacity: capacity,
		logger:   logger.With(slog.String("component", "availability_handler")),
	}
}

// GetAvailability handles GET /availability?date=&requiredUnits=. The
// picture is advisory; the commit at submission time is what decides.
func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if _, ok := requestUserID(w, r, log); !ok {
		return
	}

	rawDate := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		log.Warn("invalid availability date", slog.String("date", rawDate))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid date; expected YYYY-MM-DD")
		return
	}

	requiredUnits := 1
	if raw := r.URL.Query().Get("requiredUnits"); raw != "" {
		requiredUnits, err = strconv.Atoi(raw)
		if err != nil || requiredUnits < 1 || requiredUnits > 50 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid requiredUnits")
			return
		}
	}

	availability, err := h.capacity.Availability(r.Context(), date, requiredUnits)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, availability)
}
