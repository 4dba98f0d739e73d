package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/availability"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/booking"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// Alternatives carries up to five other free slots when a requested
	// slot was rejected.
	Alternatives []slotItem `json:"alternatives,omitempty"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func slotItems(intervals []availability.Interval) []slotItem {
	out := make([]slotItem, 0, len(intervals))
	for _, iv := range intervals {
		out = append(out, slotItem{
			StartTime: iv.Start.UTC().Format(time.RFC3339),
			EndTime:   iv.End.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// domainResponse maps the availability and booking error kinds onto HTTP
// statuses: bad input 400, calendar rejections 422, conflicts 409. The third
// return is false for errors with no domain mapping.
func domainResponse(err error) (int, errorResponse, bool) {
	var (
		past       *availability.PastDateError
		closed     *availability.ShopClosedError
		noStaff    *availability.NoEligibleStaffError
		slotTaken  *availability.SlotUnavailableError
		capacity   *availability.CapacityExceededError
		stale      *booking.StaleSlotError
		reassign   *booking.ReassignmentConflictError
		ineligible *booking.IneligibleStaffError
		notActive  *booking.NotActiveError
		transition *booking.InvalidTransitionError
	)
	switch {
	case errors.Is(err, booking.ErrInvalidRequest), errors.Is(err, booking.ErrSameStaff):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_request"}, true
	case errors.Is(err, availability.ErrBadDate):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_date"}, true
	case errors.As(err, &past):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "past_date"}, true
	case errors.As(err, &closed):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "shop_closed"}, true
	case errors.As(err, &noStaff):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "no_eligible_staff"}, true
	case errors.As(err, &ineligible):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "ineligible_staff"}, true
	case errors.As(err, &slotTaken):
		return http.StatusConflict, errorResponse{
			Error: err.Error(), Code: "slot_unavailable", Alternatives: slotItems(slotTaken.Alternatives),
		}, true
	case errors.As(err, &capacity):
		return http.StatusConflict, errorResponse{
			Error: err.Error(), Code: "capacity_exceeded", Alternatives: slotItems(capacity.Alternatives),
		}, true
	case errors.As(err, &stale):
		return http.StatusConflict, errorResponse{
			Error: err.Error(), Code: "stale_slot", Alternatives: slotItems(stale.Alternatives),
		}, true
	case errors.As(err, &reassign):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "reassignment_conflict"}, true
	case errors.As(err, &notActive):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "booking_not_active"}, true
	case errors.As(err, &transition):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "invalid_transition"}, true
	case storage.IsNotFound(err):
		return http.StatusNotFound, errorResponse{Error: "not found", Code: "not_found"}, true
	default:
		return 0, errorResponse{}, false
	}
}

func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code, resp, ok := domainResponse(err)
	if !ok {
		logger.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, code, resp)
}

// retryable reports whether the create attempt may be retried under the same
// idempotency key; such failures must not finalize the key.
func retryable(err error) bool {
	var (
		past       *availability.PastDateError
		closed     *availability.ShopClosedError
		noStaff    *availability.NoEligibleStaffError
		slotTaken  *availability.SlotUnavailableError
		capacity   *availability.CapacityExceededError
		stale      *booking.StaleSlotError
		ineligible *booking.IneligibleStaffError
	)
	switch {
	case errors.Is(err, booking.ErrInvalidRequest):
		return false
	case errors.As(err, &past), errors.As(err, &closed), errors.As(err, &noStaff), errors.As(err, &ineligible):
		return false
	case errors.As(err, &slotTaken), errors.As(err, &capacity), errors.As(err, &stale):
		// The slot may free up again; the same key should be able to
		// try again.
		return true
	default:
		return true
	}
}
