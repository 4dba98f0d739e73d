package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/availability"
)

// AvailabilityHandler serves the slot calculators. Closed days and
// staff-less services are ordinary 200 responses with an empty slot list and
// a reason, never errors; a customer browsing dates is not doing anything
// wrong.
type AvailabilityHandler struct {
	engine *availability.Engine
	logger *slog.Logger
}

func NewAvailabilityHandler(engine *availability.Engine, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{engine: engine, logger: logger}
}

type serviceSlotItem struct {
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	FreeStaffIDs []string `json:"free_staff_ids"`
}

type serviceSlotsResponse struct {
	ServiceID string            `json:"service_id"`
	ShopID    string            `json:"shop_id"`
	Date      string            `json:"date"`
	Timezone  string            `json:"timezone"`
	Closed    bool              `json:"closed"`
	Reason    string            `json:"reason,omitempty"`
	Holiday   string            `json:"holiday,omitempty"`
	Slots     []serviceSlotItem `json:"slots"`
}

func (h *AvailabilityHandler) ServiceSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := availability.ServiceQuery{
		ServiceID: strings.TrimSpace(r.URL.Query().Get("service_id")),
		Date:      strings.TrimSpace(r.URL.Query().Get("date")),
		StaffID:   strings.TrimSpace(r.URL.Query().Get("staff_id")),
	}
	if q.ServiceID == "" || q.Date == "" {
		http.Error(w, "service_id and date are required", http.StatusBadRequest)
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("buffer_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 24*60 {
			http.Error(w, "invalid buffer_minutes", http.StatusBadRequest)
			return
		}
		q.BufferMin = &n
	}

	day, err := h.engine.ServiceSlots(r.Context(), q)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	resp := serviceSlotsResponse{
		ServiceID: day.ServiceID,
		ShopID:    day.ShopID,
		Date:      day.Date,
		Timezone:  day.Timezone,
		Closed:    day.Closed,
		Reason:    day.Reason,
		Holiday:   day.Holiday,
		Slots:     make([]serviceSlotItem, 0, len(day.Slots)),
	}
	for _, s := range day.Slots {
		resp.Slots = append(resp.Slots, serviceSlotItem{
			StartTime:    s.Start.UTC().Format(time.RFC3339),
			EndTime:      s.End.UTC().Format(time.RFC3339),
			FreeStaffIDs: s.FreeStaffIDs,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type dealSlotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	SlotsLeft int    `json:"slots_left"`
}

type dealSlotsResponse struct {
	DealID   string         `json:"deal_id"`
	ShopID   string         `json:"shop_id"`
	Date     string         `json:"date"`
	Timezone string         `json:"timezone"`
	Capacity int            `json:"capacity"`
	Closed   bool           `json:"closed"`
	Reason   string         `json:"reason,omitempty"`
	Holiday  string         `json:"holiday,omitempty"`
	Slots    []dealSlotItem `json:"slots"`
}

func (h *AvailabilityHandler) DealSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := availability.DealQuery{
		DealID: strings.TrimSpace(r.URL.Query().Get("deal_id")),
		Date:   strings.TrimSpace(r.URL.Query().Get("date")),
	}
	if q.DealID == "" || q.Date == "" {
		http.Error(w, "deal_id and date are required", http.StatusBadRequest)
		return
	}

	day, err := h.engine.DealSlots(r.Context(), q)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	resp := dealSlotsResponse{
		DealID:   day.DealID,
		ShopID:   day.ShopID,
		Date:     day.Date,
		Timezone: day.Timezone,
		Capacity: day.Capacity,
		Closed:   day.Closed,
		Reason:   day.Reason,
		Holiday:  day.Holiday,
		Slots:    make([]dealSlotItem, 0, len(day.Slots)),
	}
	for _, s := range day.Slots {
		resp.Slots = append(resp.Slots, dealSlotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
			SlotsLeft: s.SlotsLeft,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
