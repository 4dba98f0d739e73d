package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/availability"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
)

// fakeProviders backs the engine with one UTC shop open Wednesdays
// 10:00-18:00, a single 60-minute service and an always-empty busy state.
type fakeProviders struct {
	shop model.Shop
}

func (f *fakeProviders) Shop(context.Context, string) (model.Shop, error) {
	return f.shop, nil
}

func (f *fakeProviders) DaySchedule(_ context.Context, _ string, weekday int) (model.DaySchedule, bool, error) {
	if weekday != 2 {
		return model.DaySchedule{}, false, nil
	}
	return model.DaySchedule{Weekday: 2, OpensAt: 600, ClosesAt: 1080, IsActive: true}, true, nil
}

func (f *fakeProviders) Holiday(context.Context, string, time.Time) (model.Holiday, bool, error) {
	return model.Holiday{}, false, nil
}

func (f *fakeProviders) Service(_ context.Context, id string) (model.Service, error) {
	return model.Service{ID: id, ShopID: f.shop.ID, Name: "Haircut", DurationMin: 60, BufferMin: 30, IsActive: true}, nil
}

func (f *fakeProviders) Deal(_ context.Context, id string) (model.Deal, error) {
	return model.Deal{ID: id, ShopID: f.shop.ID, Name: "Spa Day", DurationMin: 60, IsActive: true}, nil
}

func (f *fakeProviders) EligibleStaff(context.Context, string) ([]model.StaffLink, error) {
	return []model.StaffLink{{StaffID: "ana", IsPrimary: true}}, nil
}

func (f *fakeProviders) ActiveServiceBookings(context.Context, []string, time.Time, time.Time) ([]model.Booking, error) {
	return nil, nil
}

func (f *fakeProviders) ActiveDealBookings(context.Context, string, time.Time, time.Time) ([]model.Booking, error) {
	return nil, nil
}

func (f *fakeProviders) BlocksInRange(context.Context, string, time.Time, time.Time) ([]model.ManualBlock, error) {
	return nil, nil
}

func newTestAvailabilityHandler() *AvailabilityHandler {
	f := &fakeProviders{shop: model.Shop{ID: "shop-1", Timezone: "UTC", MaxConcurrentDeals: 2, IsActive: true}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := availability.NewEngine(f, f, f, f, logger)
	engine.Now = func() time.Time { return time.Date(2026, 1, 27, 12, 0, 0, 0, time.UTC) }
	return NewAvailabilityHandler(engine, logger)
}

func getSlots(t *testing.T, h http.HandlerFunc, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	rw := httptest.NewRecorder()
	h(rw, req)
	return rw
}

func TestServiceSlotsEndpoint(t *testing.T) {
	h := newTestAvailabilityHandler()
	rw := getSlots(t, h.ServiceSlots, "service_id=svc-cut&date=2026-01-28")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp serviceSlotsResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Closed || len(resp.Slots) != 8 {
		t.Fatalf("open Wednesday should carry 8 slots, got %+v", resp)
	}
	first := resp.Slots[0]
	if first.StartTime != "2026-01-28T10:00:00Z" || first.EndTime != "2026-01-28T11:00:00Z" {
		t.Fatalf("first slot = %+v, want 10:00-11:00 UTC", first)
	}
	if len(first.FreeStaffIDs) != 1 || first.FreeStaffIDs[0] != "ana" {
		t.Fatalf("first slot staff = %v, want [ana]", first.FreeStaffIDs)
	}
}

// A day the shop does not open is still a 200: closed with a reason and an
// empty (not null) slot array.
func TestServiceSlotsEndpointClosedDay(t *testing.T) {
	h := newTestAvailabilityHandler()
	rw := getSlots(t, h.ServiceSlots, "service_id=svc-cut&date=2026-01-29")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp serviceSlotsResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Closed || resp.Reason != "closed" {
		t.Fatalf("Thursday should report closed, got %+v", resp)
	}
	if !strings.Contains(rw.Body.String(), `"slots":[]`) {
		t.Fatalf("closed day must serialize an empty slot array: %s", rw.Body.String())
	}
}

func TestServiceSlotsEndpointBadRequests(t *testing.T) {
	h := newTestAvailabilityHandler()
	for _, query := range []string{
		"",
		"service_id=svc-cut",
		"date=2026-01-28",
		"service_id=svc-cut&date=2026-01-28&buffer_minutes=-1",
		"service_id=svc-cut&date=2026-01-28&buffer_minutes=1441",
		"service_id=svc-cut&date=2026-01-28&buffer_minutes=soon",
	} {
		if rw := getSlots(t, h.ServiceSlots, query); rw.Code != http.StatusBadRequest {
			t.Errorf("query %q: expected 400, got %d", query, rw.Code)
		}
	}
}

func TestServiceSlotsEndpointPastDate(t *testing.T) {
	h := newTestAvailabilityHandler()
	rw := getSlots(t, h.ServiceSlots, "service_id=svc-cut&date=2026-01-20")
	if rw.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "past_date" {
		t.Fatalf("code = %q, want past_date", resp.Code)
	}
}

func TestDealSlotsEndpoint(t *testing.T) {
	h := newTestAvailabilityHandler()
	rw := getSlots(t, h.DealSlots, "deal_id=deal-spa&date=2026-01-28")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp dealSlotsResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// 10:00-18:00, 60-minute deal on the 30-minute grid
	if resp.Capacity != 2 || len(resp.Slots) != 15 {
		t.Fatalf("capacity %d slots %d, want 2 and 15", resp.Capacity, len(resp.Slots))
	}
	if resp.Slots[1].StartTime != "2026-01-28T10:30:00Z" {
		t.Fatalf("second slot start = %q, want 10:30", resp.Slots[1].StartTime)
	}
	for _, s := range resp.Slots {
		if s.SlotsLeft != 2 {
			t.Fatalf("idle day slot %s left = %d, want full capacity", s.StartTime, s.SlotsLeft)
		}
	}

	if rw := getSlots(t, h.DealSlots, "deal_id=deal-spa"); rw.Code != http.StatusBadRequest {
		t.Fatalf("missing date: expected 400, got %d", rw.Code)
	}
}

func TestSlotEndpointsRejectNonGet(t *testing.T) {
	h := newTestAvailabilityHandler()
	for _, serve := range []http.HandlerFunc{h.ServiceSlots, h.DealSlots} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rw := httptest.NewRecorder()
		serve(rw, req)
		if rw.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rw.Code)
		}
	}
}
