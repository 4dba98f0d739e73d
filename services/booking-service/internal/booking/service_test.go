package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/availability"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/outbox"
)

type calFake struct {
	shop     model.Shop
	days     map[int]model.DaySchedule
	holidays map[string]model.Holiday
}

func (f *calFake) Shop(ctx context.Context, shopID string) (model.Shop, error) {
	return f.shop, nil
}

func (f *calFake) DaySchedule(ctx context.Context, shopID string, weekday int) (model.DaySchedule, bool, error) {
	d, ok := f.days[weekday]
	return d, ok, nil
}

func (f *calFake) Holiday(ctx context.Context, shopID string, date time.Time) (model.Holiday, bool, error) {
	h, ok := f.holidays[date.Format("2006-01-02")]
	return h, ok, nil
}

type catFake struct {
	services map[string]model.Service
	deals    map[string]model.Deal
	links    map[string][]model.StaffLink
}

func (f *catFake) Service(ctx context.Context, id string) (model.Service, error) {
	s, ok := f.services[id]
	if !ok {
		return model.Service{}, errors.New("service not found")
	}
	return s, nil
}

func (f *catFake) Deal(ctx context.Context, id string) (model.Deal, error) {
	d, ok := f.deals[id]
	if !ok {
		return model.Deal{}, errors.New("deal not found")
	}
	return d, nil
}

func (f *catFake) EligibleStaff(ctx context.Context, serviceID string) ([]model.StaffLink, error) {
	return f.links[serviceID], nil
}

// memStore is an in-memory Store/Tx with commit and rollback semantics. Its
// insert and update methods enforce the no-overlap contract the database
// exclusion constraint provides in production.
type memStore struct {
	mu       sync.Mutex
	bookings map[string]model.Booking
	blocks   []model.ManualBlock
	events   []outbox.Event
	idem     map[string]IdempotencyRecord
	locks    int
}

func newMemStore() *memStore {
	return &memStore{
		bookings: make(map[string]model.Booking),
		idem:     make(map[string]IdempotencyRecord),
	}
}

func (m *memStore) Begin(ctx context.Context) (Tx, error) {
	return &memTx{store: m}, nil
}

func (m *memStore) Booking(ctx context.Context, id string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, errors.New("booking not found")
	}
	return b, nil
}

func ivOf(b *model.Booking) availability.Interval {
	return availability.Interval{Start: b.StartTime, End: b.EndTime()}
}

type memTx struct {
	store    *memStore
	inserted []model.Booking
	updates  []func(map[string]model.Booking)
	events   []outbox.Event
	done     bool
}

func (t *memTx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, b := range t.inserted {
		t.store.bookings[b.ID] = b
	}
	for _, apply := range t.updates {
		apply(t.store.bookings)
	}
	t.store.events = append(t.store.events, t.events...)
	t.done = true
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

func (t *memTx) BookingForUpdate(ctx context.Context, id string) (model.Booking, error) {
	return t.store.Booking(ctx, id)
}

func (t *memTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	if b.Kind == model.KindService {
		if t.staffClash(b.StaffID, ivOf(b), "") {
			return fmt.Errorf("exclusion constraint: %w", ErrSlotTaken)
		}
	}
	t.inserted = append(t.inserted, *b)
	return nil
}

func (t *memTx) UpdateBookingSlot(ctx context.Context, id string, start time.Time) error {
	b, err := t.store.Booking(ctx, id)
	if err != nil {
		return err
	}
	if b.Kind == model.KindService {
		b.StartTime = start
		if t.staffClash(b.StaffID, ivOf(&b), id) {
			return fmt.Errorf("exclusion constraint: %w", ErrSlotTaken)
		}
	}
	t.updates = append(t.updates, func(m map[string]model.Booking) {
		b := m[id]
		b.StartTime = start
		m[id] = b
	})
	return nil
}

func (t *memTx) UpdateBookingStaff(ctx context.Context, id, staffID string) error {
	b, err := t.store.Booking(ctx, id)
	if err != nil {
		return err
	}
	if t.staffClash(staffID, ivOf(&b), id) {
		return fmt.Errorf("exclusion constraint: %w", ErrSlotTaken)
	}
	t.updates = append(t.updates, func(m map[string]model.Booking) {
		b := m[id]
		b.StaffID = staffID
		m[id] = b
	})
	return nil
}

func (t *memTx) UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) error {
	t.updates = append(t.updates, func(m map[string]model.Booking) {
		b := m[id]
		b.Status = status
		m[id] = b
	})
	return nil
}

func (t *memTx) MarkCancelled(ctx context.Context, id string, by model.CancelActor, reason string, at time.Time) error {
	t.updates = append(t.updates, func(m map[string]model.Booking) {
		b := m[id]
		b.Status = model.StatusCancelled
		b.CancelledBy = by
		b.CancelReason = reason
		b.CancelledAt = &at
		m[id] = b
	})
	return nil
}

func (t *memTx) LockShop(ctx context.Context, shopID string) error {
	t.store.mu.Lock()
	t.store.locks++
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) CountActiveDealBookings(ctx context.Context, shopID string, from, to time.Time, excludeID string) (int, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	window := availability.Interval{Start: from, End: to}
	n := 0
	for _, b := range t.store.bookings {
		if b.ID != excludeID && b.Kind == model.KindDeal && b.ShopID == shopID && b.IsActive() && window.Overlaps(ivOf(&b)) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) StaffBookingsForUpdate(ctx context.Context, staffID string, from, to time.Time, excludeID string) ([]model.Booking, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	window := availability.Interval{Start: from, End: to}
	var out []model.Booking
	for _, b := range t.store.bookings {
		if b.ID != excludeID && b.Kind == model.KindService && b.StaffID == staffID && b.IsActive() && window.Overlaps(ivOf(&b)) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *memTx) BlocksInRange(ctx context.Context, shopID string, from, to time.Time) ([]model.ManualBlock, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.blocks, nil
}

func (t *memTx) LockIdempotencyKey(ctx context.Context, customerID, key string) (IdempotencyRecord, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	k := customerID + "/" + key
	rec, ok := t.store.idem[k]
	if !ok {
		rec = IdempotencyRecord{CustomerID: customerID, Key: key}
		t.store.idem[k] = rec
	}
	return rec, nil
}

func (t *memTx) SaveIdempotencyResult(ctx context.Context, customerID, key string, statusCode int, response []byte) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	k := customerID + "/" + key
	t.store.idem[k] = IdempotencyRecord{CustomerID: customerID, Key: key, StatusCode: statusCode, Response: response}
	return nil
}

func (t *memTx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	t.events = append(t.events, evt)
	return nil
}

// staffClash mirrors the database exclusion constraint over committed rows
// plus this transaction's staged inserts.
func (t *memTx) staffClash(staffID string, window availability.Interval, excludeID string) bool {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, b := range t.store.bookings {
		if b.ID != excludeID && b.Kind == model.KindService && b.StaffID == staffID && b.IsActive() && window.Overlaps(ivOf(&b)) {
			return true
		}
	}
	for i := range t.inserted {
		b := &t.inserted[i]
		if b.Kind == model.KindService && b.StaffID == staffID && b.IsActive() && window.Overlaps(ivOf(b)) {
			return true
		}
	}
	return false
}

// engineView feeds the availability engine from the store. Setting stale
// freezes it to an empty busy state, reproducing the window where a
// competing write committed after the availability calculation ran.
type engineView struct {
	store *memStore
	stale bool
}

func (v *engineView) ActiveServiceBookings(ctx context.Context, staffIDs []string, from, to time.Time) ([]model.Booking, error) {
	if v.stale {
		return nil, nil
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	want := make(map[string]bool, len(staffIDs))
	for _, id := range staffIDs {
		want[id] = true
	}
	var out []model.Booking
	for _, b := range v.store.bookings {
		if b.Kind == model.KindService && b.IsActive() && want[b.StaffID] {
			out = append(out, b)
		}
	}
	return out, nil
}

func (v *engineView) ActiveDealBookings(ctx context.Context, shopID string, from, to time.Time) ([]model.Booking, error) {
	if v.stale {
		return nil, nil
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	var out []model.Booking
	for _, b := range v.store.bookings {
		if b.Kind == model.KindDeal && b.ShopID == shopID && b.IsActive() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (v *engineView) BlocksInRange(ctx context.Context, shopID string, from, to time.Time) ([]model.ManualBlock, error) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return v.store.blocks, nil
}

type env struct {
	cal   *calFake
	cat   *catFake
	store *memStore
	view  *engineView
	svc   *Service
}

// Fixture: a UTC shop open Wednesdays 10:00-18:00 with deal capacity 2, a
// 60-minute service mapped to "ana" (primary) and "bo", a 60-minute deal,
// and the clock pinned the day before Wednesday 2026-01-28.
func newEnv() *env {
	cal := &calFake{
		shop: model.Shop{ID: "shop-1", Timezone: "UTC", MaxConcurrentDeals: 2, IsActive: true},
		days: map[int]model.DaySchedule{
			2: {Weekday: 2, OpensAt: 600, ClosesAt: 1080, IsActive: true},
		},
		holidays: map[string]model.Holiday{},
	}
	cat := &catFake{
		services: map[string]model.Service{
			"svc-cut": {ID: "svc-cut", ShopID: "shop-1", Name: "Haircut", DurationMin: 60, BufferMin: 30, PriceCents: 4500, IsActive: true},
		},
		deals: map[string]model.Deal{
			"deal-spa": {ID: "deal-spa", ShopID: "shop-1", Name: "Spa Day", DurationMin: 60, PriceCents: 9900, IsActive: true},
		},
		links: map[string][]model.StaffLink{
			"svc-cut": {{StaffID: "ana", IsPrimary: true}, {StaffID: "bo"}},
		},
	}
	store := newMemStore()
	view := &engineView{store: store}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng := availability.NewEngine(cal, cat, view, view, logger)
	now := func() time.Time { return time.Date(2026, 1, 27, 12, 0, 0, 0, time.UTC) }
	eng.Now = now

	svc := NewService(store, eng, cat, cal, logger)
	svc.Now = now
	return &env{cal: cal, cat: cat, store: store, view: view, svc: svc}
}

func at(h, m int) time.Time {
	return time.Date(2026, 1, 28, h, m, 0, 0, time.UTC)
}

func serviceReq(start time.Time) CreateRequest {
	return CreateRequest{
		ServiceID:  "svc-cut",
		CustomerID: "cust-1",
		Customer:   "Nadia Rahman",
		Phone:      "+8801711111111",
		Start:      start,
	}
}

func dealReq(start time.Time) CreateRequest {
	return CreateRequest{
		DealID:     "deal-spa",
		CustomerID: "cust-2",
		Customer:   "Imran Kabir",
		Start:      start,
	}
}

func (e *env) eventTypes() []string {
	var out []string
	for _, evt := range e.store.events {
		out = append(out, evt.EventType)
	}
	return out
}

func TestCreateServiceBookingAutoAssignsPrimary(t *testing.T) {
	e := newEnv()
	b, err := e.svc.Create(context.Background(), serviceReq(at(12, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != model.StatusPending {
		t.Fatalf("new booking status = %s, want pending", b.Status)
	}
	if b.StaffID != "ana" {
		t.Fatalf("auto-assign picked %q, want primary ana", b.StaffID)
	}
	if b.DurationMin != 60 || b.PriceCents != 4500 {
		t.Fatalf("booking did not take duration and price from the service: %+v", b)
	}
	stored, err := e.store.Booking(context.Background(), b.ID)
	if err != nil {
		t.Fatal("booking not committed")
	}
	if !stored.StartTime.Equal(at(12, 0)) {
		t.Fatalf("stored start %v", stored.StartTime)
	}
	if got := e.eventTypes(); len(got) != 1 || got[0] != EventCreated {
		t.Fatalf("events = %v, want [%s]", got, EventCreated)
	}
}

func TestCreateServiceBookingAutoAssignFallsBack(t *testing.T) {
	e := newEnv()
	if _, err := e.svc.Create(context.Background(), serviceReq(at(12, 0))); err != nil {
		t.Fatal(err)
	}
	// primary ana now holds 12:00; the same slot must fall to bo
	b, err := e.svc.Create(context.Background(), serviceReq(at(12, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if b.StaffID != "bo" {
		t.Fatalf("fallback assign picked %q, want bo", b.StaffID)
	}
}

func TestCreateServiceBookingExplicitStaff(t *testing.T) {
	e := newEnv()
	req := serviceReq(at(12, 0))
	req.StaffID = "bo"
	b, err := e.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if b.StaffID != "bo" {
		t.Fatalf("staff = %q, want bo", b.StaffID)
	}
}

func TestCreateServiceBookingSlotFull(t *testing.T) {
	e := newEnv()
	for i := 0; i < 2; i++ {
		if _, err := e.svc.Create(context.Background(), serviceReq(at(12, 0))); err != nil {
			t.Fatal(err)
		}
	}
	_, err := e.svc.Create(context.Background(), serviceReq(at(12, 0)))
	var slotErr *availability.SlotUnavailableError
	if !errors.As(err, &slotErr) {
		t.Fatalf("expected SlotUnavailableError, got %v", err)
	}
	if len(slotErr.Alternatives) == 0 || len(slotErr.Alternatives) > availability.MaxAlternatives {
		t.Fatalf("alternatives count = %d", len(slotErr.Alternatives))
	}
	for _, alt := range slotErr.Alternatives {
		if alt.Start.Equal(at(12, 0)) {
			t.Fatal("alternatives must not repeat the rejected slot")
		}
	}
}

// Two callers race for the same slot: the calculation both saw is stale for
// the loser, who must get a stale-slot rejection with alternatives, and
// exactly one booking must exist afterwards.
func TestCreateServiceBookingStaleSlot(t *testing.T) {
	e := newEnv()
	req := serviceReq(at(12, 0))
	req.StaffID = "ana"
	if _, err := e.svc.Create(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	e.view.stale = true // loser still sees the pre-write availability
	_, err := e.svc.Create(context.Background(), req)
	var stale *StaleSlotError
	if !errors.As(err, &stale) {
		t.Fatalf("expected StaleSlotError, got %v", err)
	}
	if len(stale.Alternatives) == 0 {
		t.Fatal("stale rejection must carry alternatives")
	}
	if len(e.store.bookings) != 1 {
		t.Fatalf("expected exactly 1 booking, got %d", len(e.store.bookings))
	}
	if got := e.eventTypes(); len(got) != 1 {
		t.Fatalf("failed create must emit no event, got %v", got)
	}
}

func TestCreateServiceBookingIneligibleStaff(t *testing.T) {
	e := newEnv()
	req := serviceReq(at(12, 0))
	req.StaffID = "zed"
	_, err := e.svc.Create(context.Background(), req)
	var inel *IneligibleStaffError
	if !errors.As(err, &inel) {
		t.Fatalf("expected IneligibleStaffError, got %v", err)
	}
}

func TestCreateServiceBookingNoEligibleStaff(t *testing.T) {
	e := newEnv()
	e.cat.links["svc-cut"] = nil
	_, err := e.svc.Create(context.Background(), serviceReq(at(12, 0)))
	var none *availability.NoEligibleStaffError
	if !errors.As(err, &none) {
		t.Fatalf("expected NoEligibleStaffError, got %v", err)
	}
}

func TestCreateBookingClosedDayAndHoliday(t *testing.T) {
	e := newEnv()
	// Thursday: the fixture only opens Wednesdays
	_, err := e.svc.Create(context.Background(), serviceReq(time.Date(2026, 1, 29, 12, 0, 0, 0, time.UTC)))
	var closed *availability.ShopClosedError
	if !errors.As(err, &closed) {
		t.Fatalf("expected ShopClosedError, got %v", err)
	}

	e.cal.holidays["2026-01-28"] = model.Holiday{ShopID: "shop-1", Name: "Founders Day"}
	_, err = e.svc.Create(context.Background(), serviceReq(at(12, 0)))
	if !errors.As(err, &closed) || closed.Holiday != "Founders Day" {
		t.Fatalf("expected holiday closure, got %v", err)
	}
}

func TestCreateBookingPastDate(t *testing.T) {
	e := newEnv()
	_, err := e.svc.Create(context.Background(), serviceReq(time.Date(2026, 1, 21, 12, 0, 0, 0, time.UTC)))
	var past *availability.PastDateError
	if !errors.As(err, &past) {
		t.Fatalf("expected PastDateError, got %v", err)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	e := newEnv()
	bad := []CreateRequest{
		{CustomerID: "c", Customer: "n", Start: at(12, 0)},                                          // neither item
		{ServiceID: "svc-cut", DealID: "deal-spa", CustomerID: "c", Customer: "n", Start: at(12, 0)}, // both items
		{DealID: "deal-spa", StaffID: "ana", CustomerID: "c", Customer: "n", Start: at(12, 0)},       // staff on a deal
		{ServiceID: "svc-cut", Customer: "n", Start: at(12, 0)},                                      // no customer id
		{ServiceID: "svc-cut", CustomerID: "c", Start: at(12, 0)},                                    // no name
		{ServiceID: "svc-cut", CustomerID: "c", Customer: "n"},                                       // no start
	}
	for i, req := range bad {
		if _, err := e.svc.Create(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("case %d: expected ErrInvalidRequest, got %v", i, err)
		}
	}
}

func TestCreateDealBookingConsumesCapacity(t *testing.T) {
	e := newEnv()
	for i := 0; i < 2; i++ {
		b, err := e.svc.Create(context.Background(), dealReq(at(11, 0)))
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if b.Kind != model.KindDeal || b.StaffID != "" {
			t.Fatalf("deal booking shape wrong: %+v", b)
		}
	}

	_, err := e.svc.Create(context.Background(), dealReq(at(11, 0)))
	var full *availability.CapacityExceededError
	if !errors.As(err, &full) {
		t.Fatalf("expected CapacityExceededError, got %v", err)
	}
	if len(full.Alternatives) == 0 {
		t.Fatal("capacity rejection must carry alternatives")
	}
	for _, alt := range full.Alternatives {
		if alt.Overlaps(availability.Interval{Start: at(11, 0), End: at(12, 0)}) {
			t.Fatalf("alternative %v still overlaps the full window", alt)
		}
	}
}

func TestCreateDealBookingStaleCapacity(t *testing.T) {
	e := newEnv()
	for i := 0; i < 2; i++ {
		if _, err := e.svc.Create(context.Background(), dealReq(at(11, 0))); err != nil {
			t.Fatal(err)
		}
	}

	e.view.stale = true
	_, err := e.svc.Create(context.Background(), dealReq(at(11, 0)))
	var stale *StaleSlotError
	if !errors.As(err, &stale) {
		t.Fatalf("expected StaleSlotError, got %v", err)
	}
	if e.store.locks == 0 {
		t.Fatal("deal create must take the shop lock before recounting")
	}
}

func TestRescheduleMovesBooking(t *testing.T) {
	e := newEnv()
	b, err := e.svc.Create(context.Background(), serviceReq(at(12, 0)))
	if err != nil {
		t.Fatal(err)
	}

	moved, err := e.svc.Reschedule(context.Background(), b.ID, at(14, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !moved.StartTime.Equal(at(14, 0)) || moved.StaffID != b.StaffID {
		t.Fatalf("moved booking = %+v", moved)
	}
	stored, _ := e.store.Booking(context.Background(), b.ID)
	if !stored.StartTime.Equal(at(14, 0)) {
		t.Fatalf("stored start %v, want 14:00", stored.StartTime)
	}

	types := e.eventTypes()
	if types[len(types)-1] != EventRescheduled {
		t.Fatalf("last event = %v, want %s", types, EventRescheduled)
	}
	var payload map[string]any
	if err := json.Unmarshal(e.store.events[len(e.store.events)-1].Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["old_start"] == nil {
		t.Fatal("rescheduled event must carry old_start")
	}
}

// The booking's own interval must not block its reschedule. A booking keeps
// the window it was written with even after its service is shortened, so
// moving it one slot over lands inside that window.
func TestRescheduleExcludesOwnInterval(t *testing.T) {
	e := newEnv()
	long := e.cat.services["svc-cut"]
	long.DurationMin = 90
	e.cat.services["svc-cut"] = long
	// 13:00 is on the 90-minute grid; the booking holds [13:00, 14:30)
	b, err := e.svc.Create(context.Background(), serviceReq(at(13, 0)))
	if err != nil {
		t.Fatal(err)
	}

	short := long
	short.DurationMin = 60
	e.cat.services["svc-cut"] = short
	if _, err := e.svc.Reschedule(context.Background(), b.ID, at(14, 0)); err != nil {
		t.Fatalf("reschedule into a window only the booking itself occupies: %v", err)
	}
}

func TestRescheduleConflict(t *testing.T) {
	e := newEnv()
	req := serviceReq(at(12, 0))
	req.StaffID = "ana"
	b, err := e.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	blocker := serviceReq(at(14, 0))
	blocker.StaffID = "ana"
	if _, err := e.svc.Create(context.Background(), blocker); err != nil {
		t.Fatal(err)
	}

	_, err = e.svc.Reschedule(context.Background(), b.ID, at(14, 0))
	var slotErr *availability.SlotUnavailableError
	if !errors.As(err, &slotErr) {
		t.Fatalf("expected SlotUnavailableError, got %v", err)
	}
}

func TestRescheduleTerminalBooking(t *testing.T) {
	e := newEnv()
	b, err := e.svc.Create(context.Background(), serviceReq(at(12, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Cancel(context.Background(), b.ID, model.CancelledByCustomer, "changed plans"); err != nil {
		t.Fatal(err)
	}
	_, err = e.svc.Reschedule(context.Background(), b.ID, at(14, 0))
	var notActive *NotActiveError
	if !errors.As(err, &notActive) {
		t.Fatalf("expected NotActiveError, got %v", err)
	}
}

func TestReassignStaff(t *testing.T) {
	e := newEnv()
	req := serviceReq(at(12, 0))
	req.StaffID = "ana"
	b, err := e.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	moved, err := e.svc.ReassignStaff(context.Background(), b.ID, "bo")
	if err != nil {
		t.Fatal(err)
	}
	if moved.StaffID != "bo" {
		t.Fatalf("staff = %q, want bo", moved.StaffID)
	}
	var payload map[string]any
	if err := json.Unmarshal(e.store.events[len(e.store.events)-1].Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["old_staff_id"] != "ana" {
		t.Fatalf("old_staff_id = %v, want ana", payload["old_staff_id"])
	}
}

func TestReassignStaffConflict(t *testing.T) {
	e := newEnv()
	req := serviceReq(at(12, 0))
	req.StaffID = "ana"
	b, err := e.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	// bo holds an overlapping booking
	other := serviceReq(at(12, 0))
	other.StaffID = "bo"
	blocker, err := e.svc.Create(context.Background(), other)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.svc.ReassignStaff(context.Background(), b.ID, "bo")
	var conflict *ReassignmentConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ReassignmentConflictError, got %v", err)
	}
	if conflict.ConflictingBookingID != blocker.ID {
		t.Fatalf("conflicting booking = %q, want %q", conflict.ConflictingBookingID, blocker.ID)
	}
	if conflict.StaffID != "bo" {
		t.Fatalf("conflict staff = %q", conflict.StaffID)
	}
}

func TestReassignStaffGuards(t *testing.T) {
	e := newEnv()
	req := serviceReq(at(12, 0))
	req.StaffID = "ana"
	b, err := e.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.svc.ReassignStaff(context.Background(), b.ID, "ana"); !errors.Is(err, ErrSameStaff) {
		t.Fatalf("same staff: got %v", err)
	}
	var inel *IneligibleStaffError
	if _, err := e.svc.ReassignStaff(context.Background(), b.ID, "zed"); !errors.As(err, &inel) {
		t.Fatalf("unmapped staff: got %v", err)
	}

	d, err := e.svc.Create(context.Background(), dealReq(at(11, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.ReassignStaff(context.Background(), d.ID, "ana"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("deal reassign: got %v", err)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	e := newEnv()
	b, err := e.svc.Create(context.Background(), serviceReq(at(12, 0)))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.svc.Complete(context.Background(), b.ID); err == nil {
		t.Fatal("complete straight from pending must fail")
	}
	c, err := e.svc.Confirm(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != model.StatusConfirmed {
		t.Fatalf("status = %s", c.Status)
	}
	done, err := e.svc.Complete(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != model.StatusCompleted {
		t.Fatalf("status = %s", done.Status)
	}

	want := []string{EventCreated, EventConfirmed, EventCompleted}
	got := e.eventTypes()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestLifecycleTerminalIsImmutable(t *testing.T) {
	e := newEnv()
	b, err := e.svc.Create(context.Background(), serviceReq(at(12, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Confirm(context.Background(), b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Complete(context.Background(), b.ID); err != nil {
		t.Fatal(err)
	}

	var trans *InvalidTransitionError
	if _, err := e.svc.Cancel(context.Background(), b.ID, model.CancelledByOwner, ""); !errors.As(err, &trans) {
		t.Fatalf("cancel completed: got %v", err)
	}
	if _, err := e.svc.Confirm(context.Background(), b.ID); !errors.As(err, &trans) {
		t.Fatalf("confirm completed: got %v", err)
	}
	if _, err := e.svc.NoShow(context.Background(), b.ID); !errors.As(err, &trans) {
		t.Fatalf("no-show completed: got %v", err)
	}
}

func TestCancelRecordsActorAndReason(t *testing.T) {
	e := newEnv()
	b, err := e.svc.Create(context.Background(), serviceReq(at(12, 0)))
	if err != nil {
		t.Fatal(err)
	}

	got, err := e.svc.Cancel(context.Background(), b.ID, model.CancelledByStaff, "stylist ill")
	if err != nil {
		t.Fatal(err)
	}
	if got.CancelledBy != model.CancelledByStaff || got.CancelReason != "stylist ill" || got.CancelledAt == nil {
		t.Fatalf("cancel metadata missing: %+v", got)
	}

	if _, err := e.svc.Cancel(context.Background(), b.ID, model.CancelledByOwner, "again"); err == nil {
		t.Fatal("second cancel must fail")
	}

	if _, err := e.svc.Cancel(context.Background(), "missing", model.CancelActor("fairy"), ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("unknown actor: got %v", err)
	}
}

// A cancelled slot is immediately bookable again.
func TestCancelFreesTheSlot(t *testing.T) {
	e := newEnv()
	req := serviceReq(at(12, 0))
	req.StaffID = "ana"
	b, err := e.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Cancel(context.Background(), b.ID, model.CancelledByCustomer, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Create(context.Background(), req); err != nil {
		t.Fatalf("rebooking a cancelled slot: %v", err)
	}
}

func TestConfirmFromPaymentIsIdempotent(t *testing.T) {
	e := newEnv()
	b, err := e.svc.Create(context.Background(), serviceReq(at(12, 0)))
	if err != nil {
		t.Fatal(err)
	}

	got, err := e.svc.ConfirmFromPayment(context.Background(), b.ID, "pay-77")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusConfirmed {
		t.Fatalf("status = %s", got.Status)
	}
	var payload map[string]any
	if err := json.Unmarshal(e.store.events[len(e.store.events)-1].Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["payment_id"] != "pay-77" {
		t.Fatalf("payment_id = %v", payload["payment_id"])
	}

	events := len(e.store.events)
	again, err := e.svc.ConfirmFromPayment(context.Background(), b.ID, "pay-77")
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != model.StatusConfirmed {
		t.Fatalf("replay status = %s", again.Status)
	}
	if len(e.store.events) != events {
		t.Fatal("payment replay must not emit another event")
	}
}
