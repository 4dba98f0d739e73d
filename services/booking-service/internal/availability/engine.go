package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
)

const dateLayout = "2006-01-02"

// DealLeadTime is the fixed lead buffer before a deal slot becomes bookable.
// Services carry their own per-service buffer instead.
const DealLeadTime = 15 * time.Minute

// ErrBadDate rejects a date string that does not parse as a calendar day.
var ErrBadDate = errors.New("date must be formatted like 2026-01-28")

// Reasons an otherwise valid day yields no slots.
const (
	ReasonClosed          = "closed"
	ReasonHoliday         = "holiday"
	ReasonNoEligibleStaff = "no_eligible_staff"
)

// Engine computes day availability for services and deals. It reads the shop
// calendar, the eligibility mapping and the busy state through the provider
// interfaces and owns no storage of its own.
type Engine struct {
	Schedules ScheduleProvider
	Catalog   EligibilityProvider
	Bookings  BookingSource
	Blocks    BlockSource
	Logger    *slog.Logger

	// Now is the clock behind past-date checks and lead-time cuts.
	// Nil means time.Now; tests pin it.
	Now func() time.Time
}

func NewEngine(schedules ScheduleProvider, catalog EligibilityProvider, bookings BookingSource, blocks BlockSource, logger *slog.Logger) *Engine {
	return &Engine{
		Schedules: schedules,
		Catalog:   catalog,
		Bookings:  bookings,
		Blocks:    blocks,
		Logger:    logger,
	}
}

func (e *Engine) clock() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ServiceQuery asks for the bookable slots of one service on one day.
type ServiceQuery struct {
	ServiceID string
	Date      string // local calendar day, formatted 2026-01-28
	StaffID   string // optional: restrict to this staff member
	BufferMin *int   // optional override of the service lead buffer, minutes
	// ExcludeBookingID drops one booking from the busy state, so a
	// reschedule does not collide with the booking being moved.
	ExcludeBookingID string
}

// StaffSlot is one bookable window and the staff members free to take it.
type StaffSlot struct {
	Interval
	FreeStaffIDs []string
}

// ServiceDay is the full availability answer for a service on one day.
type ServiceDay struct {
	ServiceID string
	ShopID    string
	Date      string
	// Timezone is the effective zone the slots were computed in; "UTC"
	// when the shop's configured zone failed to load.
	Timezone string
	// Closed is set when the shop does not open that day. Reason then
	// holds "closed" or "holiday"; an open day with no mapped staff
	// yields Reason "no_eligible_staff" and an empty slot list.
	Closed  bool
	Reason  string
	Holiday string
	Slots   []StaffSlot
}

// ServiceSlots computes the bookable slots for a service on a local calendar
// day. The grid steps by the service duration. Days the shop is closed or
// services with no mapped staff produce an empty slot list, not an error;
// only malformed and past dates are rejected.
func (e *Engine) ServiceSlots(ctx context.Context, q ServiceQuery) (ServiceDay, error) {
	svc, err := e.Catalog.Service(ctx, q.ServiceID)
	if err != nil {
		return ServiceDay{}, fmt.Errorf("load service: %w", err)
	}

	day, err := e.resolveDay(ctx, svc.ShopID, q.Date)
	if err != nil {
		return ServiceDay{}, err
	}
	res := ServiceDay{
		ServiceID: svc.ID,
		ShopID:    svc.ShopID,
		Date:      q.Date,
		Timezone:  day.tz,
		Closed:    day.closed,
		Reason:    day.reason,
		Holiday:   day.holiday,
	}
	if day.closed {
		return res, nil
	}

	links, err := e.Catalog.EligibleStaff(ctx, q.ServiceID)
	if err != nil {
		return ServiceDay{}, fmt.Errorf("load eligible staff: %w", err)
	}
	if q.StaffID != "" {
		links = filterLinks(links, q.StaffID)
	}
	if len(links) == 0 {
		res.Reason = ReasonNoEligibleStaff
		return res, nil
	}

	buffer := svc.BufferMin
	if q.BufferMin != nil {
		buffer = *q.BufferMin
	}
	minStart := e.clock().Add(time.Duration(buffer) * time.Minute)
	duration := time.Duration(svc.DurationMin) * time.Minute

	grid := SlotGrid(day.open, day.close, duration, duration, minStart)
	if len(grid) == 0 {
		return res, nil
	}

	staffIDs := make([]string, len(links))
	for i, l := range links {
		staffIDs[i] = l.StaffID
	}
	busy, err := e.busyForStaff(ctx, svc.ShopID, staffIDs, day.open, day.close, q.ExcludeBookingID)
	if err != nil {
		return ServiceDay{}, err
	}
	perStaff := byStaff(busy)

	for _, slot := range grid {
		var free []string
		for _, id := range staffIDs {
			if !AnyOverlap(slot, perStaff[id]) {
				free = append(free, id)
			}
		}
		if len(free) > 0 {
			res.Slots = append(res.Slots, StaffSlot{Interval: slot, FreeStaffIDs: free})
		}
	}
	return res, nil
}

// DealQuery asks for the capacity slots of one deal on one day.
type DealQuery struct {
	DealID           string
	Date             string
	ExcludeBookingID string
}

// CapacitySlot is one deal window and how many concurrent bookings it can
// still take. Slots with zero left are reported too so callers can render a
// full grid.
type CapacitySlot struct {
	Interval
	SlotsLeft int
}

// DealDay is the full availability answer for a deal on one day.
type DealDay struct {
	DealID   string
	ShopID   string
	Date     string
	Timezone string
	Capacity int
	Closed   bool
	Reason   string
	Holiday  string
	Slots    []CapacitySlot
}

// DealSlots computes the capacity grid for a deal on a local calendar day.
// Deal slots ignore staff entirely: every active deal booking of the shop
// consumes one unit of the shop-wide concurrency cap, whichever deal it is
// for. The grid steps by DealSlotStep regardless of the deal's duration.
func (e *Engine) DealSlots(ctx context.Context, q DealQuery) (DealDay, error) {
	deal, err := e.Catalog.Deal(ctx, q.DealID)
	if err != nil {
		return DealDay{}, fmt.Errorf("load deal: %w", err)
	}

	day, err := e.resolveDay(ctx, deal.ShopID, q.Date)
	if err != nil {
		return DealDay{}, err
	}
	res := DealDay{
		DealID:   deal.ID,
		ShopID:   deal.ShopID,
		Date:     q.Date,
		Timezone: day.tz,
		Capacity: day.shop.MaxConcurrentDeals,
		Closed:   day.closed,
		Reason:   day.reason,
		Holiday:  day.holiday,
	}
	if day.closed {
		return res, nil
	}

	minStart := e.clock().Add(DealLeadTime)
	duration := time.Duration(deal.DurationMin) * time.Minute
	grid := SlotGrid(day.open, day.close, duration, DealSlotStep, minStart)
	if len(grid) == 0 {
		return res, nil
	}

	active, err := e.Bookings.ActiveDealBookings(ctx, deal.ShopID, day.open, day.close)
	if err != nil {
		return DealDay{}, fmt.Errorf("load deal bookings: %w", err)
	}
	busy := make([]Interval, 0, len(active))
	for i := range active {
		b := &active[i]
		if q.ExcludeBookingID != "" && b.ID == q.ExcludeBookingID {
			continue
		}
		busy = append(busy, Interval{Start: b.StartTime, End: b.EndTime()})
	}

	for _, slot := range grid {
		left := res.Capacity - CountOverlapping(slot, busy)
		if left < 0 {
			left = 0
		}
		res.Slots = append(res.Slots, CapacitySlot{Interval: slot, SlotsLeft: left})
	}
	return res, nil
}

// dayContext is one resolved shop day: localized window plus closure state.
type dayContext struct {
	shop    model.Shop
	loc     *time.Location
	tz      string
	day     time.Time // local midnight
	open    time.Time
	close   time.Time
	closed  bool
	reason  string
	holiday string
}

func (e *Engine) resolveDay(ctx context.Context, shopID, date string) (dayContext, error) {
	shop, err := e.Schedules.Shop(ctx, shopID)
	if err != nil {
		return dayContext{}, fmt.Errorf("load shop: %w", err)
	}
	loc, tz := e.location(shop)

	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return dayContext{}, ErrBadDate
	}
	now := e.clock().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if day.Before(today) {
		return dayContext{}, &PastDateError{Date: date}
	}

	dc := dayContext{shop: shop, loc: loc, tz: tz, day: day}

	hol, isHoliday, err := e.Schedules.Holiday(ctx, shopID, day)
	if err != nil {
		return dayContext{}, fmt.Errorf("load holiday: %w", err)
	}
	if isHoliday {
		dc.closed = true
		dc.reason = ReasonHoliday
		dc.holiday = hol.Name
		return dc, nil
	}

	sched, ok, err := e.Schedules.DaySchedule(ctx, shopID, weekdayIndex(day))
	if err != nil {
		return dayContext{}, fmt.Errorf("load day schedule: %w", err)
	}
	if !ok || !sched.IsActive || sched.ClosesAt <= sched.OpensAt {
		dc.closed = true
		dc.reason = ReasonClosed
		return dc, nil
	}
	dc.open = day.Add(time.Duration(sched.OpensAt) * time.Minute)
	dc.close = day.Add(time.Duration(sched.ClosesAt) * time.Minute)
	return dc, nil
}

// location resolves the shop timezone and logs a warning when the configured
// name did not load. Availability stays servable on a misconfigured shop; the
// effective zone is reported back to the caller.
func (e *Engine) location(shop model.Shop) (*time.Location, string) {
	loc, tz := Location(shop)
	if tz != shop.Timezone && e.Logger != nil {
		e.Logger.Warn("unknown shop timezone, using UTC",
			"shop_id", shop.ID,
			"timezone", shop.Timezone,
		)
	}
	return loc, tz
}

// busyForStaff merges active bookings and manual blocks into per-staff busy
// intervals. Shop-wide blocks expand to every staff member in scope.
func (e *Engine) busyForStaff(ctx context.Context, shopID string, staffIDs []string, from, to time.Time, exclude string) ([]BusyInterval, error) {
	bookings, err := e.Bookings.ActiveServiceBookings(ctx, staffIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("load staff bookings: %w", err)
	}
	var busy []BusyInterval
	for i := range bookings {
		b := &bookings[i]
		if exclude != "" && b.ID == exclude {
			continue
		}
		busy = append(busy, BusyInterval{
			StaffID:  b.StaffID,
			Interval: Interval{Start: b.StartTime, End: b.EndTime()},
		})
	}

	blocks, err := e.Blocks.BlocksInRange(ctx, shopID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	inScope := make(map[string]bool, len(staffIDs))
	for _, id := range staffIDs {
		inScope[id] = true
	}
	for _, blk := range blocks {
		iv := Interval{Start: blk.StartTime, End: blk.EndTime}
		if blk.StaffID == "" {
			for _, id := range staffIDs {
				busy = append(busy, BusyInterval{StaffID: id, Interval: iv})
			}
			continue
		}
		if inScope[blk.StaffID] {
			busy = append(busy, BusyInterval{StaffID: blk.StaffID, Interval: iv})
		}
	}
	return busy, nil
}

func filterLinks(links []model.StaffLink, staffID string) []model.StaffLink {
	for _, l := range links {
		if l.StaffID == staffID {
			return []model.StaffLink{l}
		}
	}
	return nil
}
