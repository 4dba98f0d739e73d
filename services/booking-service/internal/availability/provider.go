package availability

import (
	"context"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
)

// ScheduleProvider serves the shop calendar: the shop record, the weekly
// opening hours and the holiday list.
type ScheduleProvider interface {
	Shop(ctx context.Context, shopID string) (model.Shop, error)
	// DaySchedule returns the opening window for a weekday (0=Monday) and
	// whether one is configured at all.
	DaySchedule(ctx context.Context, shopID string, weekday int) (model.DaySchedule, bool, error)
	// Holiday reports whether the local calendar day is a holiday.
	Holiday(ctx context.Context, shopID string, date time.Time) (model.Holiday, bool, error)
}

// EligibilityProvider serves bookable items and the explicit service-to-staff
// mapping. Staff eligibility is never inferred: a staff member can perform a
// service only when a link row says so.
type EligibilityProvider interface {
	Service(ctx context.Context, serviceID string) (model.Service, error)
	Deal(ctx context.Context, dealID string) (model.Deal, error)
	EligibleStaff(ctx context.Context, serviceID string) ([]model.StaffLink, error)
}

// BookingSource serves bookings that occupy time. Implementations must
// return only pending and confirmed rows; cancelled, completed and no-show
// bookings hold nothing.
type BookingSource interface {
	ActiveServiceBookings(ctx context.Context, staffIDs []string, from, to time.Time) ([]model.Booking, error)
	ActiveDealBookings(ctx context.Context, shopID string, from, to time.Time) ([]model.Booking, error)
}

// BlockSource serves manual blocks overlapping a window.
type BlockSource interface {
	BlocksInRange(ctx context.Context, shopID string, from, to time.Time) ([]model.ManualBlock, error)
}

// weekdayIndex maps time.Weekday (Sunday=0) onto the schedule convention
// (0=Monday .. 6=Sunday). This is the only place the two conventions meet.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Location resolves a shop's IANA timezone. A name that does not load, the
// empty string included, falls back to UTC, and the returned name reports
// the zone actually in effect.
func Location(shop model.Shop) (*time.Location, string) {
	if shop.Timezone == "" {
		return time.UTC, "UTC"
	}
	loc, err := time.LoadLocation(shop.Timezone)
	if err != nil {
		return time.UTC, "UTC"
	}
	return loc, shop.Timezone
}
