package availability

import (
	"fmt"
	"time"
)

// PastDateError rejects availability queries and booking attempts for a
// calendar day that already ended in the shop's timezone.
type PastDateError struct {
	Date string
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf("date %s is in the past", e.Date)
}

// ShopClosedError rejects a booking attempt on a day the shop does not open.
type ShopClosedError struct {
	ShopID  string
	Date    string
	Holiday string // holiday name when the closure is a holiday
}

func (e *ShopClosedError) Error() string {
	if e.Holiday != "" {
		return fmt.Sprintf("shop is closed on %s (%s)", e.Date, e.Holiday)
	}
	return fmt.Sprintf("shop is closed on %s", e.Date)
}

// NoEligibleStaffError rejects a booking attempt for a service that has no
// staff mapped to it. Availability reads report this case as an empty slot
// list instead.
type NoEligibleStaffError struct {
	ServiceID string
}

func (e *NoEligibleStaffError) Error() string {
	return fmt.Sprintf("service %s has no eligible staff", e.ServiceID)
}

// SlotUnavailableError rejects a requested start that is not a free slot on
// the day's grid, carrying up to MaxAlternatives other slots that are free.
type SlotUnavailableError struct {
	Start        time.Time
	Alternatives []Interval
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("slot at %s is not available", e.Start.Format(time.RFC3339))
}

// CapacityExceededError rejects a deal booking whose slot has no capacity
// left, carrying up to MaxAlternatives slots that still do.
type CapacityExceededError struct {
	Start        time.Time
	Alternatives []Interval
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("no deal capacity left at %s", e.Start.Format(time.RFC3339))
}

// MaxAlternatives caps the alternative slots attached to a rejection.
const MaxAlternatives = 5
