package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/availability"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
)

// ErrInvalidRequest wraps request-shape problems a caller can fix.
var ErrInvalidRequest = errors.New("invalid booking request")

// ErrSlotTaken must be returned (wrapped) by Tx.InsertBooking and the slot
// update methods when the database exclusion constraint rejects the row.
var ErrSlotTaken = errors.New("slot already taken")

// ErrSameStaff rejects reassigning a booking to the staff member who already
// holds it.
var ErrSameStaff = errors.New("booking is already assigned to this staff member")

// NotActiveError rejects rescheduling or reassigning a booking that is no
// longer pending or confirmed.
type NotActiveError struct {
	BookingID string
	Status    model.BookingStatus
}

func (e *NotActiveError) Error() string {
	return fmt.Sprintf("booking %s is %s and can no longer be changed", e.BookingID, e.Status)
}

// InvalidTransitionError rejects a status change the state machine forbids.
type InvalidTransitionError struct {
	BookingID string
	From, To  model.BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("booking %s cannot go from %s to %s", e.BookingID, e.From, e.To)
}

// StaleSlotError reports that a slot which looked free was taken by the time
// the write transaction re-checked it. Alternatives hold up to
// availability.MaxAlternatives slots that were still free on a fresh
// calculation.
type StaleSlotError struct {
	Start        time.Time
	Alternatives []availability.Interval
}

func (e *StaleSlotError) Error() string {
	return fmt.Sprintf("slot at %s was taken while booking", e.Start.Format(time.RFC3339))
}

// ReassignmentConflictError rejects moving a booking onto a staff member who
// already has a clashing appointment. The earliest clash is reported.
type ReassignmentConflictError struct {
	StaffID              string
	ConflictingBookingID string
	Start                time.Time
	End                  time.Time
}

func (e *ReassignmentConflictError) Error() string {
	return fmt.Sprintf("staff %s already has a booking from %s to %s",
		e.StaffID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// IneligibleStaffError rejects assigning a service booking to a staff member
// the service is not mapped to.
type IneligibleStaffError struct {
	StaffID   string
	ServiceID string
}

func (e *IneligibleStaffError) Error() string {
	return fmt.Sprintf("staff %s is not eligible for service %s", e.StaffID, e.ServiceID)
}
