package model

import "time"

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no_show"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Active statuses are the only ones that occupy a busy interval or a
// capacity unit.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s BookingStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransitionTo encodes the full status state machine:
// pending -> confirmed -> completed, and pending|confirmed -> cancelled|no_show.
// Terminal states accept nothing.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled || next == StatusNoShow
	case StatusConfirmed:
		return next == StatusCompleted || next == StatusCancelled || next == StatusNoShow
	default:
		return false
	}
}

type CancelActor string

const (
	CancelledByCustomer CancelActor = "customer"
	CancelledByStaff    CancelActor = "staff"
	CancelledByOwner    CancelActor = "owner"
	CancelledBySystem   CancelActor = "system"
)

func (a CancelActor) Valid() bool {
	switch a {
	case CancelledByCustomer, CancelledByStaff, CancelledByOwner, CancelledBySystem:
		return true
	}
	return false
}

// BookingKind tags the variant: a booking is for a staff-performed service or
// for a capacity-limited deal, never both.
type BookingKind string

const (
	KindService BookingKind = "service"
	KindDeal    BookingKind = "deal"
)

type Booking struct {
	ID          string
	ShopID      string
	Kind        BookingKind
	ServiceID   string // set iff Kind == KindService
	DealID      string // set iff Kind == KindDeal
	StaffID     string // service bookings only
	CustomerID  string
	Customer    string // display name
	Phone       string
	StartTime   time.Time
	DurationMin int
	PriceCents  int64
	Status      BookingStatus
	Note        string

	CancelledAt  *time.Time
	CancelledBy  CancelActor
	CancelReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *Booking) EndTime() time.Time {
	return b.StartTime.Add(time.Duration(b.DurationMin) * time.Minute)
}

func (b *Booking) IsActive() bool {
	return b.Status.Active()
}

// ItemID returns the booked service or deal id according to the kind tag.
func (b *Booking) ItemID() string {
	if b.Kind == KindDeal {
		return b.DealID
	}
	return b.ServiceID
}
