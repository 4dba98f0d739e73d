package model

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from BookingStatus
		to   BookingStatus
		want bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusNoShow, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusConfirmed, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusNoShow, StatusCompleted, false},
		{StatusNoShow, StatusCancelled, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTerminalStatusesAcceptNothing(t *testing.T) {
	all := []BookingStatus{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}
	for _, from := range []BookingStatus{StatusCompleted, StatusCancelled, StatusNoShow} {
		for _, to := range all {
			if from.CanTransitionTo(to) {
				t.Errorf("terminal %s must not transition to %s", from, to)
			}
		}
	}
}

func TestStatusActive(t *testing.T) {
	if !StatusPending.Active() || !StatusConfirmed.Active() {
		t.Fatal("pending and confirmed must count as active")
	}
	for _, s := range []BookingStatus{StatusCompleted, StatusCancelled, StatusNoShow} {
		if s.Active() {
			t.Errorf("%s must not count as active", s)
		}
	}
}

func TestCancelActorValid(t *testing.T) {
	for _, a := range []CancelActor{CancelledByCustomer, CancelledByStaff, CancelledByOwner, CancelledBySystem} {
		if !a.Valid() {
			t.Errorf("%s should be a valid actor", a)
		}
	}
	if CancelActor("manager").Valid() {
		t.Error("unknown actor accepted")
	}
}

func TestBookingEndTime(t *testing.T) {
	b := Booking{
		StartTime:   time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		DurationMin: 45,
	}
	want := time.Date(2026, 3, 10, 14, 45, 0, 0, time.UTC)
	if !b.EndTime().Equal(want) {
		t.Fatalf("end time = %v, want %v", b.EndTime(), want)
	}
}

func TestItemIDFollowsKind(t *testing.T) {
	b := Booking{Kind: KindService, ServiceID: "svc-1", DealID: ""}
	if b.ItemID() != "svc-1" {
		t.Fatalf("service booking item = %q", b.ItemID())
	}
	b = Booking{Kind: KindDeal, DealID: "deal-1"}
	if b.ItemID() != "deal-1" {
		t.Fatalf("deal booking item = %q", b.ItemID())
	}
}
