package booking

import (
	"context"
	"fmt"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
)

// Confirm moves a pending booking to confirmed.
func (s *Service) Confirm(ctx context.Context, id string) (model.Booking, error) {
	return s.transition(ctx, id, model.StatusConfirmed, EventConfirmed, nil)
}

// Complete marks a confirmed booking as done. Completed bookings count
// toward revenue, so a booking never completes straight from pending.
func (s *Service) Complete(ctx context.Context, id string) (model.Booking, error) {
	return s.transition(ctx, id, model.StatusCompleted, EventCompleted, nil)
}

// NoShow marks an active booking as missed.
func (s *Service) NoShow(ctx context.Context, id string) (model.Booking, error) {
	return s.transition(ctx, id, model.StatusNoShow, EventNoShow, nil)
}

// Cancel releases an active booking's interval, recording who cancelled and
// why. Terminal bookings stay as they are.
func (s *Service) Cancel(ctx context.Context, id string, by model.CancelActor, reason string) (model.Booking, error) {
	if !by.Valid() {
		return model.Booking{}, fmt.Errorf("%w: unknown cancel actor %q", ErrInvalidRequest, by)
	}
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := tx.BookingForUpdate(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if !b.Status.CanTransitionTo(model.StatusCancelled) {
		return model.Booking{}, &InvalidTransitionError{BookingID: id, From: b.Status, To: model.StatusCancelled}
	}

	at := s.clock()
	if err := tx.MarkCancelled(ctx, id, by, reason, at); err != nil {
		return model.Booking{}, fmt.Errorf("cancel booking: %w", err)
	}
	b.Status = model.StatusCancelled
	b.CancelledAt = &at
	b.CancelledBy = by
	b.CancelReason = reason

	err = s.emitLifecycle(ctx, tx, EventCancelled, &b, func(p *lifecyclePayload) {
		p.CancelledBy = string(by)
		p.CancelNote = reason
	})
	if err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// ConfirmFromPayment confirms a pending booking when its payment settles.
// Payment processors redeliver, so an already confirmed booking is a no-op
// instead of an error.
func (s *Service) ConfirmFromPayment(ctx context.Context, id, paymentID string) (model.Booking, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := tx.BookingForUpdate(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status == model.StatusConfirmed {
		if err := tx.Commit(ctx); err != nil {
			return model.Booking{}, err
		}
		return b, nil
	}
	if !b.Status.CanTransitionTo(model.StatusConfirmed) {
		return model.Booking{}, &InvalidTransitionError{BookingID: id, From: b.Status, To: model.StatusConfirmed}
	}

	if err := tx.UpdateBookingStatus(ctx, id, model.StatusConfirmed); err != nil {
		return model.Booking{}, fmt.Errorf("confirm booking: %w", err)
	}
	b.Status = model.StatusConfirmed

	err = s.emitLifecycle(ctx, tx, EventConfirmed, &b, func(p *lifecyclePayload) {
		p.PaymentID = paymentID
	})
	if err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (s *Service) transition(ctx context.Context, id string, next model.BookingStatus, eventType string, mutate func(*lifecyclePayload)) (model.Booking, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := tx.BookingForUpdate(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if !b.Status.CanTransitionTo(next) {
		return model.Booking{}, &InvalidTransitionError{BookingID: id, From: b.Status, To: next}
	}

	if err := tx.UpdateBookingStatus(ctx, id, next); err != nil {
		return model.Booking{}, fmt.Errorf("update status: %w", err)
	}
	b.Status = next

	if err := s.emitLifecycle(ctx, tx, eventType, &b, mutate); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}
