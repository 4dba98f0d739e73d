package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/availability"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/outbox"
)

// Store is the persistence surface the booking workflow needs. The pgx
// implementation lives in the storage package; tests swap in fakes.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Booking(ctx context.Context, id string) (model.Booking, error)
}

// Tx is one write transaction. Every mutation and every commit-time re-check
// of busy state runs on the same Tx, so the availability decision and the
// write are atomic.
//
// InsertBooking, UpdateBookingSlot and UpdateBookingStaff must return an
// error wrapping ErrSlotTaken when the database rejects an overlapping
// service row.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	BookingForUpdate(ctx context.Context, id string) (model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	UpdateBookingSlot(ctx context.Context, id string, start time.Time) error
	UpdateBookingStaff(ctx context.Context, id, staffID string) error
	UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) error
	MarkCancelled(ctx context.Context, id string, by model.CancelActor, reason string, at time.Time) error

	// LockShop serializes concurrent deal reservations of one shop.
	LockShop(ctx context.Context, shopID string) error
	CountActiveDealBookings(ctx context.Context, shopID string, from, to time.Time, excludeID string) (int, error)
	// StaffBookingsForUpdate returns, row-locked, the active bookings of
	// one staff member overlapping [from, to).
	StaffBookingsForUpdate(ctx context.Context, staffID string, from, to time.Time, excludeID string) ([]model.Booking, error)
	BlocksInRange(ctx context.Context, shopID string, from, to time.Time) ([]model.ManualBlock, error)

	LockIdempotencyKey(ctx context.Context, customerID, key string) (IdempotencyRecord, error)
	SaveIdempotencyResult(ctx context.Context, customerID, key string, statusCode int, response []byte) error

	InsertEvent(ctx context.Context, evt outbox.Event) error
}

// IdempotencyRecord is the stored outcome of a keyed create. A zero
// StatusCode means the key is locked but no attempt has finished yet.
type IdempotencyRecord struct {
	CustomerID string
	Key        string
	StatusCode int
	Response   []byte
}

// Service runs the booking workflows: reserve, reschedule, reassign and the
// status transitions. All decisions about whether a slot is takable defer to
// the availability engine plus an in-transaction re-check.
type Service struct {
	store     Store
	engine    *availability.Engine
	catalog   availability.EligibilityProvider
	schedules availability.ScheduleProvider
	logger    *slog.Logger

	// Now is the clock for cancellation stamps; nil means time.Now.
	Now func() time.Time
}

func NewService(store Store, engine *availability.Engine, catalog availability.EligibilityProvider, schedules availability.ScheduleProvider, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		engine:    engine,
		catalog:   catalog,
		schedules: schedules,
		logger:    logger,
	}
}

func (s *Service) clock() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type CreateRequest struct {
	ServiceID  string
	DealID     string
	StaffID    string // optional; service bookings only
	CustomerID string
	Customer   string
	Phone      string
	Start      time.Time
	Note       string
}

func (r *CreateRequest) validate() error {
	if (r.ServiceID == "") == (r.DealID == "") {
		return fmt.Errorf("%w: exactly one of service_id and deal_id is required", ErrInvalidRequest)
	}
	if r.DealID != "" && r.StaffID != "" {
		return fmt.Errorf("%w: deal bookings take no staff member", ErrInvalidRequest)
	}
	if r.CustomerID == "" {
		return fmt.Errorf("%w: customer_id is required", ErrInvalidRequest)
	}
	if r.Customer == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidRequest)
	}
	if r.Start.IsZero() {
		return fmt.Errorf("%w: start_time is required", ErrInvalidRequest)
	}
	return nil
}

// Create reserves a slot in its own transaction. Callers that interleave
// idempotency handling drive CreateInTx directly and own the commit.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.Booking, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := s.CreateInTx(ctx, tx, req)
	if err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// CreateInTx validates the requested slot against a fresh availability
// calculation, re-derives the busy state inside tx and inserts the booking
// plus its outbox event. The booking lands as pending.
func (s *Service) CreateInTx(ctx context.Context, tx Tx, req CreateRequest) (model.Booking, error) {
	if err := req.validate(); err != nil {
		return model.Booking{}, err
	}
	if req.DealID != "" {
		return s.createDeal(ctx, tx, req)
	}
	return s.createService(ctx, tx, req)
}

func (s *Service) createService(ctx context.Context, tx Tx, req CreateRequest) (model.Booking, error) {
	svc, err := s.catalog.Service(ctx, req.ServiceID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("load service: %w", err)
	}
	shop, err := s.schedules.Shop(ctx, svc.ShopID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("load shop: %w", err)
	}
	loc, _ := availability.Location(shop)
	date := req.Start.In(loc).Format("2006-01-02")

	day, err := s.engine.ServiceSlots(ctx, availability.ServiceQuery{ServiceID: svc.ID, Date: date})
	if err != nil {
		return model.Booking{}, err
	}
	if day.Closed {
		return model.Booking{}, &availability.ShopClosedError{ShopID: svc.ShopID, Date: date, Holiday: day.Holiday}
	}
	if day.Reason == availability.ReasonNoEligibleStaff {
		return model.Booking{}, &availability.NoEligibleStaffError{ServiceID: svc.ID}
	}

	slot, ok := findStaffSlot(day, req.Start)
	if !ok {
		return model.Booking{}, &availability.SlotUnavailableError{
			Start:        req.Start,
			Alternatives: serviceAlternatives(day, req.StaffID, req.Start),
		}
	}

	staffID := req.StaffID
	if staffID == "" {
		staffID, err = s.pickStaff(ctx, svc.ID, slot)
		if err != nil {
			return model.Booking{}, err
		}
	} else if !containsString(slot.FreeStaffIDs, staffID) {
		links, err := s.catalog.EligibleStaff(ctx, svc.ID)
		if err != nil {
			return model.Booking{}, fmt.Errorf("load eligible staff: %w", err)
		}
		if !linkedStaff(links, staffID) {
			return model.Booking{}, &IneligibleStaffError{StaffID: staffID, ServiceID: svc.ID}
		}
		return model.Booking{}, &availability.SlotUnavailableError{
			Start:        req.Start,
			Alternatives: serviceAlternatives(day, staffID, req.Start),
		}
	}

	b := model.Booking{
		ID:          uuid.NewString(),
		ShopID:      svc.ShopID,
		Kind:        model.KindService,
		ServiceID:   svc.ID,
		StaffID:     staffID,
		CustomerID:  req.CustomerID,
		Customer:    req.Customer,
		Phone:       req.Phone,
		StartTime:   req.Start,
		DurationMin: svc.DurationMin,
		PriceCents:  svc.PriceCents,
		Status:      model.StatusPending,
		Note:        req.Note,
	}

	err = s.recheckStaffSlot(ctx, tx, &b, "")
	if err == nil {
		err = tx.InsertBooking(ctx, &b)
	}
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return model.Booking{}, s.staleServiceSlot(ctx, svc.ID, date, req.StaffID, req.Start)
		}
		return model.Booking{}, err
	}

	if err := s.emitLifecycle(ctx, tx, EventCreated, &b, nil); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (s *Service) createDeal(ctx context.Context, tx Tx, req CreateRequest) (model.Booking, error) {
	deal, err := s.catalog.Deal(ctx, req.DealID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("load deal: %w", err)
	}
	shop, err := s.schedules.Shop(ctx, deal.ShopID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("load shop: %w", err)
	}
	loc, _ := availability.Location(shop)
	date := req.Start.In(loc).Format("2006-01-02")

	day, err := s.engine.DealSlots(ctx, availability.DealQuery{DealID: deal.ID, Date: date})
	if err != nil {
		return model.Booking{}, err
	}
	if day.Closed {
		return model.Booking{}, &availability.ShopClosedError{ShopID: deal.ShopID, Date: date, Holiday: day.Holiday}
	}

	slot, ok := findCapacitySlot(day, req.Start)
	if !ok {
		return model.Booking{}, &availability.SlotUnavailableError{
			Start:        req.Start,
			Alternatives: dealAlternatives(day, req.Start),
		}
	}
	if slot.SlotsLeft <= 0 {
		return model.Booking{}, &availability.CapacityExceededError{
			Start:        req.Start,
			Alternatives: dealAlternatives(day, req.Start),
		}
	}

	b := model.Booking{
		ID:          uuid.NewString(),
		ShopID:      deal.ShopID,
		Kind:        model.KindDeal,
		DealID:      deal.ID,
		CustomerID:  req.CustomerID,
		Customer:    req.Customer,
		Phone:       req.Phone,
		StartTime:   req.Start,
		DurationMin: deal.DurationMin,
		PriceCents:  deal.PriceCents,
		Status:      model.StatusPending,
		Note:        req.Note,
	}

	// capacity cannot be guarded by a row constraint, so serialize deal
	// reservations per shop and recount inside the transaction
	if err := tx.LockShop(ctx, deal.ShopID); err != nil {
		return model.Booking{}, fmt.Errorf("lock shop: %w", err)
	}
	n, err := tx.CountActiveDealBookings(ctx, deal.ShopID, b.StartTime, b.EndTime(), "")
	if err != nil {
		return model.Booking{}, fmt.Errorf("recount deal bookings: %w", err)
	}
	if n >= day.Capacity {
		return model.Booking{}, &StaleSlotError{Start: req.Start, Alternatives: dealAlternatives(day, req.Start)}
	}
	if err := tx.InsertBooking(ctx, &b); err != nil {
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	if err := s.emitLifecycle(ctx, tx, EventCreated, &b, nil); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// Reschedule moves an active booking to a new start, re-running the full
// slot validation with the booking itself excluded from the busy state. A
// service booking keeps its staff member.
func (s *Service) Reschedule(ctx context.Context, id string, newStart time.Time) (model.Booking, error) {
	if newStart.IsZero() {
		return model.Booking{}, fmt.Errorf("%w: new start_time is required", ErrInvalidRequest)
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
	if !b.Status.Active() {
		return model.Booking{}, &NotActiveError{BookingID: id, Status: b.Status}
	}

	shop, err := s.schedules.Shop(ctx, b.ShopID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("load shop: %w", err)
	}
	loc, _ := availability.Location(shop)
	date := newStart.In(loc).Format("2006-01-02")
	oldStart := b.StartTime
	b.StartTime = newStart

	switch b.Kind {
	case model.KindDeal:
		day, err := s.engine.DealSlots(ctx, availability.DealQuery{
			DealID: b.DealID, Date: date, ExcludeBookingID: id,
		})
		if err != nil {
			return model.Booking{}, err
		}
		if day.Closed {
			return model.Booking{}, &availability.ShopClosedError{ShopID: b.ShopID, Date: date, Holiday: day.Holiday}
		}
		slot, ok := findCapacitySlot(day, newStart)
		if !ok {
			return model.Booking{}, &availability.SlotUnavailableError{Start: newStart, Alternatives: dealAlternatives(day, newStart)}
		}
		if slot.SlotsLeft <= 0 {
			return model.Booking{}, &availability.CapacityExceededError{Start: newStart, Alternatives: dealAlternatives(day, newStart)}
		}
		if err := tx.LockShop(ctx, b.ShopID); err != nil {
			return model.Booking{}, fmt.Errorf("lock shop: %w", err)
		}
		n, err := tx.CountActiveDealBookings(ctx, b.ShopID, b.StartTime, b.EndTime(), id)
		if err != nil {
			return model.Booking{}, fmt.Errorf("recount deal bookings: %w", err)
		}
		if n >= day.Capacity {
			return model.Booking{}, &StaleSlotError{Start: newStart, Alternatives: dealAlternatives(day, newStart)}
		}
		if err := tx.UpdateBookingSlot(ctx, id, newStart); err != nil {
			return model.Booking{}, fmt.Errorf("move booking: %w", err)
		}

	default:
		day, err := s.engine.ServiceSlots(ctx, availability.ServiceQuery{
			ServiceID: b.ServiceID, Date: date, StaffID: b.StaffID, ExcludeBookingID: id,
		})
		if err != nil {
			return model.Booking{}, err
		}
		if day.Closed {
			return model.Booking{}, &availability.ShopClosedError{ShopID: b.ShopID, Date: date, Holiday: day.Holiday}
		}
		if day.Reason == availability.ReasonNoEligibleStaff {
			return model.Booking{}, &IneligibleStaffError{StaffID: b.StaffID, ServiceID: b.ServiceID}
		}
		if _, ok := findStaffSlot(day, newStart); !ok {
			return model.Booking{}, &availability.SlotUnavailableError{
				Start:        newStart,
				Alternatives: serviceAlternatives(day, b.StaffID, newStart),
			}
		}
		err = s.recheckStaffSlot(ctx, tx, &b, id)
		if err == nil {
			err = tx.UpdateBookingSlot(ctx, id, newStart)
		}
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return model.Booking{}, s.staleServiceSlot(ctx, b.ServiceID, date, b.StaffID, newStart)
			}
			return model.Booking{}, err
		}
	}

	err = s.emitLifecycle(ctx, tx, EventRescheduled, &b, func(p *lifecyclePayload) {
		p.OldStart = &oldStart
	})
	if err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	b.UpdatedAt = s.clock()
	return b, nil
}

// ReassignStaff hands an active service booking to another eligible staff
// member after checking the new staff member is free for the whole interval.
func (s *Service) ReassignStaff(ctx context.Context, id, staffID string) (model.Booking, error) {
	if staffID == "" {
		return model.Booking{}, fmt.Errorf("%w: staff_id is required", ErrInvalidRequest)
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
	if b.Kind != model.KindService {
		return model.Booking{}, fmt.Errorf("%w: deal bookings have no staff member", ErrInvalidRequest)
	}
	if !b.Status.Active() {
		return model.Booking{}, &NotActiveError{BookingID: id, Status: b.Status}
	}
	if b.StaffID == staffID {
		return model.Booking{}, ErrSameStaff
	}

	links, err := s.catalog.EligibleStaff(ctx, b.ServiceID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("load eligible staff: %w", err)
	}
	if !linkedStaff(links, staffID) {
		return model.Booking{}, &IneligibleStaffError{StaffID: staffID, ServiceID: b.ServiceID}
	}

	clashes, err := tx.StaffBookingsForUpdate(ctx, staffID, b.StartTime, b.EndTime(), id)
	if err != nil {
		return model.Booking{}, fmt.Errorf("check staff bookings: %w", err)
	}
	if len(clashes) > 0 {
		first := clashes[0]
		for _, c := range clashes[1:] {
			if c.StartTime.Before(first.StartTime) {
				first = c
			}
		}
		return model.Booking{}, &ReassignmentConflictError{
			StaffID:              staffID,
			ConflictingBookingID: first.ID,
			Start:                first.StartTime,
			End:                  first.EndTime(),
		}
	}

	oldStaff := b.StaffID
	if err := tx.UpdateBookingStaff(ctx, id, staffID); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return model.Booking{}, &ReassignmentConflictError{StaffID: staffID, Start: b.StartTime, End: b.EndTime()}
		}
		return model.Booking{}, fmt.Errorf("reassign booking: %w", err)
	}
	b.StaffID = staffID

	err = s.emitLifecycle(ctx, tx, EventStaffReassigned, &b, func(p *lifecyclePayload) {
		p.OldStaffID = oldStaff
	})
	if err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	b.UpdatedAt = s.clock()
	return b, nil
}

// recheckStaffSlot re-derives the staff member's busy state inside the write
// transaction. The availability calculation feeding the decision ran outside
// it, so a clash committed in between surfaces here or, failing that, at the
// database exclusion constraint.
func (s *Service) recheckStaffSlot(ctx context.Context, tx Tx, b *model.Booking, excludeID string) error {
	window := availability.Interval{Start: b.StartTime, End: b.EndTime()}

	clashes, err := tx.StaffBookingsForUpdate(ctx, b.StaffID, window.Start, window.End, excludeID)
	if err != nil {
		return fmt.Errorf("recheck staff bookings: %w", err)
	}
	if len(clashes) > 0 {
		return fmt.Errorf("staff %s busy: %w", b.StaffID, ErrSlotTaken)
	}

	blocks, err := tx.BlocksInRange(ctx, b.ShopID, window.Start, window.End)
	if err != nil {
		return fmt.Errorf("recheck blocks: %w", err)
	}
	for _, blk := range blocks {
		if blk.StaffID != "" && blk.StaffID != b.StaffID {
			continue
		}
		if window.Overlaps(availability.Interval{Start: blk.StartTime, End: blk.EndTime}) {
			return fmt.Errorf("interval blocked: %w", ErrSlotTaken)
		}
	}
	return nil
}

// staleServiceSlot builds the stale-slot rejection with alternatives from a
// fresh calculation. The fresh read is advisory, so its errors only log.
func (s *Service) staleServiceSlot(ctx context.Context, serviceID, date, staffID string, start time.Time) error {
	var alts []availability.Interval
	day, err := s.engine.ServiceSlots(ctx, availability.ServiceQuery{ServiceID: serviceID, Date: date})
	if err != nil {
		s.logger.Warn("alternative slots lookup failed", "service_id", serviceID, "err", err)
	} else {
		alts = serviceAlternatives(day, staffID, start)
	}
	return &StaleSlotError{Start: start, Alternatives: alts}
}

// pickStaff auto-assigns a staff member for a slot: a free primary wins,
// otherwise the first free eligible one in mapping order.
func (s *Service) pickStaff(ctx context.Context, serviceID string, slot availability.StaffSlot) (string, error) {
	links, err := s.catalog.EligibleStaff(ctx, serviceID)
	if err != nil {
		return "", fmt.Errorf("load eligible staff: %w", err)
	}
	free := make(map[string]bool, len(slot.FreeStaffIDs))
	for _, id := range slot.FreeStaffIDs {
		free[id] = true
	}
	for _, l := range links {
		if l.IsPrimary && free[l.StaffID] {
			return l.StaffID, nil
		}
	}
	for _, l := range links {
		if free[l.StaffID] {
			return l.StaffID, nil
		}
	}
	// the slot listed free staff from the same mapping, so this is a bug
	return "", fmt.Errorf("no assignable staff for slot at %s", slot.Start.Format(time.RFC3339))
}

// serviceAlternatives picks up to availability.MaxAlternatives other free
// slots, honoring the staff filter when the caller asked for someone
// specific.
func serviceAlternatives(day availability.ServiceDay, staffID string, requested time.Time) []availability.Interval {
	var alts []availability.Interval
	for _, s := range day.Slots {
		if s.Start.Equal(requested) {
			continue
		}
		if staffID != "" && !containsString(s.FreeStaffIDs, staffID) {
			continue
		}
		alts = append(alts, s.Interval)
		if len(alts) == availability.MaxAlternatives {
			break
		}
	}
	return alts
}

func dealAlternatives(day availability.DealDay, requested time.Time) []availability.Interval {
	var alts []availability.Interval
	for _, s := range day.Slots {
		if s.SlotsLeft <= 0 || s.Start.Equal(requested) {
			continue
		}
		alts = append(alts, s.Interval)
		if len(alts) == availability.MaxAlternatives {
			break
		}
	}
	return alts
}

func findStaffSlot(day availability.ServiceDay, start time.Time) (availability.StaffSlot, bool) {
	for _, s := range day.Slots {
		if s.Start.Equal(start) {
			return s, true
		}
	}
	return availability.StaffSlot{}, false
}

func findCapacitySlot(day availability.DealDay, start time.Time) (availability.CapacitySlot, bool) {
	for _, s := range day.Slots {
		if s.Start.Equal(start) {
			return s, true
		}
	}
	return availability.CapacitySlot{}, false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func linkedStaff(links []model.StaffLink, staffID string) bool {
	for _, l := range links {
		if l.StaffID == staffID {
			return true
		}
	}
	return false
}
