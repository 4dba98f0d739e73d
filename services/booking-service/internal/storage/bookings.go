package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-tanzil-ahmed/salonslot/libs/db"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/booking"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/outbox"
)

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsConflict reports whether err is the exclusion-constraint violation raised
// when two bookings for the same staff member overlap.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23P01"
	}
	return false
}

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// Bookings is the pgx-backed store for booking rows. It satisfies
// booking.Store for the write workflows and availability.BookingSource for
// the slot calculators.
type Bookings struct {
	pool   *db.Pool
	events *outbox.Repository
}

func NewBookings(pool *db.Pool, events *outbox.Repository) *Bookings {
	return &Bookings{pool: pool, events: events}
}

func (r *Bookings) Begin(ctx context.Context) (booking.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, events: r.events}, nil
}

const bookingColumns = `
	id, shop_id, kind,
	COALESCE(service_id::text, ''), COALESCE(deal_id::text, ''), COALESCE(staff_id::text, ''),
	customer_id, customer_name, COALESCE(customer_phone, ''),
	start_time, end_time, price_cents, status, COALESCE(note, ''),
	cancelled_at, COALESCE(cancelled_by, ''), COALESCE(cancellation_reason, ''),
	created_at, updated_at`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var (
		b            model.Booking
		kind, status string
		end          time.Time
		cancelledBy  string
	)
	err := row.Scan(
		&b.ID, &b.ShopID, &kind,
		&b.ServiceID, &b.DealID, &b.StaffID,
		&b.CustomerID, &b.Customer, &b.Phone,
		&b.StartTime, &end, &b.PriceCents, &status, &b.Note,
		&b.CancelledAt, &cancelledBy, &b.CancelReason,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.Kind = model.BookingKind(kind)
	b.Status = model.BookingStatus(status)
	b.CancelledBy = model.CancelActor(cancelledBy)
	b.DurationMin = int(end.Sub(b.StartTime) / time.Minute)
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Bookings) Booking(ctx context.Context, id string) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

// ActiveServiceBookings returns the pending and confirmed service bookings of
// the given staff members that overlap [from, to).
func (r *Bookings) ActiveServiceBookings(ctx context.Context, staffIDs []string, from, to time.Time) ([]model.Booking, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE staff_id = ANY($1)
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, staffIDs, from, to)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// ActiveDealBookings returns the pending and confirmed deal bookings of one
// shop that overlap [from, to).
func (r *Bookings) ActiveDealBookings(ctx context.Context, shopID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE shop_id = $1
		  AND kind = 'deal'
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, shopID, from, to)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// ListFilter narrows a shop booking listing. Zero values mean "no filter".
type ListFilter struct {
	Status     string
	StaffID    string
	CustomerID string
	From       time.Time
	To         time.Time
	Limit      int
}

func (r *Bookings) ListByShop(ctx context.Context, shopID string, f ListFilter) ([]model.Booking, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	var from, to any
	if !f.From.IsZero() {
		from = f.From
	}
	if !f.To.IsZero() {
		to = f.To
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE shop_id = $1
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR staff_id::text = $3)
		  AND ($4 = '' OR customer_id = $4)
		  AND ($5::timestamptz IS NULL OR start_time >= $5)
		  AND ($6::timestamptz IS NULL OR start_time < $6)
		ORDER BY start_time DESC
		LIMIT $7
	`, shopID, f.Status, f.StaffID, f.CustomerID, from, to, limit)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *Bookings) CustomerBookings(ctx context.Context, customerID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE customer_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// Stats summarizes a shop's bookings by status. Revenue counts completed
// bookings only.
type Stats struct {
	Total        int64
	Pending      int64
	Confirmed    int64
	Completed    int64
	Cancelled    int64
	NoShow       int64
	RevenueCents int64
}

func (r *Bookings) Stats(ctx context.Context, shopID string, from, to time.Time) (Stats, error) {
	var windowFrom, windowTo any
	if !from.IsZero() {
		windowFrom = from
	}
	if !to.IsZero() {
		windowTo = to
	}
	var st Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'confirmed'),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status = 'cancelled'),
			count(*) FILTER (WHERE status = 'no_show'),
			COALESCE(SUM(price_cents) FILTER (WHERE status = 'completed'), 0)
		FROM bookings
		WHERE shop_id = $1
		  AND ($2::timestamptz IS NULL OR start_time >= $2)
		  AND ($3::timestamptz IS NULL OR start_time < $3)
	`, shopID, windowFrom, windowTo).Scan(
		&st.Total, &st.Pending, &st.Confirmed, &st.Completed, &st.Cancelled, &st.NoShow, &st.RevenueCents,
	)
	return st, err
}

// ExpiredPendingForUpdate locks and returns pending bookings created before
// cutoff. SKIP LOCKED lets several sweeper replicas drain the backlog without
// stepping on each other.
func (r *Bookings) ExpiredPendingForUpdate(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]model.Booking, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = 'pending'
		  AND created_at < $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// SystemCancel cancels the given bookings on behalf of the system, in the
// caller's transaction.
func (r *Bookings) SystemCancel(ctx context.Context, tx pgx.Tx, ids []string, reason string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
		    cancelled_at = $2,
		    cancelled_by = 'system',
		    cancellation_reason = $3,
		    updated_at = now()
		WHERE id = ANY($1)
	`, ids, at, reason)
	return err
}

// Tx implements booking.Tx on a single pgx transaction.
type Tx struct {
	tx     pgx.Tx
	events *outbox.Repository
}

func (t *Tx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (t *Tx) BookingForUpdate(ctx context.Context, id string) (model.Booking, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanBooking(row)
}

func (t *Tx) InsertBooking(ctx context.Context, b *model.Booking) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO bookings
			(id, shop_id, kind, service_id, deal_id, staff_id,
			 customer_id, customer_name, customer_phone,
			 start_time, end_time, price_cents, status, note)
		VALUES
			($1, $2, $3, NULLIF($4, '')::uuid, NULLIF($5, '')::uuid, NULLIF($6, '')::uuid,
			 $7, $8, NULLIF($9, ''),
			 $10, $11, $12, $13, NULLIF($14, ''))
		RETURNING created_at, updated_at
	`, b.ID, b.ShopID, string(b.Kind), b.ServiceID, b.DealID, b.StaffID,
		b.CustomerID, b.Customer, b.Phone,
		b.StartTime, b.EndTime(), b.PriceCents, string(b.Status), b.Note,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if IsConflict(err) {
		return booking.ErrSlotTaken
	}
	return err
}

func (t *Tx) UpdateBookingSlot(ctx context.Context, id string, start time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET start_time = $2,
		    end_time = $2 + (end_time - start_time),
		    updated_at = now()
		WHERE id = $1
	`, id, start)
	if IsConflict(err) {
		return booking.ErrSlotTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (t *Tx) UpdateBookingStaff(ctx context.Context, id, staffID string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET staff_id = $2, updated_at = now()
		WHERE id = $1
	`, id, staffID)
	if IsConflict(err) {
		return booking.ErrSlotTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (t *Tx) UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (t *Tx) MarkCancelled(ctx context.Context, id string, by model.CancelActor, reason string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
		    cancelled_at = $2,
		    cancelled_by = $3,
		    cancellation_reason = NULLIF($4, ''),
		    updated_at = now()
		WHERE id = $1
	`, id, at, string(by), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (t *Tx) LockShop(ctx context.Context, shopID string) error {
	var id string
	return t.tx.QueryRow(ctx, `
		SELECT id FROM shops WHERE id = $1 FOR UPDATE
	`, shopID).Scan(&id)
}

func (t *Tx) CountActiveDealBookings(ctx context.Context, shopID string, from, to time.Time, excludeID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*)
		FROM bookings
		WHERE shop_id = $1
		  AND kind = 'deal'
		  AND status IN ('pending', 'confirmed')
		  AND ($4 = '' OR id::text <> $4)
		  AND start_time < $3
		  AND end_time > $2
	`, shopID, from, to, excludeID).Scan(&n)
	return n, err
}

func (t *Tx) StaffBookingsForUpdate(ctx context.Context, staffID string, from, to time.Time, excludeID string) ([]model.Booking, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE staff_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND ($4 = '' OR id::text <> $4)
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
		FOR UPDATE
	`, staffID, from, to, excludeID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (t *Tx) BlocksInRange(ctx context.Context, shopID string, from, to time.Time) ([]model.ManualBlock, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, shop_id, COALESCE(staff_id::text, ''), start_time, end_time, COALESCE(reason, ''), created_at
		FROM manual_blocks
		WHERE shop_id = $1
		  AND start_time < $3
		  AND end_time > $2
	`, shopID, from, to)
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}

// LockIdempotencyKey claims (customer, key) for the current transaction. The
// insert-then-reselect dance means exactly one concurrent request holds the
// row lock; the loser blocks here until the winner commits its outcome.
func (t *Tx) LockIdempotencyKey(ctx context.Context, customerID, key string) (booking.IdempotencyRecord, error) {
	rec, err := t.selectIdempotencyForUpdate(ctx, customerID, key)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return booking.IdempotencyRecord{}, err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (customer_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (customer_id, idempotency_key) DO NOTHING
	`, customerID, key)
	if err != nil {
		return booking.IdempotencyRecord{}, err
	}
	return t.selectIdempotencyForUpdate(ctx, customerID, key)
}

func (t *Tx) selectIdempotencyForUpdate(ctx context.Context, customerID, key string) (booking.IdempotencyRecord, error) {
	var rec booking.IdempotencyRecord
	err := t.tx.QueryRow(ctx, `
		SELECT customer_id, idempotency_key, COALESCE(status_code, 0), response_payload
		FROM booking_idempotency_keys
		WHERE customer_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, customerID, key).Scan(&rec.CustomerID, &rec.Key, &rec.StatusCode, &rec.Response)
	return rec, err
}

func (t *Tx) SaveIdempotencyResult(ctx context.Context, customerID, key string, statusCode int, response []byte) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET status_code = $3, response_payload = $4, updated_at = now()
		WHERE customer_id = $1 AND idempotency_key = $2
	`, customerID, key, statusCode, response)
	return err
}

func (t *Tx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return t.events.Insert(ctx, t.tx, evt)
}
