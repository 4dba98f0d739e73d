package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-tanzil-ahmed/salonslot/libs/db"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
)

const dateLayout = "2006-01-02"

// Catalog is the pgx-backed store for shops, services, deals, staff and the
// calendar. It satisfies availability.ScheduleProvider, EligibilityProvider
// and BlockSource.
type Catalog struct {
	pool *db.Pool
}

func NewCatalog(pool *db.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (r *Catalog) Shop(ctx context.Context, shopID string) (model.Shop, error) {
	var s model.Shop
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, timezone, max_concurrent_deals, is_active, created_at
		FROM shops
		WHERE id = $1
	`, shopID).Scan(&s.ID, &s.Name, &s.Timezone, &s.MaxConcurrentDeals, &s.IsActive, &s.CreatedAt)
	return s, err
}

func (r *Catalog) DaySchedule(ctx context.Context, shopID string, weekday int) (model.DaySchedule, bool, error) {
	var d model.DaySchedule
	err := r.pool.QueryRow(ctx, `
		SELECT weekday, opens_at, closes_at, is_active
		FROM shop_hours
		WHERE shop_id = $1 AND weekday = $2
	`, shopID, weekday).Scan(&d.Weekday, &d.OpensAt, &d.ClosesAt, &d.IsActive)
	if IsNotFound(err) {
		return model.DaySchedule{}, false, nil
	}
	if err != nil {
		return model.DaySchedule{}, false, err
	}
	return d, true, nil
}

func (r *Catalog) Holiday(ctx context.Context, shopID string, date time.Time) (model.Holiday, bool, error) {
	var h model.Holiday
	err := r.pool.QueryRow(ctx, `
		SELECT id, shop_id, holiday_date, COALESCE(name, '')
		FROM shop_holidays
		WHERE shop_id = $1 AND holiday_date = $2::date
	`, shopID, date.Format(dateLayout)).Scan(&h.ID, &h.ShopID, &h.Date, &h.Name)
	if IsNotFound(err) {
		return model.Holiday{}, false, nil
	}
	if err != nil {
		return model.Holiday{}, false, err
	}
	return h, true, nil
}

func (r *Catalog) Service(ctx context.Context, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, shop_id, name, duration_min, buffer_min, price_cents, is_active
		FROM services
		WHERE id = $1 AND is_active
	`, serviceID).Scan(&s.ID, &s.ShopID, &s.Name, &s.DurationMin, &s.BufferMin, &s.PriceCents, &s.IsActive)
	return s, err
}

func (r *Catalog) Deal(ctx context.Context, dealID string) (model.Deal, error) {
	var d model.Deal
	err := r.pool.QueryRow(ctx, `
		SELECT id, shop_id, name, duration_min, price_cents, is_active
		FROM deals
		WHERE id = $1 AND is_active
	`, dealID).Scan(&d.ID, &d.ShopID, &d.Name, &d.DurationMin, &d.PriceCents, &d.IsActive)
	return d, err
}

// EligibleStaff returns the mapping rows for a service, primaries first, only
// for staff still active. The returned order is the auto-assign order.
func (r *Catalog) EligibleStaff(ctx context.Context, serviceID string) ([]model.StaffLink, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ss.staff_id, ss.is_primary
		FROM service_staff ss
		JOIN staff_members sm ON sm.id = ss.staff_id
		WHERE ss.service_id = $1 AND sm.is_active
		ORDER BY ss.is_primary DESC, sm.name
	`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []model.StaffLink
	for rows.Next() {
		var l model.StaffLink
		if err := rows.Scan(&l.StaffID, &l.IsPrimary); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *Catalog) BlocksInRange(ctx context.Context, shopID string, from, to time.Time) ([]model.ManualBlock, error) {
	rows, err := r.pool.Query(ctx, `
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

func collectBlocks(rows pgx.Rows) ([]model.ManualBlock, error) {
	defer rows.Close()
	var out []model.ManualBlock
	for rows.Next() {
		var b model.ManualBlock
		if err := rows.Scan(&b.ID, &b.ShopID, &b.StaffID, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Catalog) CreateShop(ctx context.Context, s *model.Shop) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO shops (name, timezone, max_concurrent_deals, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, s.Name, s.Timezone, s.MaxConcurrentDeals, s.IsActive).Scan(&s.ID, &s.CreatedAt)
}

func (r *Catalog) ListShops(ctx context.Context) ([]model.Shop, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, timezone, max_concurrent_deals, is_active, created_at
		FROM shops
		WHERE is_active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shops []model.Shop
	for rows.Next() {
		var s model.Shop
		if err := rows.Scan(&s.ID, &s.Name, &s.Timezone, &s.MaxConcurrentDeals, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		shops = append(shops, s)
	}
	return shops, rows.Err()
}

func (r *Catalog) CreateService(ctx context.Context, s *model.Service) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO services (shop_id, name, duration_min, buffer_min, price_cents, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, s.ShopID, s.Name, s.DurationMin, s.BufferMin, s.PriceCents, s.IsActive).Scan(&s.ID)
}

func (r *Catalog) ListServices(ctx context.Context, shopID string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, shop_id, name, duration_min, buffer_min, price_cents, is_active
		FROM services
		WHERE shop_id = $1 AND is_active
		ORDER BY name
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.ShopID, &s.Name, &s.DurationMin, &s.BufferMin, &s.PriceCents, &s.IsActive); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (r *Catalog) CreateDeal(ctx context.Context, d *model.Deal) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO deals (shop_id, name, duration_min, price_cents, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, d.ShopID, d.Name, d.DurationMin, d.PriceCents, d.IsActive).Scan(&d.ID)
}

func (r *Catalog) ListDeals(ctx context.Context, shopID string) ([]model.Deal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, shop_id, name, duration_min, price_cents, is_active
		FROM deals
		WHERE shop_id = $1 AND is_active
		ORDER BY name
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []model.Deal
	for rows.Next() {
		var d model.Deal
		if err := rows.Scan(&d.ID, &d.ShopID, &d.Name, &d.DurationMin, &d.PriceCents, &d.IsActive); err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

func (r *Catalog) CreateStaff(ctx context.Context, m *model.StaffMember) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO staff_members (shop_id, name, is_active)
		VALUES ($1, $2, $3)
		RETURNING id
	`, m.ShopID, m.Name, m.IsActive).Scan(&m.ID)
}

func (r *Catalog) ListStaff(ctx context.Context, shopID string) ([]model.StaffMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, shop_id, name, is_active
		FROM staff_members
		WHERE shop_id = $1 AND is_active
		ORDER BY name
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []model.StaffMember
	for rows.Next() {
		var m model.StaffMember
		if err := rows.Scan(&m.ID, &m.ShopID, &m.Name, &m.IsActive); err != nil {
			return nil, err
		}
		staff = append(staff, m)
	}
	return staff, rows.Err()
}

// SetServiceStaff replaces the eligibility mapping of one service.
func (r *Catalog) SetServiceStaff(ctx context.Context, serviceID string, links []model.StaffLink) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM service_staff WHERE service_id = $1`, serviceID); err != nil {
		return err
	}
	for _, l := range links {
		_, err := tx.Exec(ctx, `
			INSERT INTO service_staff (service_id, staff_id, is_primary)
			VALUES ($1, $2, $3)
		`, serviceID, l.StaffID, l.IsPrimary)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// UpsertHours writes the weekly schedule, one row per weekday.
func (r *Catalog) UpsertHours(ctx context.Context, shopID string, days []model.DaySchedule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, d := range days {
		_, err := tx.Exec(ctx, `
			INSERT INTO shop_hours (shop_id, weekday, opens_at, closes_at, is_active)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (shop_id, weekday)
			DO UPDATE SET opens_at = EXCLUDED.opens_at, closes_at = EXCLUDED.closes_at, is_active = EXCLUDED.is_active
		`, shopID, d.Weekday, d.OpensAt, d.ClosesAt, d.IsActive)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Catalog) ListHours(ctx context.Context, shopID string) ([]model.DaySchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, opens_at, closes_at, is_active
		FROM shop_hours
		WHERE shop_id = $1
		ORDER BY weekday
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []model.DaySchedule
	for rows.Next() {
		var d model.DaySchedule
		if err := rows.Scan(&d.Weekday, &d.OpensAt, &d.ClosesAt, &d.IsActive); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func (r *Catalog) AddHoliday(ctx context.Context, h *model.Holiday) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO shop_holidays (shop_id, holiday_date, name)
		VALUES ($1, $2::date, NULLIF($3, ''))
		RETURNING id
	`, h.ShopID, h.Date.Format(dateLayout), h.Name).Scan(&h.ID)
}

// AddHolidayRange marks every day of [from, until] as a holiday under one
// name. Days already marked stay untouched; only the newly created rows are
// returned.
func (r *Catalog) AddHolidayRange(ctx context.Context, shopID, name string, from, until time.Time) ([]model.Holiday, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var added []model.Holiday
	for d := from; !d.After(until); d = d.AddDate(0, 0, 1) {
		h := model.Holiday{ShopID: shopID, Date: d, Name: name}
		err := tx.QueryRow(ctx, `
			INSERT INTO shop_holidays (shop_id, holiday_date, name)
			VALUES ($1, $2::date, NULLIF($3, ''))
			ON CONFLICT (shop_id, holiday_date) DO NOTHING
			RETURNING id
		`, shopID, d.Format(dateLayout), name).Scan(&h.ID)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		added = append(added, h)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return added, nil
}

func (r *Catalog) UpcomingHolidays(ctx context.Context, shopID string, from, until time.Time) ([]model.Holiday, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, shop_id, holiday_date, COALESCE(name, '')
		FROM shop_holidays
		WHERE shop_id = $1
		  AND holiday_date >= $2::date
		  AND holiday_date <= $3::date
		ORDER BY holiday_date
	`, shopID, from.Format(dateLayout), until.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []model.Holiday
	for rows.Next() {
		var h model.Holiday
		if err := rows.Scan(&h.ID, &h.ShopID, &h.Date, &h.Name); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

func (r *Catalog) CreateBlock(ctx context.Context, b *model.ManualBlock) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO manual_blocks (shop_id, staff_id, start_time, end_time, reason)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, NULLIF($5, ''))
		RETURNING id, created_at
	`, b.ShopID, b.StaffID, b.StartTime, b.EndTime, b.Reason).Scan(&b.ID, &b.CreatedAt)
}

func (r *Catalog) DeleteBlock(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM manual_blocks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
