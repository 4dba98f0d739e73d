package model

import "time"

type Shop struct {
	ID       string
	Name     string
	Timezone string // IANA name, e.g. "Asia/Dhaka"
	// MaxConcurrentDeals caps how many deal bookings may overlap at any
	// instant, shop-wide. Zero means the shop takes no deal bookings.
	MaxConcurrentDeals int
	IsActive           bool
	CreatedAt          time.Time
}

type Service struct {
	ID          string
	ShopID      string
	Name        string
	DurationMin int
	// BufferMin is the lead time before a slot today becomes bookable.
	BufferMin  int
	PriceCents int64
	IsActive   bool
}

type Deal struct {
	ID          string
	ShopID      string
	Name        string
	DurationMin int
	PriceCents  int64
	IsActive    bool
}

type StaffMember struct {
	ID       string
	ShopID   string
	Name     string
	IsActive bool
}

// StaffLink is one row of the explicit service-to-staff eligibility mapping.
type StaffLink struct {
	StaffID   string
	IsPrimary bool
}

// DaySchedule is the weekly opening window for one weekday. Weekday runs
// 0=Monday through 6=Sunday. OpensAt and ClosesAt are minutes from local
// midnight, so 9:30 is 570.
type DaySchedule struct {
	Weekday  int
	OpensAt  int
	ClosesAt int
	IsActive bool
}

type Holiday struct {
	ID     string
	ShopID string
	// Date is the local calendar day, stored at midnight UTC; only the
	// year, month and day are meaningful.
	Date time.Time
	Name string
}

// ManualBlock marks an interval unbookable. An empty StaffID blocks the
// whole shop, otherwise only the named staff member.
type ManualBlock struct {
	ID        string
	ShopID    string
	StaffID   string
	StartTime time.Time
	EndTime   time.Time
	Reason    string
	CreatedAt time.Time
}
