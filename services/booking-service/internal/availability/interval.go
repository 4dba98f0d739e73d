package availability

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect: the later of
// the two starts must fall before the earlier of the two ends. Every
// conflict decision in this package and in the booking validators goes
// through this one predicate, so back-to-back intervals sharing a boundary
// instant never count as a clash, and an empty interval clashes with
// nothing.
func (iv Interval) Overlaps(other Interval) bool {
	start := iv.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := iv.End
	if other.End.Before(end) {
		end = other.End
	}
	return start.Before(end)
}

// AnyOverlap reports whether iv intersects at least one of the given intervals.
func AnyOverlap(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}

// CountOverlapping returns how many of the given intervals intersect iv.
func CountOverlapping(iv Interval, busy []Interval) int {
	n := 0
	for _, b := range busy {
		if iv.Overlaps(b) {
			n++
		}
	}
	return n
}

// BusyInterval is an occupied range attributed to one staff member.
type BusyInterval struct {
	StaffID string
	Interval
}

// byStaff indexes busy intervals per staff member for per-slot checks.
func byStaff(busy []BusyInterval) map[string][]Interval {
	m := make(map[string][]Interval, len(busy))
	for _, b := range busy {
		m[b.StaffID] = append(m[b.StaffID], b.Interval)
	}
	return m
}
