package availability

import "time"

// DealSlotStep is the fixed grid step for deal slots. Service slots step by
// the service duration instead, so service slots never overlap each other.
const DealSlotStep = 30 * time.Minute

// SlotGrid returns the candidate windows of length duration inside
// [open, close), stepping by step from the opening time. A window is dropped
// when it would run past closing or when it starts before minStart, so a slot
// starting exactly at minStart is kept and one starting a second earlier is
// not. A zero minStart disables that cut.
//
// All times are expected to be in the same location (timezone).
func SlotGrid(open, close time.Time, duration, step time.Duration, minStart time.Time) []Interval {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !close.After(open) {
		return nil
	}
	if open.Add(duration).After(close) {
		return nil
	}

	var grid []Interval
	for t := open; !t.Add(duration).After(close); t = t.Add(step) {
		if t.Before(minStart) {
			continue
		}
		grid = append(grid, Interval{Start: t, End: t.Add(duration)})
	}
	return grid
}
