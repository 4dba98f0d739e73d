package availability

import (
	"testing"
	"time"
)

func iv(h, m, h2, m2 int) Interval {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	return Interval{
		Start: day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute),
		End:   day.Add(time.Duration(h2)*time.Hour + time.Duration(m2)*time.Minute),
	}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", iv(10, 0, 11, 0), iv(12, 0, 13, 0), false},
		{"touching boundary", iv(10, 0, 11, 0), iv(11, 0, 12, 0), false},
		{"touching boundary reversed", iv(11, 0, 12, 0), iv(10, 0, 11, 0), false},
		{"partial", iv(10, 0, 11, 0), iv(10, 30, 11, 30), true},
		{"contained", iv(10, 0, 12, 0), iv(10, 30, 11, 0), true},
		{"containing", iv(10, 30, 11, 0), iv(10, 0, 12, 0), true},
		{"identical", iv(10, 0, 11, 0), iv(10, 0, 11, 0), true},
		{"zero length inside", iv(10, 30, 10, 30), iv(10, 0, 11, 0), false},
	}
	for _, c := range cases {
		if got := c.a.Overlaps(c.b); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
		// the predicate is symmetric
		if got := c.b.Overlaps(c.a); got != c.want {
			t.Errorf("%s (swapped): got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestAnyOverlap(t *testing.T) {
	busy := []Interval{iv(9, 0, 10, 0), iv(14, 0, 15, 0)}
	if AnyOverlap(iv(10, 0, 11, 0), busy) {
		t.Error("slot touching a busy boundary must stay free")
	}
	if !AnyOverlap(iv(14, 30, 15, 30), busy) {
		t.Error("slot crossing a busy interval must clash")
	}
	if AnyOverlap(iv(11, 0, 12, 0), nil) {
		t.Error("empty busy set must never clash")
	}
}

func TestCountOverlapping(t *testing.T) {
	busy := []Interval{iv(11, 0, 12, 0), iv(11, 0, 12, 0), iv(12, 0, 13, 0)}
	if n := CountOverlapping(iv(11, 0, 12, 0), busy); n != 2 {
		t.Fatalf("expected 2 overlapping, got %d", n)
	}
	if n := CountOverlapping(iv(13, 0, 14, 0), busy); n != 0 {
		t.Fatalf("expected 0 overlapping, got %d", n)
	}
}
