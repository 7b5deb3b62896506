package interval

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, zone)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestDayNormalizesIntraDayTime(t *testing.T) {
	morning := time.Date(2024, 8, 1, 9, 30, 0, 0, zone)
	night := time.Date(2024, 8, 1, 23, 59, 59, 0, zone)
	assert.True(t, Day(morning).Equal(Day(night)))
	assert.Equal(t, 0, Day(night).Hour())
}

func TestDayUsesReferenceZone(t *testing.T) {
	// 01:00 UTC on the 2nd is still the 1st in the reference zone (-03).
	utc := time.Date(2024, 8, 2, 1, 0, 0, 0, time.UTC)
	assert.True(t, Day(utc).Equal(date(2024, 8, 1)))
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{
			name: "disjoint ranges",
			a:    Range{Start: date(2024, 8, 1), End: datePtr(2024, 8, 10)},
			b:    Range{Start: date(2024, 8, 11), End: datePtr(2024, 8, 20)},
			want: false,
		},
		{
			name: "touching end and start share a day",
			a:    Range{Start: date(2024, 8, 1), End: datePtr(2024, 8, 10)},
			b:    Range{Start: date(2024, 8, 10), End: datePtr(2024, 8, 20)},
			want: true,
		},
		{
			name: "contained range",
			a:    Range{Start: date(2024, 8, 1), End: datePtr(2024, 8, 31)},
			b:    Range{Start: date(2024, 8, 5), End: datePtr(2024, 8, 7)},
			want: true,
		},
		{
			name: "open-ended range reaches forward",
			a:    Range{Start: date(2024, 8, 1), End: nil},
			b:    Range{Start: date(2025, 1, 1), End: datePtr(2025, 1, 2)},
			want: true,
		},
		{
			name: "open-ended range does not reach backward",
			a:    Range{Start: date(2024, 8, 10), End: nil},
			b:    Range{Start: date(2024, 8, 1), End: datePtr(2024, 8, 9)},
			want: false,
		},
		{
			name: "two open-ended ranges always collide",
			a:    Range{Start: date(2024, 8, 1), End: nil},
			b:    Range{Start: date(2030, 1, 1), End: nil},
			want: true,
		},
		{
			name: "single-day ranges on the same day",
			a:    Range{Start: date(2024, 8, 1), End: datePtr(2024, 8, 1)},
			b:    Range{Start: date(2024, 8, 1), End: datePtr(2024, 8, 1)},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap must be symmetric")
		})
	}
}

func TestOverlapsIgnoresTimeOfDay(t *testing.T) {
	a := NewRange(time.Date(2024, 8, 10, 23, 0, 0, 0, zone), nil)
	end := time.Date(2024, 8, 10, 1, 0, 0, 0, zone)
	b := NewRange(time.Date(2024, 8, 1, 12, 0, 0, 0, zone), &end)
	// b ends on the 10th; a starts on the 10th. They share that day no
	// matter the hours involved.
	assert.True(t, a.Overlaps(b))
}

// TestOverlapsRandomized cross-checks the predicate against a brute-force
// day-by-day scan over bounded ranges.
func TestOverlapsRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := date(2024, 1, 1)
	randomRange := func() Range {
		startOff := rng.Intn(60)
		length := rng.Intn(15)
		start := base.AddDate(0, 0, startOff)
		end := start.AddDate(0, 0, length)
		return Range{Start: start, End: &end}
	}
	sharesDay := func(a, b Range) bool {
		for d := a.Start; !d.After(*a.End); d = d.AddDate(0, 0, 1) {
			if !d.Before(b.Start) && !d.After(*b.End) {
				return true
			}
		}
		return false
	}
	for i := 0; i < 500; i++ {
		a, b := randomRange(), randomRange()
		assert.Equal(t, sharesDay(a, b), a.Overlaps(b), "a=%v b=%v", a, b)
	}
}

func TestOnOrAfter(t *testing.T) {
	assert.True(t, OnOrAfter(date(2024, 8, 15), date(2024, 8, 15)))
	assert.True(t, OnOrAfter(date(2024, 8, 16), date(2024, 8, 15)))
	assert.False(t, OnOrAfter(date(2024, 8, 14), date(2024, 8, 15)))
	// Later hour on an earlier day still counts as before.
	assert.False(t, OnOrAfter(time.Date(2024, 8, 14, 23, 0, 0, 0, zone), date(2024, 8, 15)))
}
