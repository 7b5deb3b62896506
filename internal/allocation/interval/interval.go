// Package interval implements the date-range overlap predicate used by the
// conflict-resolution engine.
//
// All allocation dates are compared at calendar-day granularity in a single
// reference time zone, so the time-of-day a request arrives with never
// changes the outcome. A missing end date means the range is open-ended and
// is treated as extending indefinitely.
package interval

import "time"

// Lending operates on the catalog's local calendar regardless of where a
// request originates.
const referenceZone = "America/Argentina/Buenos_Aires"

var zone *time.Location

func init() {
	loc, err := time.LoadLocation(referenceZone)
	if err != nil {
		// Hosts without tzdata still get the right calendar day: the
		// reference zone has a fixed -03:00 offset year round.
		loc = time.FixedZone("-03", -3*60*60)
	}
	zone = loc
}

// Day truncates t to the start of its calendar day in the reference zone.
func Day(t time.Time) time.Time {
	local := t.In(zone)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, zone)
}

// DayPtr is Day lifted over optional dates.
func DayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := Day(*t)
	return &d
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// Range is a day-granular allocation range. End == nil means the range is
// open-ended ("return date unknown") and conservatively extends forever.
type Range struct {
	Start time.Time
	End   *time.Time
}

// NewRange builds a Range with both bounds normalized to day precision.
func NewRange(start time.Time, end *time.Time) Range {
	return Range{Start: Day(start), End: DayPtr(end)}
}

// Overlaps reports whether r and o share at least one calendar day. Bounds
// are inclusive: a loan ending on the day a reservation starts conflicts
// with it.
func (r Range) Overlaps(o Range) bool {
	if o.End != nil && r.Start.After(Day(*o.End)) {
		return false
	}
	if r.End != nil && o.Start.After(Day(*r.End)) {
		return false
	}
	return true
}

// OnOrAfter reports whether day a is on or after day b, at day granularity.
// Used for the lazy reservation-expiry check.
func OnOrAfter(a, b time.Time) bool {
	return !Day(a).Before(Day(b))
}
