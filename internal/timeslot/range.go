package timeslot

import "time"

// Range is a half-open time interval [Start, End) on the wall clock.
type Range struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) Range {
	return Range{Start: start, End: end}
}

// IsValid reports whether the range is non-empty. A range with Start >= End
// carries no time at all and never overlaps or contains anything.
func (r Range) IsValid() bool {
	return r.Start.Before(r.End)
}

func (r Range) Duration() time.Duration {
	if !r.IsValid() {
		return 0
	}
	return r.End.Sub(r.Start)
}

// Overlaps reports whether two half-open ranges share any instant:
// r.Start < o.End && o.Start < r.End. Empty ranges overlap nothing.
func (r Range) Overlaps(o Range) bool {
	if !r.IsValid() || !o.IsValid() {
		return false
	}
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Contains reports whether t falls inside the range: Start <= t < End.
func (r Range) Contains(t time.Time) bool {
	if !r.IsValid() {
		return false
	}
	return !t.Before(r.Start) && t.Before(r.End)
}

// Covers reports whether o lies entirely inside r.
func (r Range) Covers(o Range) bool {
	if !r.IsValid() || !o.IsValid() {
		return false
	}
	return !o.Start.Before(r.Start) && !o.End.After(r.End)
}

func (r Range) Equal(o Range) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

// OverlapsAny reports whether the range shares any instant with one of busy.
func (r Range) OverlapsAny(busy []Range) bool {
	for _, b := range busy {
		if r.Overlaps(b) {
			return true
		}
	}
	return false
}
