package availability

import (
	"time"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/model"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/timeslot"
)

// Resolve computes the bookable slots for a schedule between from and to.
//
// Per calendar date, the effective window is partitioned into consecutive
// session-length slots starting at the window start; a trailing partial slot
// is discarded. A slot is dropped when it overlaps any occupied range (a
// partial overlap drops the whole slot), starts before now, or does not lie
// entirely inside [from, to). The result is ascending by start time and
// deterministic for identical inputs.
//
// now is caller-supplied so the past-slot cutoff is testable; session is the
// configured session length, never a constant of the algorithm.
func Resolve(s Schedule, occupied []timeslot.Range, from, to time.Time, session time.Duration, now time.Time) []model.Slot {
	if session <= 0 || !to.After(from) {
		return nil
	}

	bounds := timeslot.New(from, to)
	var slots []model.Slot

	for day := Midnight(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		window, ok := s.EffectiveWindow(day)
		if !ok {
			continue
		}
		for start := window.Start; !start.Add(session).After(window.End); start = start.Add(session) {
			candidate := timeslot.New(start, start.Add(session))
			if start.Before(now) {
				continue
			}
			if !bounds.Covers(candidate) {
				continue
			}
			if candidate.OverlapsAny(occupied) {
				continue
			}
			slots = append(slots, model.Slot{
				MentorID: s.MentorID,
				Start:    candidate.Start,
				End:      candidate.End,
			})
		}
	}
	return slots
}

// WindowSlots partitions a single date's effective window without occupancy
// or clock filtering. The booking commit path uses it to check that a
// submitted slot is still one the schedule would produce.
func WindowSlots(s Schedule, date time.Time, session time.Duration) []timeslot.Range {
	if session <= 0 {
		return nil
	}
	window, ok := s.EffectiveWindow(date)
	if !ok {
		return nil
	}
	var out []timeslot.Range
	for start := window.Start; !start.Add(session).After(window.End); start = start.Add(session) {
		out = append(out, timeslot.New(start, start.Add(session)))
	}
	return out
}
