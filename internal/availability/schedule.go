package availability

import (
	"time"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/model"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/timeslot"
	"github.com/google/uuid"
)

// OpenExceptionPolicy decides what an exception with Available=true but no
// explicit times means. The observed product behaviour is ambiguous, so the
// interpretation is configurable instead of hardcoded.
type OpenExceptionPolicy int

const (
	// OpenExceptionClosed treats a time-less open exception as an explicitly
	// empty window: no slots that date.
	OpenExceptionClosed OpenExceptionPolicy = iota
	// OpenExceptionInheritsRule falls back to the weekly rule's window.
	OpenExceptionInheritsRule
)

// Schedule is a mentor's availability configuration over some date range:
// recurring weekly rules plus date-specific exceptions. It is a read model;
// mutation goes through the schedule repository.
type Schedule struct {
	MentorID   uuid.UUID
	Rules      []model.WeeklyRule
	Exceptions []model.DateException
	Policy     OpenExceptionPolicy
}

// EffectiveWindow resolves the final open interval for one calendar date.
// Dates are interpreted in UTC, the schedule's canonical frame: an
// offset-bearing instant resolves to the UTC date it falls on. An exception
// always wins over the weekly rule for its date, even when its window is a
// strict subset or superset of the rule's. The second return is false when
// the mentor has no availability that date.
func (s Schedule) EffectiveWindow(date time.Time) (timeslot.Range, bool) {
	day := Midnight(date.In(time.UTC))

	if exc, ok := s.exceptionFor(day); ok {
		if !exc.Available {
			return timeslot.Range{}, false
		}
		if exc.StartMinute != nil && exc.EndMinute != nil {
			return minuteWindow(day, *exc.StartMinute, *exc.EndMinute)
		}
		if s.Policy == OpenExceptionInheritsRule {
			return s.ruleWindow(day)
		}
		return timeslot.Range{}, false
	}

	return s.ruleWindow(day)
}

func (s Schedule) exceptionFor(day time.Time) (model.DateException, bool) {
	for _, exc := range s.Exceptions {
		if sameDate(exc.Date, day) {
			return exc, true
		}
	}
	return model.DateException{}, false
}

func (s Schedule) ruleWindow(day time.Time) (timeslot.Range, bool) {
	for _, rule := range s.Rules {
		if rule.Weekday == day.Weekday() {
			return minuteWindow(day, rule.StartMinute, rule.EndMinute)
		}
	}
	return timeslot.Range{}, false
}

func minuteWindow(day time.Time, startMin, endMin int) (timeslot.Range, bool) {
	if startMin >= endMin || startMin < 0 {
		return timeslot.Range{}, false
	}
	r := timeslot.New(
		day.Add(time.Duration(startMin)*time.Minute),
		day.Add(time.Duration(endMin)*time.Minute),
	)
	return r, true
}

// Midnight truncates t to the start of its calendar date, keeping the location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.In(time.UTC).Date()
	by, bm, bd := b.In(time.UTC).Date()
	return ay == by && am == bm && ad == bd
}
