package availability

import (
	"testing"
	"time"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/model"
	"github.com/google/uuid"
)

var (
	mentorID = uuid.MustParse("5a40bcbe-3f7a-4c2d-9f2e-2b1c5d3f8a01")
	// 2026-03-02 is a Monday.
	monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
)

func mondayRule(startMin, endMin int) model.WeeklyRule {
	return model.WeeklyRule{
		ID:          uuid.New(),
		MentorID:    mentorID,
		Weekday:     time.Monday,
		StartMinute: startMin,
		EndMinute:   endMin,
	}
}

func intPtr(v int) *int { return &v }

func TestEffectiveWindowFromWeeklyRule(t *testing.T) {
	s := Schedule{MentorID: mentorID, Rules: []model.WeeklyRule{mondayRule(9*60, 12*60)}}

	win, ok := s.EffectiveWindow(monday)
	if !ok {
		t.Fatal("expected a window on Monday")
	}
	if !win.Start.Equal(monday.Add(9*time.Hour)) || !win.End.Equal(monday.Add(12*time.Hour)) {
		t.Fatalf("expected 09:00-12:00, got %s-%s", win.Start, win.End)
	}

	if _, ok := s.EffectiveWindow(monday.AddDate(0, 0, 1)); ok {
		t.Fatal("expected no window on Tuesday without a rule")
	}
}

func TestEffectiveWindowResolvesOffsetDatesInUTC(t *testing.T) {
	s := Schedule{
		MentorID: mentorID,
		Rules:    []model.WeeklyRule{mondayRule(9*60, 12*60)},
		Exceptions: []model.DateException{
			{MentorID: mentorID, Date: monday, Available: true, StartMinute: intPtr(10 * 60), EndMinute: intPtr(11 * 60)},
		},
	}
	plusTwo := time.FixedZone("plus2", 2*60*60)

	// 12:00+02:00 on March 2nd is 10:00 UTC, still the Monday of the
	// exception: same window as the plain UTC query.
	win, ok := s.EffectiveWindow(time.Date(2026, 3, 2, 12, 0, 0, 0, plusTwo))
	if !ok {
		t.Fatal("expected the exception window for an offset instant on Monday")
	}
	if !win.Start.Equal(monday.Add(10*time.Hour)) || !win.End.Equal(monday.Add(11*time.Hour)) {
		t.Fatalf("expected 10:00-11:00 UTC, got %s-%s", win.Start, win.End)
	}

	// 00:00+02:00 on March 2nd is still March 1st in UTC, a Sunday with no
	// rule: the offset must not leak the Monday window onto it.
	if _, ok := s.EffectiveWindow(time.Date(2026, 3, 2, 0, 0, 0, 0, plusTwo)); ok {
		t.Fatal("an instant on the previous UTC date must not get Monday's window")
	}
}

func TestExceptionBlocksDate(t *testing.T) {
	s := Schedule{
		MentorID: mentorID,
		Rules:    []model.WeeklyRule{mondayRule(9*60, 12*60)},
		Exceptions: []model.DateException{
			{MentorID: mentorID, Date: monday, Available: false},
		},
	}

	if _, ok := s.EffectiveWindow(monday); ok {
		t.Fatal("unavailable exception must block the whole date")
	}
	// The following Monday is untouched by the exception.
	if _, ok := s.EffectiveWindow(monday.AddDate(0, 0, 7)); !ok {
		t.Fatal("exception must only affect its own date")
	}
}

func TestExceptionReplacesRuleWindow(t *testing.T) {
	s := Schedule{
		MentorID: mentorID,
		Rules:    []model.WeeklyRule{mondayRule(9*60, 12*60)},
		Exceptions: []model.DateException{
			{MentorID: mentorID, Date: monday, Available: true, StartMinute: intPtr(14 * 60), EndMinute: intPtr(16 * 60)},
		},
	}

	win, ok := s.EffectiveWindow(monday)
	if !ok {
		t.Fatal("expected the exception's window")
	}
	if !win.Start.Equal(monday.Add(14*time.Hour)) || !win.End.Equal(monday.Add(16*time.Hour)) {
		t.Fatalf("exception must replace the rule window, got %s-%s", win.Start, win.End)
	}
}

func TestExceptionWinsWithoutRule(t *testing.T) {
	// Override law: the exception window applies regardless of rule presence.
	s := Schedule{
		MentorID: mentorID,
		Exceptions: []model.DateException{
			{MentorID: mentorID, Date: monday, Available: true, StartMinute: intPtr(10 * 60), EndMinute: intPtr(11 * 60)},
		},
	}

	win, ok := s.EffectiveWindow(monday)
	if !ok {
		t.Fatal("expected the exception's window with no weekly rule")
	}
	if !win.Start.Equal(monday.Add(10 * time.Hour)) {
		t.Fatalf("expected 10:00 start, got %s", win.Start)
	}
}

func TestOpenExceptionWithoutTimes(t *testing.T) {
	exc := model.DateException{MentorID: mentorID, Date: monday, Available: true}
	rules := []model.WeeklyRule{mondayRule(9*60, 12*60)}

	closed := Schedule{MentorID: mentorID, Rules: rules, Exceptions: []model.DateException{exc}}
	if _, ok := closed.EffectiveWindow(monday); ok {
		t.Fatal("default policy treats a time-less open exception as an empty window")
	}

	inherits := closed
	inherits.Policy = OpenExceptionInheritsRule
	win, ok := inherits.EffectiveWindow(monday)
	if !ok {
		t.Fatal("inherit policy should fall back to the weekly rule")
	}
	if !win.Start.Equal(monday.Add(9 * time.Hour)) {
		t.Fatalf("expected the rule's 09:00 start, got %s", win.Start)
	}
}

func TestInvalidRuleMinutesYieldNoWindow(t *testing.T) {
	s := Schedule{MentorID: mentorID, Rules: []model.WeeklyRule{mondayRule(12*60, 9*60)}}
	if _, ok := s.EffectiveWindow(monday); ok {
		t.Fatal("inverted rule minutes must not produce a window")
	}
}
