package model

import (
	"time"

	"github.com/google/uuid"
)

// WeeklyRule is a recurring open interval on one weekday, expressed as
// minutes from midnight UTC. At most one rule per (mentor, weekday).
type WeeklyRule struct {
	ID          uuid.UUID
	MentorID    uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

// DateException overrides the weekly rule for a single calendar date.
// Available=false blocks the whole date. Available=true with explicit
// minutes replaces the rule's window for that date.
type DateException struct {
	ID          uuid.UUID
	MentorID    uuid.UUID
	Date        time.Time // midnight, date identity only
	Available   bool
	StartMinute *int
	EndMinute   *int
}

// Slot is a derived, never persisted bookable interval. Displaying a slot
// grants no authority; validity is re-checked at commit time.
type Slot struct {
	MentorID uuid.UUID
	Start    time.Time
	End      time.Time
}
