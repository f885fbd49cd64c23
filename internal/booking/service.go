package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/availability"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/model"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/timeslot"
	"github.com/google/uuid"
)

const (
	RoleMentor = "mentor"
	RoleMentee = "mentee"
	RoleAdmin  = "admin"
)

// Actor is the authenticated caller as established by the identity provider.
// The core uses it only for cancel authorization.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// ScheduleStore loads a mentor's availability configuration for a date range.
type ScheduleStore interface {
	Schedule(ctx context.Context, mentorID uuid.UUID, from, to time.Time) (availability.Schedule, error)
}

// Ledger is the source of truth for committed time occupancy per mentor.
// Reserve is the sole write path that can create an overlap conflict and must
// be linearizable with respect to Occupied for a given mentor: of two
// concurrent reservations for overlapping ranges at most one succeeds. The
// Postgres implementation leans on an exclusion constraint for that; the
// in-memory test double uses a mutex.
type Ledger interface {
	Occupied(ctx context.Context, mentorID uuid.UUID, from, to time.Time) ([]timeslot.Range, error)
	// Reserve inserts b with status pending. The returned bool is true when
	// the reservation was satisfied by an earlier identical attempt
	// (idempotency key replay or a keyless retry of the same parameters).
	Reserve(ctx context.Context, b *model.Booking, idempotencyKey string) (model.Booking, bool, error)
	Get(ctx context.Context, id uuid.UUID) (model.Booking, error)
	// MarkConfirmed transitions pending -> confirmed/paid.
	MarkConfirmed(ctx context.Context, id uuid.UUID) (model.Booking, error)
	// MarkCancelled transitions an active booking to cancelled, flipping the
	// payment status to refunded when refund is set.
	MarkCancelled(ctx context.Context, id uuid.UUID, refund bool) (model.Booking, error)
}

// Service implements the booking commit protocol: a slot selection moves
// through Selected -> Reserving -> {Confirmed | Rejected}, with the overlap
// check and the insert inside one transactional boundary in the ledger.
type Service struct {
	schedules     ScheduleStore
	ledger        Ledger
	logger        *slog.Logger
	commitTimeout time.Duration
	policy        availability.OpenExceptionPolicy
	clock         func() time.Time
}

func NewService(schedules ScheduleStore, ledger Ledger, logger *slog.Logger, commitTimeout time.Duration, policy availability.OpenExceptionPolicy) *Service {
	if commitTimeout <= 0 {
		commitTimeout = 5 * time.Second
	}
	return &Service{
		schedules:     schedules,
		ledger:        ledger,
		logger:        logger,
		commitTimeout: commitTimeout,
		policy:        policy,
		clock:         time.Now,
	}
}

// AvailableSlots computes the bookable slots for a mentor between from and to
// at the requested session length. Identical arguments with no intervening
// writes produce identical sequences.
func (s *Service) AvailableSlots(ctx context.Context, mentorID uuid.UUID, from, to time.Time, session time.Duration) ([]model.Slot, error) {
	if session <= 0 || !to.After(from) {
		return nil, fmt.Errorf("%w: session length and date range must be positive", ErrInvalidRange)
	}
	from, to = from.UTC(), to.UTC()

	sched, err := s.loadSchedule(ctx, mentorID, from, to)
	if err != nil {
		return nil, err
	}
	occupied, err := s.ledger.Occupied(ctx, mentorID, from, to)
	if err != nil {
		return nil, upstream("list occupied ranges", err)
	}
	return availability.Resolve(sched, occupied, from, to, session, s.clock()), nil
}

// Book commits a slot selection. The slot is re-validated against the
// mentor's effective window for its date before the ledger insert; having
// been displayed grants a slot no authority. The whole commit is bounded so
// an unavailable store surfaces as an error instead of blocking.
func (s *Service) Book(ctx context.Context, mentorID, menteeID uuid.UUID, slot model.Slot, idempotencyKey string) (model.Booking, error) {
	// Rule windows are anchored to UTC. An offset-bearing client timestamp
	// must not shift the window it is validated against.
	slot.Start = slot.Start.UTC()
	slot.End = slot.End.UTC()

	session := slot.End.Sub(slot.Start)
	if session <= 0 {
		return model.Booking{}, fmt.Errorf("%w: slot end must be after start", ErrInvalidRange)
	}
	if slot.Start.Before(s.clock()) {
		return model.Booking{}, fmt.Errorf("%w: slot start is in the past", ErrInvalidRange)
	}

	ctx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()

	day := availability.Midnight(slot.Start)
	sched, err := s.loadSchedule(ctx, mentorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return model.Booking{}, err
	}

	candidates := availability.WindowSlots(sched, day, session)
	if len(candidates) == 0 {
		return model.Booking{}, fmt.Errorf("%w: mentor has no availability on %s", ErrNotFound, day.Format("2006-01-02"))
	}
	want := timeslot.New(slot.Start, slot.End)
	matched := false
	for _, c := range candidates {
		if c.Equal(want) {
			matched = true
			break
		}
	}
	if !matched {
		// The schedule changed since the slot was displayed.
		return model.Booking{}, fmt.Errorf("%w: slot no longer offered, refresh availability", ErrSlotConflict)
	}

	b := model.Booking{
		MentorID:      mentorID,
		MenteeID:      menteeID,
		StartTime:     slot.Start,
		EndTime:       slot.End,
		Status:        model.BookingStatusPending,
		PaymentStatus: model.PaymentStatusPending,
	}
	created, replayed, err := s.ledger.Reserve(ctx, &b, idempotencyKey)
	if err != nil {
		return model.Booking{}, classifyCommitErr(err)
	}

	s.logger.Info("slot reserved",
		"booking_id", created.ID,
		"mentor_id", mentorID,
		"mentee_id", menteeID,
		"start_time", slot.Start.UTC().Format(time.RFC3339),
		"replayed", replayed,
	)
	return created, nil
}

// ConfirmPayment transitions pending -> confirmed once the external payment
// capture event arrives. A replayed capture for an already confirmed and paid
// booking is answered idempotently.
func (s *Service) ConfirmPayment(ctx context.Context, bookingID uuid.UUID) (model.Booking, error) {
	b, err := s.ledger.Get(ctx, bookingID)
	if err != nil {
		return model.Booking{}, classifyCommitErr(err)
	}

	switch {
	case b.Status == model.BookingStatusPending:
		confirmed, err := s.ledger.MarkConfirmed(ctx, bookingID)
		if err != nil {
			return model.Booking{}, classifyCommitErr(err)
		}
		s.logger.Info("booking confirmed", "booking_id", bookingID)
		return confirmed, nil
	case b.Status == model.BookingStatusConfirmed && b.PaymentStatus == model.PaymentStatusPaid:
		return b, nil
	default:
		return model.Booking{}, fmt.Errorf("%w: cannot confirm a %s booking", ErrInvalidState, b.Status)
	}
}

// Cancel releases a pending or confirmed booking. Allowed to the booking's
// mentor, its mentee, or an admin. Cancelling twice is idempotent; the freed
// range becomes bookable again.
func (s *Service) Cancel(ctx context.Context, actor Actor, bookingID uuid.UUID) (model.Booking, error) {
	b, err := s.ledger.Get(ctx, bookingID)
	if err != nil {
		return model.Booking{}, classifyCommitErr(err)
	}
	if actor.Role != RoleAdmin && actor.ID != b.MentorID && actor.ID != b.MenteeID {
		return model.Booking{}, fmt.Errorf("%w: only the mentor, the mentee or an admin may cancel", ErrUnauthorized)
	}

	if b.Status == model.BookingStatusCancelled {
		return b, nil
	}
	if !b.Status.Active() {
		return model.Booking{}, fmt.Errorf("%w: cannot cancel a %s booking", ErrInvalidState, b.Status)
	}

	refund := b.PaymentStatus == model.PaymentStatusPaid
	cancelled, err := s.ledger.MarkCancelled(ctx, bookingID, refund)
	if err != nil {
		return model.Booking{}, classifyCommitErr(err)
	}
	s.logger.Info("booking cancelled",
		"booking_id", bookingID,
		"actor_id", actor.ID,
		"refunded", refund,
	)
	return cancelled, nil
}

func (s *Service) loadSchedule(ctx context.Context, mentorID uuid.UUID, from, to time.Time) (availability.Schedule, error) {
	sched, err := s.schedules.Schedule(ctx, mentorID, from, to)
	if err != nil {
		return availability.Schedule{}, upstream("load schedule", err)
	}
	sched.Policy = s.policy
	return sched, nil
}

func classifyCommitErr(err error) error {
	if isDomainErr(err) {
		return err
	}
	return upstream("booking store", err)
}

func upstream(op string, err error) error {
	if isDomainErr(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out", ErrUpstream, op)
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}
