package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/availability"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/model"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/timeslot"
	"github.com/google/uuid"
)

var (
	mentorID = uuid.MustParse("3f1c9b4e-8a70-4f4e-b8f3-0d8b6a1c2e01")
	menteeID = uuid.MustParse("9d2e7a10-55c4-4b7e-aef3-1c9f8b3d4a02")
	// 2026-03-02 is a Monday.
	monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
)

type fakeScheduleStore struct {
	sched availability.Schedule
	err   error
}

func (f *fakeScheduleStore) Schedule(_ context.Context, _ uuid.UUID, _, _ time.Time) (availability.Schedule, error) {
	return f.sched, f.err
}

// fakeLedger provides the linearizable check-then-insert semantics the
// Postgres exclusion constraint provides in production.
type fakeLedger struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*model.Booking
	byKey    map[string]uuid.UUID
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		bookings: make(map[uuid.UUID]*model.Booking),
		byKey:    make(map[string]uuid.UUID),
	}
}

func (f *fakeLedger) Occupied(_ context.Context, mentorID uuid.UUID, from, to time.Time) ([]timeslot.Range, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	query := timeslot.New(from, to)
	var out []timeslot.Range
	for _, b := range f.bookings {
		if b.MentorID != mentorID || !b.Status.Active() {
			continue
		}
		r := timeslot.New(b.StartTime, b.EndTime)
		if r.Overlaps(query) {
			out = append(out, r)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Start.Before(out[j-1].Start); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *fakeLedger) Reserve(_ context.Context, b *model.Booking, key string) (model.Booking, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if key != "" {
		if id, ok := f.byKey[key]; ok {
			return *f.bookings[id], true, nil
		}
	}

	want := timeslot.New(b.StartTime, b.EndTime)
	for _, existing := range f.bookings {
		if existing.MentorID != b.MentorID || !existing.Status.Active() {
			continue
		}
		if want.Overlaps(timeslot.New(existing.StartTime, existing.EndTime)) {
			if existing.MenteeID == b.MenteeID && want.Equal(timeslot.New(existing.StartTime, existing.EndTime)) {
				return *existing, true, nil
			}
			return model.Booking{}, false, ErrSlotConflict
		}
	}

	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	stored := *b
	f.bookings[b.ID] = &stored
	if key != "" {
		f.byKey[key] = b.ID
	}
	return stored, false, nil
}

func (f *fakeLedger) Get(_ context.Context, id uuid.UUID) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	return *b, nil
}

func (f *fakeLedger) MarkConfirmed(_ context.Context, id uuid.UUID) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	if b.Status != model.BookingStatusPending {
		return model.Booking{}, ErrInvalidState
	}
	b.Status = model.BookingStatusConfirmed
	b.PaymentStatus = model.PaymentStatusPaid
	return *b, nil
}

func (f *fakeLedger) MarkCancelled(_ context.Context, id uuid.UUID, refund bool) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	if !b.Status.Active() {
		return model.Booking{}, ErrInvalidState
	}
	now := time.Now()
	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &now
	if refund {
		b.PaymentStatus = model.PaymentStatusRefunded
	}
	return *b, nil
}

func newTestService(ledger Ledger) *Service {
	sched := availability.Schedule{
		MentorID: mentorID,
		Rules: []model.WeeklyRule{{
			MentorID:    mentorID,
			Weekday:     time.Monday,
			StartMinute: 9 * 60,
			EndMinute:   12 * 60,
		}},
	}
	svc := NewService(
		&fakeScheduleStore{sched: sched},
		ledger,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		5*time.Second,
		availability.OpenExceptionClosed,
	)
	svc.clock = func() time.Time { return monday.Add(-24 * time.Hour) }
	return svc
}

func nineAM() model.Slot {
	return model.Slot{MentorID: mentorID, Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)}
}

func TestBookReservesPending(t *testing.T) {
	svc := newTestService(newFakeLedger())

	b, err := svc.Book(context.Background(), mentorID, menteeID, nineAM(), "")
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if b.Status != model.BookingStatusPending || b.PaymentStatus != model.PaymentStatusPending {
		t.Fatalf("expected pending/pending, got %s/%s", b.Status, b.PaymentStatus)
	}
}

func TestBookRejectsInvalidSlot(t *testing.T) {
	svc := newTestService(newFakeLedger())

	slot := nineAM()
	slot.End = slot.Start
	if _, err := svc.Book(context.Background(), mentorID, menteeID, slot, ""); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for empty slot, got %v", err)
	}

	past := nineAM()
	svc.clock = func() time.Time { return monday.Add(11 * time.Hour) }
	if _, err := svc.Book(context.Background(), mentorID, menteeID, past, ""); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for past slot, got %v", err)
	}
}

func TestBookRejectsSlotOutsideWindow(t *testing.T) {
	svc := newTestService(newFakeLedger())

	// Tuesday has no rule at all.
	tuesday := model.Slot{MentorID: mentorID, Start: monday.AddDate(0, 0, 1).Add(9 * time.Hour), End: monday.AddDate(0, 0, 1).Add(10 * time.Hour)}
	if _, err := svc.Book(context.Background(), mentorID, menteeID, tuesday, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a date without availability, got %v", err)
	}

	// Misaligned against the window partition: stale slot, must re-resolve.
	offGrid := model.Slot{MentorID: mentorID, Start: monday.Add(9*time.Hour + 30*time.Minute), End: monday.Add(10*time.Hour + 30*time.Minute)}
	if _, err := svc.Book(context.Background(), mentorID, menteeID, offGrid, ""); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict for a stale slot, got %v", err)
	}
}

func TestBookNormalizesClientOffset(t *testing.T) {
	svc := newTestService(newFakeLedger())
	plusTwo := time.FixedZone("plus2", 2*60*60)

	// 11:00+02:00 is 09:00 UTC, the first offered slot.
	aligned := model.Slot{
		MentorID: mentorID,
		Start:    time.Date(2026, 3, 2, 11, 0, 0, 0, plusTwo),
		End:      time.Date(2026, 3, 2, 12, 0, 0, 0, plusTwo),
	}
	b, err := svc.Book(context.Background(), mentorID, menteeID, aligned, "")
	if err != nil {
		t.Fatalf("Book with offset timestamp failed: %v", err)
	}
	if !b.StartTime.Equal(monday.Add(9 * time.Hour)) {
		t.Fatalf("expected booking at 09:00 UTC, got %s", b.StartTime)
	}

	// 09:00+02:00 is 07:00 UTC, wholly outside the 09:00-12:00 UTC window.
	// The offset must not make it pass validation against local 09:00.
	outside := model.Slot{
		MentorID: mentorID,
		Start:    time.Date(2026, 3, 9, 9, 0, 0, 0, plusTwo),
		End:      time.Date(2026, 3, 9, 10, 0, 0, 0, plusTwo),
	}
	if _, err := svc.Book(context.Background(), mentorID, menteeID, outside, ""); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict for a slot outside the UTC window, got %v", err)
	}
}

func TestBookConcurrentExactOverlap(t *testing.T) {
	svc := newTestService(newFakeLedger())
	otherMentee := uuid.New()

	type result struct{ err error }
	results := make(chan result, 2)
	var start sync.WaitGroup
	start.Add(1)
	for _, mentee := range []uuid.UUID{menteeID, otherMentee} {
		go func(mentee uuid.UUID) {
			start.Wait()
			_, err := svc.Book(context.Background(), mentorID, mentee, nineAM(), "")
			results <- result{err: err}
		}(mentee)
	}
	start.Done()

	var conflicts, successes int
	for i := 0; i < 2; i++ {
		r := <-results
		switch {
		case r.err == nil:
			successes++
		case errors.Is(r.err, ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", r.err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d conflicts", successes, conflicts)
	}
}

func TestBookIdempotencyKeyReplay(t *testing.T) {
	svc := newTestService(newFakeLedger())

	first, err := svc.Book(context.Background(), mentorID, menteeID, nineAM(), "key-1")
	if err != nil {
		t.Fatalf("first Book failed: %v", err)
	}
	second, err := svc.Book(context.Background(), mentorID, menteeID, nineAM(), "key-1")
	if err != nil {
		t.Fatalf("replayed Book failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay created a duplicate booking: %s vs %s", first.ID, second.ID)
	}
}

func TestBookKeylessRetrySameParams(t *testing.T) {
	svc := newTestService(newFakeLedger())

	first, err := svc.Book(context.Background(), mentorID, menteeID, nineAM(), "")
	if err != nil {
		t.Fatalf("first Book failed: %v", err)
	}
	retry, err := svc.Book(context.Background(), mentorID, menteeID, nineAM(), "")
	if err != nil {
		t.Fatalf("identical retry must not conflict with the caller's own booking: %v", err)
	}
	if retry.ID != first.ID {
		t.Fatalf("identical retry created a duplicate booking")
	}
}

func TestConfirmPaymentTransitions(t *testing.T) {
	svc := newTestService(newFakeLedger())

	b, err := svc.Book(context.Background(), mentorID, menteeID, nineAM(), "")
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	confirmed, err := svc.ConfirmPayment(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if confirmed.Status != model.BookingStatusConfirmed || confirmed.PaymentStatus != model.PaymentStatusPaid {
		t.Fatalf("expected confirmed/paid, got %s/%s", confirmed.Status, confirmed.PaymentStatus)
	}

	// A replayed capture event is answered idempotently.
	again, err := svc.ConfirmPayment(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("replayed ConfirmPayment failed: %v", err)
	}
	if again.Status != model.BookingStatusConfirmed {
		t.Fatalf("expected confirmed on replay, got %s", again.Status)
	}

	actor := Actor{ID: menteeID, Role: RoleMentee}
	if _, err := svc.Cancel(context.Background(), actor, b.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if _, err := svc.ConfirmPayment(context.Background(), b.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState confirming a cancelled booking, got %v", err)
	}
}

func TestConfirmPaymentUnknownBooking(t *testing.T) {
	svc := newTestService(newFakeLedger())
	if _, err := svc.ConfirmPayment(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelAuthorization(t *testing.T) {
	svc := newTestService(newFakeLedger())

	b, err := svc.Book(context.Background(), mentorID, menteeID, nineAM(), "")
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	stranger := Actor{ID: uuid.New(), Role: RoleMentee}
	if _, err := svc.Cancel(context.Background(), stranger, b.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for a stranger, got %v", err)
	}

	admin := Actor{ID: uuid.New(), Role: RoleAdmin}
	cancelled, err := svc.Cancel(context.Background(), admin, b.ID)
	if err != nil {
		t.Fatalf("admin Cancel failed: %v", err)
	}
	if cancelled.Status != model.BookingStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	// Second cancel is idempotent, whoever asks among the allowed actors.
	mentor := Actor{ID: mentorID, Role: RoleMentor}
	if _, err := svc.Cancel(context.Background(), mentor, b.ID); err != nil {
		t.Fatalf("repeat Cancel must be idempotent: %v", err)
	}
}

func TestCancelRefundsPaidBooking(t *testing.T) {
	svc := newTestService(newFakeLedger())

	b, err := svc.Book(context.Background(), mentorID, menteeID, nineAM(), "")
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if _, err := svc.ConfirmPayment(context.Background(), b.ID); err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), Actor{ID: menteeID, Role: RoleMentee}, b.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.PaymentStatus != model.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", cancelled.PaymentStatus)
	}
}

func TestCancelFreesRange(t *testing.T) {
	svc := newTestService(newFakeLedger())
	from, to := monday, monday.AddDate(0, 0, 1)

	b, err := svc.Book(context.Background(), mentorID, menteeID, nineAM(), "")
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	slots, err := svc.AvailableSlots(context.Background(), mentorID, from, to, time.Hour)
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 free slots while booked, got %d", len(slots))
	}

	if _, err := svc.Cancel(context.Background(), Actor{ID: menteeID, Role: RoleMentee}, b.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	slots, err = svc.AvailableSlots(context.Background(), mentorID, from, to, time.Hour)
	if err != nil {
		t.Fatalf("AvailableSlots after cancel failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected the cancelled range to be bookable again, got %d slots", len(slots))
	}

	// And a different mentee can actually take it.
	if _, err := svc.Book(context.Background(), mentorID, uuid.New(), nineAM(), ""); err != nil {
		t.Fatalf("rebooking the freed slot failed: %v", err)
	}
}

func TestAvailableSlotsScenario(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)

	slots, err := svc.AvailableSlots(context.Background(), mentorID, monday, monday.AddDate(0, 0, 1), time.Hour)
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	want := []time.Time{monday.Add(9 * time.Hour), monday.Add(10 * time.Hour), monday.Add(11 * time.Hour)}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i := range want {
		if !slots[i].Start.Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], slots[i].Start)
		}
	}
}

func TestAvailableSlotsInvalidArgs(t *testing.T) {
	svc := newTestService(newFakeLedger())
	if _, err := svc.AvailableSlots(context.Background(), mentorID, monday, monday, time.Hour); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for empty date range, got %v", err)
	}
	if _, err := svc.AvailableSlots(context.Background(), mentorID, monday, monday.AddDate(0, 0, 1), 0); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for zero session length, got %v", err)
	}
}

func TestScheduleStoreFailureIsUpstream(t *testing.T) {
	svc := newTestService(newFakeLedger())
	svc.schedules = &fakeScheduleStore{err: errors.New("connection refused")}

	if _, err := svc.AvailableSlots(context.Background(), mentorID, monday, monday.AddDate(0, 0, 1), time.Hour); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if _, err := svc.Book(context.Background(), mentorID, menteeID, nineAM(), ""); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream from Book, got %v", err)
	}
}
