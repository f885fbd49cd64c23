package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/booking"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/model"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/outbox"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/postgres"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/timeslot"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const bookingColumns = `id, mentor_id, mentee_id, start_time, end_time, status, payment_status, cancelled_at, created_at`

// BookingRepository is the Postgres booking ledger. The overlap invariant is
// enforced by an exclusion constraint on (mentor_id, tstzrange) filtered to
// active statuses, so of two concurrent reservations for overlapping ranges
// at most one commit succeeds; the loser surfaces as ErrSlotConflict.
type BookingRepository struct {
	pool   *postgres.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *postgres.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: outboxRepo}
}

func (r *BookingRepository) Occupied(ctx context.Context, mentorID uuid.UUID, from, to time.Time) ([]timeslot.Range, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM bookings
		WHERE mentor_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, mentorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occupied []timeslot.Range
	for rows.Next() {
		var rg timeslot.Range
		if err := rows.Scan(&rg.Start, &rg.End); err != nil {
			return nil, err
		}
		occupied = append(occupied, rg)
	}
	return occupied, rows.Err()
}

// Reserve inserts b with status pending inside one transaction together with
// its idempotency record and outbox event. A replayed idempotency key returns
// the previously created booking; a keyless retry that trips the exclusion
// constraint is resolved to the caller's own identical active booking.
func (r *BookingRepository) Reserve(ctx context.Context, b *model.Booking, idempotencyKey string) (model.Booking, bool, error) {
	if !b.StartTime.Before(b.EndTime) {
		return model.Booking{}, false, fmt.Errorf("%w: start must precede end", booking.ErrInvalidRange)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if idempotencyKey != "" {
		bookingID, exists, err := r.lockIdempotencyKey(ctx, tx, b.MenteeID, idempotencyKey)
		if err != nil {
			return model.Booking{}, false, err
		}
		if exists && bookingID != uuid.Nil {
			replayed, err := getBooking(ctx, tx, bookingID)
			if err != nil {
				return model.Booking{}, false, err
			}
			if err := tx.Commit(ctx); err != nil {
				return model.Booking{}, false, err
			}
			return replayed, true, nil
		}
	}

	created, err := insertBooking(ctx, tx, b)
	if err != nil {
		if !isExclusionViolation(err) {
			return model.Booking{}, false, err
		}
		// The statement aborted the transaction; resolve the retry case on
		// the pool instead.
		_ = tx.Rollback(ctx)
		if existing, ok, lookupErr := r.findOwnActiveBooking(ctx, b); lookupErr == nil && ok {
			return existing, true, nil
		}
		return model.Booking{}, false, fmt.Errorf("%w: mentor %s at %s", booking.ErrSlotConflict, b.MentorID, b.StartTime.UTC().Format(time.RFC3339))
	}

	if err := r.insertEvent(ctx, tx, created, "booking.session.booked.v1", nil); err != nil {
		return model.Booking{}, false, err
	}
	if idempotencyKey != "" {
		if err := r.finalizeIdempotencyKey(ctx, tx, created.MenteeID, idempotencyKey, created.ID); err != nil {
			return model.Booking{}, false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, false, err
	}
	return created, false, nil
}

func (r *BookingRepository) Get(ctx context.Context, id uuid.UUID) (model.Booking, error) {
	return getBooking(ctx, r.pool, id)
}

func (r *BookingRepository) MarkConfirmed(ctx context.Context, id uuid.UUID) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'confirmed',
			payment_status = 'paid',
			updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+bookingColumns, id)
	confirmed, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Booking{}, r.transitionFailure(ctx, id, "confirm")
		}
		return model.Booking{}, err
	}

	if err := r.insertEvent(ctx, tx, confirmed, "booking.session.confirmed.v1", nil); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return confirmed, nil
}

func (r *BookingRepository) MarkCancelled(ctx context.Context, id uuid.UUID, refund bool) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			payment_status = CASE WHEN $2 THEN 'refunded' ELSE payment_status END,
			updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'confirmed')
		RETURNING `+bookingColumns, id, refund)
	cancelled, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Booking{}, r.transitionFailure(ctx, id, "cancel")
		}
		return model.Booking{}, err
	}

	if err := r.insertEvent(ctx, tx, cancelled, "booking.session.cancelled.v1", map[string]any{"refunded": refund}); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return cancelled, nil
}

// ListForActor returns bookings where the actor participates as mentor or
// mentee, newest first.
func (r *BookingRepository) ListForActor(ctx context.Context, actorID uuid.UUID, asMentor bool, limit int) ([]model.Booking, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	column := "mentee_id"
	if asMentor {
		column = "mentor_id"
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE `+column+` = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *BookingRepository) lockIdempotencyKey(ctx context.Context, tx pgx.Tx, menteeID uuid.UUID, key string) (uuid.UUID, bool, error) {
	bookingID, err := selectIdempotencyForUpdate(ctx, tx, menteeID, key)
	if err == nil {
		return bookingID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (mentee_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (mentee_id, idempotency_key) DO NOTHING
	`, menteeID, key)
	if err != nil {
		return uuid.Nil, false, err
	}
	bookingID, err = selectIdempotencyForUpdate(ctx, tx, menteeID, key)
	if err != nil {
		return uuid.Nil, false, err
	}
	return bookingID, false, nil
}

func (r *BookingRepository) finalizeIdempotencyKey(ctx context.Context, tx pgx.Tx, menteeID uuid.UUID, key string, bookingID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $3, updated_at = now()
		WHERE mentee_id = $1 AND idempotency_key = $2
	`, menteeID, key, bookingID)
	return err
}

func (r *BookingRepository) findOwnActiveBooking(ctx context.Context, b *model.Booking) (model.Booking, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE mentor_id = $1
			AND mentee_id = $2
			AND start_time = $3
			AND end_time = $4
			AND status IN ('pending', 'confirmed')
	`, b.MentorID, b.MenteeID, b.StartTime, b.EndTime)
	existing, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, false, nil
	}
	if err != nil {
		return model.Booking{}, false, err
	}
	return existing, true, nil
}

// transitionFailure distinguishes a missing booking from one in the wrong
// state after a guarded UPDATE matched no row.
func (r *BookingRepository) transitionFailure(ctx context.Context, id uuid.UUID, op string) error {
	current, err := getBooking(ctx, r.pool, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot %s a %s booking", booking.ErrInvalidState, op, current.Status)
}

func (r *BookingRepository) insertEvent(ctx context.Context, tx pgx.Tx, b model.Booking, eventType string, extra map[string]any) error {
	payload := map[string]any{
		"booking_id":     b.ID,
		"mentor_id":      b.MentorID,
		"mentee_id":      b.MenteeID,
		"start_time":     b.StartTime.UTC().Format(time.RFC3339),
		"end_time":       b.EndTime.UTC().Format(time.RFC3339),
		"status":         b.Status,
		"payment_status": b.PaymentStatus,
	}
	for k, v := range extra {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID.String(),
		EventType:     eventType,
		Payload:       body,
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.MentorID,
		&b.MenteeID,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.PaymentStatus,
		&b.CancelledAt,
		&b.CreatedAt,
	)
	return b, err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getBooking(ctx context.Context, q querier, id uuid.UUID) (model.Booking, error) {
	row := q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, fmt.Errorf("%w: booking %s", booking.ErrNotFound, id)
	}
	return b, err
}

func insertBooking(ctx context.Context, tx pgx.Tx, b *model.Booking) (model.Booking, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO bookings (mentor_id, mentee_id, start_time, end_time, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+bookingColumns,
		b.MentorID, b.MenteeID, b.StartTime, b.EndTime, b.Status, b.PaymentStatus)
	return scanBooking(row)
}

func selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, menteeID uuid.UUID, key string) (uuid.UUID, error) {
	var bookingID *uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT booking_id
		FROM booking_idempotency_keys
		WHERE mentee_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, menteeID, key).Scan(&bookingID)
	if err != nil {
		return uuid.Nil, err
	}
	if bookingID == nil {
		return uuid.Nil, nil
	}
	return *bookingID, nil
}

// isExclusionViolation matches pg error 23P01, raised by the bookings
// no-overlap constraint.
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}
