package outbox

import (
	"context"
	"time"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/otelx"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/postgres"
	"github.com/jackc/pgx/v5"
)

type Repository struct {
	pool *postgres.Pool
}

func NewRepository(pool *postgres.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes the event within the caller's transaction so it is atomic
// with the state change. The current trace context rides along so the
// publisher can continue the trace.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, evt Event) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate)
	return err
}

type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// FetchUnpublished claims up to limit rows with SKIP LOCKED so concurrent
// publishers never double-deliver within the poll window.
func (r *Repository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.AggregateType, &rec.AggregateID, &rec.EventType, &rec.Payload, &rec.Traceparent, &rec.Tracestate, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}
