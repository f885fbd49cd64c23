package storage

import (
	"context"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/postgres"
)

// PaymentEventRepository deduplicates payment-provider webhook deliveries.
// Providers redeliver events; only the first insert per (provider, event id)
// should drive a state transition.
type PaymentEventRepository struct {
	pool *postgres.Pool
}

func NewPaymentEventRepository(pool *postgres.Pool) *PaymentEventRepository {
	return &PaymentEventRepository{pool: pool}
}

// Record stores the event and reports whether it was seen for the first time.
func (r *PaymentEventRepository) Record(ctx context.Context, provider, providerEventID, eventType string, payload []byte) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO payment_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, provider, providerEventID, eventType, payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
