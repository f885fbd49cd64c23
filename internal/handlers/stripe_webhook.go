package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/booking"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// PaymentEventRecorder deduplicates provider webhook deliveries by event id.
type PaymentEventRecorder interface {
	Record(ctx context.Context, provider, providerEventID, eventType string, payload []byte) (bool, error)
}

type StripeWebhookHandler struct {
	svc       *booking.Service
	events    PaymentEventRecorder
	secret    string
	tolerance time.Duration
	logger    *slog.Logger
}

func NewStripeWebhookHandler(svc *booking.Service, events PaymentEventRecorder, secret string, logger *slog.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		svc:       svc,
		events:    events,
		secret:    secret,
		tolerance: 5 * time.Minute,
		logger:    logger,
	}
}

// Handle serves POST /api/v1/payments/stripe/webhook (no JWT auth; the
// signature is the auth). Provider events are recorded by event id so
// replays can be spotted; the confirm itself is idempotent either way.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.secret, h.tolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	evtType := string(evt.Type)
	h.logger.Info("payment provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
	)

	switch evtType {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &intent); err != nil {
			h.logger.Error("stripe: invalid payment intent payload", "err", err)
			break
		}
		bookingID, err := uuid.Parse(strings.TrimSpace(intent.Metadata["booking_id"]))
		if err != nil {
			h.logger.Warn("stripe: missing or invalid booking_id metadata", "provider_event_id", evt.ID)
			break
		}
		// 5xx makes Stripe redeliver, which only helps transient failures.
		// A capture for a cancelled or unknown booking will never become
		// confirmable, so those are acked and left to manual follow-up.
		if _, err := h.svc.ConfirmPayment(r.Context(), bookingID); err != nil {
			if errors.Is(err, booking.ErrInvalidState) || errors.Is(err, booking.ErrNotFound) {
				h.logger.Warn("stripe: capture for unconfirmable booking",
					"booking_id", bookingID,
					"provider_event_id", evt.ID,
					"err", err,
				)
				break
			}
			writeDomainError(w, err)
			return
		}

	case "payment_intent.payment_failed":
		h.logger.Warn("stripe: payment failed", "provider_event_id", evt.ID)
	}

	fresh, err := h.events.Record(r.Context(), "stripe", evt.ID, evtType, body)
	if err != nil {
		http.Error(w, "failed to record provider event", http.StatusInternalServerError)
		return
	}
	if !fresh {
		h.logger.Info("payment provider event replayed", "provider", "stripe", "provider_event_id", evt.ID)
		writeJSON(w, http.StatusOK, map[string]any{"status": "duplicate"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
