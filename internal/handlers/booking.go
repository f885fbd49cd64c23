package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/auth"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/booking"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/model"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/storage"
	"github.com/google/uuid"
)

type BookingHandler struct {
	svc    *booking.Service
	repo   *storage.BookingRepository
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, repo *storage.BookingRepository, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, repo: repo, logger: logger}
}

type createBookingRequest struct {
	MentorID  string `json:"mentor_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
}

type bookingItem struct {
	BookingID     string `json:"booking_id"`
	MentorID      string `json:"mentor_id"`
	MenteeID      string `json:"mentee_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toBookingItem(b model.Booking) bookingItem {
	item := bookingItem{
		BookingID:     b.ID.String(),
		MentorID:      b.MentorID.String(),
		MenteeID:      b.MenteeID.String(),
		StartTime:     b.StartTime.UTC().Format(time.RFC3339),
		EndTime:       b.EndTime.UTC().Format(time.RFC3339),
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

// Create serves POST /api/v1/bookings. The authenticated actor becomes the
// mentee; a repeated request with the same Idempotency-Key returns the
// original booking.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	mentorID, err := uuid.Parse(strings.TrimSpace(req.MentorID))
	if err != nil {
		http.Error(w, "mentor_id must be a uuid", http.StatusBadRequest)
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if !endTime.After(startTime) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	slot := model.Slot{MentorID: mentorID, Start: startTime, End: endTime}
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	created, err := h.svc.Book(r.Context(), mentorID, actor.ID, slot, idempotencyKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingItem(created))
}

// Cancel serves POST /api/v1/bookings/cancel. Authorization (mentor, mentee
// or admin of the booking) is enforced by the service.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req cancelBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	bookingID, err := uuid.Parse(strings.TrimSpace(req.BookingID))
	if err != nil {
		http.Error(w, "booking_id must be a uuid", http.StatusBadRequest)
		return
	}

	cancelled, err := h.svc.Cancel(r.Context(), actor, bookingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingItem(cancelled))
}

// List serves GET /api/v1/bookings, returning the actor's bookings on either
// side of the marketplace depending on role=mentor|mentee.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	asMentor := actor.Role == booking.RoleMentor
	switch strings.TrimSpace(r.URL.Query().Get("role")) {
	case "":
	case booking.RoleMentor:
		asMentor = true
	case booking.RoleMentee:
		asMentor = false
	default:
		http.Error(w, "role must be mentor or mentee", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	bookings, err := h.repo.ListForActor(r.Context(), actor.ID, asMentor, limit)
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingItem(b))
	}
	writeJSON(w, http.StatusOK, items)
}
