package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/booking"
	"github.com/google/uuid"
)

type SlotsHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewSlotsHandler(svc *booking.Service, logger *slog.Logger) *SlotsHandler {
	return &SlotsHandler{svc: svc, logger: logger}
}

type slotItem struct {
	MentorID  string `json:"mentor_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// List serves GET /api/v1/mentors/slots. The to date is inclusive, so the
// resolver range runs to the following midnight.
func (h *SlotsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	mentorID, err := uuid.Parse(strings.TrimSpace(q.Get("mentor_id")))
	if err != nil {
		http.Error(w, "mentor_id must be a uuid", http.StatusBadRequest)
		return
	}

	from, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(q.Get("from")), time.UTC)
	if err != nil {
		http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(q.Get("to")), time.UTC)
	if err != nil {
		http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	sessionMins := 60
	if raw := strings.TrimSpace(q.Get("session_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 8*60 {
			http.Error(w, "session_minutes must be between 1 and 480", http.StatusBadRequest)
			return
		}
		sessionMins = n
	}

	slots, err := h.svc.AvailableSlots(r.Context(), mentorID, from, to.AddDate(0, 0, 1), time.Duration(sessionMins)*time.Minute)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			MentorID:  s.MentorID.String(),
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}
