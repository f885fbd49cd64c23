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

const minutesPerDay = 24 * 60

// ScheduleHandler exposes a mentor's weekly rules and date exceptions.
// Reads are public so mentees can inspect a mentor's pattern; writes require
// the owning mentor or an admin.
type ScheduleHandler struct {
	repo   *storage.ScheduleRepository
	logger *slog.Logger
}

func NewScheduleHandler(repo *storage.ScheduleRepository, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{repo: repo, logger: logger}
}

type weeklyRuleItem struct {
	Weekday     int `json:"weekday"`
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

type exceptionItem struct {
	Date        string `json:"date"`
	Available   bool   `json:"available"`
	StartMinute *int   `json:"start_minute,omitempty"`
	EndMinute   *int   `json:"end_minute,omitempty"`
}

type scheduleResponse struct {
	MentorID   string           `json:"mentor_id"`
	Rules      []weeklyRuleItem `json:"rules"`
	Exceptions []exceptionItem  `json:"exceptions"`
}

type upsertRuleRequest struct {
	MentorID    string `json:"mentor_id"`
	Weekday     int    `json:"weekday"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

type upsertExceptionRequest struct {
	MentorID    string `json:"mentor_id"`
	Date        string `json:"date"`
	Available   bool   `json:"available"`
	StartMinute *int   `json:"start_minute"`
	EndMinute   *int   `json:"end_minute"`
}

// Get serves GET /api/v1/mentors/schedule. Exceptions are returned for the
// next 90 days unless from/to narrow the window.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mentorID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("mentor_id")))
	if err != nil {
		http.Error(w, "mentor_id must be a uuid", http.StatusBadRequest)
		return
	}

	from := time.Now().UTC().Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, 90)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		if from, err = time.ParseInLocation("2006-01-02", raw, time.UTC); err != nil {
			http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}

	rules, err := h.repo.ListWeeklyRules(r.Context(), mentorID)
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	exceptions, err := h.repo.ListExceptions(r.Context(), mentorID, from, to)
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	resp := scheduleResponse{
		MentorID:   mentorID.String(),
		Rules:      make([]weeklyRuleItem, 0, len(rules)),
		Exceptions: make([]exceptionItem, 0, len(exceptions)),
	}
	for _, rule := range rules {
		resp.Rules = append(resp.Rules, weeklyRuleItem{
			Weekday:     int(rule.Weekday),
			StartMinute: rule.StartMinute,
			EndMinute:   rule.EndMinute,
		})
	}
	for _, exc := range exceptions {
		resp.Exceptions = append(resp.Exceptions, exceptionItem{
			Date:        exc.Date.Format("2006-01-02"),
			Available:   exc.Available,
			StartMinute: exc.StartMinute,
			EndMinute:   exc.EndMinute,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Rules serves PUT and DELETE on /api/v1/mentors/schedule/rules.
func (h *ScheduleHandler) Rules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.upsertRule(w, r)
	case http.MethodDelete:
		h.deleteRule(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandler) upsertRule(w http.ResponseWriter, r *http.Request) {
	var req upsertRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	mentorID, ok := h.authorizeOwner(w, r, req.MentorID)
	if !ok {
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		http.Error(w, "weekday must be 0 (Sunday) through 6 (Saturday)", http.StatusBadRequest)
		return
	}
	if !validMinuteWindow(req.StartMinute, req.EndMinute) {
		http.Error(w, "start_minute must be before end_minute, both within the day", http.StatusBadRequest)
		return
	}

	rule, err := h.repo.UpsertWeeklyRule(r.Context(), model.WeeklyRule{
		MentorID:    mentorID,
		Weekday:     time.Weekday(req.Weekday),
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
	})
	if err != nil {
		http.Error(w, "failed to save rule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, weeklyRuleItem{
		Weekday:     int(rule.Weekday),
		StartMinute: rule.StartMinute,
		EndMinute:   rule.EndMinute,
	})
}

func (h *ScheduleHandler) deleteRule(w http.ResponseWriter, r *http.Request) {
	mentorID, ok := h.authorizeOwner(w, r, r.URL.Query().Get("mentor_id"))
	if !ok {
		return
	}
	weekday, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("weekday")))
	if err != nil || weekday < 0 || weekday > 6 {
		http.Error(w, "weekday must be 0 (Sunday) through 6 (Saturday)", http.StatusBadRequest)
		return
	}

	deleted, err := h.repo.DeleteWeeklyRule(r.Context(), mentorID, time.Weekday(weekday))
	if err != nil {
		http.Error(w, "failed to delete rule", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "rule not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Exceptions serves PUT and DELETE on /api/v1/mentors/schedule/exceptions.
func (h *ScheduleHandler) Exceptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.upsertException(w, r)
	case http.MethodDelete:
		h.deleteException(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandler) upsertException(w http.ResponseWriter, r *http.Request) {
	var req upsertExceptionRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	mentorID, ok := h.authorizeOwner(w, r, req.MentorID)
	if !ok {
		return
	}
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Date), time.UTC)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	// Times only make sense on an open exception, and come as a pair.
	if !req.Available {
		req.StartMinute, req.EndMinute = nil, nil
	}
	if (req.StartMinute == nil) != (req.EndMinute == nil) {
		http.Error(w, "start_minute and end_minute must be set together", http.StatusBadRequest)
		return
	}
	if req.StartMinute != nil && !validMinuteWindow(*req.StartMinute, *req.EndMinute) {
		http.Error(w, "start_minute must be before end_minute, both within the day", http.StatusBadRequest)
		return
	}

	exc, err := h.repo.UpsertException(r.Context(), model.DateException{
		MentorID:    mentorID,
		Date:        date,
		Available:   req.Available,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
	})
	if err != nil {
		http.Error(w, "failed to save exception", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, exceptionItem{
		Date:        exc.Date.Format("2006-01-02"),
		Available:   exc.Available,
		StartMinute: exc.StartMinute,
		EndMinute:   exc.EndMinute,
	})
}

func (h *ScheduleHandler) deleteException(w http.ResponseWriter, r *http.Request) {
	mentorID, ok := h.authorizeOwner(w, r, r.URL.Query().Get("mentor_id"))
	if !ok {
		return
	}
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(r.URL.Query().Get("date")), time.UTC)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	deleted, err := h.repo.DeleteException(r.Context(), mentorID, date)
	if err != nil {
		http.Error(w, "failed to delete exception", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "exception not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizeOwner resolves the target mentor for a schedule write. Mentors may
// only touch their own schedule; admins may name any mentor_id.
func (h *ScheduleHandler) authorizeOwner(w http.ResponseWriter, r *http.Request, rawMentorID string) (uuid.UUID, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return uuid.Nil, false
	}

	switch actor.Role {
	case booking.RoleMentor:
		if raw := strings.TrimSpace(rawMentorID); raw != "" && raw != actor.ID.String() {
			http.Error(w, "mentors may only edit their own schedule", http.StatusForbidden)
			return uuid.Nil, false
		}
		return actor.ID, true
	case booking.RoleAdmin:
		mentorID, err := uuid.Parse(strings.TrimSpace(rawMentorID))
		if err != nil {
			http.Error(w, "mentor_id must be a uuid", http.StatusBadRequest)
			return uuid.Nil, false
		}
		return mentorID, true
	default:
		http.Error(w, "schedule writes require a mentor or admin", http.StatusForbidden)
		return uuid.Nil, false
	}
}

func validMinuteWindow(start, end int) bool {
	return start >= 0 && end <= minutesPerDay && start < end
}
