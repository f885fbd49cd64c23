package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/booking"
)

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeDomainError maps the service error taxonomy onto HTTP statuses. The
// sentinel is matched with errors.Is so wrapped detail survives into the body.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, booking.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, booking.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrSlotConflict):
		status = http.StatusConflict
	case errors.Is(err, booking.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, booking.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, booking.ErrUpstream):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}
