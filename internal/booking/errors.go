package booking

import "errors"

// Error taxonomy for the booking core. Handlers map these to HTTP statuses;
// everything else that bubbles up from a dependency is wrapped as ErrUpstream
// so callers can retry with backoff without double-reserving.
var (
	// ErrInvalidRange marks a malformed time range or slot (start >= end,
	// start in the past). Local validation, never retried.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrNotFound marks a missing booking or a date with no availability
	// configured.
	ErrNotFound = errors.New("not found")

	// ErrSlotConflict marks an overlap detected at commit time, including
	// lost races with a concurrent booker. The displayed slot is stale; the
	// caller must re-resolve slots, not resubmit.
	ErrSlotConflict = errors.New("slot already booked")

	// ErrInvalidState marks an illegal booking state transition.
	ErrInvalidState = errors.New("invalid booking state")

	// ErrUnauthorized marks an actor without permission for the operation.
	ErrUnauthorized = errors.New("not allowed")

	// ErrUpstream marks a data-source failure. Retryable by the caller; the
	// core itself never retries silently.
	ErrUpstream = errors.New("upstream unavailable")
)

// isDomainErr reports whether err already belongs to the taxonomy above.
func isDomainErr(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidRange, ErrNotFound, ErrSlotConflict,
		ErrInvalidState, ErrUnauthorized, ErrUpstream,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
