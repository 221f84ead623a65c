package chat

// Status is the delivery state attached to each message.
// It only moves forward: sent -> delivered -> seen.
type Status string

const (
	StatusSent Status = "sent"
	// StatusDelivered is part of the state model but no write path assigns it
	// today. It is reserved for a relay acknowledgement step.
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
)

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusSeen:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is one of the known delivery states.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// CanAdvance reports whether moving from s to next is a forward transition.
// A status never regresses, and re-applying the current status is not an
// advancement (callers treat it as a no-op).
func (s Status) CanAdvance(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() > s.rank()
}
