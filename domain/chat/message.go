// Package chat contains the core concepts of the conversation subsystem.
// A Message is the only persisted entity; conversations and inbox entries
// are derived from the message log and never stored on their own.
package chat

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Message represents one directed message between two participants.
// Everything except Status is immutable once the store accepted it.
type Message struct {
	ID           uuid.UUID
	SenderID     string
	ReceiverID   string
	SenderName   string
	ReceiverName string
	Body         string
	Lang         string // ISO 639-1 code detected at send time, may be empty
	CreatedAt    time.Time
	Seq          uint64 // store insertion sequence, tie-break on equal CreatedAt
	Status       Status
}

// Pair returns the unordered participant pair this message belongs to.
func (m Message) Pair() Pair {
	return NewPair(m.SenderID, m.ReceiverID)
}

// SortMessages orders messages by CreatedAt ascending, using the store
// insertion sequence on equal timestamps so the order is stable across reads.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].Seq < messages[j].Seq
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}
