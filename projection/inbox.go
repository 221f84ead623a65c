// Package projection builds derived views from message snapshots.
// Views are recomputed in full on every snapshot delivery; they hold no
// state of their own and are never authoritative.
package projection

import (
	"github.com/samber/lo"

	"marketchat/domain/chat"
)

// CounterpartSummary is one entry of a viewer's conversation list: a distinct
// sender together with their latest message and how many of their messages
// the viewer has not seen yet.
type CounterpartSummary struct {
	CounterpartID   string
	CounterpartName string
	LastMessage     chat.Message
	Unread          int
}

// CounterpartSummaries derives the conversation list for viewerID from an
// inbox snapshot (messages addressed to the viewer).
//
// List order is the first-appearance order of each sender in the snapshot.
// The representative message per sender is the one with the highest
// (CreatedAt, Seq), regardless of snapshot iteration order, so the entry is
// always the temporally latest message and ties resolve deterministically.
func CounterpartSummaries(viewerID string, snapshot []chat.Message) []CounterpartSummary {
	bySender := make(map[string]int)
	var summaries []CounterpartSummary

	for _, message := range snapshot {
		if message.ReceiverID != viewerID {
			continue
		}
		idx, known := bySender[message.SenderID]
		if !known {
			bySender[message.SenderID] = len(summaries)
			summaries = append(summaries, CounterpartSummary{
				CounterpartID:   message.SenderID,
				CounterpartName: message.SenderName,
				LastMessage:     message,
			})
			continue
		}
		if newer(message, summaries[idx].LastMessage) {
			summaries[idx].LastMessage = message
			summaries[idx].CounterpartName = message.SenderName
		}
	}

	for i := range summaries {
		sender := summaries[i].CounterpartID
		summaries[i].Unread = lo.CountBy(snapshot, func(m chat.Message) bool {
			return m.SenderID == sender && m.ReceiverID == viewerID && m.Status != chat.StatusSeen
		})
	}
	return summaries
}

func newer(a, b chat.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.Seq > b.Seq
	}
	return a.CreatedAt.After(b.CreatedAt)
}
