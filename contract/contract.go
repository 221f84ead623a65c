//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"marketchat/domain/chat"
)

// IMessageStore is the persistence boundary of the conversation subsystem.
// Append and Patch are the only write paths; Patch touches nothing but the
// status field and must stay idempotent.
type IMessageStore interface {
	Append(draft chat.Draft) (chat.Message, error)
	Patch(id uuid.UUID, status chat.Status) error
	Get(id uuid.UUID) (chat.Message, error)

	// QueryConversation returns the messages exchanged between the pair in
	// either direction, ascending by (CreatedAt, Seq), capped at the most
	// recent limit entries. limit <= 0 means no cap.
	QueryConversation(pair chat.Pair, limit int) ([]chat.Message, error)

	// QueryInbox returns all messages addressed to receiverID, ascending.
	QueryInbox(receiverID string) ([]chat.Message, error)
}

// CommitSink observes every write accepted by the store, after it is durable.
// The live feed implements this to re-run standing queries.
type CommitSink interface {
	Committed(m chat.Message)
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
}
