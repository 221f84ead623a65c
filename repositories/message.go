//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"marketchat/contract"
	"marketchat/domain/chat"
	"marketchat/errors"
)

const seqBandwidth = 64

// MessageRepository persists the message log in BadgerDB.
//
// Key layout, all values chronologically sortable thanks to 19-digit
// zero-padded timestamps (lexicographical order):
//
//	msg:{pairKey}:{timestamp_padded}:{seq_padded} -> JSON message (primary)
//	rcv:{receiverID}:{timestamp_padded}:{seq_padded} -> primary key (inbox index)
//	ref:{messageID} -> primary key (patch lookup)
//
// The store-assigned sequence disambiguates two messages accepted at the
// same nanosecond, so relative order is stable across repeated reads.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq *badger.Sequence

	mu     sync.Mutex
	lastAt time.Time
	sink   contract.CommitSink
	clock  func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return &MessageRepository{db: db, log: log, seq: seq, clock: time.Now}, nil
}

// Close releases the unused part of the sequence lease. The badger.DB itself
// belongs to the caller.
func (r *MessageRepository) Close() error {
	return r.seq.Release()
}

// SetCommitSink registers the observer notified after every durable write.
// Must be called before concurrent use.
func (r *MessageRepository) SetCommitSink(sink contract.CommitSink) {
	r.sink = sink
}

// WithClock overrides the timestamp source, for tests.
func (r *MessageRepository) WithClock(clock func() time.Time) *MessageRepository {
	r.clock = clock
	return r
}

// diskMessage is the JSON document stored as a badger value.
type diskMessage struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"sender_id"`
	ReceiverID   string    `json:"receiver_id"`
	SenderName   string    `json:"sender_name"`
	ReceiverName string    `json:"receiver_name,omitempty"`
	Body         string    `json:"body"`
	Lang         string    `json:"lang,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Seq          uint64    `json:"seq"`
	Status       string    `json:"status"`
}

// Append validates the draft, assigns id, timestamp, and sequence, and
// persists the message atomically. Nothing is written when validation or the
// transaction fails.
func (r *MessageRepository) Append(draft chat.Draft) (chat.Message, error) {
	if err := draft.Validate(); err != nil {
		return chat.Message{}, err
	}

	seq, err := r.seq.Next()
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	message := chat.Message{
		ID:           uuid.New(),
		SenderID:     draft.SenderID,
		ReceiverID:   draft.ReceiverID,
		SenderName:   draft.SenderName,
		ReceiverName: draft.ReceiverName,
		Body:         draft.Body,
		Lang:         draft.Lang,
		CreatedAt:    r.nextTimestamp(),
		Seq:          seq,
		Status:       chat.StatusSent,
	}

	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	primary := primaryKey(message)
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primary, bytes); err != nil {
			return err
		}
		if err := txn.Set(inboxKey(message), primary); err != nil {
			return err
		}
		return txn.Set(refKey(message.ID), primary)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	r.notify(message)
	return message, nil
}

// nextTimestamp returns a server timestamp that never goes backwards, even
// when the wall clock does.
func (r *MessageRepository) nextTimestamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	at := r.clock().UTC()
	if at.Before(r.lastAt) {
		at = r.lastAt
	}
	r.lastAt = at
	return at
}

// Patch advances the status of an existing message. Forward-only: a patch
// that would regress or re-apply the current status is a no-op, which makes
// redundant seen passes from concurrent readers safe.
func (r *MessageRepository) Patch(id uuid.UUID, status chat.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", errors.ErrValidationRejected, status)
	}

	var patched *chat.Message
	err := r.db.Update(func(txn *badger.Txn) error {
		primary, err := resolveRef(txn, id)
		if err != nil {
			return err
		}
		message, err := readMessage(txn, primary)
		if err != nil {
			return err
		}
		if !message.Status.CanAdvance(status) {
			return nil
		}
		message.Status = status
		bytes, err := json.Marshal(fromMessage(message))
		if err != nil {
			return err
		}
		if err := txn.Set(primary, bytes); err != nil {
			return err
		}
		patched = &message
		return nil
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrMessageNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	if patched != nil {
		r.notify(*patched)
	}
	return nil
}

// Get fetches a single message by id.
func (r *MessageRepository) Get(id uuid.UUID) (chat.Message, error) {
	var message chat.Message
	err := r.db.View(func(txn *badger.Txn) error {
		primary, err := resolveRef(txn, id)
		if err != nil {
			return err
		}
		message, err = readMessage(txn, primary)
		return err
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrMessageNotFound) {
			return chat.Message{}, err
		}
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return message, nil
}

// QueryConversation scans the pair's primary keys backwards so the cap keeps
// the most recent messages, then restores ascending order.
func (r *MessageRepository) QueryConversation(pair chat.Pair, limit int) ([]chat.Message, error) {
	var messages []chat.Message
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:" + pair.Key() + ":")
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Reverse iteration starts past the newest key of the prefix.
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			var message chat.Message
			err := it.Item().Value(func(value []byte) error {
				var err error
				message, err = decodeMessage(value)
				return err
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	// The scan produced newest-first; flip back to ascending.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// QueryInbox returns every message addressed to receiverID, ascending.
func (r *MessageRepository) QueryInbox(receiverID string) ([]chat.Message, error) {
	var messages []chat.Message
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("rcv:" + receiverID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var primary []byte
			err := it.Item().Value(func(value []byte) error {
				primary = append([]byte{}, value...)
				return nil
			})
			if err != nil {
				return err
			}
			message, err := readMessage(txn, primary)
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return messages, nil
}

func (r *MessageRepository) notify(message chat.Message) {
	if r.sink != nil {
		r.sink.Committed(message)
	}
}

// DecodeStoredMessage decodes a primary badger value back into a message.
// Exists for offline inspection tools; the repository has no other reason to
// expose its value encoding.
func DecodeStoredMessage(value []byte) (chat.Message, error) {
	return decodeMessage(value)
}

func primaryKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%012d", m.Pair().Key(), m.CreatedAt.UnixNano(), m.Seq))
}

func inboxKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("rcv:%s:%019d:%012d", m.ReceiverID, m.CreatedAt.UnixNano(), m.Seq))
}

func refKey(id uuid.UUID) []byte {
	return []byte("ref:" + id.String())
}

func resolveRef(txn *badger.Txn, id uuid.UUID) ([]byte, error) {
	item, err := txn.Get(refKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, fmt.Errorf("%w: %s", errors.ErrMessageNotFound, id)
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func readMessage(txn *badger.Txn, primary []byte) (chat.Message, error) {
	item, err := txn.Get(primary)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return chat.Message{}, fmt.Errorf("%w: key %s", errors.ErrMessageNotFound, primary)
		}
		return chat.Message{}, err
	}
	var message chat.Message
	err = item.Value(func(value []byte) error {
		var err error
		message, err = decodeMessage(value)
		return err
	})
	return message, err
}

func decodeMessage(value []byte) (chat.Message, error) {
	var disk diskMessage
	if err := json.Unmarshal(value, &disk); err != nil {
		return chat.Message{}, err
	}
	return toMessage(disk)
}

func fromMessage(m chat.Message) diskMessage {
	return diskMessage{
		ID:           m.ID.String(),
		SenderID:     m.SenderID,
		ReceiverID:   m.ReceiverID,
		SenderName:   m.SenderName,
		ReceiverName: m.ReceiverName,
		Body:         m.Body,
		Lang:         m.Lang,
		CreatedAt:    m.CreatedAt,
		Seq:          m.Seq,
		Status:       string(m.Status),
	}
}

func toMessage(d diskMessage) (chat.Message, error) {
	parsedID, err := uuid.Parse(d.ID)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{
		ID:           parsedID,
		SenderID:     d.SenderID,
		ReceiverID:   d.ReceiverID,
		SenderName:   d.SenderName,
		ReceiverName: d.ReceiverName,
		Body:         d.Body,
		Lang:         d.Lang,
		CreatedAt:    d.CreatedAt.UTC(),
		Seq:          d.Seq,
		Status:       chat.Status(d.Status),
	}, nil
}
