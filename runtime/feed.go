// Package runtime orchestrates the conversation subsystem: it owns the live
// feed of standing queries over the message store and the per-session
// conversation controller. It contains no domain rules of its own.
package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"marketchat/contract"
	"marketchat/domain/chat"
	"marketchat/errors"
)

// StandingQuery describes what a subscription watches. Exactly one of Pair
// or Receiver is set: a conversation query matches messages flowing in
// either direction between the two participants, an inbox query matches
// messages addressed to the receiver.
type StandingQuery struct {
	Pair     *chat.Pair
	Receiver string
	Limit    int
}

func ConversationQuery(pair chat.Pair, limit int) StandingQuery {
	return StandingQuery{Pair: &pair, Limit: limit}
}

func InboxQuery(receiverID string) StandingQuery {
	return StandingQuery{Receiver: receiverID}
}

// Matches reports whether a committed message concerns this query.
func (q StandingQuery) Matches(m chat.Message) bool {
	if q.Pair != nil {
		return q.Pair.Contains(m.SenderID) && q.Pair.Contains(m.ReceiverID)
	}
	return m.ReceiverID == q.Receiver
}

func (q StandingQuery) run(store contract.IMessageStore) ([]chat.Message, error) {
	if q.Pair != nil {
		return store.QueryConversation(*q.Pair, q.Limit)
	}
	return store.QueryInbox(q.Receiver)
}

// SnapshotFunc receives the full current result set of a standing query,
// not a diff. It is invoked on the committing goroutine and must not call
// back into the owning subscription.
type SnapshotFunc func(snapshot []chat.Message)

// ErrorFunc receives standing-query failures. The subscription stays
// registered and retries on the next commit, so a failure means "stale",
// never "frozen".
type ErrorFunc func(err error)

// Subscription is one standing query. Refresh and Cancel share the handle
// mutex, which gives two guarantees: snapshots are delivered one at a time
// in query order, and once Cancel returns no further callback fires.
type Subscription struct {
	feed  *Feed
	id    uint64
	query StandingQuery

	mu       sync.Mutex
	canceled bool
	deliver  SnapshotFunc
	onError  ErrorFunc
}

// Cancel detaches the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	s.canceled = true
	s.mu.Unlock()
	s.feed.remove(s.id)
}

// refresh re-runs the standing query and delivers the fresh snapshot.
// Holding s.mu across the store read serializes deliveries per handle, so a
// later snapshot can never be overtaken by an earlier one.
func (s *Subscription) refresh(store contract.IMessageStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.canceled {
		return
	}
	snapshot, err := s.query.run(store)
	if err != nil {
		if s.onError != nil {
			s.onError(fmt.Errorf("standing query failed: %w", err))
		}
		return
	}
	s.deliver(snapshot)
}

// Feed turns store commits into snapshot deliveries for every matching
// standing query. It implements contract.CommitSink; the repository calls
// Committed after each durable write.
type Feed struct {
	mu     sync.RWMutex
	log    *slog.Logger
	store  contract.IMessageStore
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

func NewFeed(store contract.IMessageStore, log *slog.Logger) *Feed {
	return &Feed{
		log:   log,
		store: store,
		subs:  make(map[uint64]*Subscription),
	}
}

// Subscribe registers a standing query and synchronously delivers its
// initial snapshot before returning. When the initial read fails the
// subscription is still registered: onError is told and the next commit
// re-attempts, matching the re-open-on-failure contract.
func (f *Feed) Subscribe(query StandingQuery, deliver SnapshotFunc, onError ErrorFunc) (*Subscription, error) {
	if deliver == nil {
		return nil, fmt.Errorf("%w: nil snapshot callback", errors.ErrValidationRejected)
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, errors.ErrFeedClosed
	}
	f.nextID++
	sub := &Subscription{
		feed:    f,
		id:      f.nextID,
		query:   query,
		deliver: deliver,
		onError: onError,
	}
	f.subs[sub.id] = sub
	f.mu.Unlock()

	sub.refresh(f.store)
	return sub, nil
}

// Committed re-runs every standing query the message concerns and pushes a
// fresh full snapshot to its subscriber.
func (f *Feed) Committed(m chat.Message) {
	f.mu.RLock()
	matching := make([]*Subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		if sub.query.Matches(m) {
			matching = append(matching, sub)
		}
	}
	f.mu.RUnlock()

	for _, sub := range matching {
		sub.refresh(f.store)
	}
}

// Close cancels every remaining subscription and rejects new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	remaining := make([]*Subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		remaining = append(remaining, sub)
	}
	f.mu.Unlock()

	for _, sub := range remaining {
		sub.Cancel()
	}
	f.log.Debug("Feed closed", "subscriptions", len(remaining))
}

func (f *Feed) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
}
