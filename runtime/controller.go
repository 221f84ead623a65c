package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"marketchat/auth"
	"marketchat/contract"
	"marketchat/domain/chat"
	"marketchat/errors"
	"marketchat/moderation"
	"marketchat/observability"
	"marketchat/projection"
	"marketchat/repositories"
)

const defaultConversationLimit = 50

// Controller drives one viewer's conversation session: the inbox overview,
// the selected conversation, sending, and the seen pass. All exported
// methods are safe for concurrent use.
//
// Locking rule: c.mu is never held across repo.Append, repo.Patch, or feed
// calls. Those operations fire commit callbacks that re-enter the
// controller, so holding the mutex over them would deadlock.
type Controller struct {
	viewer   auth.Viewer
	repo     contract.IMessageStore
	feed     *Feed
	screener *moderation.Screener
	index    *repositories.MessageIndex
	stats    *observability.SessionStats
	log      *slog.Logger
	limit    int

	mu              sync.Mutex
	closed          bool
	inboxSub        *Subscription
	convSub         *Subscription
	counterpartID   string
	counterpartName string
	counterparts    []projection.CounterpartSummary
	thread          []chat.Message
	compose         string

	seenWG sync.WaitGroup
}

func NewController(viewer auth.Viewer, repo contract.IMessageStore, feed *Feed, log *slog.Logger) *Controller {
	return &Controller{
		viewer: viewer,
		repo:   repo,
		feed:   feed,
		log:    log,
		limit:  defaultConversationLimit,
	}
}

// WithScreener routes outgoing bodies through moderation before storage.
func (c *Controller) WithScreener(screener *moderation.Screener) *Controller {
	c.screener = screener
	return c
}

// WithIndex mirrors sent messages into the search index.
func (c *Controller) WithIndex(index *repositories.MessageIndex) *Controller {
	c.index = index
	return c
}

func (c *Controller) WithStats(stats *observability.SessionStats) *Controller {
	c.stats = stats
	return c
}

// WithConversationLimit caps how many recent messages a conversation
// snapshot holds.
func (c *Controller) WithConversationLimit(limit int) *Controller {
	if limit > 0 {
		c.limit = limit
	}
	return c
}

// OpenInbox starts the standing inbox query for the viewer. The first
// overview is available once OpenInbox returns.
func (c *Controller) OpenInbox() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.ErrSessionClosed
	}
	if c.inboxSub != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	sub, err := c.feed.Subscribe(InboxQuery(c.viewer.ID), c.applyInbox, c.reportSyncFailure)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.Cancel()
		return errors.ErrSessionClosed
	}
	c.inboxSub = sub
	c.mu.Unlock()
	return nil
}

// SelectCounterpart switches the session to the conversation with the given
// participant. The previous conversation subscription is fully canceled
// before the new one starts, so a stale snapshot can never land on the new
// thread.
func (c *Controller) SelectCounterpart(id, name string) error {
	if id == "" {
		return errors.ErrNoCounterpartSelected
	}
	if id == c.viewer.ID {
		return errors.ErrSelfAddressed
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.ErrSessionClosed
	}
	prev := c.convSub
	c.convSub = nil
	c.counterpartID = id
	c.counterpartName = name
	c.thread = nil
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}

	pair := chat.NewPair(c.viewer.ID, id)
	sub, err := c.feed.Subscribe(
		ConversationQuery(pair, c.limit),
		func(snapshot []chat.Message) { c.applyThread(id, snapshot) },
		c.reportSyncFailure,
	)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed || c.counterpartID != id {
		c.mu.Unlock()
		sub.Cancel()
		return nil
	}
	c.convSub = sub
	c.mu.Unlock()
	return nil
}

// Send stores a message from the viewer to the selected counterpart. The
// body stays in the compose buffer until the store confirms the write, so a
// failed send loses nothing.
func (c *Controller) Send(body string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.ErrSessionClosed
	}
	c.compose = body
	counterpartID := c.counterpartID
	counterpartName := c.counterpartName
	c.mu.Unlock()

	if counterpartID == "" {
		return errors.ErrNoCounterpartSelected
	}

	draft := chat.Draft{
		SenderID:     c.viewer.ID,
		ReceiverID:   counterpartID,
		SenderName:   c.viewer.FullName,
		ReceiverName: counterpartName,
		Body:         strings.TrimSpace(body),
	}
	if c.screener != nil {
		verdict := c.screener.Screen(draft.Body)
		draft.Body = verdict.Body
		draft.Lang = verdict.Lang
		if verdict.Masked {
			c.log.Info("Outgoing message masked", "receiver", counterpartID)
		}
	}

	message, err := c.repo.Append(draft)
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}

	if c.index != nil {
		if err := c.index.Index(message); err != nil {
			c.log.Warn("Search indexing failed", "message", message.ID, "error", err)
		}
	}
	if c.stats != nil {
		c.stats.IncrMessagesSent()
	}

	c.mu.Lock()
	c.compose = ""
	c.mu.Unlock()
	return nil
}

// Counterparts returns the current inbox overview, one entry per
// counterpart, most recently heard-from data included.
func (c *Controller) Counterparts() []projection.CounterpartSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]projection.CounterpartSummary, len(c.counterparts))
	copy(out, c.counterparts)
	return out
}

// Thread returns the current conversation snapshot, oldest first.
func (c *Controller) Thread() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Message, len(c.thread))
	copy(out, c.thread)
	return out
}

func (c *Controller) ComposeBuffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compose
}

func (c *Controller) Viewer() auth.Viewer {
	return c.viewer
}

// SearchThread runs a full-text query scoped to the selected conversation
// and returns the matching stored messages.
func (c *Controller) SearchThread(ctx context.Context, terms string) ([]chat.Message, error) {
	if c.index == nil {
		return nil, nil
	}

	c.mu.Lock()
	counterpartID := c.counterpartID
	c.mu.Unlock()
	if counterpartID == "" {
		return nil, errors.ErrNoCounterpartSelected
	}

	pair := chat.NewPair(c.viewer.ID, counterpartID)
	ids, err := c.index.Search(ctx, terms, pair, c.limit)
	if err != nil {
		return nil, err
	}

	matches := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		message, err := c.repo.Get(id)
		if err != nil {
			continue
		}
		matches = append(matches, message)
	}
	chat.SortMessages(matches)
	return matches, nil
}

// Close cancels the session's subscriptions and waits for any in-flight
// seen pass. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	inboxSub := c.inboxSub
	convSub := c.convSub
	c.inboxSub = nil
	c.convSub = nil
	c.mu.Unlock()

	if inboxSub != nil {
		inboxSub.Cancel()
	}
	if convSub != nil {
		convSub.Cancel()
	}
	c.seenWG.Wait()
}

func (c *Controller) applyInbox(snapshot []chat.Message) {
	summaries := projection.CounterpartSummaries(c.viewer.ID, snapshot)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.counterparts = summaries
	c.mu.Unlock()

	if c.stats != nil {
		c.stats.IncrSnapshotsDelivered()
	}
}

// applyThread installs a conversation snapshot and schedules the seen pass
// for incoming messages it contains. The pass runs on its own goroutine:
// patching inside the delivery callback would re-enter the feed while the
// subscription lock is held.
func (c *Controller) applyThread(counterpartID string, snapshot []chat.Message) {
	c.mu.Lock()
	if c.closed || c.counterpartID != counterpartID {
		c.mu.Unlock()
		return
	}
	c.thread = snapshot

	var unseen []uuid.UUID
	for _, m := range snapshot {
		if m.ReceiverID == c.viewer.ID && m.Status != chat.StatusSeen {
			unseen = append(unseen, m.ID)
		}
	}
	c.mu.Unlock()

	if c.stats != nil {
		c.stats.IncrSnapshotsDelivered()
	}
	if len(unseen) == 0 {
		return
	}

	c.seenWG.Add(1)
	go func() {
		defer c.seenWG.Done()
		c.markSeen(unseen)
	}()
}

// markSeen patches incoming messages to seen. Patches are idempotent and
// only move status forward, so overlapping passes are harmless.
func (c *Controller) markSeen(ids []uuid.UUID) {
	var applied uint64
	for _, id := range ids {
		if err := c.repo.Patch(id, chat.StatusSeen); err != nil {
			c.log.Warn("Seen patch failed", "message", id, "error", err)
			continue
		}
		applied++
	}
	if c.stats != nil && applied > 0 {
		c.stats.IncrPatchesApplied(applied)
	}
}

func (c *Controller) reportSyncFailure(err error) {
	c.log.Warn("Live sync degraded, will retry on next commit", "error", err)
	if c.stats != nil {
		c.stats.IncrSyncFailures()
	}
}
