package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"marketchat/domain/chat"
	"marketchat/errors"
)

func openTestRepository(t *testing.T) *MessageRepository {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	repository, err := NewMessageRepository(db, slog.Default())
	req.NoError(err)
	t.Cleanup(func() { _ = repository.Close() })
	return repository
}

func draft(sender, receiver, body string) chat.Draft {
	return chat.Draft{
		SenderID:     sender,
		ReceiverID:   receiver,
		SenderName:   "Name of " + sender,
		ReceiverName: "Name of " + receiver,
		Body:         body,
	}
}

func Test_Append_Assigns_Server_Fields(t *testing.T) {
	req := require.New(t)
	repository := openTestRepository(t)

	message, err := repository.Append(draft("u1", "u2", "hi there"))
	req.NoError(err)
	req.NotEqual("00000000-0000-0000-0000-000000000000", message.ID.String())
	req.Equal(chat.StatusSent, message.Status)
	req.False(message.CreatedAt.IsZero())

	fetched, err := repository.Get(message.ID)
	req.NoError(err)
	req.Equal(message, fetched)
}

func Test_Append_Rejects_Invalid_Drafts_Without_Writing(t *testing.T) {
	req := require.New(t)
	repository := openTestRepository(t)

	_, err := repository.Append(draft("u1", "u2", "   "))
	req.ErrorIs(err, errors.ErrEmptyMessage)

	_, err = repository.Append(draft("u1", "u1", "hello me"))
	req.ErrorIs(err, errors.ErrSelfAddressed)

	messages, err := repository.QueryInbox("u2")
	req.NoError(err)
	req.Empty(messages)
}

func Test_Query_Conversation_Matches_Both_Directions(t *testing.T) {
	req := require.New(t)
	repository := openTestRepository(t)

	_, err := repository.Append(draft("u1", "u2", "ping"))
	req.NoError(err)
	_, err = repository.Append(draft("u2", "u1", "pong"))
	req.NoError(err)
	_, err = repository.Append(draft("u1", "u3", "other thread"))
	req.NoError(err)

	messages, err := repository.QueryConversation(chat.NewPair("u2", "u1"), 50)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("ping", messages[0].Body)
	req.Equal("pong", messages[1].Body)
}

func Test_Query_Conversation_Cap_Keeps_Most_Recent(t *testing.T) {
	req := require.New(t)
	repository := openTestRepository(t)

	for _, body := range []string{"one", "two", "three", "four"} {
		_, err := repository.Append(draft("u1", "u2", body))
		req.NoError(err)
	}

	messages, err := repository.QueryConversation(chat.NewPair("u1", "u2"), 2)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("three", messages[0].Body)
	req.Equal("four", messages[1].Body)
}

func Test_Identical_Timestamps_Keep_A_Stable_Order(t *testing.T) {
	req := require.New(t)
	repository := openTestRepository(t)

	frozen := time.Now().UTC()
	repository.WithClock(func() time.Time { return frozen })

	_, err := repository.Append(draft("u1", "u2", "first"))
	req.NoError(err)
	_, err = repository.Append(draft("u1", "u2", "second"))
	req.NoError(err)

	for range 3 {
		messages, err := repository.QueryConversation(chat.NewPair("u1", "u2"), 50)
		req.NoError(err)
		req.Len(messages, 2)
		req.Equal(messages[0].CreatedAt, messages[1].CreatedAt)
		req.Equal("first", messages[0].Body)
		req.Equal("second", messages[1].Body)
	}
}

func Test_Timestamps_Never_Go_Backwards(t *testing.T) {
	req := require.New(t)
	repository := openTestRepository(t)

	base := time.Now().UTC()
	times := []time.Time{base, base.Add(-time.Hour)}
	idx := 0
	repository.WithClock(func() time.Time {
		at := times[idx]
		idx++
		return at
	})

	first, err := repository.Append(draft("u1", "u2", "now"))
	req.NoError(err)
	second, err := repository.Append(draft("u1", "u2", "clock jumped back"))
	req.NoError(err)

	req.False(second.CreatedAt.Before(first.CreatedAt))
}

func Test_Patch_Advances_But_Never_Regresses(t *testing.T) {
	req := require.New(t)
	repository := openTestRepository(t)

	message, err := repository.Append(draft("u1", "u2", "read me"))
	req.NoError(err)

	req.NoError(repository.Patch(message.ID, chat.StatusSeen))
	fetched, err := repository.Get(message.ID)
	req.NoError(err)
	req.Equal(chat.StatusSeen, fetched.Status)

	// Re-applying and regressing are both no-ops.
	req.NoError(repository.Patch(message.ID, chat.StatusSeen))
	req.NoError(repository.Patch(message.ID, chat.StatusSent))
	fetched, err = repository.Get(message.ID)
	req.NoError(err)
	req.Equal(chat.StatusSeen, fetched.Status)
}

func Test_Patch_Unknown_Message(t *testing.T) {
	req := require.New(t)
	repository := openTestRepository(t)

	message, err := repository.Append(draft("u1", "u2", "anchor"))
	req.NoError(err)

	unknown := message.ID
	unknown[0] ^= 0xFF
	req.ErrorIs(repository.Patch(unknown, chat.StatusSeen), errors.ErrMessageNotFound)
}

func Test_Inbox_Only_Contains_Addressed_Messages(t *testing.T) {
	req := require.New(t)
	repository := openTestRepository(t)

	_, err := repository.Append(draft("u1", "u2", "for u2"))
	req.NoError(err)
	_, err = repository.Append(draft("u3", "u2", "also for u2"))
	req.NoError(err)
	_, err = repository.Append(draft("u2", "u1", "sent by u2"))
	req.NoError(err)

	inbox, err := repository.QueryInbox("u2")
	req.NoError(err)
	req.Len(inbox, 2)
	for _, message := range inbox {
		req.Equal("u2", message.ReceiverID)
	}
}

type recordingSink struct {
	committed []chat.Message
}

func (s *recordingSink) Committed(m chat.Message) {
	s.committed = append(s.committed, m)
}

func Test_Commit_Sink_Observes_Appends_And_Patches(t *testing.T) {
	req := require.New(t)
	repository := openTestRepository(t)

	sink := &recordingSink{}
	repository.SetCommitSink(sink)

	message, err := repository.Append(draft("u1", "u2", "observe me"))
	req.NoError(err)
	req.NoError(repository.Patch(message.ID, chat.StatusSeen))
	// A redundant patch is not a commit.
	req.NoError(repository.Patch(message.ID, chat.StatusSeen))

	req.Len(sink.committed, 2)
	req.Equal(chat.StatusSent, sink.committed[0].Status)
	req.Equal(chat.StatusSeen, sink.committed[1].Status)
}
