package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"marketchat/domain/chat"
)

func Test_Search_Is_Scoped_To_The_Conversation(t *testing.T) {
	req := require.New(t)

	index, err := NewMessageIndex(bluge.InMemoryOnlyConfig(), slog.Default())
	req.NoError(err)
	defer index.Close()

	hit := chat.Message{
		ID: uuid.New(), SenderID: "u1", ReceiverID: "u2",
		Body: "the delivery arrives tomorrow morning", CreatedAt: time.Now().UTC(),
	}
	otherPair := chat.Message{
		ID: uuid.New(), SenderID: "u1", ReceiverID: "u3",
		Body: "tomorrow works for me too", CreatedAt: time.Now().UTC(),
	}
	noise := chat.Message{
		ID: uuid.New(), SenderID: "u2", ReceiverID: "u1",
		Body: "thanks, see you then", CreatedAt: time.Now().UTC(),
	}
	for _, m := range []chat.Message{hit, otherPair, noise} {
		req.NoError(index.Index(m))
	}

	ids, err := index.Search(context.Background(), "tomorrow", chat.NewPair("u2", "u1"), 10)
	req.NoError(err)
	req.Equal([]uuid.UUID{hit.ID}, ids)
}

func Test_Search_Reindexes_On_Update(t *testing.T) {
	req := require.New(t)

	index, err := NewMessageIndex(bluge.InMemoryOnlyConfig(), slog.Default())
	req.NoError(err)
	defer index.Close()

	message := chat.Message{
		ID: uuid.New(), SenderID: "u1", ReceiverID: "u2",
		Body: "original wording", CreatedAt: time.Now().UTC(),
	}
	req.NoError(index.Index(message))

	message.Body = "replacement wording"
	req.NoError(index.Index(message))

	ids, err := index.Search(context.Background(), "replacement", chat.NewPair("u1", "u2"), 10)
	req.NoError(err)
	req.Len(ids, 1)

	ids, err = index.Search(context.Background(), "original", chat.NewPair("u1", "u2"), 10)
	req.NoError(err)
	req.Empty(ids)
}
