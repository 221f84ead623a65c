package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketchat/errors"
)

func Test_Pair_Is_Unordered(t *testing.T) {
	req := require.New(t)

	ab := NewPair("alice", "bob")
	ba := NewPair("bob", "alice")

	req.Equal(ab, ba)
	req.Equal("alice|bob", ab.Key())
	req.True(ab.Contains("alice"))
	req.True(ab.Contains("bob"))
	req.False(ab.Contains("clara"))
	req.Equal("bob", ab.Other("alice"))
	req.Equal("alice", ab.Other("bob"))
	req.Equal("", ab.Other("clara"))
}

func Test_Status_Only_Advances_Forward(t *testing.T) {
	req := require.New(t)

	req.True(StatusSent.CanAdvance(StatusDelivered))
	req.True(StatusSent.CanAdvance(StatusSeen))
	req.True(StatusDelivered.CanAdvance(StatusSeen))

	req.False(StatusSeen.CanAdvance(StatusSent))
	req.False(StatusSeen.CanAdvance(StatusDelivered))
	req.False(StatusSeen.CanAdvance(StatusSeen))
	req.False(StatusSent.CanAdvance(StatusSent))
	req.False(StatusSent.CanAdvance(Status("read")))
}

func Test_Sort_Breaks_Timestamp_Ties_With_Sequence(t *testing.T) {
	req := require.New(t)

	at := time.Now().UTC()
	messages := []Message{
		{Body: "third", CreatedAt: at.Add(time.Second), Seq: 1},
		{Body: "second", CreatedAt: at, Seq: 7},
		{Body: "first", CreatedAt: at, Seq: 3},
	}

	SortMessages(messages)

	req.Equal("first", messages[0].Body)
	req.Equal("second", messages[1].Body)
	req.Equal("third", messages[2].Body)
}

func Test_Draft_Validation(t *testing.T) {
	req := require.New(t)

	valid := Draft{
		SenderID:     "u1",
		ReceiverID:   "u2",
		SenderName:   "Alice",
		ReceiverName: "Bob",
		Body:         "hello",
	}
	req.NoError(valid.Validate())

	empty := valid
	empty.Body = "   "
	req.ErrorIs(empty.Validate(), errors.ErrEmptyMessage)

	self := valid
	self.ReceiverID = self.SenderID
	req.ErrorIs(self.Validate(), errors.ErrSelfAddressed)

	anonymous := valid
	anonymous.SenderName = ""
	req.Error(anonymous.Validate())
}
