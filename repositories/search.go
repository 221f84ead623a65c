package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"marketchat/domain/chat"
)

// MessageIndex maintains a full-text index over message bodies so a viewer
// can search inside a conversation. The index is a convenience view: the
// badger log stays the source of truth and the index can be rebuilt from it.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(cfg bluge.Config, log *slog.Logger) (*MessageIndex, error) {
	writer, err := bluge.OpenWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening bluge index: %w", err)
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

func (ix *MessageIndex) Close() error {
	return ix.writer.Close()
}

// Index upserts one message. Bodies are analyzed; the pair key is stored
// verbatim so searches stay scoped to a single conversation.
func (ix *MessageIndex) Index(m chat.Message) error {
	doc := bluge.NewDocument(m.ID.String()).
		AddField(bluge.NewTextField("body", m.Body)).
		AddField(bluge.NewKeywordField("pair", m.Pair().Key())).
		AddField(bluge.NewKeywordField("sender", m.SenderID)).
		AddField(bluge.NewDateTimeField("created_at", m.CreatedAt))
	return ix.writer.Update(doc.ID(), doc)
}

// Search returns the ids of the best-matching messages exchanged between the
// pair, most relevant first.
func (ix *MessageIndex) Search(ctx context.Context, terms string, pair chat.Pair, limit int) ([]uuid.UUID, error) {
	reader, err := ix.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening index reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			ix.log.Warn("Failed to close index reader", "err", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("body")).
		AddMust(bluge.NewTermQuery(pair.Key()).SetField("pair"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	var ids []uuid.UUID
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("iterating matches: %w", err)
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					ids = append(ids, id)
				}
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("reading stored fields: %w", err)
		}
	}
	return ids, nil
}
