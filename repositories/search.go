//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_repository.go -package=mocks
package repositories

import (
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"

	"amora/domain"
)

type ISearchRepository interface {
	Index(message domain.Message) error
	Search(ctx context.Context, conversationID domain.ConversationID, query string, limit int) ([]domain.MessageID, error)
}

// SearchRepository maintains a Bluge full-text index over message
// bodies. It is a projection: the message log stays the source of
// truth, and an index write failure must never fail the send path.
type SearchRepository struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger) SearchRepository {
	return SearchRepository{writer: writer, log: log}
}

func (s SearchRepository) Index(message domain.Message) error {
	doc := bluge.NewDocument(string(message.ID)).
		AddField(bluge.NewTextField("body", message.Body)).
		AddField(bluge.NewKeywordField("conversation_id", string(message.ConversationID)))
	return s.writer.Update(doc.ID(), doc)
}

// Search returns ids of messages in the conversation matching the
// query, best first.
func (s SearchRepository) Search(ctx context.Context, conversationID domain.ConversationID, query string, limit int) ([]domain.MessageID, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("Failed to close bluge reader", "error", err)
		}
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("body")).
		AddMust(bluge.NewTermQuery(string(conversationID)).SetField("conversation_id"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var ids []domain.MessageID
	match, err := iterator.Next()
	for err == nil && match != nil {
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, domain.MessageID(value))
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}
