//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"amora/domain"
)

type IMessageRepository interface {
	Append(message domain.Message) error
	Messages(conversationID domain.ConversationID, cursor *string) ([]domain.Message, *string, error)
	MarkSeen(conversationID domain.ConversationID, userID domain.UserID) (int, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type messageRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	Body           string    `json:"body"`
	SeenBy         []string  `json:"seen_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// messageKey formats "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order equals createdAt order).
//  2. Make the order total and stable: the uuid breaks ties between two
//     messages persisted at the same nanosecond.
func messageKey(conversationID domain.ConversationID, at time.Time, id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", conversationID, at.UnixNano(), id))
}

func messagePrefix(conversationID domain.ConversationID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", conversationID))
}

// Append persists a new message. Records are immutable after this call
// except for SeenBy growth through MarkSeen.
func (m MessageRepository) Append(message domain.Message) error {
	data, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message.ConversationID, message.CreatedAt, message.ID), data)
	})
}

// Messages retrieves a page of messages in createdAt order using a
// prefix scan; the padded key makes the scan naturally chronological.
// The returned cursor is the key suffix of the last message, to be
// passed back for the next page.
func (m MessageRepository) Messages(conversationID domain.ConversationID, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string

	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversationID)
		prefixLen := len(prefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seekKey := prefix
		if cursor != nil {
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}
		it.Seek(seekKey)

		// The cursor points at the last row of the previous page.
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(val []byte) error {
				var record messageRecord
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				messages = append(messages, toMessage(record))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, &lastKey, nil
}

// MarkSeen adds the user to the SeenBy set of every message in the
// conversation the user did not send and has not yet seen. The update
// is bulk, idempotent and monotonic: re-invoking after the first call
// touches nothing. Returns the number of messages updated.
func (m MessageRepository) MarkSeen(conversationID domain.ConversationID, userID domain.UserID) (int, error) {
	for {
		updated := 0
		err := m.db.Update(func(txn *badger.Txn) error {
			prefix := messagePrefix(conversationID)
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()

			type pending struct {
				key  []byte
				data []byte
			}
			var writes []pending

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				var record messageRecord
				err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &record)
				})
				if err != nil {
					return err
				}
				if record.SenderID == string(userID) || contains(record.SeenBy, string(userID)) {
					continue
				}
				record.SeenBy = append(record.SeenBy, string(userID))
				data, err := json.Marshal(record)
				if err != nil {
					return err
				}
				writes = append(writes, pending{key: item.KeyCopy(nil), data: data})
			}

			// Writes are applied after iteration; mutating under an open
			// iterator is not allowed by Badger.
			for _, w := range writes {
				if err := txn.Set(w.key, w.data); err != nil {
					return err
				}
			}
			updated = len(writes)
			return nil
		})
		if stderrors.Is(err, badger.ErrConflict) {
			// Concurrent MarkSeen from another session of the same user;
			// the operation is commutative, just replay it.
			continue
		}
		return updated, err
	}
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func fromMessage(message domain.Message) messageRecord {
	seenBy := make([]string, 0, len(message.SeenBy))
	for _, id := range message.SeenBy {
		seenBy = append(seenBy, string(id))
	}
	return messageRecord{
		ID:             string(message.ID),
		ConversationID: string(message.ConversationID),
		SenderID:       string(message.SenderID),
		ReceiverID:     string(message.ReceiverID),
		Body:           message.Body,
		SeenBy:         seenBy,
		CreatedAt:      message.CreatedAt.UTC(),
	}
}

func toMessage(record messageRecord) domain.Message {
	seenBy := make([]domain.UserID, 0, len(record.SeenBy))
	for _, id := range record.SeenBy {
		seenBy = append(seenBy, domain.UserID(id))
	}
	return domain.Message{
		ID:             domain.MessageID(record.ID),
		ConversationID: domain.ConversationID(record.ConversationID),
		SenderID:       domain.UserID(record.SenderID),
		ReceiverID:     domain.UserID(record.ReceiverID),
		Body:           record.Body,
		SeenBy:         seenBy,
		CreatedAt:      record.CreatedAt,
	}
}
