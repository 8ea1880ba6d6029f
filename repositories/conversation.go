//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"amora/domain"
	"amora/errors"
)

type IConversationRepository interface {
	FindOrCreate(a, b domain.UserID) (domain.Conversation, error)
	Get(id domain.ConversationID) (domain.Conversation, error)
	UpdateLastMessage(id domain.ConversationID, last domain.LastMessage) error
	ForUser(userID domain.UserID) ([]domain.Conversation, error)
}

type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

// conversationRecord is the stored JSON shape of a conversation.
type conversationRecord struct {
	ID          string             `json:"id"`
	MemberA     string             `json:"member_a"`
	MemberB     string             `json:"member_b"`
	LastMessage *lastMessageRecord `json:"last_message,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type lastMessageRecord struct {
	Body      string    `json:"body"`
	SenderID  string    `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Two keys per conversation:
//   - "conv:pair:{min|max}" -> conversation id, the uniqueness constraint
//     on the normalized unordered member pair.
//   - "conv:id:{uuid}"      -> JSON record.
func pairRef(a, b domain.UserID) []byte {
	return []byte("conv:pair:" + domain.PairKey(a, b))
}

func idKey(id domain.ConversationID) []byte {
	return []byte("conv:id:" + string(id))
}

// FindOrCreate resolves the unique conversation for an unordered user
// pair, creating it if absent. Atomicity for concurrent first-contact
// sends comes from Badger's SSI: both racing transactions read the
// missing pair key, only one commit succeeds, the loser retries with
// badger.ErrConflict and finds the winner's record. No in-process
// locking is involved, so the guarantee holds across goroutines that
// share nothing but the store.
func (r ConversationRepository) FindOrCreate(a, b domain.UserID) (domain.Conversation, error) {
	var conv domain.Conversation
	for {
		err := r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(pairRef(a, b))
			if err == nil {
				var id []byte
				if id, err = item.ValueCopy(nil); err != nil {
					return err
				}
				conv, err = getConversation(txn, domain.ConversationID(id))
				return err
			}
			if !stderrors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			now := time.Now().UTC()
			record := conversationRecord{
				ID:        string(domain.NewConversationID()),
				MemberA:   string(a),
				MemberB:   string(b),
				CreatedAt: now,
				UpdatedAt: now,
			}
			data, err := json.Marshal(record)
			if err != nil {
				return err
			}
			if err = txn.Set(pairRef(a, b), []byte(record.ID)); err != nil {
				return err
			}
			if err = txn.Set(idKey(domain.ConversationID(record.ID)), data); err != nil {
				return err
			}
			conv = toConversation(record)
			return nil
		})
		if stderrors.Is(err, badger.ErrConflict) {
			r.log.Debug("Conversation create conflict, retrying",
				"pair", domain.PairKey(a, b))
			continue
		}
		return conv, err
	}
}

func (r ConversationRepository) Get(id domain.ConversationID) (domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		conv, err = getConversation(txn, id)
		return err
	})
	return conv, err
}

// UpdateLastMessage refreshes the cached summary. It is issued strictly
// after the message itself has been persisted; a crash between the two
// writes leaves the summary lagging, which readers must tolerate.
func (r ConversationRepository) UpdateLastMessage(id domain.ConversationID, last domain.LastMessage) error {
	for {
		err := r.db.Update(func(txn *badger.Txn) error {
			record, err := getRecord(txn, id)
			if err != nil {
				return err
			}
			record.LastMessage = &lastMessageRecord{
				Body:      last.Body,
				SenderID:  string(last.SenderID),
				CreatedAt: last.CreatedAt,
			}
			record.UpdatedAt = last.CreatedAt
			data, err := json.Marshal(record)
			if err != nil {
				return err
			}
			return txn.Set(idKey(id), data)
		})
		if stderrors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

// ForUser lists a user's conversations, most recently updated first.
func (r ConversationRepository) ForUser(userID domain.UserID) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("conv:id:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record conversationRecord
				if err := json.Unmarshal(val, &record); err != nil {
					return fmt.Errorf("corrupt conversation record %s: %w", it.Item().Key(), err)
				}
				conv := toConversation(record)
				if conv.HasMember(userID) {
					conversations = append(conversations, conv)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

func getConversation(txn *badger.Txn, id domain.ConversationID) (domain.Conversation, error) {
	record, err := getRecord(txn, id)
	if err != nil {
		return domain.Conversation{}, err
	}
	return toConversation(record), nil
}

func getRecord(txn *badger.Txn, id domain.ConversationID) (conversationRecord, error) {
	item, err := txn.Get(idKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return conversationRecord{}, fmt.Errorf("conversation %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return conversationRecord{}, err
	}
	var record conversationRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &record)
	})
	return record, err
}

func toConversation(record conversationRecord) domain.Conversation {
	conv := domain.Conversation{
		ID:        domain.ConversationID(record.ID),
		MemberA:   domain.UserID(record.MemberA),
		MemberB:   domain.UserID(record.MemberB),
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	if record.LastMessage != nil {
		conv.LastMessage = &domain.LastMessage{
			Body:      record.LastMessage.Body,
			SenderID:  domain.UserID(record.LastMessage.SenderID),
			CreatedAt: record.LastMessage.CreatedAt,
		}
	}
	return conv
}
