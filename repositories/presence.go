//go:generate go run go.uber.org/mock/mockgen -source=presence.go -destination=../mocks/mock_presence_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"amora/domain"
	"amora/errors"
)

type IPresenceRepository interface {
	SetOnline(userID domain.UserID, at time.Time) error
	SetOffline(userID domain.UserID, at time.Time) error
	SetTyping(userID domain.UserID, conversationID *domain.ConversationID) error
	Get(userID domain.UserID) (domain.Presence, error)
}

type PresenceRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewPresenceRepository(db *badger.DB, log *slog.Logger) PresenceRepository {
	return PresenceRepository{db: db, log: log}
}

type presenceRecord struct {
	UserID     string    `json:"user_id"`
	IsOnline   bool      `json:"is_online"`
	TypingIn   *string   `json:"typing_in,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

func presenceKey(userID domain.UserID) []byte {
	return []byte("presence:" + string(userID))
}

// SetOnline upserts the record with isOnline=true. LastSeenAt never
// moves backwards, whatever order the connection events land in.
func (r PresenceRepository) SetOnline(userID domain.UserID, at time.Time) error {
	return r.upsert(userID, func(record *presenceRecord) {
		record.IsOnline = true
		record.LastSeenAt = laterOf(record.LastSeenAt, at)
	})
}

// SetOffline clears the ephemeral fields and advances LastSeenAt.
func (r PresenceRepository) SetOffline(userID domain.UserID, at time.Time) error {
	return r.upsert(userID, func(record *presenceRecord) {
		record.IsOnline = false
		record.TypingIn = nil
		record.LastSeenAt = laterOf(record.LastSeenAt, at)
	})
}

// SetTyping records which conversation the user is typing in, or clears
// it when conversationID is nil.
func (r PresenceRepository) SetTyping(userID domain.UserID, conversationID *domain.ConversationID) error {
	return r.upsert(userID, func(record *presenceRecord) {
		if conversationID == nil {
			record.TypingIn = nil
			return
		}
		id := string(*conversationID)
		record.TypingIn = &id
	})
}

func (r PresenceRepository) Get(userID domain.UserID) (domain.Presence, error) {
	var presence domain.Presence
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(presenceKey(userID))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("presence for %s: %w", userID, errors.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var record presenceRecord
			if err := json.Unmarshal(val, &record); err != nil {
				return err
			}
			presence = toPresence(record)
			return nil
		})
	})
	return presence, err
}

func (r PresenceRepository) upsert(userID domain.UserID, mutate func(*presenceRecord)) error {
	for {
		err := r.db.Update(func(txn *badger.Txn) error {
			record := presenceRecord{UserID: string(userID)}
			item, err := txn.Get(presenceKey(userID))
			if err == nil {
				err = item.Value(func(val []byte) error {
					return json.Unmarshal(val, &record)
				})
			}
			if err != nil && !stderrors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			mutate(&record)

			data, err := json.Marshal(record)
			if err != nil {
				return err
			}
			return txn.Set(presenceKey(userID), data)
		})
		if stderrors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func toPresence(record presenceRecord) domain.Presence {
	presence := domain.Presence{
		UserID:     domain.UserID(record.UserID),
		IsOnline:   record.IsOnline,
		LastSeenAt: record.LastSeenAt,
	}
	if record.TypingIn != nil {
		id := domain.ConversationID(*record.TypingIn)
		presence.TypingIn = &id
	}
	return presence
}
