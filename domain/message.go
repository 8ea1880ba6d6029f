// This file defines the Message entity and its invariants.
// Messages are immutable once created, except for monotonic growth
// of the SeenBy set (ids are only ever added, never removed).
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageID string

// Message is one immutable chat entry inside a conversation. Ordering
// within a conversation is by CreatedAt, ties broken by ID so that the
// order is total and stable.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       UserID
	ReceiverID     UserID
	Body           string
	SeenBy         []UserID
	CreatedAt      time.Time
}

// SeenByUser reports whether the user is already in the SeenBy set.
// Growth of the set is managed by the store, never by the caller.
func (m Message) SeenByUser(userID UserID) bool {
	for _, id := range m.SeenBy {
		if id == userID {
			return true
		}
	}
	return false
}

func NewMessageID() MessageID {
	return MessageID(uuid.NewString())
}
