package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConversationID string

// LastMessage is the cached summary of the most recent message,
// denormalized onto the conversation for cheap inbox listings.
type LastMessage struct {
	Body      string
	SenderID  UserID
	CreatedAt time.Time
}

// Conversation is the unique durable record of a two-party messaging
// relationship. For any unordered pair of users at most one
// Conversation exists. Created lazily on first contact, never deleted.
type Conversation struct {
	ID          ConversationID
	MemberA     UserID
	MemberB     UserID
	LastMessage *LastMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasMember reports whether the user is one of the two participants.
func (c Conversation) HasMember(userID UserID) bool {
	return c.MemberA == userID || c.MemberB == userID
}

// OtherMember returns the peer of the given participant.
func (c Conversation) OtherMember(userID UserID) UserID {
	if c.MemberA == userID {
		return c.MemberB
	}
	return c.MemberA
}

// PairKey normalizes an unordered user pair into a stable storage key
// fragment. Both orderings of the same pair map to the same key, which
// is what makes the pair-uniqueness constraint enforceable in the store.
func PairKey(a, b UserID) string {
	if b < a {
		a, b = b, a
	}
	return string(a) + "|" + string(b)
}

func NewConversationID() ConversationID {
	return ConversationID(uuid.NewString())
}
