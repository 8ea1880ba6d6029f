package domain

import (
	"time"
)

// SendMessageCommand carries an inbound message sending intent.
// OriginSession identifies the session that issued the command so the
// delivery acknowledgment can be routed back to it alone.
type SendMessageCommand struct {
	SenderID      UserID
	ReceiverID    UserID
	Body          string
	OriginSession SessionID
	CreatedAt     time.Time
}

type MarkSeenCommand struct {
	ConversationID ConversationID
	UserID         UserID
}

type TypingCommand struct {
	UserID         UserID
	ConversationID ConversationID
	IsTyping       bool
}

type JoinConversationCommand struct {
	UserID         UserID
	SessionID      SessionID
	ConversationID ConversationID
}
