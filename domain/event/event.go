package event

import (
	"time"

	"amora/domain"
)

// DomainEvent is anything the engine pushes towards live sessions.
// Kind is the wire-level event name clients switch on.
type DomainEvent interface {
	Kind() string
}

// MessageReceived is delivered to every live session of the receiver.
type MessageReceived struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	MessageID      domain.MessageID      `json:"messageId"`
	SenderID       domain.UserID         `json:"senderId"`
	Body           string                `json:"body"`
	CreatedAt      time.Time             `json:"createdAt"`

	// ReceiverID is routing metadata, not part of the payload.
	ReceiverID domain.UserID `json:"-"`
}

func (MessageReceived) Kind() string { return "receive_message" }

// MessageDelivered acknowledges a send whose receiver had at least one
// live session at send time. Routed only to the originating session.
type MessageDelivered struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	MessageID      domain.MessageID      `json:"messageId"`
	ReceiverID     domain.UserID         `json:"receiverId"`

	OriginSession domain.SessionID `json:"-"`
}

func (MessageDelivered) Kind() string { return "message_delivered" }

// MessageSent acknowledges a send that was persisted while the receiver
// was offline. Routed only to the originating session.
type MessageSent struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	MessageID      domain.MessageID      `json:"messageId"`
	ReceiverID     domain.UserID         `json:"receiverId"`

	OriginSession domain.SessionID `json:"-"`
}

func (MessageSent) Kind() string { return "message_sent" }

// MessagesSeen is broadcast to every session subscribed to the
// conversation. It carries no message ids: consumers apply it as "all
// prior messages not sent by SeenBy are now seen by SeenBy".
type MessagesSeen struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	SeenBy         domain.UserID         `json:"seenBy"`

	// Members carries the conversation membership for routing, so the
	// event reaches both parties even before they join the conversation.
	Members [2]domain.UserID `json:"-"`
}

func (MessagesSeen) Kind() string { return "messages_seen" }

// UserTyping is scoped to sessions subscribed to the conversation,
// excluding the typist's own session.
type UserTyping struct {
	UserID   domain.UserID `json:"userId"`
	IsTyping bool          `json:"isTyping"`

	ConversationID domain.ConversationID `json:"conversationId"`
	OriginSession  domain.SessionID      `json:"-"`
}

func (UserTyping) Kind() string { return "user_typing" }

// UserStatus announces an online/offline transition to all connected
// sessions.
type UserStatus struct {
	UserID   domain.UserID `json:"userId"`
	IsOnline bool          `json:"isOnline"`
}

func (UserStatus) Kind() string { return "user_status" }

// SendFailed surfaces a fault to the originating session only.
// It never reaches any other session.
type SendFailed struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`

	OriginSession domain.SessionID `json:"-"`
}

func (SendFailed) Kind() string { return "error" }
