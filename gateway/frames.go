package gateway

import (
	"encoding/json"
)

// inboundFrame is the envelope every client frame arrives in. Data is
// decoded per event type and validated before any state is touched.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outboundFrame mirrors the envelope on the way out; Data is the domain
// event itself, Event its wire kind.
type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

const (
	eventJoinConversation = "join_conversation"
	eventTyping           = "typing"
	eventMarkSeen         = "mark_seen"
	eventSendMessage      = "send_message"
)

type joinConversationPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
	IsTyping       bool   `json:"isTyping"`
}

type markSeenPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId" validate:"required"`
}

type sendMessagePayload struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Body       string `json:"body" validate:"required"`
}
