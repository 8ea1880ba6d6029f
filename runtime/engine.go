package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"amora/contract"
	"amora/domain"
	"amora/domain/event"
	"amora/errors"
	"amora/moderation"
	"amora/repositories"
)

// Engine coordinates the send-message and mark-seen flows: resolve the
// conversation, persist, then label delivery from a single snapshot of
// the receiver's live sessions. It holds no lock of its own across any
// store call; all races on first-contact conversation creation are
// settled inside the store.
type Engine struct {
	convRepo   repositories.IConversationRepository
	msgRepo    repositories.IMessageRepository
	searchRepo repositories.ISearchRepository
	directory  contract.IDirectory
	moderator  moderation.Moderator
	events     chan<- event.DomainEvent
	log        *slog.Logger
}

func NewEngine(
	convRepo repositories.IConversationRepository,
	msgRepo repositories.IMessageRepository,
	searchRepo repositories.ISearchRepository,
	directory contract.IDirectory,
	moderator moderation.Moderator,
	events chan<- event.DomainEvent,
	log *slog.Logger,
) *Engine {
	return &Engine{
		convRepo:   convRepo,
		msgRepo:    msgRepo,
		searchRepo: searchRepo,
		directory:  directory,
		moderator:  moderator,
		events:     events,
		log:        log,
	}
}

// SendMessage runs the full send protocol. A persistence failure is
// fatal to the request: no events are emitted and the fault goes back
// to the sender alone. Exactly one acknowledgment is emitted per
// outcome: delivered when the receiver had at least one live session,
// sent otherwise.
func (e *Engine) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) error {
	if strings.TrimSpace(cmd.Body) == "" || cmd.ReceiverID == "" {
		return fmt.Errorf("%w: body and receiverId are required", errors.ErrInvalidRequest)
	}
	if cmd.ReceiverID == cmd.SenderID {
		return fmt.Errorf("%w: cannot message yourself", errors.ErrInvalidRequest)
	}

	// The body is sanitized before persistence so that history reads and
	// live delivery always carry the same text.
	body, censored := e.moderator.Censor(cmd.Body)
	if len(censored) > 0 {
		info := whatlanggo.Detect(cmd.Body)
		e.log.Warn("Message censored",
			"sender", cmd.SenderID,
			"words", len(censored),
			"lang", info.Lang.Iso6391())
	}

	conv, err := e.convRepo.FindOrCreate(cmd.SenderID, cmd.ReceiverID)
	if err != nil {
		return fmt.Errorf("%w: resolving conversation: %v", errors.ErrStoreUnavailable, err)
	}

	createdAt := cmd.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	message := domain.Message{
		ID:             domain.NewMessageID(),
		ConversationID: conv.ID,
		SenderID:       cmd.SenderID,
		ReceiverID:     cmd.ReceiverID,
		Body:           body,
		CreatedAt:      createdAt,
	}
	if err := e.msgRepo.Append(message); err != nil {
		return fmt.Errorf("%w: persisting message: %v", errors.ErrStoreUnavailable, err)
	}

	// Summary write happens-after the message persist. The message is
	// already durable, so a failure here only leaves the summary lagging
	// until the next send; it must not fail the request.
	err = e.convRepo.UpdateLastMessage(conv.ID, domain.LastMessage{
		Body:      body,
		SenderID:  cmd.SenderID,
		CreatedAt: createdAt,
	})
	if err != nil {
		e.log.Warn("Failed to update conversation summary",
			"conversation", conv.ID, "error", err)
	}

	if err := e.searchRepo.Index(message); err != nil {
		e.log.Warn("Failed to index message", "message", message.ID, "error", err)
	}

	// Single liveness snapshot; the label is decided here and nowhere
	// else. A receiver connecting after this point gets the message from
	// a later history fetch, not from a redelivery.
	receiverSinks := e.directory.SessionsFor(cmd.ReceiverID)
	if len(receiverSinks) > 0 {
		e.emit(event.MessageReceived{
			ConversationID: conv.ID,
			MessageID:      message.ID,
			SenderID:       cmd.SenderID,
			Body:           body,
			CreatedAt:      createdAt,
			ReceiverID:     cmd.ReceiverID,
		})
		e.emit(event.MessageDelivered{
			ConversationID: conv.ID,
			MessageID:      message.ID,
			ReceiverID:     cmd.ReceiverID,
			OriginSession:  cmd.OriginSession,
		})
	} else {
		e.emit(event.MessageSent{
			ConversationID: conv.ID,
			MessageID:      message.ID,
			ReceiverID:     cmd.ReceiverID,
			OriginSession:  cmd.OriginSession,
		})
	}
	return nil
}

// MarkSeen bulk-marks every message in the conversation not sent by the
// user as seen by them, then notifies both members. Idempotent: a
// repeat call updates nothing and still emits the notification.
func (e *Engine) MarkSeen(ctx context.Context, cmd domain.MarkSeenCommand) error {
	conv, err := e.convRepo.Get(cmd.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasMember(cmd.UserID) {
		return fmt.Errorf("%w: user %s is not a member of conversation %s",
			errors.ErrInvalidRequest, cmd.UserID, cmd.ConversationID)
	}

	updated, err := e.msgRepo.MarkSeen(cmd.ConversationID, cmd.UserID)
	if err != nil {
		return fmt.Errorf("%w: marking seen: %v", errors.ErrStoreUnavailable, err)
	}
	e.log.Debug("Messages marked seen",
		"conversation", cmd.ConversationID, "user", cmd.UserID, "updated", updated)

	e.emit(event.MessagesSeen{
		ConversationID: cmd.ConversationID,
		SeenBy:         cmd.UserID,
		Members:        [2]domain.UserID{conv.MemberA, conv.MemberB},
	})
	return nil
}

// JoinConversation subscribes a session to a conversation's scoped
// broadcasts after checking membership.
func (e *Engine) JoinConversation(cmd domain.JoinConversationCommand) error {
	conv, err := e.convRepo.Get(cmd.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasMember(cmd.UserID) {
		return fmt.Errorf("%w: user %s is not a member of conversation %s",
			errors.ErrInvalidRequest, cmd.UserID, cmd.ConversationID)
	}
	e.directory.Subscribe(cmd.ConversationID, cmd.SessionID)
	return nil
}

// Messages returns a page of conversation history in createdAt order.
func (e *Engine) Messages(conversationID domain.ConversationID, cursor *string) ([]domain.Message, *string, error) {
	return e.msgRepo.Messages(conversationID, cursor)
}

// ConversationsFor lists the user's conversations, most recent first.
func (e *Engine) ConversationsFor(userID domain.UserID) ([]domain.Conversation, error) {
	return e.convRepo.ForUser(userID)
}

// SearchMessages finds message ids matching the query inside one
// conversation.
func (e *Engine) SearchMessages(ctx context.Context, conversationID domain.ConversationID, query string, limit int) ([]domain.MessageID, error) {
	return e.searchRepo.Search(ctx, conversationID, query, limit)
}

func (e *Engine) emit(evt event.DomainEvent) {
	select {
	case e.events <- evt:
	default:
		e.log.Warn("Event channel full, dropping event", "kind", evt.Kind())
	}
}
