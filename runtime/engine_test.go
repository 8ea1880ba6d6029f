package runtime_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/stretchr/testify/require"

	"amora/domain"
	"amora/domain/event"
	"amora/errors"
	"amora/moderation"
	"amora/repositories"
	"amora/runtime"
)

type engineFixture struct {
	engine    *runtime.Engine
	directory *runtime.Directory
	convRepo  repositories.ConversationRepository
	msgRepo   repositories.MessageRepository
	events    chan event.DomainEvent
}

func newEngineFixture(t *testing.T) engineFixture {
	t.Helper()
	db := openTestDB(t)
	log := slog.Default()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	moderator, err := moderation.NewModerator([]string{"bigot"}, '*')
	require.NoError(t, err)

	convRepo := repositories.NewConversationRepository(db, log)
	msgRepo := repositories.NewMessageRepository(db, log, nil)
	directory := runtime.NewDirectory()
	events := make(chan event.DomainEvent, 64)

	engine := runtime.NewEngine(
		convRepo, msgRepo,
		repositories.NewSearchRepository(writer, log),
		directory, moderator, events, log,
	)
	return engineFixture{
		engine:    engine,
		directory: directory,
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		events:    events,
	}
}

func sendCommand(sender, receiver domain.UserID, body string) domain.SendMessageCommand {
	return domain.SendMessageCommand{
		SenderID:      sender,
		ReceiverID:    receiver,
		Body:          body,
		OriginSession: domain.SessionID("s-" + string(sender)),
		CreatedAt:     time.Now().UTC(),
	}
}

func Test_Send_To_Offline_Receiver_Is_Acknowledged_As_Sent(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	f.directory.Register("alice", "s-alice", &RecordingSink{})

	req.NoError(f.engine.SendMessage(context.Background(), sendCommand("alice", "bob", "hi")))

	emitted := drain(f.events)
	req.Len(emitted, 1)
	sent, ok := emitted[0].(event.MessageSent)
	req.True(ok, "offline receiver yields message_sent, got %T", emitted[0])
	req.Equal(domain.SessionID("s-alice"), sent.OriginSession)

	// The message is durable with an empty seen set.
	messages, _, err := f.msgRepo.Messages(sent.ConversationID, nil)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("hi", messages[0].Body)
	req.Empty(messages[0].SeenBy)
}

func Test_Send_To_Online_Receiver_Delivers_And_Acknowledges(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	f.directory.Register("alice", "s-alice", &RecordingSink{})
	f.directory.Register("bob", "s-bob", &RecordingSink{})

	req.NoError(f.engine.SendMessage(context.Background(), sendCommand("alice", "bob", "hi")))

	emitted := drain(f.events)
	req.Len(emitted, 2)

	received, ok := emitted[0].(event.MessageReceived)
	req.True(ok)
	req.Equal(domain.UserID("bob"), received.ReceiverID)
	req.Equal("hi", received.Body)

	delivered, ok := emitted[1].(event.MessageDelivered)
	req.True(ok)
	req.Equal(domain.SessionID("s-alice"), delivered.OriginSession)
	req.Equal(received.MessageID, delivered.MessageID)
}

func Test_Send_Reuses_The_Pair_Conversation(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	ctx := context.Background()

	req.NoError(f.engine.SendMessage(ctx, sendCommand("alice", "bob", "one")))
	req.NoError(f.engine.SendMessage(ctx, sendCommand("bob", "alice", "two")))

	conversations, err := f.convRepo.ForUser("alice")
	req.NoError(err)
	req.Len(conversations, 1)

	messages, _, err := f.msgRepo.Messages(conversations[0].ID, nil)
	req.NoError(err)
	req.Len(messages, 2)

	// The summary tracks the latest message.
	req.NotNil(conversations[0].LastMessage)
	req.Equal("two", conversations[0].LastMessage.Body)
}

func Test_Send_Rejects_Invalid_Commands(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	ctx := context.Background()

	req.ErrorIs(f.engine.SendMessage(ctx, sendCommand("alice", "bob", "   ")), errors.ErrInvalidRequest)
	req.ErrorIs(f.engine.SendMessage(ctx, sendCommand("alice", "", "hi")), errors.ErrInvalidRequest)
	req.ErrorIs(f.engine.SendMessage(ctx, sendCommand("alice", "alice", "hi")), errors.ErrInvalidRequest)

	// Nothing was persisted or emitted.
	conversations, err := f.convRepo.ForUser("alice")
	req.NoError(err)
	req.Empty(conversations)
	req.Empty(drain(f.events))
}

func Test_Send_Censors_Before_Persisting(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	f.directory.Register("bob", "s-bob", &RecordingSink{})

	req.NoError(f.engine.SendMessage(context.Background(), sendCommand("alice", "bob", "you bigot")))

	emitted := drain(f.events)
	received, ok := emitted[0].(event.MessageReceived)
	req.True(ok)
	req.Equal("you *****", received.Body)

	// History carries the same sanitized text as live delivery.
	messages, _, err := f.msgRepo.Messages(received.ConversationID, nil)
	req.NoError(err)
	req.Equal("you *****", messages[0].Body)
}

func Test_MarkSeen_Notifies_Both_Members(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	ctx := context.Background()

	req.NoError(f.engine.SendMessage(ctx, sendCommand("alice", "bob", "hi")))
	sent := drain(f.events)[0].(event.MessageSent)

	req.NoError(f.engine.MarkSeen(ctx, domain.MarkSeenCommand{
		ConversationID: sent.ConversationID,
		UserID:         "bob",
	}))

	emitted := drain(f.events)
	req.Len(emitted, 1)
	seen, ok := emitted[0].(event.MessagesSeen)
	req.True(ok)
	req.Equal(domain.UserID("bob"), seen.SeenBy)
	req.ElementsMatch([]domain.UserID{"alice", "bob"}, seen.Members[:])

	messages, _, err := f.msgRepo.Messages(sent.ConversationID, nil)
	req.NoError(err)
	req.True(messages[0].SeenByUser("bob"))

	// Replay is harmless and still notifies.
	req.NoError(f.engine.MarkSeen(ctx, domain.MarkSeenCommand{
		ConversationID: sent.ConversationID,
		UserID:         "bob",
	}))
	req.Len(drain(f.events), 1)
}

func Test_MarkSeen_Rejects_Non_Members_And_Unknown_Conversations(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	ctx := context.Background()

	req.ErrorIs(f.engine.MarkSeen(ctx, domain.MarkSeenCommand{
		ConversationID: "nope", UserID: "bob",
	}), errors.ErrNotFound)

	req.NoError(f.engine.SendMessage(ctx, sendCommand("alice", "bob", "hi")))
	sent := drain(f.events)[0].(event.MessageSent)

	req.ErrorIs(f.engine.MarkSeen(ctx, domain.MarkSeenCommand{
		ConversationID: sent.ConversationID, UserID: "mallory",
	}), errors.ErrInvalidRequest)
}

func Test_JoinConversation_Checks_Membership(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	ctx := context.Background()

	req.NoError(f.engine.SendMessage(ctx, sendCommand("alice", "bob", "hi")))
	sent := drain(f.events)[0].(event.MessageSent)

	f.directory.Register("bob", "s-bob", &RecordingSink{})
	req.NoError(f.engine.JoinConversation(domain.JoinConversationCommand{
		ConversationID: sent.ConversationID, UserID: "bob", SessionID: "s-bob",
	}))
	req.Len(f.directory.ConversationSinks(sent.ConversationID, ""), 1)

	f.directory.Register("mallory", "s-mallory", &RecordingSink{})
	req.ErrorIs(f.engine.JoinConversation(domain.JoinConversationCommand{
		ConversationID: sent.ConversationID, UserID: "mallory", SessionID: "s-mallory",
	}), errors.ErrInvalidRequest)

	req.ErrorIs(f.engine.JoinConversation(domain.JoinConversationCommand{
		ConversationID: "nope", UserID: "bob", SessionID: "s-bob",
	}), errors.ErrNotFound)
}

func Test_Search_Finds_Persisted_Messages(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	ctx := context.Background()

	req.NoError(f.engine.SendMessage(ctx, sendCommand("alice", "bob", "dinner at the harbour")))
	sent := drain(f.events)[0].(event.MessageSent)

	ids, err := f.engine.SearchMessages(ctx, sent.ConversationID, "harbour", 10)
	req.NoError(err)
	req.Equal([]domain.MessageID{sent.MessageID}, ids)
}
