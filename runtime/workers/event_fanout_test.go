package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"amora/domain"
	"amora/domain/event"
	"amora/runtime"
)

type recordingSink struct {
	events chan event.DomainEvent
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan event.DomainEvent, 16)}
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.events <- e
	return nil
}

func (s *recordingSink) next(t *testing.T) event.DomainEvent {
	t.Helper()
	select {
	case e := <-s.events:
		return e
	case <-time.After(time.Second):
		t.Fatal("expected an event, got none")
		return nil
	}
}

func (s *recordingSink) expectNone(t *testing.T) {
	t.Helper()
	select {
	case e := <-s.events:
		t.Fatalf("expected no event, got %T", e)
	case <-time.After(50 * time.Millisecond):
	}
}

type fanoutFixture struct {
	directory *runtime.Directory
	events    chan event.DomainEvent
	permanent *recordingSink
}

func startFanout(t *testing.T) fanoutFixture {
	t.Helper()
	directory := runtime.NewDirectory()
	events := make(chan event.DomainEvent, 16)
	permanent := newRecordingSink()

	worker := NewEventFanout(slog.Default(), directory, events, permanent)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = worker.Run(ctx) }()

	return fanoutFixture{directory: directory, events: events, permanent: permanent}
}

func TestEventFanout_Received_Goes_To_All_Receiver_Sessions(t *testing.T) {
	req := require.New(t)
	f := startFanout(t)

	phone, laptop, stranger := newRecordingSink(), newRecordingSink(), newRecordingSink()
	f.directory.Register("bob", "s-phone", phone)
	f.directory.Register("bob", "s-laptop", laptop)
	f.directory.Register("clara", "s-clara", stranger)

	f.events <- event.MessageReceived{MessageID: "m1", ReceiverID: "bob"}

	req.Equal("receive_message", phone.next(t).Kind())
	req.Equal("receive_message", laptop.next(t).Kind())
	stranger.expectNone(t)
	// Permanent sinks observe everything.
	req.Equal("receive_message", f.permanent.next(t).Kind())
}

func TestEventFanout_Ack_Goes_To_Origin_Session_Only(t *testing.T) {
	req := require.New(t)
	f := startFanout(t)

	origin, other := newRecordingSink(), newRecordingSink()
	f.directory.Register("alice", "s-origin", origin)
	f.directory.Register("alice", "s-other", other)

	f.events <- event.MessageSent{MessageID: "m1", OriginSession: "s-origin"}

	req.Equal("message_sent", origin.next(t).Kind())
	other.expectNone(t)
}

func TestEventFanout_Fault_Never_Leaks_To_Other_Sessions(t *testing.T) {
	req := require.New(t)
	f := startFanout(t)

	origin, other := newRecordingSink(), newRecordingSink()
	f.directory.Register("alice", "s-origin", origin)
	f.directory.Register("bob", "s-bob", other)

	f.events <- event.SendFailed{Code: "invalid_request", OriginSession: "s-origin"}

	req.Equal("error", origin.next(t).Kind())
	other.expectNone(t)
}

func TestEventFanout_Seen_Reaches_Both_Members(t *testing.T) {
	req := require.New(t)
	f := startFanout(t)

	alice, bob, clara := newRecordingSink(), newRecordingSink(), newRecordingSink()
	f.directory.Register("alice", "s-alice", alice)
	f.directory.Register("bob", "s-bob", bob)
	f.directory.Register("clara", "s-clara", clara)

	f.events <- event.MessagesSeen{
		ConversationID: "c1",
		SeenBy:         "bob",
		Members:        [2]domain.UserID{"alice", "bob"},
	}

	req.Equal("messages_seen", alice.next(t).Kind())
	req.Equal("messages_seen", bob.next(t).Kind())
	clara.expectNone(t)
}

func TestEventFanout_Typing_Excludes_The_Typist(t *testing.T) {
	req := require.New(t)
	f := startFanout(t)

	alice, bob := newRecordingSink(), newRecordingSink()
	f.directory.Register("alice", "s-alice", alice)
	f.directory.Register("bob", "s-bob", bob)
	f.directory.Subscribe("c1", "s-alice")
	f.directory.Subscribe("c1", "s-bob")

	f.events <- event.UserTyping{
		UserID:         "alice",
		IsTyping:       true,
		ConversationID: "c1",
		OriginSession:  "s-alice",
	}

	req.Equal("user_typing", bob.next(t).Kind())
	alice.expectNone(t)
}

func TestEventFanout_Status_Reaches_Everyone(t *testing.T) {
	req := require.New(t)
	f := startFanout(t)

	alice, bob := newRecordingSink(), newRecordingSink()
	f.directory.Register("alice", "s-alice", alice)
	f.directory.Register("bob", "s-bob", bob)

	f.events <- event.UserStatus{UserID: "clara", IsOnline: true}

	req.Equal("user_status", alice.next(t).Kind())
	req.Equal("user_status", bob.next(t).Kind())
}
