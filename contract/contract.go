//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"amora/domain"
	"amora/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives outbound domain events. Session sinks buffer them
// towards one live connection; permanent sinks feed projections such as
// metrics. Consume must never block on I/O.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IDirectory is the process-local map from user identity to live
// sessions. It is the only mutable shared state of the engine and is
// internally synchronized; lookups never touch the durable stores.
// It is NOT authoritative for "is this user reachable anywhere" in a
// multi-instance deployment.
type IDirectory interface {
	Register(userID domain.UserID, sessionID domain.SessionID, sink EventSink) (first bool)
	Unregister(userID domain.UserID, sessionID domain.SessionID) (last bool)
	SessionsFor(userID domain.UserID) []EventSink
	SessionSink(sessionID domain.SessionID) (EventSink, bool)
	Subscribe(conversationID domain.ConversationID, sessionID domain.SessionID)
	ConversationSinks(conversationID domain.ConversationID, except domain.SessionID) []EventSink
	AllSinks() []EventSink
}
