package workers

import (
	"context"
	"log/slog"

	"amora/contract"
	"amora/domain"
	"amora/domain/event"
)

// Ensure *EventFanout implements the contract.Worker interface at compile time.
var _ contract.Worker = (*EventFanout)(nil)

// EventFanout is the single consumer of the engine's event channel. It
// routes each event to the live session sinks its type addresses, via
// directory lookups, and feeds every event to the permanent sinks
// (metrics, projections).
//
// Being the only consumer of a FIFO channel, it preserves emission
// order end to end: messages reach a given receiver session in the
// order the engine persisted them.
type EventFanout struct {
	log            *slog.Logger
	directory      contract.IDirectory
	events         <-chan event.DomainEvent
	permanentSinks []contract.EventSink
}

func NewEventFanout(
	log *slog.Logger,
	directory contract.IDirectory,
	events <-chan event.DomainEvent,
	permanentSinks ...contract.EventSink,
) *EventFanout {
	return &EventFanout{
		log:            log,
		directory:      directory,
		events:         events,
		permanentSinks: permanentSinks,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Event channel closed")
				return nil
			}
			w.route(ctx, evt)
			for _, sink := range w.permanentSinks {
				if err := sink.Consume(ctx, evt); err != nil {
					w.log.Warn("Permanent sink failed", "kind", evt.Kind(), "error", err)
				}
			}
		}
	}
}

// route resolves the audience of one event. Faults and acknowledgments
// go to the originating session alone; nothing is ever echoed to
// sessions outside the event's scope.
func (w *EventFanout) route(ctx context.Context, evt event.DomainEvent) {
	switch e := evt.(type) {
	case event.MessageReceived:
		w.deliver(ctx, evt, w.directory.SessionsFor(e.ReceiverID))
	case event.MessageDelivered:
		w.deliverTo(ctx, evt, e.OriginSession)
	case event.MessageSent:
		w.deliverTo(ctx, evt, e.OriginSession)
	case event.SendFailed:
		w.deliverTo(ctx, evt, e.OriginSession)
	case event.MessagesSeen:
		for _, member := range e.Members {
			w.deliver(ctx, evt, w.directory.SessionsFor(member))
		}
	case event.UserTyping:
		w.deliver(ctx, evt, w.directory.ConversationSinks(e.ConversationID, e.OriginSession))
	case event.UserStatus:
		w.deliver(ctx, evt, w.directory.AllSinks())
	default:
		w.log.Warn("No route for event", "kind", evt.Kind())
	}
}

func (w *EventFanout) deliver(ctx context.Context, evt event.DomainEvent, sinks []contract.EventSink) {
	for _, sink := range sinks {
		if err := sink.Consume(ctx, evt); err != nil {
			w.log.Warn("Failed to push event to session", "kind", evt.Kind(), "error", err)
		}
	}
}

func (w *EventFanout) deliverTo(ctx context.Context, evt event.DomainEvent, sessionID domain.SessionID) {
	sink, ok := w.directory.SessionSink(sessionID)
	if !ok {
		// Originating session already disconnected; the ack has nowhere
		// meaningful to go.
		w.log.Debug("Originating session gone, dropping ack", "kind", evt.Kind(), "session", sessionID)
		return
	}
	if err := sink.Consume(ctx, evt); err != nil {
		w.log.Warn("Failed to push ack to session", "kind", evt.Kind(), "error", err)
	}
}
