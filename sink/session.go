package sink

import (
	"context"
	"log/slog"

	"amora/domain"
	"amora/domain/event"
)

// Session buffers outbound events towards one live connection. The
// transport's writer goroutine drains Events; the fanout worker fills
// it through Consume, which never blocks so one slow client cannot
// stall delivery to anyone else.
type Session struct {
	ID     domain.SessionID
	UserID domain.UserID

	events chan event.DomainEvent
	log    *slog.Logger
}

func NewSession(id domain.SessionID, userID domain.UserID, bufferSize int, log *slog.Logger) *Session {
	return &Session{
		ID:     id,
		UserID: userID,
		events: make(chan event.DomainEvent, bufferSize),
		log:    log,
	}
}

// Consume is called by the fanout worker. It redirects the event into
// the session's buffer; on backpressure the event is dropped with a
// warning rather than blocking the fanout loop.
func (s *Session) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Warn("Session buffer full, dropping event",
			"session", s.ID, "user", s.UserID, "kind", e.Kind())
		return nil
	}
}

// Events exposes the buffered stream for the transport writer loop.
func (s *Session) Events() <-chan event.DomainEvent {
	return s.events
}
