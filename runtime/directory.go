// Package runtime hosts the live engine: the session directory, the
// presence manager and the delivery engine. It orchestrates the durable
// stores without containing storage or transport logic of its own.
package runtime

import (
	"sync"

	"amora/contract"
	"amora/domain"
)

type Set map[domain.SessionID]struct{}

// Directory is the process-local map from user identity to live
// sessions, plus the conversation-subscription index used for scoped
// broadcasts (typing, seen). It is constructed at process start and
// injected everywhere it is needed; it is never a package global.
//
// All methods are safe under concurrent invocation from independently
// scheduled connection handlers and never block on I/O.
type Directory struct {
	mu sync.RWMutex

	// forward: user -> their live sessions; a user is online while this
	// set is non-empty, whatever single tab comes or goes.
	sessions map[domain.UserID]map[domain.SessionID]contract.EventSink
	// direct session handle lookup for ack routing
	bySession map[domain.SessionID]contract.EventSink
	// forward: conversation -> subscribed sessions
	subscribers map[domain.ConversationID]Set
	// reverse: session -> subscribed conversations, for O(subs) cleanup
	// on disconnect
	sessionSubs map[domain.SessionID]map[domain.ConversationID]struct{}
}

func NewDirectory() *Directory {
	return &Directory{
		sessions:    make(map[domain.UserID]map[domain.SessionID]contract.EventSink),
		bySession:   make(map[domain.SessionID]contract.EventSink),
		subscribers: make(map[domain.ConversationID]Set),
		sessionSubs: make(map[domain.SessionID]map[domain.ConversationID]struct{}),
	}
}

// Register adds a live session for the user and reports whether it is
// the user's first one, which is the offline->online transition.
func (d *Directory) Register(userID domain.UserID, sessionID domain.SessionID, sink contract.EventSink) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sessions[userID] == nil {
		d.sessions[userID] = make(map[domain.SessionID]contract.EventSink)
	}
	d.sessions[userID][sessionID] = sink
	d.bySession[sessionID] = sink
	return len(d.sessions[userID]) == 1
}

// Unregister removes one specific session and all its conversation
// subscriptions, reporting whether it was the user's last session (the
// online->offline transition). Removing an unknown session is a no-op
// reporting false, so abrupt-termination cleanup stays idempotent.
func (d *Directory) Unregister(userID domain.UserID, sessionID domain.SessionID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for conversationID := range d.sessionSubs[sessionID] {
		if members, ok := d.subscribers[conversationID]; ok {
			delete(members, sessionID)
			if len(members) == 0 {
				delete(d.subscribers, conversationID)
			}
		}
	}
	delete(d.sessionSubs, sessionID)
	delete(d.bySession, sessionID)

	sessions, ok := d.sessions[userID]
	if !ok {
		return false
	}
	if _, ok := sessions[sessionID]; !ok {
		return false
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(d.sessions, userID)
		return true
	}
	return false
}

// SessionsFor returns the sinks of every live session of the user,
// possibly empty.
func (d *Directory) SessionsFor(userID domain.UserID) []contract.EventSink {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sessions := d.sessions[userID]
	if len(sessions) == 0 {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(sessions))
	for _, sink := range sessions {
		sinks = append(sinks, sink)
	}
	return sinks
}

func (d *Directory) SessionSink(sessionID domain.SessionID) (contract.EventSink, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sink, ok := d.bySession[sessionID]
	return sink, ok
}

// Subscribe attaches a session to a conversation's scoped broadcasts.
func (d *Directory) Subscribe(conversationID domain.ConversationID, sessionID domain.SessionID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.bySession[sessionID]; !ok {
		// Session already gone; nothing to attach.
		return
	}
	if d.subscribers[conversationID] == nil {
		d.subscribers[conversationID] = make(Set)
	}
	d.subscribers[conversationID][sessionID] = struct{}{}

	if d.sessionSubs[sessionID] == nil {
		d.sessionSubs[sessionID] = make(map[domain.ConversationID]struct{})
	}
	d.sessionSubs[sessionID][conversationID] = struct{}{}
}

// ConversationSinks returns the sinks of sessions subscribed to the
// conversation, excluding the given session (pass "" to exclude none).
func (d *Directory) ConversationSinks(conversationID domain.ConversationID, except domain.SessionID) []contract.EventSink {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members := d.subscribers[conversationID]
	if len(members) == 0 {
		return nil
	}
	var sinks []contract.EventSink
	for sessionID := range members {
		if sessionID == except {
			continue
		}
		if sink, ok := d.bySession[sessionID]; ok {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// AllSinks returns every live session sink, used for the system-wide
// presence broadcast.
func (d *Directory) AllSinks() []contract.EventSink {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(d.bySession))
	for _, sink := range d.bySession {
		sinks = append(sinks, sink)
	}
	return sinks
}
