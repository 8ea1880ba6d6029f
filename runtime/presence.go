package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"amora/contract"
	"amora/domain"
	"amora/domain/event"
	"amora/errors"
	"amora/repositories"
)

// PresenceManager drives the per-user offline/online state machine.
// The offline->online transition fires on a user's first registered
// session; online->offline fires only when the session set becomes
// empty, so one tab closing never falsely marks a user offline while
// another tab is live.
type PresenceManager struct {
	mu        sync.Mutex
	userLocks map[domain.UserID]*sync.Mutex

	directory    contract.IDirectory
	presenceRepo repositories.IPresenceRepository
	convRepo     repositories.IConversationRepository
	events       chan<- event.DomainEvent
	log          *slog.Logger
}

func NewPresenceManager(
	directory contract.IDirectory,
	presenceRepo repositories.IPresenceRepository,
	convRepo repositories.IConversationRepository,
	events chan<- event.DomainEvent,
	log *slog.Logger,
) *PresenceManager {
	return &PresenceManager{
		userLocks:    make(map[domain.UserID]*sync.Mutex),
		directory:    directory,
		presenceRepo: presenceRepo,
		convRepo:     convRepo,
		events:       events,
		log:          log,
	}
}

// Connected registers a live session. On the user's first session it
// upserts the durable record and broadcasts the online status.
func (p *PresenceManager) Connected(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, sink contract.EventSink) {
	lock := p.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	first := p.directory.Register(userID, sessionID, sink)
	if !first {
		p.log.Debug("Additional session registered", "user", userID, "session", sessionID)
		return
	}

	if err := p.presenceRepo.SetOnline(userID, time.Now().UTC()); err != nil {
		// The directory already holds the session; the persisted flag
		// lags until the next successful write.
		p.log.Warn("Failed to persist online presence", "user", userID, "error", err)
	}
	p.emit(event.UserStatus{UserID: userID, IsOnline: true})
	p.log.Info("User online", "user", userID)
}

// Disconnected unregisters one session, whether the client closed
// cleanly or the network dropped. The in-memory removal always
// proceeds; a failing presence write never blocks cleanup.
func (p *PresenceManager) Disconnected(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) {
	lock := p.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	last := p.directory.Unregister(userID, sessionID)
	if !last {
		p.log.Debug("Session closed, user still has live sessions", "user", userID, "session", sessionID)
		return
	}

	if err := p.presenceRepo.SetOffline(userID, time.Now().UTC()); err != nil {
		p.log.Warn("Failed to persist offline presence", "user", userID, "error", err)
	}
	p.emit(event.UserStatus{UserID: userID, IsOnline: false})
	p.log.Info("User offline", "user", userID)
}

// Typing sets or clears the user's typing target and notifies the other
// sessions subscribed to the conversation. It is a no-op for users who
// are not online or not a member of the conversation.
func (p *PresenceManager) Typing(ctx context.Context, cmd domain.TypingCommand, originSession domain.SessionID) error {
	if len(p.directory.SessionsFor(cmd.UserID)) == 0 {
		return nil
	}

	conv, err := p.convRepo.Get(cmd.ConversationID)
	if err != nil {
		return fmt.Errorf("typing target: %w", err)
	}
	if !conv.HasMember(cmd.UserID) {
		p.log.Debug("Typing ignored, user is not a member",
			"user", cmd.UserID, "conversation", cmd.ConversationID)
		return nil
	}

	var target *domain.ConversationID
	if cmd.IsTyping {
		target = &cmd.ConversationID
	}
	if err := p.presenceRepo.SetTyping(cmd.UserID, target); err != nil {
		return fmt.Errorf("%w: persisting typing state: %v", errors.ErrStoreUnavailable, err)
	}

	p.emit(event.UserTyping{
		UserID:         cmd.UserID,
		IsTyping:       cmd.IsTyping,
		ConversationID: cmd.ConversationID,
		OriginSession:  originSession,
	})
	return nil
}

func (p *PresenceManager) emit(e event.DomainEvent) {
	select {
	case p.events <- e:
	default:
		p.log.Warn("Event channel full, dropping presence event", "kind", e.Kind())
	}
}

func (p *PresenceManager) lockFor(userID domain.UserID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		p.userLocks[userID] = lock
	}
	return lock
}
