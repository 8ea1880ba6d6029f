package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"amora/auth"
	"amora/domain"
	"amora/domain/event"
	apperrors "amora/errors"
	"amora/observability"
	"amora/runtime"
	"amora/sink"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// WSHandler upgrades authenticated clients and drives one session per
// connection. Every outbound write goes through the session sink and a
// single writer goroutine, so ordering is the sink's ordering.
type WSHandler struct {
	engine     *runtime.Engine
	presence   *runtime.PresenceManager
	tokens     *auth.TokenValidator
	metrics    *observability.Metrics
	validate   *validator.Validate
	upgrader   websocket.Upgrader
	bufferSize int
	log        *slog.Logger
}

func NewWSHandler(
	engine *runtime.Engine,
	presence *runtime.PresenceManager,
	tokens *auth.TokenValidator,
	metrics *observability.Metrics,
	bufferSize int,
	log *slog.Logger,
) *WSHandler {
	return &WSHandler{
		engine:   engine,
		presence: presence,
		tokens:   tokens,
		metrics:  metrics,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		bufferSize: bufferSize,
		log:        log,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	sessionID := domain.NewSessionID()
	sess := sink.NewSession(sessionID, userID, h.bufferSize, h.log)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.presence.Connected(ctx, userID, sessionID, sess)
	h.metrics.ActiveSessions.Inc()
	h.log.Info("session connected", "user_id", userID, "session_id", sessionID)

	defer func() {
		h.presence.Disconnected(context.WithoutCancel(ctx), userID, sessionID)
		h.metrics.ActiveSessions.Dec()
		conn.Close()
		h.log.Info("session disconnected", "user_id", userID, "session_id", sessionID)
	}()

	go h.writeLoop(ctx, conn, sess)
	h.readLoop(ctx, conn, sess, userID, sessionID)
}

// authenticate resolves the connecting user from a signed token passed
// either as ?token= or an Authorization bearer header.
func (h *WSHandler) authenticate(r *http.Request) (domain.UserID, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return "", apperrors.ErrUnauthorized
	}
	return h.tokens.Validate(token)
}

// writeLoop is the only goroutine allowed to write on the connection.
// It drains the session sink in order and keeps the peer alive with pings.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *sink.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt := <-sess.Events():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			frame := outboundFrame{Event: evt.Kind(), Data: evt}
			if err := conn.WriteJSON(frame); err != nil {
				h.log.Warn("session write failed", "session_id", sess.ID, "error", err)
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *sink.Session, userID domain.UserID, sessionID domain.SessionID) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("session read failed", "session_id", sessionID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		// Frames are handled synchronously so a session's commands
		// take effect in the order they were sent.
		if err := h.dispatch(ctx, frame, userID, sessionID); err != nil {
			h.fault(ctx, sess, err)
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, frame inboundFrame, userID domain.UserID, sessionID domain.SessionID) error {
	switch frame.Event {
	case eventSendMessage:
		var p sendMessagePayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.engine.SendMessage(ctx, domain.SendMessageCommand{
			SenderID:      userID,
			ReceiverID:    domain.UserID(p.ReceiverID),
			Body:          p.Body,
			OriginSession: sessionID,
			CreatedAt:     time.Now().UTC(),
		})
	case eventMarkSeen:
		var p markSeenPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.engine.MarkSeen(ctx, domain.MarkSeenCommand{
			ConversationID: domain.ConversationID(p.ConversationID),
			UserID:         domain.UserID(p.UserID),
		})
	case eventJoinConversation:
		var p joinConversationPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.engine.JoinConversation(domain.JoinConversationCommand{
			ConversationID: domain.ConversationID(p.ConversationID),
			UserID:         userID,
			SessionID:      sessionID,
		})
	case eventTyping:
		var p typingPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.presence.Typing(ctx, domain.TypingCommand{
			ConversationID: domain.ConversationID(p.ConversationID),
			UserID:         userID,
			IsTyping:       p.IsTyping,
		}, sessionID)
	default:
		h.log.Warn("unknown frame ignored", "event", frame.Event, "session_id", sessionID)
		return nil
	}
}

func (h *WSHandler) decode(raw json.RawMessage, payload any) error {
	if err := json.Unmarshal(raw, payload); err != nil {
		return apperrors.ErrInvalidRequest
	}
	if err := h.validate.Struct(payload); err != nil {
		return apperrors.ErrInvalidRequest
	}
	return nil
}

// fault reports a command failure to the session that caused it. The
// frame rides the same sink as every other event so it cannot overtake
// earlier deliveries.
func (h *WSHandler) fault(ctx context.Context, sess *sink.Session, err error) {
	frame := event.SendFailed{
		Code:          apperrors.Code(err),
		Reason:        err.Error(),
		OriginSession: sess.ID,
	}
	if consumeErr := sess.Consume(ctx, frame); consumeErr != nil {
		h.log.Warn("error frame dropped", "session_id", sess.ID, "error", consumeErr)
	}
}
