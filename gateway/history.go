package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"amora/domain"
	apperrors "amora/errors"
	"amora/repositories"
	"amora/runtime"
)

const defaultSearchLimit = 20

// API serves the read side over plain HTTP: conversation lists, message
// history pages, presence lookups and full-text search.
type API struct {
	engine       *runtime.Engine
	presenceRepo repositories.IPresenceRepository
	log          *slog.Logger
}

func NewAPI(engine *runtime.Engine, presenceRepo repositories.IPresenceRepository, log *slog.Logger) *API {
	return &API{engine: engine, presenceRepo: presenceRepo, log: log}
}

type conversationResponse struct {
	ID          string              `json:"id"`
	Members     [2]string           `json:"members"`
	LastMessage *lastMessageSummary `json:"lastMessage,omitempty"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

type lastMessageSummary struct {
	Body      string    `json:"body"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

type messagesResponse struct {
	Messages   []messageResponse `json:"messages"`
	NextCursor *string           `json:"nextCursor,omitempty"`
}

type messageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"body"`
	SeenBy         []string  `json:"seenBy"`
	CreatedAt      time.Time `json:"createdAt"`
}

type presenceResponse struct {
	UserID     string     `json:"userId"`
	IsOnline   bool       `json:"isOnline"`
	TypingIn   *string    `json:"typingIn,omitempty"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

type searchResponse struct {
	MessageIDs []string `json:"messageIds"`
}

func (a *API) Conversations(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(chi.URLParam(r, "userID"))

	conversations, err := a.engine.ConversationsFor(userID)
	if err != nil {
		a.fail(w, err)
		return
	}

	response := lo.Map(conversations, func(c domain.Conversation, _ int) conversationResponse {
		out := conversationResponse{
			ID:        string(c.ID),
			Members:   [2]string{string(c.MemberA), string(c.MemberB)},
			UpdatedAt: c.UpdatedAt,
		}
		if c.LastMessage != nil {
			out.LastMessage = &lastMessageSummary{
				Body:      c.LastMessage.Body,
				SenderID:  string(c.LastMessage.SenderID),
				CreatedAt: c.LastMessage.CreatedAt,
			}
		}
		return out
	})
	a.respond(w, response)
}

func (a *API) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID := domain.ConversationID(chi.URLParam(r, "conversationID"))

	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}

	messages, next, err := a.engine.Messages(conversationID, cursor)
	if err != nil {
		a.fail(w, err)
		return
	}

	a.respond(w, messagesResponse{
		Messages: lo.Map(messages, func(m domain.Message, _ int) messageResponse {
			return messageResponse{
				ID:             string(m.ID),
				ConversationID: string(m.ConversationID),
				SenderID:       string(m.SenderID),
				Body:           m.Body,
				SeenBy: lo.Map(m.SeenBy, func(u domain.UserID, _ int) string {
					return string(u)
				}),
				CreatedAt: m.CreatedAt,
			}
		}),
		NextCursor: next,
	})
}

func (a *API) Presence(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(chi.URLParam(r, "userID"))

	presence, err := a.presenceRepo.Get(userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		// Users the engine has never seen read as offline with no history.
		a.respond(w, presenceResponse{UserID: string(userID)})
		return
	}
	if err != nil {
		a.fail(w, err)
		return
	}

	out := presenceResponse{
		UserID:   string(presence.UserID),
		IsOnline: presence.IsOnline,
	}
	if presence.TypingIn != nil {
		typing := string(*presence.TypingIn)
		out.TypingIn = &typing
	}
	if !presence.LastSeenAt.IsZero() {
		out.LastSeenAt = &presence.LastSeenAt
	}
	a.respond(w, out)
}

func (a *API) Search(w http.ResponseWriter, r *http.Request) {
	conversationID := domain.ConversationID(r.URL.Query().Get("conversation"))
	query := r.URL.Query().Get("q")
	if conversationID == "" || query == "" {
		http.Error(w, "conversation and q are required", http.StatusBadRequest)
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	ids, err := a.engine.SearchMessages(r.Context(), conversationID, query, limit)
	if err != nil {
		a.fail(w, err)
		return
	}

	a.respond(w, searchResponse{
		MessageIDs: lo.Map(ids, func(id domain.MessageID, _ int) string {
			return string(id)
		}),
	})
}

func (a *API) respond(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.log.Warn("Failed to encode response", "error", err)
	}
}

func (a *API) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperrors.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		a.log.Error("Request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
