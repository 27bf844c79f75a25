package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/user/deskdev/internal/event"
	"github.com/user/deskdev/internal/render"
	"github.com/user/deskdev/internal/transcript"
	"github.com/user/deskdev/internal/types"
)

// Gateway is the part of the conversation gateway exposed over HTTP.
type Gateway interface {
	Transcript(ctx context.Context, id types.ConversationID) ([]transcript.Entry, error)
	SendMessage(ctx context.Context, id types.ConversationID, text string) error
	ClearOptimistic(ctx context.Context, id types.ConversationID) error
	Follow(ctx context.Context, id types.ConversationID, key types.DeliveryKey) error
}

// Server is a local JSON API over followed conversations.
type Server struct {
	gateway       Gateway
	conversations types.ConversationStore
	events        types.EventStore
	renderer      *render.Renderer
	mux           *http.ServeMux
}

// NewServer creates a Server. renderer may be nil, in which case transcript
// entries are returned without text.
func NewServer(gw Gateway, conversations types.ConversationStore, events types.EventStore, renderer *render.Renderer) *Server {
	s := &Server{
		gateway:       gw,
		conversations: conversations,
		events:        events,
		renderer:      renderer,
		mux:           http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/conversations", s.handleConversations)
	s.mux.HandleFunc("GET /api/conversations/{id}/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/conversations/{id}/transcript", s.handleTranscript)
	s.mux.HandleFunc("POST /api/conversations/{id}/messages", s.handleSendMessage)
	s.mux.HandleFunc("DELETE /api/conversations/{id}/optimistic", s.handleClearOptimistic)
	s.mux.HandleFunc("POST /api/conversations/{id}/follow", s.handleFollow)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

// pathID returns the {id} path value, or writes a 400 and returns false
// when it is not a valid conversation id.
func pathID(w http.ResponseWriter, r *http.Request) (types.ConversationID, bool) {
	id := types.ConversationID(r.PathValue("id"))
	if err := id.Validate(); err != nil {
		http.Error(w, `{"error":"invalid conversation id"}`, http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type conversationResponse struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title,omitempty"`
	Status         string `json:"status,omitempty"`
	Repository     string `json:"repository,omitempty"`
	DeliveryKey    string `json:"delivery_key,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	LastEventID    int64  `json:"last_event_id"`
	EventCount     int64  `json:"event_count"`
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convs, err := s.conversations.List(ctx)
	if err != nil {
		slog.Error("list conversations failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]conversationResponse, 0, len(convs))
	for _, c := range convs {
		count, err := s.events.Count(ctx, c.ConversationID)
		if err != nil {
			slog.Warn("count events failed", "conversation_id", string(c.ConversationID), "error", err)
		}
		result = append(result, conversationResponse{
			ConversationID: string(c.ConversationID),
			Title:          c.Title,
			Status:         c.Status,
			Repository:     c.Repository,
			DeliveryKey:    string(c.DeliveryKey),
			CreatedAt:      c.CreatedAt.Format(time.RFC3339),
			UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
			LastEventID:    c.LastEventID,
			EventCount:     count,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit := 200
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.events.Tail(r.Context(), id, limit)
	if err != nil {
		slog.Error("tail events failed", "conversation_id", string(id), "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*types.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

type entryResponse struct {
	Kind                 string          `json:"kind"`
	EventID              *int64          `json:"event_id,omitempty"`
	HasObservationPair   bool            `json:"has_observation_pair"`
	IsLast               bool            `json:"is_last"`
	InRecent             bool            `json:"in_recent"`
	AwaitingConfirmation bool            `json:"awaiting_confirmation,omitempty"`
	Role                 render.Role     `json:"role,omitempty"`
	Title                string          `json:"title,omitempty"`
	Body                 string          `json:"body,omitempty"`
	Pending              bool            `json:"pending,omitempty"`
	Event                json.RawMessage `json:"event,omitempty"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := s.gateway.Transcript(r.Context(), id)
	if err != nil {
		slog.Error("project transcript failed", "conversation_id", string(id), "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp := entryResponse{
			Kind:                 e.Kind.String(),
			HasObservationPair:   e.HasObservationPair,
			IsLast:               e.IsLast,
			InRecent:             e.InRecent,
			AwaitingConfirmation: e.AwaitingConfirmation,
		}
		if eid, ok := e.ID(); ok {
			resp.EventID = &eid
		}
		if s.renderer != nil {
			m := s.renderer.Entry(e)
			resp.Role, resp.Title, resp.Body, resp.Pending = m.Role, m.Title, m.Body, m.Pending
		}
		if e.Kind == transcript.EntryEvent && r.URL.Query().Get("raw") == "true" {
			if data, err := event.Encode(e.Event); err == nil {
				resp.Event = data
			}
		}
		result = append(result, resp)
	}
	writeJSON(w, http.StatusOK, result)
}

type messageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, `{"error":"content is required"}`, http.StatusBadRequest)
		return
	}

	if err := s.gateway.SendMessage(r.Context(), id, req.Content); err != nil {
		slog.Error("send message failed", "conversation_id", string(id), "error", err)
		http.Error(w, `{"error":"send failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *Server) handleClearOptimistic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.gateway.ClearOptimistic(r.Context(), id); err != nil {
		slog.Error("clear optimistic failed", "conversation_id", string(id), "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type followRequest struct {
	DeliveryKey string `json:"delivery_key"`
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req followRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
			return
		}
	}
	key := types.DeliveryKey(req.DeliveryKey)
	if key == "" {
		key = "stdout"
	}
	if err := s.gateway.Follow(r.Context(), id, key); err != nil {
		slog.Error("follow failed", "conversation_id", string(id), "error", err)
		http.Error(w, `{"error":"follow failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "following", "delivery_key": string(key)})
}
