package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leofalp/chatrelay/core/catalog"
	"github.com/leofalp/chatrelay/core/cost"
	"github.com/leofalp/chatrelay/core/orchestrator"
	"github.com/leofalp/chatrelay/core/prompt"
	"github.com/leofalp/chatrelay/core/sink"
	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/memory"
)

// maxBodyBytes bounds the chat request body, history included.
const maxBodyBytes = 4 << 20

// Server serves the HTTP surface. Build it with New and mount Handler.
type Server struct {
	models        *catalog.Catalog
	relay         *sink.Sink
	logger        *slog.Logger
	configured    []ai.ProviderKind
	fallbackModel string
	history       memory.Store
}

// New creates a server. configured lists the provider kinds with
// credentials; models of other kinds are reported as unavailable.
func New(models *catalog.Catalog, relay *sink.Sink, logger *slog.Logger, configured []ai.ProviderKind, fallbackModel string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		models:        models,
		relay:         relay,
		logger:        logger,
		configured:    configured,
		fallbackModel: fallbackModel,
	}
}

// WithHistory enables the /v1/chats routes backed by store.
func (s *Server) WithHistory(store memory.Store) *Server {
	s.history = store
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Get("/models", s.handleListModels)
		r.Post("/chat", s.handleChat)

		if s.history != nil {
			r.Route("/chats/{chatID}", func(r chi.Router) {
				r.Get("/", s.handleGetChat)
				r.Delete("/", s.handleDeleteChat)
				r.Post("/messages", s.handleChatMessage)
			})
		}
	})

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type modelInfo struct {
	ID            string          `json:"id"`
	DisplayName   string          `json:"display_name"`
	Provider      ai.ProviderKind `json:"provider"`
	Streaming     bool            `json:"streaming"`
	ContextWindow int             `json:"context_window,omitempty"`
	Pricing       *cost.ModelCost `json:"pricing,omitempty"`
	Available     bool            `json:"available"`
}

type modelList struct {
	Models        []modelInfo `json:"models"`
	FallbackModel string      `json:"fallback_model,omitempty"`
}

func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	entries := s.models.Models()
	list := modelList{Models: make([]modelInfo, 0, len(entries)), FallbackModel: s.fallbackModel}

	for _, entry := range entries {
		info := modelInfo{
			ID:            entry.ID,
			DisplayName:   entry.DisplayName,
			Provider:      entry.Provider,
			Streaming:     entry.Streaming,
			ContextWindow: entry.ContextWindow,
			Available:     slices.Contains(s.configured, entry.Provider),
		}
		if !entry.Pricing.IsZero() {
			pricing := entry.Pricing
			info.Pricing = &pricing
		}
		list.Models = append(list.Models, info)
	}

	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var request sink.Request
	if !decode(w, r, &request) {
		return
	}
	s.serveTurn(w, r, request)
}

type chatMessage struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

type chatHistory struct {
	ChatID   string       `json:"chat_id"`
	Messages []ai.Message `json:"messages"`
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	messages, err := s.history.Conversation(r.Context(), chatID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "loading chat failed", slog.String("chat_id", chatID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, chatHistory{ChatID: chatID, Messages: messages})
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	err := s.history.Clear(r.Context(), chatID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, memory.ErrChatNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "clearing chat failed", slog.String("chat_id", chatID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// handleChatMessage runs one turn against the stored history and appends the
// user turn and the reply once the turn has ended. Abandoned turns are not
// stored.
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var message chatMessage
	if !decode(w, r, &message) {
		return
	}

	conversation, err := s.history.Conversation(r.Context(), chatID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "loading chat failed", slog.String("chat_id", chatID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	reply, ok := s.serveTurn(w, r, sink.Request{Conversation: conversation, Message: message.Message, Model: message.Model})
	if !ok {
		return
	}

	// The request context may already be done once the end marker is out.
	ctx := context.WithoutCancel(r.Context())
	err = s.history.Append(ctx, chatID,
		ai.Message{Role: ai.RoleUser, Content: message.Message},
		ai.Message{Role: ai.RoleAssistant, Content: reply.FullText},
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "storing chat turn failed", slog.String("chat_id", chatID), slog.String("error", err.Error()))
	}
}

// serveTurn validates the request, streams the turn as SSE and reports the
// reply when the turn reached its end marker.
func (s *Server) serveTurn(w http.ResponseWriter, r *http.Request, request sink.Request) (*orchestrator.AssembledReply, bool) {
	if err := validate(request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	channel := sink.NewSSEChannel(w, r)
	reply, err := s.relay.Deliver(r.Context(), channel, request)
	if err == nil {
		s.logger.InfoContext(r.Context(), "chat turn served",
			slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			slog.String("call_id", reply.CallID),
			slog.String("model", reply.RequestedModel),
			slog.String("outcome", string(reply.Outcome())),
		)
		return reply, true
	}

	if channel.Started() {
		// The client is gone or the stream broke; the status line is already sent.
		if !errors.Is(err, orchestrator.ErrClientCancelled) {
			_ = channel.WriteEvent(sink.EventError, map[string]string{"error": err.Error()})
		}
		return nil, false
	}

	switch {
	case errors.Is(err, orchestrator.ErrUnknownModel), errors.Is(err, prompt.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orchestrator.ErrClientCancelled):
		s.logger.InfoContext(r.Context(), "chat request abandoned before streaming", slog.String("error", err.Error()))
	default:
		s.logger.ErrorContext(r.Context(), "chat turn failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
	return nil, false
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func validate(request sink.Request) error {
	if strings.TrimSpace(request.Model) == "" {
		return errors.New("model is required")
	}
	for i, turn := range request.Conversation {
		if !turn.Role.Valid() {
			return fmt.Errorf("conversation[%d]: invalid role %q", i, turn.Role)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
