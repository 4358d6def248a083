// Package server exposes the chatbot over HTTP: a JSON chat endpoint, a
// WebSocket stream for interactive clients, health and stats endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/seriesbot-go/internal/bot"
	"github.com/raphaelgruber/seriesbot-go/internal/memory"
	"github.com/raphaelgruber/seriesbot-go/internal/metrics"
	"github.com/raphaelgruber/seriesbot-go/internal/models"
)

const maxMessageBytes = 4096

// Server wires the orchestrator into an HTTP handler with lifecycle
// management.
type Server struct {
	bot     *bot.Bot
	store   *memory.Store
	metrics *metrics.Collector
	logger  *slog.Logger

	upgrader websocket.Upgrader
	http     *http.Server
}

// New creates the HTTP server. collector may be nil, which disables the
// stats endpoint payload beyond uptime.
func New(b *bot.Bot, store *memory.Store, collector *metrics.Collector, port int, logger *slog.Logger) *Server {
	s := &Server{
		bot:     b,
		store:   store,
		metrics: collector,
		logger:  logger,
		upgrader: websocket.Upgrader{
			// Local-first deployment, same trust model as the CLI.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      LoggingMiddleware(logger)(s.routes()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // long for LLM-composed replies
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/chat/ws", s.handleChatWS)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Handler returns the full handler chain, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run starts listening and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("chat API listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving chat API: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down chat API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down chat API: %w", err)
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	resp, err := s.bot.HandleMessage(r.Context(), req.Message, req.SessionID)
	if err != nil {
		s.logger.Error("chat turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleChatWS streams turns over a WebSocket: each client frame is a
// ChatRequest, each server frame the matching ChatResponse. The session
// id from the first response should be echoed on subsequent frames.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageBytes)

	for {
		var req models.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		resp, err := s.bot.HandleMessage(r.Context(), req.Message, req.SessionID)
		if err != nil {
			s.logger.Error("chat turn failed", "error", err)
			resp = models.ChatResponse{Message: "Something went wrong on my end. Please try again.", SessionID: req.SessionID}
		}

		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeJSON(w, http.StatusOK, map[string]any{"sessions": s.store.Len()})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot(s.store.Len()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
