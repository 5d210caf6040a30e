package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kapu/netfolio/internal/constants"
	"github.com/kapu/netfolio/internal/domain"
	"github.com/kapu/netfolio/pkg/errors"
)

// chatFrame is one websocket message from the server.
type chatFrame struct {
	Role    domain.ChatRole `json:"role,omitempty"`
	Content string          `json:"content,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// handleChat handles POST /api/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.ServerConfig.MaxChatBodyBytes)

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "question is too long")
			return
		}
		s.respondAppError(w, r, errors.NewValidationError("request body must be JSON with a query field", "body", nil))
		return
	}

	reply, err := s.assistant.Ask(r.Context(), req.Query)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

// handleChatSocket upgrades to a websocket that answers {query} frames with
// {role, content} frames until the client goes away.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	session := uuid.NewString()

	conn, err := s.upgrader.Upgrade(w, r, http.Header{"X-Chat-Session": {session}})
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := s.logger.With(zap.String("session", session))
	logger.Info("Chat session opened", zap.String("remote", r.RemoteAddr))
	defer logger.Info("Chat session closed")

	cfg := constants.WebSocketConfig
	conn.SetReadLimit(cfg.MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, done, logger)

	// Each socket gets the same per-minute budget as the HTTP endpoint.
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.cfg.ChatRateLimit)), s.cfg.ChatRateLimit)

	for {
		var req domain.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Chat session read error", zap.Error(err))
			}
			return
		}

		var frame chatFrame
		switch {
		case !limiter.Allow():
			frame.Error = "Too many questions. Please try again in a minute."
		default:
			reply, err := s.assistant.Ask(r.Context(), req.Query)
			if err != nil {
				frame.Error = errors.PublicMessage(err)
			} else {
				frame.Role = domain.ChatRoleAssistant
				frame.Content = reply.Reply
			}
		}

		_ = conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
		if err := conn.WriteJSON(frame); err != nil {
			logger.Debug("Chat session write error", zap.Error(err))
			return
		}
	}
}

// pingLoop keeps the connection alive. WriteControl is safe next to the reader loop's writes.
func (s *Server) pingLoop(conn *websocket.Conn, done <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(constants.WebSocketConfig.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(constants.WebSocketConfig.WriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Debug("Chat session ping failed", zap.Error(err))
				return
			}
		}
	}
}
