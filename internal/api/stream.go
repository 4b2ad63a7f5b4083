package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Stream timing
const (
	keepAliveInterval = 15 * time.Second
	wsWriteTimeout    = 10 * time.Second
	wsPongTimeout     = 60 * time.Second
	wsPingInterval    = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the sidecar listens on loopback only
	},
}

// handleEvents streams a session's progress events as Server-Sent Events.
// Each frame is "event: <name>\ndata: <json>\n\n". Nothing is replayed.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteInternal(w, r, fmt.Errorf("streaming unsupported by %T", w))
		return
	}

	ctx := r.Context()
	sub := s.events.Subscribe(ctx, sessionID)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Debug("event stream opened", "session_id", sessionID, "transport", "sse")
	defer s.logger.Debug("event stream closed", "session_id", sessionID, "transport", "sse")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-sub.Events():
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				s.logger.Warn("failed to encode stream event", "session_id", sessionID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleWebSocket streams a session's progress events as one JSON text
// message per event. Client messages are read only to detect disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.events.Subscribe(ctx, sessionID)
	defer sub.Close()

	s.logger.Debug("event stream opened", "session_id", sessionID, "transport", "websocket")
	defer s.logger.Debug("event stream closed", "session_id", sessionID, "transport", "websocket")

	go func() {
		defer cancel()
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteTimeout))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case event, open := <-sub.Events():
			if !open {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				s.logger.Debug("websocket write failed", "session_id", sessionID, "error", err)
				return
			}
		}
	}
}
