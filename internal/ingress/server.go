package ingress

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meeting-voice-lab/internal/logging"
	"github.com/meeting-voice-lab/internal/routing"
)

// EventSink receives decoded transcript events. The orchestrator satisfies this.
type EventSink interface {
	HandleTranscript(ev routing.TranscriptEvent) error
}

// Server accepts websocket connections from meeting-bot edges and decodes
// JSON transcript frames into events for the sink. One goroutine per
// connection; frames on one connection stay in order.
type Server struct {
	sink EventSink
	http *http.Server

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewServer(addr string, sink EventSink) *Server {
	s := &Server{
		sink:  sink,
		conns: make(map[*websocket.Conn]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/transcripts/ws", s.handleWS)
	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	logging.Infow("transcript ingress listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnw("websocket upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	logging.Infow("transcript connection opened", "remote", r.RemoteAddr)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Warnw("transcript connection error", "err", err, "remote", r.RemoteAddr)
			}
			return
		}
		var ev routing.TranscriptEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logging.Warnw("bad transcript frame, skipping", "err", err, "remote", r.RemoteAddr)
			continue
		}
		if ev.ReceivedAt.IsZero() {
			ev.ReceivedAt = time.Now()
		}
		if err := s.sink.HandleTranscript(ev); err != nil {
			logging.Warnw("transcript rejected", "err", err, "bot_id", ev.BotID)
		}
	}
}

// Shutdown closes open connections and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.mu.Unlock()
	return s.http.Shutdown(ctx)
}
