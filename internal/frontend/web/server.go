// Package web serves the arena over WebSocket. One connection carries both
// game channels; every text frame is one protocol envelope.
package web

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/game/room"
	"github.com/cory-johannsen/arena/internal/game/session"
	"github.com/cory-johannsen/arena/internal/observability"
)

// Gateway is the part of the connection gateway a transport drives.
type Gateway interface {
	Connect(remoteAddr, transport string) *session.Session
	Handle(id room.PlayerID, raw []byte) error
	Disconnect(id room.PlayerID)
}

// Options tunes the WebSocket keepalive and frame limits.
type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	// AllowedOrigins lists accepted Origin headers. Empty accepts any origin.
	AllowedOrigins []string
}

// Server accepts WebSocket connections and pumps frames between them and the gateway.
type Server struct {
	gw       Gateway
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader
	http     *http.Server

	mu      sync.Mutex
	closing bool
	conns   map[*websocket.Conn]struct{}
	wg      sync.WaitGroup
}

// NewServer creates a WebSocket server listening on addr.
//
// Precondition: gw and logger must be non-nil; opts.PingPeriod < opts.PongWait.
func NewServer(addr string, gw Gateway, opts Options, logger *zap.Logger) *Server {
	s := &Server{
		gw:     gw,
		opts:   opts,
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the HTTP routes: /ws for the game socket and /healthz.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", s.serveWS)
	return r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.opts.AllowedOrigins, r.Header.Get("Origin"))
}

// Start listens until Stop is called.
//
// Postcondition: Returns nil after a graceful Stop, or the listener error.
func (s *Server) Start() error {
	s.logger.Info("websocket server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops accepting connections, closes every open socket, and waits for
// their sessions to be disconnected.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}

	s.mu.Lock()
	s.closing = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// track registers c for Stop and reports false once Stop has begun.
func (s *Server) track(c *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	if !s.track(conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.opts.WriteWait))
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	sess := s.gw.Connect(r.RemoteAddr, "websocket")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(conn, sess)
	}()

	s.readPump(conn, sess)
	s.gw.Disconnect(sess.ID)
	<-writerDone
}

// readPump feeds inbound text frames to the gateway until the peer goes away
// or misses a pong.
func (s *Server) readPump(conn *websocket.Conn, sess *session.Session) {
	defer conn.Close()

	conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Info("websocket read", observability.Player(sess.ID), zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		// Rejections are reported by the gateway itself.
		_ = s.gw.Handle(sess.ID, msg)
	}
}

// writePump drains the session outbox to the socket and pings on an interval.
// It exits when the outbox is closed by Disconnect or a write fails.
func (s *Server) writePump(conn *websocket.Conn, sess *session.Session) {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sess.Outbox.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debug("websocket write", observability.Player(sess.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
