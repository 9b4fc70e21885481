package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jward/automaple"
	"github.com/jward/automaple/internal/config"
	"github.com/jward/automaple/internal/logging"
	"github.com/jward/automaple/internal/runtime"
)

// Sessions is the part of *automaple.Controller the server drives.
type Sessions interface {
	Run(ctx context.Context, s automaple.Script) (*automaple.Result, error)
	RequestCancel(ctx context.Context) error
	State() automaple.State
	Active() *automaple.Active
	LoadScript(path string) (automaple.Script, error)
}

var _ Sessions = (*automaple.Controller)(nil)

var errServerClosed = errors.New("control: server is shutting down")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// The server binds to loopback by default.
		return true
	},
}

// Server accepts control connections.
type Server struct {
	cfg      config.ControlConfig
	sessions Sessions
	hub      *Hub
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates a Server driving sessions. hub must be the one the
// controller publishes its events to.
func NewServer(cfg config.ControlConfig, sessions Sessions, hub *Hub, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		hub:      hub,
		logger:   logger.With("component", "control"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Publish forwards a controller event to every client. Pass it to
// automaple.WithEventHook.
func (h *Hub) Publish(e automaple.Event) {
	h.Broadcast(string(e.Type), eventOf(e))
}

// Handler returns the HTTP handler serving the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWebSocket)
	return mux
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// ListenAndServe serves until ctx is cancelled, then cancels any session
// the server started and waits for it.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control server listening", "addr", srv.Addr, "path", s.cfg.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("control: listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("control server shutdown", "error", err)
	}
	s.Close()
	return nil
}

// Close stops sessions started through the server and waits for them.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if err := s.sessions.RequestCancel(context.Background()); err != nil {
		s.logger.Warn("cancelling session on close", "error", err)
	}
	s.wg.Wait()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	c := &client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	s.hub.register(c)

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) pingInterval() time.Duration {
	if s.cfg.PingInterval <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.cfg.PingInterval) * time.Second
}

func (s *Server) pongWait() time.Duration {
	if s.cfg.PongTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.cfg.PongTimeout) * time.Second
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.hub.unregister(c)
		c.conn.Close()
	}()

	if s.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(s.cfg.MaxMessageSize))
	}
	deadline := s.pingInterval() + s.pongWait()
	//nolint:errcheck // best-effort deadline
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			} else {
				s.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		//nolint:errcheck // best-effort deadline
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		s.handleMessage(c, data)
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(s.pingInterval())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				//nolint:errcheck // best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(s.pongWait()))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(s.pongWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(c *client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.replyError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case TypeStart:
		s.handleStart(c, msg)
	case TypeCancel:
		s.handleCancel(c, msg)
	case TypeStatus:
		c.reply(msg.ID, TypeResponse, statusOf(s.sessions.State(), s.sessions.Active()))
	case TypePing:
		c.reply(msg.ID, TypePong, nil)
	default:
		c.replyError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleStart queues the script and answers at once. The session runs on its
// own goroutine; if it cannot start, an error with the same id follows.
func (s *Server) handleStart(c *client, msg Message) {
	var p StartPayload
	if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &p) != nil || p.Script == "" {
		c.replyError(msg.ID, "invalid start payload")
		return
	}

	script := automaple.Script{Name: p.Script, Source: p.Source}
	if p.Source == "" {
		loaded, err := s.sessions.LoadScript(runtime.ScriptPath(p.Script))
		if err != nil {
			c.replyError(msg.ID, err.Error())
			return
		}
		script = loaded
	}

	started := s.spawn(func() {
		if _, err := s.sessions.Run(s.ctx, script); err != nil {
			s.logger.Warn("start rejected", "script", script.Name, "error", err)
			c.replyError(msg.ID, err.Error())
		}
	})
	if !started {
		c.replyError(msg.ID, errServerClosed.Error())
		return
	}

	c.reply(msg.ID, TypeResponse, map[string]any{"queued": true, "script": script.Name})
}

// handleCancel answers once the session has been torn down.
func (s *Server) handleCancel(c *client, msg Message) {
	started := s.spawn(func() {
		if err := s.sessions.RequestCancel(s.ctx); err != nil {
			c.replyError(msg.ID, err.Error())
			return
		}
		c.reply(msg.ID, TypeResponse, statusOf(s.sessions.State(), s.sessions.Active()))
	})
	if !started {
		c.replyError(msg.ID, errServerClosed.Error())
	}
}

// spawn runs fn on a goroutine Close waits for. It reports false once Close
// has begun.
func (s *Server) spawn(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}
