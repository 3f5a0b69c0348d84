// Package server exposes the wake supervisor to observers over HTTP and
// WebSocket: a status endpoint for polling UIs, token-gated mutation
// endpoints for the CLI, and a status stream pushed on every supervisor
// transition.
package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/wakesentry/host/internal/keepawake"
	"github.com/wakesentry/host/internal/storage"
)

// TokenValidator checks a presented bearer token.
type TokenValidator interface {
	Validate(token string) error
}

// AuditWriter persists keep-awake lifecycle audit records.
type AuditWriter interface {
	SaveAndPruneWakeAudit(entry *storage.WakeAuditEntry, maxRows int) error
}

// Options configures the observer server.
type Options struct {
	// RequireAuth gates mutation endpoints behind the control token.
	RequireAuth bool
	// Validator checks bearer tokens; required when RequireAuth is set.
	Validator TokenValidator
	// Audit receives lifecycle records; nil disables auditing.
	Audit AuditWriter
	// AuditMaxRows bounds the audit log on each write.
	AuditMaxRows int
	// Prefs persists the default-interval preference; nil skips persistence.
	Prefs PrefStore
	// Power supplies battery readings for the status payload; may be nil.
	Power keepawake.PowerProvider
	// Version is reported in the status payload.
	Version string
	// Now returns current time; defaults to time.Now.
	Now func() time.Time
}

// Server wires the supervisor to its observer surface.
type Server struct {
	supervisor *keepawake.Supervisor
	opts       Options
	now        func() time.Time

	upgrader websocket.Upgrader
	// limiter bounds mutation request bursts; observers polling /status are
	// not limited.
	limiter *rate.Limiter

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewServer creates the observer server and registers it as a supervisor
// change observer so WebSocket clients see every transition.
func NewServer(supervisor *keepawake.Supervisor, opts Options) *Server {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	s := &Server{
		supervisor: supervisor,
		opts:       opts,
		now:        nowFn,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		clients: make(map[*wsClient]struct{}),
	}

	supervisor.OnChange(s.broadcastStatus)
	return s
}

// Handler returns the HTTP mux with all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for monitoring.
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Status endpoint for polling observers (time-remaining labels,
	// on/off iconography).
	mux.HandleFunc("/status", s.handleStatus)

	// Mutation endpoints for the CLI.
	mux.HandleFunc("/api/wake/schedule", s.handleSchedule)
	mux.HandleFunc("/api/wake/cancel", s.handleCancel)
	mux.HandleFunc("/api/wake/default", s.handleDefault)

	// Status stream for push observers.
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

// Close disconnects all stream clients. Mutations arriving afterwards are
// rejected by the shutting-down HTTP server, not by this method.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// wsClient is one connected status-stream observer with a buffered send
// channel. The buffer allows the client to fall behind temporarily without
// blocking the broadcaster.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	// Channel closed: server shutdown.
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "host shutting down"))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 8),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	// Push the current snapshot immediately so the observer can render
	// without waiting for the next transition.
	if msg, err := s.statusMessage(s.supervisor.Snapshot()); err == nil {
		select {
		case client.send <- msg:
		default:
		}
	}

	go client.writePump()

	// Reader loop: the stream is one-way, but reading detects disconnects
	// and answers control frames.
	go func() {
		defer s.dropClient(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) dropClient(client *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[client]
	delete(s.clients, client)
	s.mu.Unlock()
	if ok {
		client.close()
	}
}

// broadcastStatus fans a supervisor transition out to all stream clients.
// Slow clients are disconnected rather than allowed to block the supervisor.
func (s *Server) broadcastStatus(st keepawake.Status) {
	msg, err := s.statusMessage(st)
	if err != nil {
		log.Printf("server: failed to encode status event: %v", err)
		return
	}

	s.mu.Lock()
	var slow []*wsClient
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(s.clients, c)
	}
	s.mu.Unlock()

	for _, c := range slow {
		log.Printf("server: dropping slow status-stream client")
		c.close()
	}
}
