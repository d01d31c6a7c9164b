package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/datasage-io/datasage/pkg/protocol"
)

// Hub fans trace entries out to connected websocket clients so the UI can
// show tool calls as they happen, before the final answer arrives. Slow
// clients are dropped rather than buffered indefinitely.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan protocol.TraceEntry
	logger  *slog.Logger
}

const clientBuffer = 32

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]chan protocol.TraceEntry),
		logger:  logger,
	}
}

// Broadcast sends an entry to every connected client. Safe to call from the
// analyst loop goroutine.
func (h *Hub) Broadcast(e protocol.TraceEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- e:
		default:
			// Client is not keeping up; disconnect it.
			delete(h.clients, conn)
			close(ch)
			conn.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(conn *websocket.Conn) chan protocol.TraceEntry {
	ch := make(chan protocol.TraceEntry, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
	conn.Close()
}

var upgrader = websocket.Upgrader{
	// Browser origin checks are handled by the CORS layer; the API key is
	// the real gate.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "events not enabled"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ch := s.hub.add(conn)
	defer s.hub.remove(conn)

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}
