package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// writeWait bounds a single websocket write.
const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// UpdatesHub broadcasts pipeline updates to websocket clients.
type UpdatesHub struct {
	source  <-chan app.Update
	log     zerolog.Logger
	clients map[*websocket.Conn]struct{}
	mu      sync.Mutex
}

// NewUpdatesHub creates a hub that relays updates from source once Run is
// called.
func NewUpdatesHub(source <-chan app.Update, log zerolog.Logger) *UpdatesHub {
	return &UpdatesHub{
		source:  source,
		log:     log,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *UpdatesHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	defer h.drop(conn)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *UpdatesHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run relays updates until ctx is cancelled, then disconnects every client.
// Run is the only writer to client connections.
func (h *UpdatesHub) Run(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-h.source:
			if !ok {
				return
			}
			h.broadcast(u)
		}
	}
}

func (h *UpdatesHub) broadcast(u app.Update) {
	msg, err := json.Marshal(u)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode update")
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug().Err(err).Msg("dropping websocket client")
			h.drop(conn)
			conn.Close()
		}
	}
}

func (h *UpdatesHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *UpdatesHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
