package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"bot_dashboard/internal/engine"
	"bot_dashboard/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	FrameDashboard    = "dashboard"
	FrameNotification = "notification"
	FrameClock        = "clock"
)

// Frame is what every websocket client receives.
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub manages all WebSocket clients and broadcasts frames to them. It is an
// engine.Publisher and its Notify method is a notify.Sink.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	// last dashboard frame, replayed to clients as they connect
	latest []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.latest != nil {
				client.send <- h.latest
			}
			h.mu.Unlock()
			log.Debug().Str("remote", client.conn.RemoteAddr().String()).Msg("websocket client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Debug().Msg("websocket client unregistered")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow reader
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues message for every client. It never blocks the caller; a
// full queue drops the message.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn().Int("bytes", len(message)).Msg("websocket broadcast queue full, frame dropped")
	}
}

func (h *Hub) send(kind string, data interface{}) []byte {
	msg, err := json.Marshal(Frame{Type: kind, Data: data})
	if err != nil {
		log.Error().Err(err).Str("type", kind).Msg("failed to encode websocket frame")
		return nil
	}
	h.Broadcast(msg)
	return msg
}

func (h *Hub) PublishDashboard(d engine.Dashboard) {
	if msg := h.send(FrameDashboard, d); msg != nil {
		h.mu.Lock()
		h.latest = msg
		h.mu.Unlock()
	}
}

func (h *Hub) PublishClock(t time.Time) {
	h.send(FrameClock, t.Format("15:04:05"))
}

func (h *Hub) Notify(n models.Notification) {
	h.send(FrameNotification, n)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header, from the serving host
// itself, or from a loopback development server.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// ServeWs upgrades the request and attaches the peer to the hub.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
