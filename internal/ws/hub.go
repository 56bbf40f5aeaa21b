package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"whatsapp-assistant/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // operator auth is not enforced
	},
}

// HandlerFunc receives every frame read from a client. It runs on the
// client's read goroutine, so frames from one connection are handled in order.
type HandlerFunc func(c *Client, data []byte)

// Client represents a connected operator socket
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type envelope struct {
	payload []byte
	exclude *Client
	target  *Client
}

// Hub owns the set of active clients. Only Run touches the set.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	handler    HandlerFunc
	logger     *slog.Logger
	count      atomic.Int64
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		broadcast:  make(chan envelope, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     logger.With("component", "ws"),
	}
}

// HandleFunc installs the inbound frame handler. Call before serving.
func (h *Hub) HandleFunc(fn HandlerFunc) {
	h.handler = fn
}

// Run serves register, unregister and broadcast requests until ctx is done,
// then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.count.Add(1)
			metrics.SocketClients.Inc()
			h.logger.Info("socket client registered", "client_id", client.ID)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.logger.Info("socket client unregistered", "client_id", client.ID)
			}
		case env := <-h.broadcast:
			if env.target != nil {
				if h.clients[env.target] {
					h.deliver(env.target, env.payload)
				}
				continue
			}
			for client := range h.clients {
				if client == env.exclude {
					continue
				}
				h.deliver(client, env.payload)
			}
		}
	}
}

func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		h.remove(client)
		metrics.SocketDropped.Inc()
		h.logger.Warn("socket client dropped, send buffer full", "client_id", client.ID)
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.count.Add(-1)
	metrics.SocketClients.Dec()
}

// Count reports the number of registered clients.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

// Broadcast sends event to every client except exclude, which may be nil.
// Delivery failures never reach the caller.
func (h *Hub) Broadcast(event any, exclude *Client) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal socket event", "error", err)
		return
	}
	h.enqueue(envelope{payload: payload, exclude: exclude})
}

// Send delivers event to a single client.
func (h *Hub) Send(c *Client, event any) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal socket event", "error", err)
		return
	}
	h.enqueue(envelope{payload: payload, target: c})
}

func (h *Hub) enqueue(env envelope) {
	select {
	case h.broadcast <- env:
	case <-h.done:
	}
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("socket upgrade failed", "error", err)
		return
	}
	client := &Client{ID: uuid.NewString(), hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("socket read failed", "client_id", c.ID, "error", err)
			}
			return
		}
		if c.hub.handler != nil {
			c.hub.handler(c, data)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
