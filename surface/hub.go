package surface

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientBuffer = 256
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans change events out to websocket subscribers. A subscriber which can't keep up is dropped.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	count      atomic.Int32
	logger     *slog.Logger
}

// NewHub creates a hub. Run must be started before subscribers connect.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, clientBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Clients returns number of connected subscribers
func (hub *Hub) Clients() int {
	return int(hub.count.Load())
}

// Run serves registrations and broadcasts until stop is closed
func (hub *Hub) Run(stop <-chan struct{}) {
	defer func() {
		for c := range hub.clients {
			close(c.send)
			delete(hub.clients, c)
		}
		hub.count.Store(0)
		close(hub.done)
	}()
	for {
		select {
		case <-stop:
			return
		case c := <-hub.register:
			hub.clients[c] = true
			hub.count.Store(int32(len(hub.clients)))
			hub.logger.Debug("stream client registered", "clients", len(hub.clients))
		case c := <-hub.unregister:
			if _, ok := hub.clients[c]; ok {
				delete(hub.clients, c)
				close(c.send)
				hub.count.Store(int32(len(hub.clients)))
				hub.logger.Debug("stream client unregistered", "clients", len(hub.clients))
			}
		case message := <-hub.broadcast:
			for c := range hub.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(hub.clients, c)
					hub.count.Store(int32(len(hub.clients)))
				}
			}
		}
	}
}

// Publish encodes events and queues them for every subscriber. Events are dropped when the hub is saturated.
func (hub *Hub) Publish(events ...Event) {
	for _, event := range events {
		message, err := json.Marshal(event)
		if err != nil {
			hub.logger.Error("can't encode event", "error", err)
			continue
		}
		select {
		case hub.broadcast <- message:
		case <-hub.done:
			return
		default:
			hub.logger.Debug("stream saturated, dropping event", "key", event.Key)
		}
	}
}

// ServeWS upgrades the request and subscribes the connection
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	select {
	case hub.register <- c:
	case <-hub.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump(hub)
}

// readPump only watches for the peer going away
func (c *client) readPump(hub *Hub) {
	defer func() {
		select {
		case hub.unregister <- c:
		case <-hub.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
