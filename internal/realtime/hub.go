// Package realtime pushes committed notifications to the recipient's open
// websocket connections. Delivery is best effort; the inbox table is the
// record.
package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"leads-backend/internal/middleware"
	"leads-backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Message is the frame written to clients
type Message struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification"`
}

type client struct {
	principalID int
	conn        *websocket.Conn
	send        chan []byte
}

type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[int]map[*client]struct{}
}

// NewHub accepts upgrades from allowedOrigins; an empty list or "*" allows any
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{clients: make(map[int]map[*client]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Publish queues n for every connection of recipientID. A client whose
// buffer is full misses the frame and catches up from the inbox.
func (h *Hub) Publish(recipientID int, n *models.Notification) {
	frame, err := json.Marshal(Message{Type: "notification", Notification: n})
	if err != nil {
		log.Printf("[Realtime] marshal notification %d: %v", n.ID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[recipientID] {
		select {
		case c.send <- frame:
		default:
			log.Printf("[Realtime] dropping frame for principal %d, client too slow", recipientID)
		}
	}
}

// Connected reports how many live connections a principal has
func (h *Hub) Connected(principalID int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[principalID])
}

// ServeWS upgrades an authenticated request. It must sit behind the auth
// middleware, which accepts ?token= for browsers.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	principalID, ok := middleware.GetPrincipalIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Realtime] upgrade error: %v", err)
		return
	}

	c := &client{principalID: principalID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.principalID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.principalID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.principalID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.principalID)
	}
	close(c.send)
}

// readPump only watches for the close; clients never send anything useful
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
