package devserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/worklinkhq/worklink/client/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 5120
)

// Hub fans push events out to connected sockets, one set of connections per
// user id so multiple tabs of the same user all receive events.
type Hub struct {
	log *zap.SugaredLogger

	register   chan *wsClient
	unregister chan *wsClient

	mu      sync.RWMutex
	clients map[string]map[*wsClient]bool

	// onFrame receives client frames (typing, join/leave) for relaying.
	onFrame func(userID string, frame wire.ClientFrame)
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:        log,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		clients:    make(map[string]map[*wsClient]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*wsClient]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()
			h.BroadcastExcept(client.userID, map[string]any{
				"type":    wire.EventUserOnline,
				"user_id": client.userID,
			})
			h.sendSnapshot(client)

		case client := <-h.unregister:
			h.mu.Lock()
			gone := false
			if set, ok := h.clients[client.userID]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.send)
					if len(set) == 0 {
						delete(h.clients, client.userID)
						gone = true
					}
				}
			}
			h.mu.Unlock()
			if gone {
				h.BroadcastExcept(client.userID, map[string]any{
					"type":    wire.EventUserOffline,
					"user_id": client.userID,
				})
			}
		}
	}
}

// sendSnapshot tells a freshly registered connection who is already online.
// Broadcast deltas only reach clients connected at the time, so late joiners
// need the full list once.
func (h *Hub) sendSnapshot(client *wsClient) {
	data, err := json.Marshal(map[string]any{
		"type":         wire.EventUserOnline,
		"user_id":      client.userID,
		"online_users": h.OnlineUserIDs(),
	})
	if err != nil {
		h.log.Errorw("marshal presence snapshot", "err", err)
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// Push sends a payload to every connection of one user.
func (h *Hub) Push(userID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Errorw("marshal push payload", "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		return
	}
	for client := range set {
		select {
		case client.send <- data:
		default:
			// slow client, drop
			close(client.send)
			delete(set, client)
			h.log.Warnw("dropped slow client", "user", userID)
		}
	}
}

// BroadcastExcept sends a payload to every connected user but one.
func (h *Hub) BroadcastExcept(excludeUserID string, payload any) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		if userID != excludeUserID {
			ids = append(ids, userID)
		}
	}
	h.mu.RUnlock()
	for _, userID := range ids {
		h.Push(userID, payload)
	}
}

// OnlineUserIDs lists the ids of users with at least one open connection.
func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.clients))
	for id := range h.clients {
		out = append(out, id)
	}
	return out
}

type wsClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var frame wire.ClientFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			continue
		}
		if c.hub.onFrame != nil {
			c.hub.onFrame(c.userID, frame)
		}
	}
}

func (c *wsClient) writePump() {
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
