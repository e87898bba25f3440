// Package websocket is the push surface. Clients connect with their JWT,
// then subscribe to room channels with joinRoom/leaveRoom frames; the hub
// forwards fan-out events to subscribers. Subscribing is separate from
// Registry membership and may lag behind it — events for unsubscribed rooms
// are simply not delivered, and the client catches up over REST.
package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"go-rooms/backend/utils"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientFrame is the only inbound message shape: channel subscription
// management. All mutations go through REST.
type clientFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// Client is one connected websocket peer.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, p, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws: read error: %v", err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(p, &frame); err != nil {
			log.Printf("ws: bad frame from %s: %v", c.userID, err)
			continue
		}
		switch frame.Type {
		case "joinRoom":
			c.hub.subscribe <- subscription{client: c, roomID: frame.RoomID}
		case "leaveRoom":
			c.hub.unsubscribe <- subscription{client: c, roomID: frame.RoomID}
		default:
			// Unknown frame types are ignored for forward compatibility.
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
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

type subscription struct {
	client *Client
	roomID string
}

type delivery struct {
	room string
	user string
	data []byte
}

// Hub tracks connected clients, their room subscriptions, and a per-user
// index for privately-addressed events. It implements fanout.Sink.
type Hub struct {
	clients     map[*Client]bool
	rooms       map[string]map[*Client]bool
	users       map[string]map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	deliveries  chan delivery
}

func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
		users:       make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		deliveries:  make(chan delivery, 256),
	}
}

// DeliverRoom hands an event to every client subscribed to the room.
// Non-blocking: if the hub is saturated the event is dropped, per the
// at-most-once contract.
func (h *Hub) DeliverRoom(roomID string, data []byte) {
	select {
	case h.deliveries <- delivery{room: roomID, data: data}:
	default:
		log.Printf("ws: hub saturated, dropped event for room %s", roomID)
	}
}

// DeliverUser hands an event to every connection of one user.
func (h *Hub) DeliverUser(userID string, data []byte) {
	select {
	case h.deliveries <- delivery{user: userID, data: data}:
	default:
		log.Printf("ws: hub saturated, dropped event for user %s", userID)
	}
}

// Run is the hub's single-goroutine event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			if h.users[client.userID] == nil {
				h.users[client.userID] = make(map[*Client]bool)
			}
			h.users[client.userID][client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case sub := <-h.subscribe:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			if h.rooms[sub.roomID] == nil {
				h.rooms[sub.roomID] = make(map[*Client]bool)
			}
			h.rooms[sub.roomID][sub.client] = true

		case sub := <-h.unsubscribe:
			h.removeFromRoom(sub.roomID, sub.client)

		case d := <-h.deliveries:
			if d.room != "" {
				for client := range h.rooms[d.room] {
					h.send(client, d.data)
				}
			} else {
				for client := range h.users[d.user] {
					h.send(client, d.data)
				}
			}
		}
	}
}

func (h *Hub) send(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		// Slow consumer: drop the connection, the client reconnects and
		// re-reads from the store.
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	for roomID := range h.rooms {
		h.removeFromRoom(roomID, client)
	}
	if conns, ok := h.users[client.userID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.users, client.userID)
		}
	}
	close(client.send)
}

func (h *Hub) removeFromRoom(roomID string, client *Client) {
	if subs, ok := h.rooms[roomID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// ServeWS upgrades the connection and registers the client. The token
// arrives as a query parameter because browsers cannot set headers on
// websocket dials.
func ServeWS(hub *Hub, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "token is required", http.StatusUnauthorized)
			return
		}
		userID, err := utils.GetUserIDFromToken(token, jwtSecret)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws: failed to upgrade: %v", err)
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, 256),
			userID: userID.Hex(),
		}
		hub.register <- client

		go client.writePump()
		client.readPump()
	}
}
