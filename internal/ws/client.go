package ws

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"abegfix/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = 45 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Minimum interval between chat messages from one client
	messageRateLimit = 200 * time.Millisecond

	// Maximum message text length in characters
	maxMessageTextLength = 2000
)

// Client is a single authenticated WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan *Event
	userID string
	uid    primitive.ObjectID

	lastMessage time.Time
}

func NewClient(hub *Hub, conn *websocket.Conn, user *models.User) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan *Event, clientSendBufferSize),
		userID: user.ID.Hex(),
		uid:    user.ID,
	}
}

func (c *Client) Register() {
	if !c.hub.notifyRegister(c) {
		c.Close()
		return
	}
	c.trySend(&Event{Type: EventHello, Data: c.userID})
}

func (c *Client) Close() {
	c.conn.Close()
}

// trySend drops the event when the client's buffer is full so a slow reader
// never blocks the hub.
func (c *Client) trySend(event *Event) {
	select {
	case c.send <- event:
	default:
		slog.Warn("dropping event for slow client", "component", "ws", "user_id", c.userID, "type", event.Type)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.notifyUnregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "component", "ws", "user_id", c.userID, "error", err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			c.trySend(&Event{Type: EventError, Data: "invalid event"})
			continue
		}

		c.handleEvent(&event, payload)
	}
}

func (c *Client) handleEvent(event *Event, payload []byte) {
	if event.Type != EventMessage {
		c.trySend(&Event{Type: EventError, Data: "unknown event type"})
		return
	}

	now := time.Now()
	if now.Sub(c.lastMessage) < messageRateLimit {
		c.trySend(&Event{Type: EventError, Data: "sending too fast"})
		return
	}
	c.lastMessage = now

	// Re-decode the envelope with a typed data field.
	var envelope struct {
		Data IncomingMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		c.trySend(&Event{Type: EventError, Data: "invalid message"})
		return
	}
	incoming := envelope.Data

	if _, err := primitive.ObjectIDFromHex(incoming.To); err != nil || incoming.To == c.userID {
		c.trySend(&Event{Type: EventError, Data: "invalid recipient"})
		return
	}

	text := strings.TrimSpace(incoming.Text)
	if len(text) > maxMessageTextLength {
		c.trySend(&Event{Type: EventError, Data: "message too long"})
		return
	}

	message := &models.Message{
		Room:     RoomID(c.userID, incoming.To),
		SenderID: c.uid,
		Text:     text,
	}
	switch {
	case incoming.ImageURL != "":
		message.Type = models.MessageImage
		message.ImageURL = incoming.ImageURL
	case text != "":
		message.Type = models.MessageText
	default:
		c.trySend(&Event{Type: EventError, Data: "empty message"})
		return
	}

	c.hub.notifyDeliver(delivery{sender: c, message: message})
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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
