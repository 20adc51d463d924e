package ws

import (
	"context"
	"log/slog"
	"sync"

	"abegfix/internal/db"
	"abegfix/internal/models"
)

const (
	clientSendBufferSize = 64
)

// Hub routes chat messages between connected clients and persists every
// delivered message. One client per user; a new connection replaces the old
// one.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	shutdown   chan struct{}
	once       sync.Once

	messages *db.MessageRepository
}

type delivery struct {
	sender  *Client
	message *models.Message
}

func NewHub(messages *db.MessageRepository) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, clientSendBufferSize),
		shutdown:   make(chan struct{}),
		messages:   messages,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			for _, client := range h.clients {
				client.Close()
			}
			h.clients = make(map[string]*Client)
			return

		case client := <-h.register:
			if old, ok := h.clients[client.userID]; ok {
				old.Close()
			}
			h.clients[client.userID] = client
			slog.Info("client connected", "component", "hub", "user_id", client.userID)

		case client := <-h.unregister:
			if current, ok := h.clients[client.userID]; ok && current == client {
				delete(h.clients, client.userID)
			}
			slog.Info("client disconnected", "component", "hub", "user_id", client.userID)

		case d := <-h.deliver:
			h.handleDelivery(d)
		}
	}
}

func (h *Hub) Shutdown() {
	h.once.Do(func() { close(h.shutdown) })
}

// notifyRegister hands the client to the hub loop. Returns false when the hub
// is shutting down and nobody is left to receive it.
func (h *Hub) notifyRegister(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.shutdown:
		return false
	}
}

func (h *Hub) notifyUnregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.shutdown:
	}
}

func (h *Hub) notifyDeliver(d delivery) {
	select {
	case h.deliver <- d:
	case <-h.shutdown:
	}
}

func (h *Hub) handleDelivery(d delivery) {
	if err := h.messages.Insert(context.Background(), d.message); err != nil {
		slog.Error("error persisting message", "component", "hub", "error", err)
		d.sender.trySend(&Event{Type: EventError, Data: "message could not be delivered"})
		return
	}

	event := &Event{Type: EventMessage, Data: d.message}

	recipient := PeerFromRoom(d.message.Room, d.message.SenderID.Hex())
	if client, ok := h.clients[recipient]; ok {
		client.trySend(event)
	}

	d.sender.trySend(&Event{Type: EventAck, Data: d.message.ID.Hex()})
}
