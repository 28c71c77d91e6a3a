package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub maintains the set of active clients, their game subscriptions, and
// routes messages.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Incoming   chan *ClientMessage
	subs       map[string]map[*Client]struct{} // game ID -> subscribers
	stopped    chan struct{}
	mu         sync.RWMutex

	// OnMessage is called for each incoming client message.
	OnMessage func(cm *ClientMessage)
	// OnDisconnect is called when a client disconnects.
	OnDisconnect func(client *Client)
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Incoming:   make(chan *ClientMessage, 256),
		subs:       make(map[string]map[*Client]struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns once done is closed.
func (h *Hub) Run(done <-chan struct{}) {
	defer close(h.stopped)
	for {
		select {
		case <-done:
			return

		case client := <-h.Register:
			h.mu.Lock()
			h.Clients[client] = true
			h.mu.Unlock()
			slog.Info("client connected", "client", client.ID)

		case client := <-h.Unregister:
			h.remove(client)
			slog.Info("client disconnected", "client", client.ID)
			if h.OnDisconnect != nil {
				h.OnDisconnect(client)
			}

		case cm := <-h.Incoming:
			if h.OnMessage != nil {
				h.OnMessage(cm)
			}
		}
	}
}

// Join registers a client. It returns false once the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.stopped:
		return false
	}
}

// Leave unregisters a client. It is a no-op once the hub has stopped.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.stopped:
	}
}

// Deliver queues an incoming message. It drops the message once the hub has
// stopped.
func (h *Hub) Deliver(cm *ClientMessage) {
	select {
	case h.Incoming <- cm:
	case <-h.stopped:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.Clients[client]; !ok {
		return
	}
	delete(h.Clients, client)
	for gameID, set := range h.subs {
		delete(set, client)
		if len(set) == 0 {
			delete(h.subs, gameID)
		}
	}
	close(client.Send)
}

// Subscribe adds client to the audience of a game.
func (h *Hub) Subscribe(gameID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[gameID]
	if !ok {
		set = make(map[*Client]struct{})
		h.subs[gameID] = set
	}
	set[client] = struct{}{}
}

// Unsubscribe removes client from the audience of a game.
func (h *Hub) Unsubscribe(gameID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[gameID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.subs, gameID)
		}
	}
}

// SubscriberCount returns the number of clients watching a game.
func (h *Hub) SubscriberCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[gameID])
}

// BroadcastToGame sends msg to every client subscribed to gameID and
// returns how many were reached.
func (h *Hub) BroadcastToGame(gameID string, msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal message", "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for client := range h.subs[gameID] {
		select {
		case client.Send <- data:
			sent++
		default:
			slog.Warn("broadcast: client send buffer full", "client", client.ID, "game", gameID)
		}
	}
	return sent
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients)
}
