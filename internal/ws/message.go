package ws

import "encoding/json"

// Message represents a WebSocket message with type-based routing.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message types - Client requests
const (
	TypeSubscribeGame   = "subscribe_game"
	TypeUnsubscribeGame = "unsubscribe_game"
)

// Message types - Server pushes
const (
	TypeGameSnapshot = "game_snapshot"
	TypeNotification = "notification"
)

// Message types - System
const (
	TypeError = "error"
)

// GameRequest is the payload of subscribe/unsubscribe requests.
type GameRequest struct {
	GameID string `json:"game_id"`
}

// ErrorMessage is sent when an error occurs.
type ErrorMessage struct {
	Message string `json:"message"`
}

// NewErrorMessage creates a Message with an error payload.
func NewErrorMessage(msg string) Message {
	data, _ := json.Marshal(ErrorMessage{Message: msg})
	return Message{Type: TypeError, Data: data}
}

// NewMessage creates a Message with a typed payload.
func NewMessage(msgType string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Data: data}, nil
}
