package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ugaemi/yamago-server/internal/game"
	"github.com/ugaemi/yamago-server/internal/ws"
)

const readTimeout = 5 * time.Second

// GameReader is the read side of the game store used for snapshots.
type GameReader interface {
	GetGame(ctx context.Context, id string) (*game.Game, error)
	ListPlayers(ctx context.Context, gameID string) ([]game.Player, error)
	ListPins(ctx context.Context, gameID string) ([]game.Pin, error)
}

// Subscriptions tracks which clients watch which games.
type Subscriptions interface {
	Subscribe(gameID string, client *ws.Client)
	Unsubscribe(gameID string, client *ws.Client)
}

// Router dispatches incoming messages to the appropriate handler.
type Router struct {
	games *GameHandler
}

// NewRouter creates a new message router.
func NewRouter(reader GameReader, subs Subscriptions) *Router {
	return &Router{
		games: NewGameHandler(reader, subs),
	}
}

// HandleMessage parses and routes an incoming client message.
func (r *Router) HandleMessage(cm *ws.ClientMessage) {
	var msg ws.Message
	if err := json.Unmarshal(cm.Data, &msg); err != nil {
		slog.Warn("invalid message format", "client", cm.Client.ID, "error", err)
		cm.Client.SendMessage(ws.NewErrorMessage("invalid message format"))
		return
	}

	switch msg.Type {
	case ws.TypeSubscribeGame:
		r.games.HandleSubscribe(cm.Client, msg)
	case ws.TypeUnsubscribeGame:
		r.games.HandleUnsubscribe(cm.Client, msg)

	default:
		slog.Warn("unknown message type", "type", msg.Type, "client", cm.Client.ID)
		cm.Client.SendMessage(ws.NewErrorMessage("unknown message type: " + msg.Type))
	}
}

// HandleDisconnect handles client disconnection. The hub has already dropped
// the client's subscriptions.
func (r *Router) HandleDisconnect(client *ws.Client) {
	slog.Debug("client left", "client", client.ID)
}
