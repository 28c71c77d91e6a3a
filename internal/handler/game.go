package handler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ugaemi/yamago-server/internal/game"
	"github.com/ugaemi/yamago-server/internal/ws"
)

// GameHandler handles game subscription messages.
type GameHandler struct {
	reader GameReader
	subs   Subscriptions
}

// NewGameHandler creates a new game handler.
func NewGameHandler(reader GameReader, subs Subscriptions) *GameHandler {
	return &GameHandler{
		reader: reader,
		subs:   subs,
	}
}

type gameSnapshot struct {
	Game    *game.Game    `json:"game"`
	Players []game.Player `json:"players"`
	Pins    []game.Pin    `json:"pins"`
}

func parseGameRequest(msg ws.Message) (ws.GameRequest, bool) {
	var req ws.GameRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.GameID == "" {
		return req, false
	}
	return req, true
}

// HandleSubscribe subscribes the client to a game and replies with its
// current state.
func (h *GameHandler) HandleSubscribe(client *ws.Client, msg ws.Message) {
	req, ok := parseGameRequest(msg)
	if !ok {
		client.SendMessage(ws.NewErrorMessage("game_id is required"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	g, err := h.reader.GetGame(ctx, req.GameID)
	if err != nil {
		slog.Error("load game failed", "game", req.GameID, "error", err)
		client.SendMessage(ws.NewErrorMessage("failed to load game"))
		return
	}
	if g == nil {
		client.SendMessage(ws.NewErrorMessage("game not found"))
		return
	}
	players, err := h.reader.ListPlayers(ctx, req.GameID)
	if err != nil {
		slog.Error("load players failed", "game", req.GameID, "error", err)
		client.SendMessage(ws.NewErrorMessage("failed to load game"))
		return
	}
	pins, err := h.reader.ListPins(ctx, req.GameID)
	if err != nil {
		slog.Error("load pins failed", "game", req.GameID, "error", err)
		client.SendMessage(ws.NewErrorMessage("failed to load game"))
		return
	}

	h.subs.Subscribe(req.GameID, client)
	resp, _ := ws.NewMessage(ws.TypeGameSnapshot, gameSnapshot{Game: g, Players: players, Pins: pins})
	client.SendMessage(resp)

	slog.Info("client subscribed", "client", client.ID, "game", req.GameID)
}

// HandleUnsubscribe stops pushing a game's notifications to the client.
func (h *GameHandler) HandleUnsubscribe(client *ws.Client, msg ws.Message) {
	req, ok := parseGameRequest(msg)
	if !ok {
		client.SendMessage(ws.NewErrorMessage("game_id is required"))
		return
	}
	h.subs.Unsubscribe(req.GameID, client)
	slog.Info("client unsubscribed", "client", client.ID, "game", req.GameID)
}
