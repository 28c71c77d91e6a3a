package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ugaemi/yamago-server/internal/ws"
)

// Notifier delivers notifications. Delivery is best-effort: callers log
// failures and never roll back game state because of them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogNotifier writes notifications to the default logger.
type LogNotifier struct{}

// Notify logs n.
func (LogNotifier) Notify(_ context.Context, n Notification) error {
	slog.Info("notification", "type", n.Type, "game", n.GameID, "title", n.Title, "body", n.Body)
	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

// Notify delivers n to all notifiers, even if some fail.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GameBroadcaster sends a message to the clients watching a game.
type GameBroadcaster interface {
	BroadcastToGame(gameID string, msg ws.Message) int
}

// HubNotifier pushes notifications to websocket subscribers of the game.
type HubNotifier struct {
	hub GameBroadcaster
}

// NewHubNotifier creates a HubNotifier.
func NewHubNotifier(hub GameBroadcaster) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// Notify broadcasts n as a notification message.
func (h *HubNotifier) Notify(_ context.Context, n Notification) error {
	msg, err := ws.NewMessage(ws.TypeNotification, n)
	if err != nil {
		return err
	}
	sent := h.hub.BroadcastToGame(n.GameID, msg)
	slog.Debug("notification pushed", "type", n.Type, "game", n.GameID, "clients", sent)
	return nil
}
