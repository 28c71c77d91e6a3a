package store

import (
	"context"
	"errors"

	"github.com/ugaemi/yamago-server/internal/game"
)

// ErrTransient marks failures worth retrying on the next sweep, such as a
// lost connection or a serialization conflict.
var ErrTransient = errors.New("store: transient failure")

// IsTransient reports whether err is a transient store failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Mutation is what a transactional decision wants to write.
type Mutation struct {
	Game   game.Game
	Events []game.Event
}

// Decide inspects the freshly read game inside a transaction. Returning false
// aborts the transaction without writing anything.
type Decide func(current game.Game) (Mutation, bool)

// PinMove relocates a single pin.
type PinMove struct {
	PinID string
	To    game.Coordinate
}

// GameStore is the persistent store the automation engine runs against.
// Listing reads may be stale; RunTransaction is the only way to change a game.
type GameStore interface {
	// GetGame returns the game, or nil if it does not exist.
	GetGame(ctx context.Context, id string) (*game.Game, error)
	// ListGamesByStatus returns games in any of the given statuses.
	ListGamesByStatus(ctx context.Context, statuses ...game.Status) ([]*game.Game, error)
	// ListActiveTimedEventGames returns running games with an active timed event.
	ListActiveTimedEventGames(ctx context.Context) ([]*game.Game, error)
	// ListPlayers returns the players of a game.
	ListPlayers(ctx context.Context, gameID string) ([]game.Player, error)
	// ListPins returns the pins of a game.
	ListPins(ctx context.Context, gameID string) ([]game.Pin, error)
	// LatestEvent returns the most recent event-log record, or nil.
	LatestEvent(ctx context.Context, gameID string) (*game.Event, error)
	// RunTransaction re-reads the game, applies decide and commits the result
	// atomically. committed is false when the game is absent, decide declined,
	// or the game changed underneath.
	RunTransaction(ctx context.Context, gameID string, decide Decide) (result game.Game, committed bool, err error)
	// ResetBoard revives downed runners and replaces all pins in one batch.
	ResetBoard(ctx context.Context, gameID string, pins []game.Pin) error
	// RelocatePins moves pins that are still pending, in one batch.
	RelocatePins(ctx context.Context, gameID string, moves []PinMove) error
	// Close releases resources.
	Close() error
}
