package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ugaemi/yamago-server/internal/game"
	"github.com/ugaemi/yamago-server/internal/notify"
	"github.com/ugaemi/yamago-server/internal/store"
)

// TryStartFromCountdown starts g once its countdown has finished. It reports
// whether this call made the transition.
func (e *Engine) TryStartFromCountdown(ctx context.Context, g *game.Game) (bool, error) {
	now := e.now()
	if _, ok := game.DecideStart(g.Clone(), now); !ok {
		return false, nil
	}

	started, committed, err := e.store.RunTransaction(ctx, g.ID, func(cur game.Game) (store.Mutation, bool) {
		next, ok := game.DecideStart(cur, now)
		return store.Mutation{Game: next}, ok
	})
	if err != nil {
		return false, fmt.Errorf("start game %s: %w", g.ID, err)
	}
	if !committed {
		return false, nil
	}
	slog.Info("game started", "game", g.ID)

	if err := e.reseedIfStale(ctx, &started); err != nil {
		slog.Error("reseed pins on start failed", "game", g.ID, "error", err)
	}
	e.notify(ctx, notify.GameStarted(g.ID))
	return true, nil
}

// reseedIfStale replaces the board when it does not hold exactly the
// expected number of pending pins.
func (e *Engine) reseedIfStale(ctx context.Context, g *game.Game) error {
	pins, err := e.store.ListPins(ctx, g.ID)
	if err != nil {
		return err
	}
	want := g.EffectivePinCount()
	fresh := len(pins) == want
	for _, p := range pins {
		if p.IsCleared() {
			fresh = false
			break
		}
	}
	if fresh {
		return nil
	}
	return e.store.ResetBoard(ctx, g.ID, e.freshPins(want))
}

// TryEnd ends a running game if one of the end conditions holds. After the
// end is committed, downed runners are revived and the board is replaced so
// the game can be replayed.
func (e *Engine) TryEnd(ctx context.Context, g *game.Game, players []game.Player, pins []game.Pin) (game.EndResult, bool, error) {
	result, ok := game.EvaluateEnd(g, players, pins, e.now())
	if !ok {
		return game.EndNone, false, nil
	}

	ended, committed, err := e.store.RunTransaction(ctx, g.ID, func(cur game.Game) (store.Mutation, bool) {
		next, ok := game.DecideEnd(cur, result)
		return store.Mutation{Game: next}, ok
	})
	if err != nil {
		return game.EndNone, false, fmt.Errorf("end game %s: %w", g.ID, err)
	}
	if !committed {
		return game.EndNone, false, nil
	}
	slog.Info("game ended", "game", g.ID, "result", result.String())

	if err := e.store.ResetBoard(ctx, g.ID, e.freshPins(ended.EffectivePinCount())); err != nil {
		slog.Error("reset board after end failed", "game", g.ID, "error", err)
	}
	e.notify(ctx, notify.GameEnded(g.ID, result))
	return result, true, nil
}
