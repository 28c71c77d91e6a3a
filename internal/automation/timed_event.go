package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ugaemi/yamago-server/internal/game"
	"github.com/ugaemi/yamago-server/internal/notify"
	"github.com/ugaemi/yamago-server/internal/store"
)

// TryTrigger starts the timed event of the first due quarter. The event-log
// record is written in the same transaction as the game update.
func (e *Engine) TryTrigger(ctx context.Context, g *game.Game, players []game.Player, pins []game.Pin) (int, bool, error) {
	now := e.now()
	q, ok := game.DueQuarter(g, now)
	if !ok {
		return 0, false, nil
	}
	params := game.NewTriggerParams(e.rng, g, q, players, pins)

	var record game.Event
	_, committed, err := e.store.RunTransaction(ctx, g.ID, func(cur game.Game) (store.Mutation, bool) {
		if due, ok := game.DueQuarter(&cur, now); !ok || due != params.Quarter {
			return store.Mutation{}, false
		}
		next, ev, ok := game.DecideTrigger(cur, params, now)
		if !ok {
			return store.Mutation{}, false
		}
		record = game.NewTimedEventRecord(cur.ID, *ev)
		return store.Mutation{Game: next, Events: []game.Event{record}}, true
	})
	if err != nil {
		return 0, false, fmt.Errorf("trigger quarter %d of game %s: %w", q, g.ID, err)
	}
	if !committed {
		return 0, false, nil
	}
	slog.Info("timed event started", "game", g.ID, "quarter", q,
		"required_runners", params.RequiredRunners, "target_pin", params.TargetPinID)

	e.notify(ctx, notify.TimedEventStarted(record))
	return q, true, nil
}

// TryResolve closes the active timed event on success or timeout.
func (e *Engine) TryResolve(ctx context.Context, g *game.Game, pins []game.Pin) (game.TimedEventResult, bool, error) {
	result, ok := game.EvaluateResolution(g, pins, e.now())
	if !ok {
		return game.ResultNone, false, nil
	}
	return e.resolve(ctx, g, result)
}

// TryResolveTimeout closes the active timed event only if its deadline has
// passed.
func (e *Engine) TryResolveTimeout(ctx context.Context, g *game.Game) (game.TimedEventResult, bool, error) {
	result, ok := game.EvaluateTimeout(g, e.now())
	if !ok {
		return game.ResultNone, false, nil
	}
	return e.resolve(ctx, g, result)
}

func (e *Engine) resolve(ctx context.Context, g *game.Game, result game.TimedEventResult) (game.TimedEventResult, bool, error) {
	expected := *g.TimedEvent
	now := e.now()

	_, committed, err := e.store.RunTransaction(ctx, g.ID, func(cur game.Game) (store.Mutation, bool) {
		next, ok := game.DecideResolution(cur, result, expected, now)
		return store.Mutation{Game: next}, ok
	})
	if err != nil {
		return game.ResultNone, false, fmt.Errorf("resolve quarter %d of game %s: %w", expected.Quarter, g.ID, err)
	}
	if !committed {
		return game.ResultNone, false, nil
	}
	slog.Info("timed event resolved", "game", g.ID, "quarter", expected.Quarter, "result", result.String())

	if err := e.rerandomizePending(ctx, g.ID); err != nil {
		slog.Error("relocate pending pins failed", "game", g.ID, "error", err)
	}
	e.notify(ctx, notify.TimedEventResolved(g.ID, result))
	return result, true, nil
}

// rerandomizePending moves every pending pin to a new spot that does not
// coincide with a cleared pin.
func (e *Engine) rerandomizePending(ctx context.Context, gameID string) error {
	pins, err := e.store.ListPins(ctx, gameID)
	if err != nil {
		return err
	}
	var pending []game.Pin
	for _, p := range pins {
		if p.IsPending() {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	coords := e.generator().Generate(len(pending), game.ExcludedKeys(pins))
	moves := make([]store.PinMove, 0, len(pending))
	for i, p := range pending {
		if i >= len(coords) {
			break
		}
		moves = append(moves, store.PinMove{PinID: p.ID, To: coords[i]})
	}
	return e.store.RelocatePins(ctx, gameID, moves)
}
