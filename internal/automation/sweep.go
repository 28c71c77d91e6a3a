package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ugaemi/yamago-server/internal/game"
	"github.com/ugaemi/yamago-server/internal/store"
)

var errGamePanic = errors.New("panic while sweeping game")

// SweepReport counts what a sweep did.
type SweepReport struct {
	Evaluated int
	Started   int
	Ended     int
	Triggered int
	Resolved  int
	Failed    int
}

// Add accumulates o into r.
func (r *SweepReport) Add(o SweepReport) {
	r.Evaluated += o.Evaluated
	r.Started += o.Started
	r.Ended += o.Ended
	r.Triggered += o.Triggered
	r.Resolved += o.Resolved
	r.Failed += o.Failed
}

// MainSweep evaluates every countdown and running game once. A failure on
// one game is logged and counted; the sweep moves on to the next.
func (e *Engine) MainSweep(ctx context.Context) SweepReport {
	var report SweepReport
	games, err := e.store.ListGamesByStatus(ctx, game.StatusCountdown, game.StatusRunning)
	if err != nil {
		logFailure("main sweep: list games", err)
		report.Failed++
		return report
	}

	for _, g := range games {
		if ctx.Err() != nil {
			break
		}
		report.Evaluated++
		r, err := e.sweepGame(ctx, g)
		report.Add(r)
		if err != nil {
			report.Failed++
			logGameFailure("main sweep", g, err)
		}
	}

	slog.Debug("main sweep done", "evaluated", report.Evaluated, "started", report.Started,
		"ended", report.Ended, "triggered", report.Triggered, "resolved", report.Resolved, "failed", report.Failed)
	return report
}

func (e *Engine) sweepGame(ctx context.Context, g *game.Game) (r SweepReport, err error) {
	defer recoverGame(&err)
	ctx, cancel := context.WithTimeout(ctx, e.gameTimeout)
	defer cancel()

	switch g.Status {
	case game.StatusCountdown:
		started, err := e.TryStartFromCountdown(ctx, g)
		if started {
			r.Started++
		}
		return r, err

	case game.StatusRunning:
		players, err := e.store.ListPlayers(ctx, g.ID)
		if err != nil {
			return r, err
		}
		pins, err := e.store.ListPins(ctx, g.ID)
		if err != nil {
			return r, err
		}

		_, ended, err := e.TryEnd(ctx, g, players, pins)
		if err != nil || ended {
			if ended {
				r.Ended++
			}
			return r, err
		}

		current := g
		if g.TimedEventActive() {
			_, resolved, err := e.TryResolve(ctx, g, pins)
			if err != nil {
				return r, err
			}
			if resolved {
				r.Resolved++
				current, err = e.store.GetGame(ctx, g.ID)
				if err != nil || current == nil {
					return r, err
				}
			}
		}
		if current.TimedEventActive() {
			return r, nil
		}

		_, triggered, err := e.TryTrigger(ctx, current, players, pins)
		if triggered {
			r.Triggered++
		}
		return r, err
	}
	return r, nil
}

// FastSweep checks active timed events for expiry several times in a row,
// so an event ends close to its deadline between main sweeps.
func (e *Engine) FastSweep(ctx context.Context) SweepReport {
	var report SweepReport
	for i := 0; i < e.fastIterations; i++ {
		if i > 0 {
			if err := e.sleep(ctx, e.fastDelay); err != nil {
				break
			}
		}
		report.Add(e.fastIteration(ctx))
	}
	return report
}

func (e *Engine) fastIteration(ctx context.Context) SweepReport {
	var report SweepReport
	games, err := e.store.ListActiveTimedEventGames(ctx)
	if err != nil {
		logFailure("fast sweep: list games", err)
		report.Failed++
		return report
	}

	for _, g := range games {
		if ctx.Err() != nil {
			break
		}
		report.Evaluated++
		resolved, err := e.resolveExpired(ctx, g)
		if err != nil {
			report.Failed++
			logGameFailure("fast sweep", g, err)
			continue
		}
		if resolved {
			report.Resolved++
		}
	}
	return report
}

func (e *Engine) resolveExpired(ctx context.Context, g *game.Game) (resolved bool, err error) {
	defer recoverGame(&err)
	ctx, cancel := context.WithTimeout(ctx, e.gameTimeout)
	defer cancel()
	_, resolved, err = e.TryResolveTimeout(ctx, g)
	return resolved, err
}

// recoverGame turns a panic while handling one game into that game's error.
func recoverGame(err *error) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("%w: %v", errGamePanic, p)
	}
}

func logFailure(msg string, err error) {
	if store.IsTransient(err) {
		slog.Warn(msg+" unavailable, retry next sweep", "error", err)
		return
	}
	slog.Error(msg+" failed", "error", err)
}

func logGameFailure(sweep string, g *game.Game, err error) {
	if store.IsTransient(err) {
		slog.Warn(sweep+": game unavailable, retry next sweep", "game", g.ID, "status", g.Status.String(), "error", err)
		return
	}
	slog.Error(sweep+": game failed", "game", g.ID, "status", g.Status.String(), "error", err)
}

// Scheduler runs the sweeps on fixed intervals.
type Scheduler struct {
	engine       *Engine
	mainInterval time.Duration
	fastInterval time.Duration
	timeout      time.Duration
}

// NewScheduler creates a scheduler. timeout bounds a single sweep run.
func NewScheduler(e *Engine, mainInterval, fastInterval, timeout time.Duration) *Scheduler {
	return &Scheduler{
		engine:       e,
		mainInterval: mainInterval,
		fastInterval: fastInterval,
		timeout:      timeout,
	}
}

// Run blocks until ctx is cancelled. Sweeps run in their own goroutines, so
// a slow run may overlap the next one.
func (s *Scheduler) Run(ctx context.Context) error {
	mainTicker := time.NewTicker(s.mainInterval)
	defer mainTicker.Stop()
	fastTicker := time.NewTicker(s.fastInterval)
	defer fastTicker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	slog.Info("scheduler started", "main_interval", s.mainInterval, "fast_interval", s.fastInterval)
	s.spawn(ctx, &wg, s.engine.MainSweep)
	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopping")
			return nil
		case <-mainTicker.C:
			s.spawn(ctx, &wg, s.engine.MainSweep)
		case <-fastTicker.C:
			s.spawn(ctx, &wg, s.engine.FastSweep)
		}
	}
}

func (s *Scheduler) spawn(ctx context.Context, wg *sync.WaitGroup, sweep func(context.Context) SweepReport) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		sweep(sctx)
	}()
}
