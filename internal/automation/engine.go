package automation

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ugaemi/yamago-server/internal/game"
	"github.com/ugaemi/yamago-server/internal/notify"
	"github.com/ugaemi/yamago-server/internal/store"
)

const (
	DefaultGameTimeout         = 10 * time.Second
	DefaultFastSweepIterations = 5
	DefaultFastSweepDelay      = 10 * time.Second
)

// Engine applies the server-side game rules to every live game in a store.
// It holds no game state of its own; all decisions are made against a fresh
// read inside a store transaction, so any number of engines may run.
type Engine struct {
	store    store.GameStore
	notifier notify.Notifier
	now      func() time.Time
	rng      game.Rand
	sleep    func(ctx context.Context, d time.Duration) error

	area   game.Polygon
	center game.Coordinate

	gameTimeout    time.Duration
	fastIterations int
	fastDelay      time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand overrides the random source. The engine serializes access to it.
func WithRand(rng game.Rand) Option {
	return func(e *Engine) { e.rng = &lockedRand{rng: rng} }
}

// WithSleep overrides the wait between fast sweep iterations.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithNotifier sets where notifications go.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithArea sets the play area pins are placed in and its fallback center.
func WithArea(area game.Polygon, center game.Coordinate) Option {
	return func(e *Engine) {
		e.area = area
		e.center = center
	}
}

// WithGameTimeout bounds the work done for a single game in one sweep.
func WithGameTimeout(d time.Duration) Option {
	return func(e *Engine) { e.gameTimeout = d }
}

// WithFastSweep sets the number of fast sweep iterations and the delay
// between them.
func WithFastSweep(iterations int, delay time.Duration) Option {
	return func(e *Engine) {
		e.fastIterations = iterations
		e.fastDelay = delay
	}
}

// NewEngine creates an engine over s.
func NewEngine(s store.GameStore, opts ...Option) *Engine {
	e := &Engine{
		store:          s,
		notifier:       notify.LogNotifier{},
		now:            time.Now,
		rng:            globalRand{},
		sleep:          sleepContext,
		area:           game.DefaultArea,
		center:         game.DefaultFallbackCenter,
		gameTimeout:    DefaultGameTimeout,
		fastIterations: DefaultFastSweepIterations,
		fastDelay:      DefaultFastSweepDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) generator() *game.PinGenerator {
	return game.NewPinGenerator(e.area, e.center, e.rng)
}

func (e *Engine) freshPins(count int) []game.Pin {
	return game.NewPins(e.generator().Generate(count, nil))
}

func (e *Engine) notify(ctx context.Context, n notify.Notification) {
	if err := e.notifier.Notify(ctx, n); err != nil {
		slog.Warn("notification failed", "type", n.Type, "game", n.GameID, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// globalRand uses the goroutine-safe top-level math/rand/v2 source.
type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

type lockedRand struct {
	mu  sync.Mutex
	rng game.Rand
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}
