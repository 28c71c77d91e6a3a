package automation

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ugaemi/yamago-server/internal/game"
	"github.com/ugaemi/yamago-server/internal/notify"
	"github.com/ugaemi/yamago-server/internal/store"
)

var t0 = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock { return &testClock{now: now} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, n := range r.sent {
		out[i] = n.Type
	}
	return out
}

// countingStore counts committed transactions and board resets.
type countingStore struct {
	store.GameStore
	commits atomic.Int32
	resets  atomic.Int32
}

func (s *countingStore) RunTransaction(ctx context.Context, id string, decide store.Decide) (game.Game, bool, error) {
	g, ok, err := s.GameStore.RunTransaction(ctx, id, decide)
	if ok {
		s.commits.Add(1)
	}
	return g, ok, err
}

func (s *countingStore) ResetBoard(ctx context.Context, id string, pins []game.Pin) error {
	s.resets.Add(1)
	return s.GameStore.ResetBoard(ctx, id, pins)
}

// flakyStore fails player reads for one game.
type flakyStore struct {
	store.GameStore
	badID string
	err   error
}

func (s *flakyStore) ListPlayers(ctx context.Context, id string) ([]game.Player, error) {
	if id == s.badID {
		return nil, s.err
	}
	return s.GameStore.ListPlayers(ctx, id)
}

// panickyStore panics while handling one game.
type panickyStore struct {
	store.GameStore
	badID string
}

func (s *panickyStore) ListPlayers(ctx context.Context, id string) ([]game.Player, error) {
	if id == s.badID {
		var m map[string]int
		m[id] = 1
	}
	return s.GameStore.ListPlayers(ctx, id)
}

func (s *panickyStore) RunTransaction(ctx context.Context, id string, decide store.Decide) (game.Game, bool, error) {
	if id == s.badID {
		panic("corrupt game document")
	}
	return s.GameStore.RunTransaction(ctx, id, decide)
}

type harness struct {
	store    *store.MemoryStore
	clock    *testClock
	notifier *recordingNotifier
	engine   *Engine
}

func newHarness(s store.GameStore, mem *store.MemoryStore, opts ...Option) *harness {
	h := &harness{
		store:    mem,
		clock:    newTestClock(t0),
		notifier: &recordingNotifier{},
	}
	base := []Option{
		WithClock(h.clock.Now),
		WithRand(rand.New(rand.NewPCG(7, 11))),
		WithNotifier(h.notifier),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
	}
	h.engine = NewEngine(s, append(base, opts...)...)
	return h
}

func newMemoryHarness(opts ...Option) *harness {
	mem := store.NewMemoryStore()
	return newHarness(mem, mem, opts...)
}

func runningGame(id string, durationSec int) *game.Game {
	start := t0
	return &game.Game{
		ID:                         id,
		Status:                     game.StatusRunning,
		StartAt:                    &start,
		GameDurationSec:            durationSec,
		PinCount:                   game.DefaultPinCount,
		OniCaptureRadiusMultiplier: game.NormalCaptureMultiplier,
	}
}

func seedPlayers(ctx context.Context, s *store.MemoryStore, gameID string, runners int) {
	_ = s.UpsertPlayer(ctx, gameID, game.Player{ID: "oni", Role: game.RoleOni, Active: true})
	for i := 0; i < runners; i++ {
		_ = s.UpsertPlayer(ctx, gameID, game.Player{
			ID:     "runner-" + string(rune('a'+i)),
			Role:   game.RoleRunner,
			Status: game.PlayerActive,
			Active: true,
		})
	}
}

func seedPins(ctx context.Context, s *store.MemoryStore, gameID string, n int) []game.Pin {
	rng := rand.New(rand.NewPCG(3, 5))
	coords := game.NewPinGenerator(game.DefaultArea, game.DefaultFallbackCenter, rng).Generate(n, nil)
	pins := game.NewPins(coords)
	_ = s.InsertPins(ctx, gameID, pins)
	return pins
}
