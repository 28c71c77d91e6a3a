package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ugaemi/yamago-server/internal/game"
	"github.com/ugaemi/yamago-server/internal/store"
)

func TestMainSweep_FullGame(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHarness()
	g := game.NewCountdownGame(t0.Add(-time.Minute), 60, 7200, 10)
	require.NoError(t, h.store.CreateGame(ctx, g))
	seedPlayers(ctx, h.store, g.ID, 4)

	r := h.engine.MainSweep(ctx)
	assert.Equal(t, SweepReport{Evaluated: 1, Started: 1}, r)

	quarters := func() []int {
		stored, _ := h.store.GetGame(ctx, g.ID)
		return stored.TimedEventQuarters
	}

	// Every quarter fires exactly once, however many sweeps see it due.
	h.clock.Set(t0.Add(1800 * time.Second))
	r = h.engine.MainSweep(ctx)
	assert.Equal(t, 1, r.Triggered)
	h.engine.MainSweep(ctx)
	assert.Equal(t, []int{1}, quarters())

	// Quarter 1 timed out at 2700s; quarter 2 is due at 3600s. One sweep
	// resolves the first and triggers the second.
	h.clock.Set(t0.Add(3600 * time.Second))
	r = h.engine.MainSweep(ctx)
	assert.Equal(t, 1, r.Resolved)
	assert.Equal(t, 1, r.Triggered)
	assert.Equal(t, []int{1, 2}, quarters())

	h.clock.Set(t0.Add(5400 * time.Second))
	h.engine.MainSweep(ctx)
	assert.Equal(t, []int{1, 2, 3}, quarters())

	// No fourth-quarter event; the game ends at time up.
	h.clock.Set(t0.Add(7200 * time.Second))
	r = h.engine.MainSweep(ctx)
	assert.Equal(t, 1, r.Ended)
	assert.Len(t, h.store.Events(g.ID), 3)

	stored, _ := h.store.GetGame(ctx, g.ID)
	assert.Equal(t, game.StatusEnded, stored.Status)
	assert.Equal(t, game.EndDraw, stored.EndResult)
	assert.False(t, stored.TimedEventActive())
	assert.Equal(t, game.NormalCaptureMultiplier, stored.OniCaptureRadiusMultiplier)

	r = h.engine.MainSweep(ctx)
	assert.Equal(t, SweepReport{}, r, "ended games are not swept")
}

func TestMainSweep_ConcurrentSweepsTriggerOnce(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHarness()
	g := runningGame("g1", 7200)
	require.NoError(t, h.store.CreateGame(ctx, g))
	seedPlayers(ctx, h.store, g.ID, 2)
	seedPins(ctx, h.store, g.ID, 10)
	h.clock.Set(t0.Add(2000 * time.Second))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var total SweepReport
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := h.engine.MainSweep(ctx)
			mu.Lock()
			total.Add(r)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total.Triggered)
	assert.Len(t, h.store.Events(g.ID), 1)
}

func TestMainSweep_FailureIsolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"transient", fmt.Errorf("%w: connection reset", store.ErrTransient)},
		{"permanent", errors.New("malformed row")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mem := store.NewMemoryStore()
			h := newHarness(&flakyStore{GameStore: mem, badID: "a-broken", err: tt.err}, mem)

			broken := runningGame("a-broken", 7200)
			require.NoError(t, mem.CreateGame(ctx, broken))
			healthy := game.NewCountdownGame(t0.Add(-time.Hour), 60, 7200, 2)
			healthy.ID = "b-healthy"
			require.NoError(t, mem.CreateGame(ctx, healthy))

			r := h.engine.MainSweep(ctx)
			assert.Equal(t, 2, r.Evaluated)
			assert.Equal(t, 1, r.Failed)
			assert.Equal(t, 1, r.Started)

			stored, _ := mem.GetGame(ctx, healthy.ID)
			assert.Equal(t, game.StatusRunning, stored.Status)
		})
	}
}

func TestMainSweep_PanicIsolatedToGame(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	h := newHarness(&panickyStore{GameStore: mem, badID: "a-broken"}, mem)

	require.NoError(t, mem.CreateGame(ctx, runningGame("a-broken", 7200)))
	healthy := game.NewCountdownGame(t0.Add(-time.Hour), 60, 7200, 2)
	healthy.ID = "b-healthy"
	require.NoError(t, mem.CreateGame(ctx, healthy))

	var r SweepReport
	require.NotPanics(t, func() { r = h.engine.MainSweep(ctx) })
	assert.Equal(t, 2, r.Evaluated)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Started)

	stored, _ := mem.GetGame(ctx, healthy.ID)
	assert.Equal(t, game.StatusRunning, stored.Status)
}

func TestFastSweep_PanicIsolatedToGame(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	h := newHarness(&panickyStore{GameStore: mem, badID: "a-broken"}, mem, WithFastSweep(1, 0))

	require.NoError(t, mem.CreateGame(ctx, activeEventGame("a-broken", t0.Add(-20*time.Minute), "")))
	require.NoError(t, mem.CreateGame(ctx, activeEventGame("b-expired", t0.Add(-20*time.Minute), "")))

	var r SweepReport
	require.NotPanics(t, func() { r = h.engine.FastSweep(ctx) })
	assert.Equal(t, 2, r.Evaluated)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Resolved)

	stored, _ := mem.GetGame(ctx, "b-expired")
	assert.Equal(t, game.ResultFailure, stored.TimedEventResult)
}

func TestFastSweep_ResolvesExpiredEvents(t *testing.T) {
	ctx := context.Background()
	var sleeps []time.Duration
	h := newMemoryHarness(
		WithFastSweep(3, 10*time.Second),
		WithSleep(func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}),
	)
	expired := activeEventGame("expired", t0.Add(-20*time.Minute), "")
	running := activeEventGame("running", t0.Add(-5*time.Minute), "")
	require.NoError(t, h.store.CreateGame(ctx, expired))
	require.NoError(t, h.store.CreateGame(ctx, running))

	r := h.engine.FastSweep(ctx)
	assert.Equal(t, 1, r.Resolved)
	assert.Equal(t, 0, r.Failed)
	// expired + running seen on the first pass, only running afterwards.
	assert.Equal(t, 4, r.Evaluated)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, sleeps)

	stored, _ := h.store.GetGame(ctx, "expired")
	assert.Equal(t, game.ResultFailure, stored.TimedEventResult)
	stored, _ = h.store.GetGame(ctx, "running")
	assert.True(t, stored.TimedEventActive())
}

func TestFastSweep_StopsWhenSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newMemoryHarness(
		WithFastSweep(5, time.Second),
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)
	require.NoError(t, h.store.CreateGame(ctx, activeEventGame("g1", t0, "")))

	r := h.engine.FastSweep(ctx)
	assert.Equal(t, 1, r.Evaluated)
}

func TestSweepReport_Add(t *testing.T) {
	r := SweepReport{Evaluated: 1, Started: 1}
	r.Add(SweepReport{Evaluated: 2, Ended: 1, Triggered: 1, Resolved: 1, Failed: 1})
	assert.Equal(t, SweepReport{Evaluated: 3, Started: 1, Ended: 1, Triggered: 1, Resolved: 1, Failed: 1}, r)
}

func TestScheduler_SweepsOnStart(t *testing.T) {
	h := newMemoryHarness()
	g := game.NewCountdownGame(t0.Add(-time.Hour), 60, 7200, 2)
	require.NoError(t, h.store.CreateGame(context.Background(), g))
	s := NewScheduler(h.engine, time.Hour, time.Hour, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		stored, _ := h.store.GetGame(context.Background(), g.ID)
		return stored.Status == game.StatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	h := newMemoryHarness()
	s := NewScheduler(h.engine, time.Millisecond, time.Millisecond, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
