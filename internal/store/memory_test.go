package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ugaemi/yamago-server/internal/game"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func seedMemoryStore(t *testing.T) (*MemoryStore, *game.Game) {
	t.Helper()
	s := NewMemoryStore()
	ctx := context.Background()

	g := game.NewCountdownGame(testNow.Add(-time.Hour), 60, 7200, 3)
	require.NoError(t, s.CreateGame(ctx, g))
	require.NoError(t, s.UpsertPlayer(ctx, g.ID, game.Player{ID: "oni", Role: game.RoleOni, Active: true}))
	require.NoError(t, s.UpsertPlayer(ctx, g.ID, game.Player{ID: "r1", Role: game.RoleRunner, Status: game.PlayerDowned, Active: true}))
	require.NoError(t, s.UpsertPlayer(ctx, g.ID, game.Player{ID: "r2", Role: game.RoleRunner, Active: true}))
	require.NoError(t, s.InsertPins(ctx, g.ID, []game.Pin{
		{ID: "p1", Lat: 35.68, Lng: 139.74},
		{ID: "p2", Lat: 35.69, Lng: 139.75},
	}))
	return s, g
}

func startDecision(now time.Time) Decide {
	return func(current game.Game) (Mutation, bool) {
		next, ok := game.DecideStart(current, now)
		return Mutation{Game: next}, ok
	}
}

func TestMemoryStore_RunTransaction_Commits(t *testing.T) {
	s, g := seedMemoryStore(t)
	ctx := context.Background()

	next, committed, err := s.RunTransaction(ctx, g.ID, startDecision(testNow))
	require.NoError(t, err)
	require.True(t, committed)
	assert.Equal(t, game.StatusRunning, next.Status)
	assert.Equal(t, int64(1), next.Version)

	stored, err := s.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusRunning, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestMemoryStore_RunTransaction_DeclinedIsNoop(t *testing.T) {
	s, g := seedMemoryStore(t)
	ctx := context.Background()

	_, committed, err := s.RunTransaction(ctx, g.ID, startDecision(testNow.Add(-2*time.Hour)))
	require.NoError(t, err)
	assert.False(t, committed)

	stored, _ := s.GetGame(ctx, g.ID)
	assert.Equal(t, game.StatusCountdown, stored.Status)
	assert.Equal(t, int64(0), stored.Version)
}

func TestMemoryStore_RunTransaction_MissingGame(t *testing.T) {
	s := NewMemoryStore()
	_, committed, err := s.RunTransaction(context.Background(), "nope", startDecision(testNow))
	require.NoError(t, err)
	assert.False(t, committed)
}

func TestMemoryStore_RunTransaction_ConcurrentStartOnce(t *testing.T) {
	s, g := seedMemoryStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	commits := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, committed, err := s.RunTransaction(ctx, g.ID, startDecision(testNow))
			assert.NoError(t, err)
			if committed {
				mu.Lock()
				commits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, commits)
	stored, _ := s.GetGame(ctx, g.ID)
	assert.Equal(t, int64(1), stored.Version)
}

func TestMemoryStore_RunTransaction_AppendsEvents(t *testing.T) {
	s, g := seedMemoryStore(t)
	ctx := context.Background()

	ev := game.Event{ID: "e1", GameID: g.ID, Type: game.EventTypeTimedEvent, Quarter: 1, CreatedAt: testNow}
	_, committed, err := s.RunTransaction(ctx, g.ID, func(current game.Game) (Mutation, bool) {
		return Mutation{Game: current, Events: []game.Event{ev}}, true
	})
	require.NoError(t, err)
	require.True(t, committed)

	latest, err := s.LatestEvent(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "e1", latest.ID)

	none, err := s.LatestEvent(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMemoryStore_ListGames(t *testing.T) {
	s, g := seedMemoryStore(t)
	ctx := context.Background()

	countdown, err := s.ListGamesByStatus(ctx, game.StatusCountdown, game.StatusRunning)
	require.NoError(t, err)
	require.Len(t, countdown, 1)
	assert.Equal(t, g.ID, countdown[0].ID)

	ended, err := s.ListGamesByStatus(ctx, game.StatusEnded)
	require.NoError(t, err)
	assert.Empty(t, ended)

	active, err := s.ListActiveTimedEventGames(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestMemoryStore_ResetBoard(t *testing.T) {
	s, g := seedMemoryStore(t)
	ctx := context.Background()

	fresh := []game.Pin{{ID: "n1"}, {ID: "n2"}, {ID: "n3"}}
	require.NoError(t, s.ResetBoard(ctx, g.ID, fresh))

	pins, _ := s.ListPins(ctx, g.ID)
	assert.Equal(t, fresh, pins)

	players, _ := s.ListPlayers(ctx, g.ID)
	for _, p := range players {
		assert.Equal(t, game.PlayerActive, p.Status, "player %s", p.ID)
	}
}

func TestMemoryStore_RelocatePins_SkipsCleared(t *testing.T) {
	s, g := seedMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, s.ClearPin(ctx, g.ID, "p1"))

	moves := []PinMove{
		{PinID: "p1", To: game.Coordinate{Lat: 1, Lng: 1}},
		{PinID: "p2", To: game.Coordinate{Lat: 2, Lng: 2}},
	}
	require.NoError(t, s.RelocatePins(ctx, g.ID, moves))

	pins, _ := s.ListPins(ctx, g.ID)
	p1, _ := game.FindPin(pins, "p1")
	p2, _ := game.FindPin(pins, "p2")
	assert.Equal(t, game.Coordinate{Lat: 35.68, Lng: 139.74}, p1.Coordinate())
	assert.True(t, p1.IsCleared())
	assert.Equal(t, game.Coordinate{Lat: 2, Lng: 2}, p2.Coordinate())
}

func TestMemoryStore_GetGameReturnsCopy(t *testing.T) {
	s, g := seedMemoryStore(t)
	ctx := context.Background()

	got, _ := s.GetGame(ctx, g.ID)
	got.Status = game.StatusEnded

	again, _ := s.GetGame(ctx, g.ID)
	assert.Equal(t, game.StatusCountdown, again.Status)

	missing, err := s.GetGame(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
