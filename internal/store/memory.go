package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ugaemi/yamago-server/internal/game"
)

// MemoryStore is an in-process GameStore. The mutex plays the role of the
// database's row locks; versions advance on every committed write.
type MemoryStore struct {
	games   map[string]game.Game
	players map[string]map[string]game.Player // game ID -> player ID -> player
	pins    map[string][]game.Pin
	events  map[string][]game.Event
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:   make(map[string]game.Game),
		players: make(map[string]map[string]game.Player),
		pins:    make(map[string][]game.Pin),
		events:  make(map[string][]game.Event),
		now:     time.Now,
	}
}

// CreateGame inserts a new game.
func (s *MemoryStore) CreateGame(_ context.Context, g *game.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := g.Clone()
	c.TimedEventQuarters = game.NormalizeQuarters(c.TimedEventQuarters)
	c.UpdatedAt = s.now()
	s.games[g.ID] = c
	return nil
}

// UpsertPlayer inserts or replaces a player.
func (s *MemoryStore) UpsertPlayer(_ context.Context, gameID string, p game.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.players[gameID] == nil {
		s.players[gameID] = make(map[string]game.Player)
	}
	s.players[gameID][p.ID] = p
	return nil
}

// SetPlayerStatus changes a player's status, as gameplay does on capture.
func (s *MemoryStore) SetPlayerStatus(_ context.Context, gameID, playerID string, status game.PlayerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[gameID][playerID]; ok {
		p.Status = status
		s.players[gameID][playerID] = p
	}
	return nil
}

// InsertPins appends pins to a game.
func (s *MemoryStore) InsertPins(_ context.Context, gameID string, pins []game.Pin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[gameID] = append(s.pins[gameID], pins...)
	return nil
}

// ClearPin marks a pin cleared, as gameplay does when runners clear it.
func (s *MemoryStore) ClearPin(_ context.Context, gameID, pinID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pins[gameID] {
		if s.pins[gameID][i].ID == pinID {
			s.pins[gameID][i].Clear()
		}
	}
	return nil
}

// GetGame returns the game, or nil if it does not exist.
func (s *MemoryStore) GetGame(_ context.Context, id string) (*game.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, nil
	}
	c := g.Clone()
	return &c, nil
}

// ListGamesByStatus returns games in any of the given statuses, ordered by ID.
func (s *MemoryStore) ListGamesByStatus(_ context.Context, statuses ...game.Status) ([]*game.Game, error) {
	return s.listGames(func(g game.Game) bool {
		return slices.Contains(statuses, g.Status)
	}), nil
}

// ListActiveTimedEventGames returns running games with an active timed event.
func (s *MemoryStore) ListActiveTimedEventGames(_ context.Context) ([]*game.Game, error) {
	return s.listGames(func(g game.Game) bool {
		return g.Status == game.StatusRunning && g.TimedEventActive()
	}), nil
}

func (s *MemoryStore) listGames(match func(game.Game) bool) []*game.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*game.Game
	for _, g := range s.games {
		if match(g) {
			c := g.Clone()
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListPlayers returns the players of a game, ordered by ID.
func (s *MemoryStore) ListPlayers(_ context.Context, gameID string) ([]game.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]game.Player, 0, len(s.players[gameID]))
	for _, p := range s.players[gameID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListPins returns the pins of a game.
func (s *MemoryStore) ListPins(_ context.Context, gameID string) ([]game.Pin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.pins[gameID]), nil
}

// Events returns the event log of a game, oldest first.
func (s *MemoryStore) Events(gameID string) []game.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events[gameID])
}

// LatestEvent returns the most recent event-log record, or nil.
func (s *MemoryStore) LatestEvent(_ context.Context, gameID string) (*game.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.events[gameID]
	if len(evs) == 0 {
		return nil, nil
	}
	latest := evs[0]
	for _, e := range evs[1:] {
		if !e.CreatedAt.Before(latest.CreatedAt) {
			latest = e
		}
	}
	return &latest, nil
}

// RunTransaction applies decide to the current game under the store lock.
func (s *MemoryStore) RunTransaction(_ context.Context, gameID string, decide Decide) (game.Game, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.games[gameID]
	if !ok {
		return game.Game{}, false, nil
	}
	m, ok := decide(current.Clone())
	if !ok {
		return current.Clone(), false, nil
	}

	next := m.Game.Clone()
	next.ID = gameID
	next.TimedEventQuarters = game.NormalizeQuarters(next.TimedEventQuarters)
	next.Version = current.Version + 1
	next.UpdatedAt = s.now()
	s.games[gameID] = next
	s.events[gameID] = append(s.events[gameID], m.Events...)
	return next.Clone(), true, nil
}

// ResetBoard revives downed runners and replaces all pins.
func (s *MemoryStore) ResetBoard(_ context.Context, gameID string, pins []game.Pin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.players[gameID] {
		if p.IsRunner() && p.IsDowned() {
			p.Status = game.PlayerActive
			s.players[gameID][id] = p
		}
	}
	s.pins[gameID] = slices.Clone(pins)
	return nil
}

// RelocatePins moves pins that are still pending.
func (s *MemoryStore) RelocatePins(_ context.Context, gameID string, moves []PinMove) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mv := range moves {
		for i := range s.pins[gameID] {
			p := &s.pins[gameID][i]
			if p.ID == mv.PinID && p.IsPending() {
				p.Lat = mv.To.Lat
				p.Lng = mv.To.Lng
			}
		}
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
