package game

import "time"

// CountdownEnd resolves when the countdown finishes: the explicit end time if
// present, otherwise start plus duration. A zero duration ends at start.
func CountdownEnd(g *Game) (time.Time, bool) {
	if g.CountdownEndAt != nil {
		return *g.CountdownEndAt, true
	}
	if g.CountdownStartAt == nil {
		return time.Time{}, false
	}
	sec := max(0, g.CountdownDurationSec)
	return g.CountdownStartAt.Add(time.Duration(sec) * time.Second), true
}

// DecideStart moves a finished countdown to running.
func DecideStart(g Game, now time.Time) (Game, bool) {
	if g.Status != StatusCountdown {
		return g, false
	}
	end, ok := CountdownEnd(&g)
	if !ok || now.Before(end) {
		return g, false
	}

	next := g.Clone()
	next.Status = StatusRunning
	startAt := now
	next.StartAt = &startAt
	next.clearTimedEvent()
	return next, true
}

// CheckRunnerWin returns true if there is at least one pin and all are cleared.
func CheckRunnerWin(pins []Pin) bool {
	if len(pins) == 0 {
		return false
	}
	for _, p := range pins {
		if p.IsPending() {
			return false
		}
	}
	return true
}

// CheckOniWin returns true if at least one active runner exists and none of
// them is still on their feet.
func CheckOniWin(players []Player) bool {
	runners := 0
	for _, p := range players {
		if !p.IsRunner() || !p.Active {
			continue
		}
		runners++
		if !p.IsDowned() {
			return false
		}
	}
	return runners > 0
}

// CheckTimeUp returns true once the game has run for its full duration.
func CheckTimeUp(g *Game, now time.Time) bool {
	if g.StartAt == nil {
		return false
	}
	return g.ElapsedSeconds(now) >= int64(g.DurationSec())
}

// EvaluateEnd picks the end result for a running game. Definitive outcomes
// win over the timer, so a clear at the buzzer counts for the runners.
func EvaluateEnd(g *Game, players []Player, pins []Pin, now time.Time) (EndResult, bool) {
	if g.Status != StatusRunning {
		return EndNone, false
	}
	switch {
	case CheckRunnerWin(pins):
		return EndRunnerVictory, true
	case CheckOniWin(players):
		return EndOniVictory, true
	case CheckTimeUp(g, now):
		return EndDraw, true
	default:
		return EndNone, false
	}
}

// DecideEnd ends a running game with the given result.
func DecideEnd(g Game, result EndResult) (Game, bool) {
	if g.Status != StatusRunning || result == EndNone {
		return g, false
	}
	next := g.Clone()
	next.Status = StatusEnded
	next.EndResult = result
	next.clearTimedEvent()
	return next, true
}
