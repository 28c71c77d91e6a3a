package game

import (
	"slices"
	"time"
)

// QuarterThreshold is the elapsed second at which quarter q's event is due:
// ceil(durationSec * q / 4).
func QuarterThreshold(durationSec, q int) int64 {
	num := int64(durationSec) * int64(q)
	return (num + QuarterCount - 1) / QuarterCount
}

// DueQuarter returns the first quarter whose event should trigger now. Only
// one quarter is returned per call even if several thresholds have passed.
func DueQuarter(g *Game, now time.Time) (int, bool) {
	if g.Status != StatusRunning || g.TimedEventActive() || g.StartAt == nil {
		return 0, false
	}
	elapsed := g.ElapsedSeconds(now)
	if elapsed <= 0 {
		return 0, false
	}
	d := g.DurationSec()
	for q := 1; q <= LastEventQuarter; q++ {
		if g.HasQuarter(q) {
			continue
		}
		if elapsed >= QuarterThreshold(d, q) {
			return q, true
		}
	}
	return 0, false
}

// EventDurationSeconds is an eighth of the game, rounded down to whole
// minutes, never below one second.
func EventDurationSeconds(gameDurationSec int) int {
	sec := (gameDurationSec / EventDurationDivisor) / 60 * 60
	return max(1, sec)
}

// PickRequiredRunners draws uniformly from [1, ceil(runners/2)].
func PickRequiredRunners(rng Rand, runners int) int {
	if runners <= 0 {
		return DefaultRequiredRunners
	}
	upper := (runners + 1) / 2
	return 1 + rng.IntN(upper)
}

// PickTargetPin chooses uniformly among pending pins. It returns "" when no
// pin is eligible; the event then can only time out.
func PickTargetPin(rng Rand, pins []Pin) string {
	var eligible []string
	for _, p := range pins {
		if p.Status == PinPending && !p.Cleared {
			eligible = append(eligible, p.ID)
		}
	}
	if len(eligible) == 0 {
		return ""
	}
	return eligible[rng.IntN(len(eligible))]
}

// TriggerParams are the randomized parameters of a new timed event.
type TriggerParams struct {
	Quarter         int
	RequiredRunners int
	DurationSec     int
	TargetPinID     string
}

// NewTriggerParams draws the parameters for quarter q.
func NewTriggerParams(rng Rand, g *Game, q int, players []Player, pins []Pin) TriggerParams {
	return TriggerParams{
		Quarter:         q,
		RequiredRunners: PickRequiredRunners(rng, CountRunners(players)),
		DurationSec:     EventDurationSeconds(g.DurationSec()),
		TargetPinID:     PickTargetPin(rng, pins),
	}
}

// DecideTrigger starts a timed event. It refuses if the game is not running,
// an event is already active, or the quarter already fired.
func DecideTrigger(g Game, p TriggerParams, now time.Time) (Game, *TimedEvent, bool) {
	if g.Status != StatusRunning || g.TimedEventActive() {
		return g, nil, false
	}
	if p.Quarter < 1 || p.Quarter > LastEventQuarter || g.HasQuarter(p.Quarter) {
		return g, nil, false
	}

	next := g.Clone()
	next.TimedEventQuarters = append(next.TimedEventQuarters, p.Quarter)
	slices.Sort(next.TimedEventQuarters)
	ev := &TimedEvent{
		StartedAt:       now,
		DurationSec:     p.DurationSec,
		Quarter:         p.Quarter,
		TargetPinID:     p.TargetPinID,
		RequiredRunners: p.RequiredRunners,
	}
	next.TimedEvent = ev
	next.OniCaptureRadiusMultiplier = NormalCaptureMultiplier
	return next, ev, true
}

// EvaluateTimeout reports a failure once the active event's deadline passed.
func EvaluateTimeout(g *Game, now time.Time) (TimedEventResult, bool) {
	if !g.TimedEventActive() {
		return ResultNone, false
	}
	if !now.Before(g.TimedEvent.EndsAt()) {
		return ResultFailure, true
	}
	return ResultNone, false
}

// EvaluateResolution checks the objective before the deadline, so a clear
// seen in the same pass as the timeout still counts as a success.
func EvaluateResolution(g *Game, pins []Pin, now time.Time) (TimedEventResult, bool) {
	if !g.TimedEventActive() {
		return ResultNone, false
	}
	if target := g.TimedEvent.TargetPinID; target != "" {
		if pin, ok := FindPin(pins, target); ok && pin.IsCleared() {
			return ResultSuccess, true
		}
	}
	return EvaluateTimeout(g, now)
}

// DecideResolution closes the active event. expected is the event the caller
// evaluated; if the stored one differs, it was already resolved or replaced.
func DecideResolution(g Game, result TimedEventResult, expected TimedEvent, now time.Time) (Game, bool) {
	if !g.TimedEventActive() || result == ResultNone {
		return g, false
	}
	if g.TimedEvent.Quarter != expected.Quarter || g.TimedEvent.TargetPinID != expected.TargetPinID {
		return g, false
	}

	next := g.Clone()
	next.TimedEvent = nil
	next.TimedEventResult = result
	at := now
	next.TimedEventResultAt = &at
	next.OniCaptureRadiusMultiplier = result.CaptureMultiplier()
	return next, true
}
