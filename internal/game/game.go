package game

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Game is one match. A nil TimedEvent means no timed event is active.
type Game struct {
	ID                         string           `json:"id"`
	Status                     Status           `json:"status"`
	StartAt                    *time.Time       `json:"start_at,omitempty"`
	CountdownStartAt           *time.Time       `json:"countdown_start_at,omitempty"`
	CountdownEndAt             *time.Time       `json:"countdown_end_at,omitempty"`
	CountdownDurationSec       int              `json:"countdown_duration_sec"`
	GameDurationSec            int              `json:"game_duration_sec"`
	PinCount                   int              `json:"pin_count"`
	TimedEventQuarters         []int            `json:"timed_event_quarters"`
	TimedEvent                 *TimedEvent      `json:"timed_event,omitempty"`
	TimedEventResult           TimedEventResult `json:"timed_event_result"`
	TimedEventResultAt         *time.Time       `json:"timed_event_result_at,omitempty"`
	OniCaptureRadiusMultiplier float64          `json:"oni_capture_radius_multiplier"`
	EndResult                  EndResult        `json:"end_result"`
	Version                    int64            `json:"version"`
	UpdatedAt                  time.Time        `json:"updated_at"`
}

// NewCountdownGame creates a game waiting for its countdown to finish.
func NewCountdownGame(countdownStart time.Time, countdownSec, durationSec, pinCount int) *Game {
	start := countdownStart
	return &Game{
		ID:                         uuid.New().String(),
		Status:                     StatusCountdown,
		CountdownStartAt:           &start,
		CountdownDurationSec:       countdownSec,
		GameDurationSec:            durationSec,
		PinCount:                   pinCount,
		OniCaptureRadiusMultiplier: NormalCaptureMultiplier,
	}
}

// TimedEventActive mirrors the stored timedEventActive flag.
func (g *Game) TimedEventActive() bool {
	return g.TimedEvent != nil
}

// HasQuarter reports whether quarter q already triggered an event.
func (g *Game) HasQuarter(q int) bool {
	return slices.Contains(g.TimedEventQuarters, q)
}

// DurationSec returns the configured game length, or the default when unset.
func (g *Game) DurationSec() int {
	if g.GameDurationSec <= 0 {
		return DefaultGameDurationSec
	}
	return g.GameDurationSec
}

// EffectivePinCount returns the pin count to generate, capped at MaxPinCount.
func (g *Game) EffectivePinCount() int {
	n := g.PinCount
	if n <= 0 {
		n = DefaultPinCount
	}
	return min(n, MaxPinCount)
}

// ElapsedSeconds returns whole seconds since the game started, or 0 when it
// has no start time.
func (g *Game) ElapsedSeconds(now time.Time) int64 {
	if g.StartAt == nil {
		return 0
	}
	return int64(now.Sub(*g.StartAt) / time.Second)
}

// Clone returns a deep copy, so decisions never alias the caller's state.
func (g Game) Clone() Game {
	c := g
	c.StartAt = cloneTime(g.StartAt)
	c.CountdownStartAt = cloneTime(g.CountdownStartAt)
	c.CountdownEndAt = cloneTime(g.CountdownEndAt)
	c.TimedEventResultAt = cloneTime(g.TimedEventResultAt)
	c.TimedEventQuarters = slices.Clone(g.TimedEventQuarters)
	if g.TimedEvent != nil {
		ev := *g.TimedEvent
		c.TimedEvent = &ev
	}
	return c
}

// clearTimedEvent drops the active event and its result.
func (g *Game) clearTimedEvent() {
	g.TimedEvent = nil
	g.TimedEventResult = ResultNone
	g.TimedEventResultAt = nil
	g.OniCaptureRadiusMultiplier = NormalCaptureMultiplier
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TimedEvent holds the metadata of the active timed event. An empty
// TargetPinID means no pin was eligible when it triggered.
type TimedEvent struct {
	StartedAt       time.Time `json:"started_at"`
	DurationSec     int       `json:"duration_sec"`
	Quarter         int       `json:"quarter"`
	TargetPinID     string    `json:"target_pin_id,omitempty"`
	RequiredRunners int       `json:"required_runners"`
}

// EndsAt is the deadline after which the event fails.
func (e TimedEvent) EndsAt() time.Time {
	return e.StartedAt.Add(time.Duration(e.DurationSec) * time.Second)
}

// NewTimedEventFromFields rebuilds the active event from loosely stored
// fields. Anything missing or out of range yields nil, i.e. no active event.
func NewTimedEventFromFields(active bool, startedAt *time.Time, durationSec, quarter, requiredRunners *int, targetPinID *string) *TimedEvent {
	if !active || startedAt == nil || durationSec == nil || quarter == nil || requiredRunners == nil {
		return nil
	}
	if *durationSec <= 0 || *quarter < 1 || *quarter > LastEventQuarter || *requiredRunners < 1 {
		return nil
	}
	ev := &TimedEvent{
		StartedAt:       *startedAt,
		DurationSec:     *durationSec,
		Quarter:         *quarter,
		RequiredRunners: *requiredRunners,
	}
	if targetPinID != nil {
		ev.TargetPinID = *targetPinID
	}
	return ev
}

// NormalizeQuarters keeps valid event quarters, sorted and without duplicates.
func NormalizeQuarters(qs []int) []int {
	out := make([]int, 0, len(qs))
	for _, q := range qs {
		if q >= 1 && q <= LastEventQuarter && !slices.Contains(out, q) {
			out = append(out, q)
		}
	}
	slices.Sort(out)
	return out
}

// Event is an immutable event-log record shown to clients.
type Event struct {
	ID                   string    `json:"id"`
	GameID               string    `json:"game_id"`
	Type                 string    `json:"type"`
	Quarter              int       `json:"quarter"`
	RequiredRunners      int       `json:"required_runners"`
	EventDurationSeconds int       `json:"event_duration_seconds"`
	TargetPinID          string    `json:"target_pin_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// NewTimedEventRecord creates the log record for a triggered event.
func NewTimedEventRecord(gameID string, ev TimedEvent) Event {
	return Event{
		ID:                   ulid.MustNew(ulid.Timestamp(ev.StartedAt), ulid.DefaultEntropy()).String(),
		GameID:               gameID,
		Type:                 EventTypeTimedEvent,
		Quarter:              ev.Quarter,
		RequiredRunners:      ev.RequiredRunners,
		EventDurationSeconds: ev.DurationSec,
		TargetPinID:          ev.TargetPinID,
		CreatedAt:            ev.StartedAt,
	}
}
