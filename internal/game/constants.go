package game

// Game timing
const DefaultGameDurationSec = 7200

// Pins
const (
	DefaultPinCount = 10
	MaxPinCount     = 20
)

// Timed events
const (
	QuarterCount             = 4 // game is split into quarters; events fire at the end of 1..3
	LastEventQuarter         = 3
	DefaultRequiredRunners   = 1
	EventDurationDivisor     = 8
	NormalCaptureMultiplier  = 1.0
	FailureCaptureMultiplier = 2.0
)

// Placement
const (
	CoordinatePrecision = 6      // decimal places used for pin identity
	FallbackStep        = 0.0001 // degrees between fallback pins
	maxAttemptsPerPin   = 200
	attemptsPerPinTotal = 50
)

// EventTypeTimedEvent is the event-log type for a triggered timed event.
const EventTypeTimedEvent = "timed_event"
