package game

import "encoding/json"

// Status is the lifecycle stage of a game. It only ever moves forward.
type Status int

const (
	StatusUnknown Status = iota
	StatusCountdown
	StatusRunning
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusCountdown:
		return "countdown"
	case StatusRunning:
		return "running"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// ParseStatus converts a stored status string. Unknown values map to StatusUnknown.
func ParseStatus(s string) Status {
	switch s {
	case "countdown":
		return StatusCountdown
	case "running":
		return StatusRunning
	case "ended":
		return StatusEnded
	default:
		return StatusUnknown
	}
}

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle monotonic.
func (s Status) CanAdvanceTo(next Status) bool {
	return s != StatusUnknown && next > s
}

// MarshalJSON serializes Status as a string.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON deserializes Status from a string.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseStatus(str)
	return nil
}

type EndResult int

const (
	EndNone EndResult = iota
	EndRunnerVictory
	EndOniVictory
	EndDraw
)

func (r EndResult) String() string {
	switch r {
	case EndRunnerVictory:
		return "runner_victory"
	case EndOniVictory:
		return "oni_victory"
	case EndDraw:
		return "draw"
	default:
		return "none"
	}
}

func ParseEndResult(s string) EndResult {
	switch s {
	case "runner_victory":
		return EndRunnerVictory
	case "oni_victory":
		return EndOniVictory
	case "draw":
		return EndDraw
	default:
		return EndNone
	}
}

// MarshalJSON serializes EndResult as a string, or null when unset.
func (r EndResult) MarshalJSON() ([]byte, error) {
	if r == EndNone {
		return []byte("null"), nil
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON deserializes EndResult from a string.
func (r *EndResult) UnmarshalJSON(data []byte) error {
	var str *string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == nil {
		*r = EndNone
		return nil
	}
	*r = ParseEndResult(*str)
	return nil
}

type TimedEventResult int

const (
	ResultNone TimedEventResult = iota
	ResultSuccess
	ResultFailure
)

func (r TimedEventResult) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	default:
		return "none"
	}
}

func ParseTimedEventResult(s string) TimedEventResult {
	switch s {
	case "success":
		return ResultSuccess
	case "failure":
		return ResultFailure
	default:
		return ResultNone
	}
}

// MarshalJSON serializes TimedEventResult as a string, or null when unset.
func (r TimedEventResult) MarshalJSON() ([]byte, error) {
	if r == ResultNone {
		return []byte("null"), nil
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON deserializes TimedEventResult from a string.
func (r *TimedEventResult) UnmarshalJSON(data []byte) error {
	var str *string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == nil {
		*r = ResultNone
		return nil
	}
	*r = ParseTimedEventResult(*str)
	return nil
}

// CaptureMultiplier returns the oni capture radius multiplier a resolution leaves behind.
func (r TimedEventResult) CaptureMultiplier() float64 {
	if r == ResultFailure {
		return FailureCaptureMultiplier
	}
	return NormalCaptureMultiplier
}
