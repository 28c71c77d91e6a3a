package notify

import (
	"fmt"
	"strconv"

	"github.com/ugaemi/yamago-server/internal/game"
)

// Notification types, also carried in Data["type"].
const (
	TypeGameStart        = "game_start"
	TypeGameEnd          = "game_end"
	TypeTimedEvent       = "timed_event"
	TypeTimedEventResult = "timed_event_result"
)

// Notification is a push message addressed to every player of a game.
type Notification struct {
	Type   string            `json:"type"`
	GameID string            `json:"game_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data"`
}

func newNotification(typ, gameID, title, body string) Notification {
	return Notification{
		Type:   typ,
		GameID: gameID,
		Title:  title,
		Body:   body,
		Data:   map[string]string{"type": typ, "gameId": gameID},
	}
}

// GameStarted announces the end of the countdown.
func GameStarted(gameID string) Notification {
	return newNotification(TypeGameStart, gameID, "The game has started", "Open the app and check the map.")
}

// GameEnded announces the final result.
func GameEnded(gameID string, result game.EndResult) Notification {
	n := newNotification(TypeGameEnd, gameID, "The game has ended", "Check the results.")
	n.Data["result"] = result.String()
	return n
}

// TimedEventStarted announces a new timed event from its event-log record.
func TimedEventStarted(ev game.Event) Notification {
	body := QuarterLabel(ev.Quarter) + " event has started."
	if d := DurationLabel(ev.EventDurationSeconds); ev.RequiredRunners > 0 && d != "" {
		body += fmt.Sprintf(" Clear the generator with %d runner(s) within %s.", ev.RequiredRunners, d)
	} else {
		body += " Open the app and check the map."
	}
	n := newNotification(TypeTimedEvent, ev.GameID, "Timed event", body)
	n.Data["quarter"] = strconv.Itoa(ev.Quarter)
	return n
}

// TimedEventResolved announces how the active event ended.
func TimedEventResolved(gameID string, result game.TimedEventResult) Notification {
	body := "The remaining generators have moved."
	if result == game.ResultFailure {
		body = "The oni capture radius is doubled and the remaining generators have moved."
	}
	n := newNotification(TypeTimedEventResult, gameID, "Timed event over", body)
	n.Data["result"] = result.String()
	return n
}

// QuarterLabel names the phase a quarter's event belongs to.
func QuarterLabel(quarter int) string {
	switch quarter {
	case 1:
		return "Phase 1"
	case 2:
		return "Phase 2"
	case game.LastEventQuarter:
		return "Final phase"
	default:
		return "Timed"
	}
}

// DurationLabel renders seconds as "15 min", "1 min 30 s" or "45 s".
// Non-positive durations render as "".
func DurationLabel(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	minutes, rest := seconds/60, seconds%60
	switch {
	case minutes > 0 && rest > 0:
		return fmt.Sprintf("%d min %d s", minutes, rest)
	case minutes > 0:
		return fmt.Sprintf("%d min", minutes)
	default:
		return fmt.Sprintf("%d s", rest)
	}
}
