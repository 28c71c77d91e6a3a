package game

import (
	"encoding/json"
)

type Role int

const (
	RoleNone Role = iota
	RoleOni
	RoleRunner
)

func (r Role) String() string {
	switch r {
	case RoleOni:
		return "oni"
	case RoleRunner:
		return "runner"
	default:
		return "none"
	}
}

func ParseRole(s string) Role {
	switch s {
	case "oni":
		return RoleOni
	case "runner":
		return RoleRunner
	default:
		return RoleNone
	}
}

// MarshalJSON serializes Role as a string.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON deserializes Role from a string.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRole(s)
	return nil
}

type PlayerStatus int

const (
	PlayerActive PlayerStatus = iota
	PlayerDowned
)

func (s PlayerStatus) String() string {
	switch s {
	case PlayerDowned:
		return "downed"
	default:
		return "active"
	}
}

func ParsePlayerStatus(s string) PlayerStatus {
	if s == "downed" {
		return PlayerDowned
	}
	return PlayerActive
}

// MarshalJSON serializes PlayerStatus as a string.
func (s PlayerStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON deserializes PlayerStatus from a string.
func (s *PlayerStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParsePlayerStatus(str)
	return nil
}

// Player is a participant of a game. Gameplay code owns it; the engine only
// revives downed runners when a game ends.
type Player struct {
	ID       string       `json:"id"`
	Nickname string       `json:"nickname"`
	Role     Role         `json:"role"`
	Status   PlayerStatus `json:"status"`
	Active   bool         `json:"active"`
}

func (p Player) IsRunner() bool {
	return p.Role == RoleRunner
}

func (p Player) IsDowned() bool {
	return p.Status == PlayerDowned
}

// CountRunners returns the number of players with the runner role.
func CountRunners(players []Player) int {
	n := 0
	for _, p := range players {
		if p.IsRunner() {
			n++
		}
	}
	return n
}
