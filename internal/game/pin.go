package game

import (
	"encoding/json"

	"github.com/google/uuid"
)

type PinStatus int

const (
	PinPending PinStatus = iota
	PinCleared
)

func (s PinStatus) String() string {
	if s == PinCleared {
		return "cleared"
	}
	return "pending"
}

func ParsePinStatus(s string) PinStatus {
	if s == "cleared" {
		return PinCleared
	}
	return PinPending
}

// MarshalJSON serializes PinStatus as a string.
func (s PinStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON deserializes PinStatus from a string.
func (s *PinStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParsePinStatus(str)
	return nil
}

// Pin is a map objective runners must clear. Status and Cleared are written
// together by the engine, but gameplay code may set either one.
type Pin struct {
	ID      string    `json:"id"`
	Lat     float64   `json:"lat"`
	Lng     float64   `json:"lng"`
	Status  PinStatus `json:"status"`
	Cleared bool      `json:"cleared"`
}

// NewPin creates a pending pin at the given coordinate.
func NewPin(c Coordinate) Pin {
	return Pin{
		ID:     uuid.New().String(),
		Lat:    c.Lat,
		Lng:    c.Lng,
		Status: PinPending,
	}
}

// NewPins creates one pending pin per coordinate.
func NewPins(coords []Coordinate) []Pin {
	pins := make([]Pin, 0, len(coords))
	for _, c := range coords {
		pins = append(pins, NewPin(c))
	}
	return pins
}

// IsCleared is true if either the status or the flag says so.
func (p Pin) IsCleared() bool {
	return p.Status == PinCleared || p.Cleared
}

// IsPending is true for pins that still count as open objectives.
func (p Pin) IsPending() bool {
	return !p.IsCleared()
}

func (p Pin) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lng: p.Lng}
}

// Clear marks the pin as cleared, keeping both signals in sync.
func (p *Pin) Clear() {
	p.Status = PinCleared
	p.Cleared = true
}

// FindPin returns the pin with the given id.
func FindPin(pins []Pin, id string) (Pin, bool) {
	for _, p := range pins {
		if p.ID == id {
			return p, true
		}
	}
	return Pin{}, false
}

// ExcludedKeys returns the coordinate keys of cleared pins. Relocated pins
// must not land on them.
func ExcludedKeys(pins []Pin) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, p := range pins {
		if p.IsCleared() {
			keys[p.Coordinate().Key()] = struct{}{}
		}
	}
	return keys
}
