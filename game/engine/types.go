package engine

import (
	"fmt"
	"strings"
	"time"
)

const (
	// Rules of the classic game
	DefaultInitialLength = 10
	DefaultFoodPool      = 100
	DefaultSpeed         = 0.5
	DefaultUnitScale     = 15

	// Tick interval bounds, interpolated by speed
	SlowTickInterval = 300 * time.Millisecond
	FastTickInterval = 10 * time.Millisecond

	// Validation constants
	MinInitialLength = 2
	MaxInitialLength = 100
	MinFoodPool      = 1
	MaxFoodPool      = 1000
	MinUnitScale     = 1
	MaxUnitScale     = 256

	WebSocketBufferSize = 256
)

// Position represents x,y coordinates. y grows downward.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the position shifted by the direction's unit offset
func (p Position) Add(d Direction) Position {
	dx, dy := d.Offset()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Direction is the snake heading. None means the snake is not moving.
type Direction int

const (
	None Direction = iota
	Up
	Down
	Left
	Right
)

// Axis groups directions that would reverse into each other
type Axis int

const (
	AxisNone Axis = iota
	AxisVertical
	AxisHorizontal
)

var directionNames = map[Direction]string{
	None:  "none",
	Up:    "up",
	Down:  "down",
	Left:  "left",
	Right: "right",
}

// ParseDirection converts a direction name (case-insensitive) into a Direction
func ParseDirection(s string) (Direction, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d, n := range directionNames {
		if n == name {
			return d, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

func (d Direction) String() string {
	if n, ok := directionNames[d]; ok {
		return n
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Axis returns the axis the direction moves along
func (d Direction) Axis() Axis {
	switch d {
	case Up, Down:
		return AxisVertical
	case Left, Right:
		return AxisHorizontal
	}
	return AxisNone
}

// Offset returns the unit (dx, dy) for one step in the direction
func (d Direction) Offset() (int, int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

func (d Direction) MarshalText() ([]byte, error) {
	n, ok := directionNames[d]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, int(d))
	}
	return []byte(n), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// EventType identifies what a tick produced
type EventType string

const (
	EventNone     EventType = "none"
	WallCollision EventType = "wall_collision"
	SelfBite      EventType = "self_bite"
)

// Event is the outcome of a single tick
type Event struct {
	Type  EventType `json:"type"`
	Head  Position  `json:"head"`
	Tick  uint64    `json:"tick"`
	Score int       `json:"score"`
	At    time.Time `json:"at"`
}

// Terminal reports whether the event ends the game
func (e Event) Terminal() bool {
	return e.Type == WallCollision || e.Type == SelfBite
}

// GameConfig represents the game rules loaded from JSON
type GameConfig struct {
	Name                string  `json:"name"`
	Description         string  `json:"description"`
	InitialLength       int     `json:"initial_length"`
	FoodPool            int     `json:"food_pool"`
	DefaultSpeed        float64 `json:"default_speed"`
	UnitScale           int     `json:"unit_scale"`
	StrictFoodPlacement bool    `json:"strict_food_placement"`
	PredictiveSelfBite  bool    `json:"predictive_self_bite"`
	Messages            struct {
		Welcome      string `json:"welcome"`
		HitWall      string `json:"hit_wall"`
		BitItself    string `json:"bit_itself"`
		NewHighScore string `json:"new_high_score"`
		Paused       string `json:"paused"`
	} `json:"messages"`
}

// GameState represents the complete serialisable engine state
type GameState struct {
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	Body        []Position `json:"body"`
	Food        []Position `json:"food"`
	Heading     Direction  `json:"heading"`
	Speed       float64    `json:"speed"`
	Ticks       uint64     `json:"ticks"`
	Initialized bool       `json:"initialized"`
}

// Snapshot is a read-only view of the engine for presenters
type Snapshot struct {
	Width          int        `json:"width"`
	Height         int        `json:"height"`
	Body           []Position `json:"body"`
	Food           []Position `json:"food"`
	Heading        Direction  `json:"heading"`
	Score          int        `json:"score"`
	Length         int        `json:"length"`
	Speed          float64    `json:"speed"`
	TickIntervalMS int64      `json:"tick_interval_ms"`
	Ticks          uint64     `json:"ticks"`
	Message        string     `json:"message,omitempty"`
	LastEvent      *Event     `json:"last_event,omitempty"`
}
