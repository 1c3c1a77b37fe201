package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

var (
	ErrInvalidGridSize  = errors.New("grid dimensions must be positive")
	ErrGridTooSmall     = errors.New("grid is narrower than the initial snake")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidState     = errors.New("invalid game state")
)

// Engine provides the main interface for game operations
type Engine interface {
	// Session setup
	SetGridSize(width, height int) error
	GridSize() (int, int)

	// Heading requests
	Turn(d Direction) bool
	RequestUp() bool
	RequestDown() bool
	RequestLeft() bool
	RequestRight() bool

	// Simulation
	Tick() Event
	Subscribe(buffer int) (<-chan Event, func())

	// Queries
	Body() []Position
	Food() []Position
	Score() int
	Heading() Direction
	Ticks() uint64
	Snapshot() Snapshot

	// Speed
	Speed() float64
	SetSpeed(speed float64)
	TickInterval() time.Duration

	// State and configuration
	GetState() *GameState
	SetState(state *GameState) error
	GetConfig() *GameConfig
}

// GameEngine implements the Engine interface
type GameEngine struct {
	mu     sync.Mutex
	config *GameConfig
	rng    *rand.Rand

	width       int
	height      int
	initialized bool
	body        []Position
	food        map[Position]struct{}
	heading     Direction
	speed       float64
	ticks       uint64
	message     string
	lastEvent   *Event

	subscribers map[int]chan Event
	nextSubID   int
}

// Option configures a GameEngine
type Option func(*GameEngine)

// WithSeed makes food placement deterministic
func WithSeed(seed uint64) Option {
	return func(e *GameEngine) {
		e.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand uses the given random source for food placement
func WithRand(r *rand.Rand) Option {
	return func(e *GameEngine) {
		if r != nil {
			e.rng = r
		}
	}
}

// NewEngine creates a new game engine with the provided configuration.
// Nothing is spawned until the first SetGridSize call.
func NewEngine(config *GameConfig, opts ...Option) (*GameEngine, error) {
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	e := &GameEngine{
		config:      config,
		food:        make(map[Position]struct{}),
		heading:     None,
		speed:       config.DefaultSpeed,
		subscribers: make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}

	return e, nil
}

// NewEngineWithDefaults creates a new game engine with the classic rules
func NewEngineWithDefaults(opts ...Option) *GameEngine {
	e, err := NewEngine(DefaultConfig(), opts...)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return e
}

// SetGridSize fixes the grid dimensions. The first call, or a call with
// different dimensions, respawns the snake and the food pool. Repeating the
// current dimensions is a no-op.
func (e *GameEngine) SetGridSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGridSize, width, height)
	}
	if width < e.config.InitialLength {
		return fmt.Errorf("%w: width %d < length %d", ErrGridTooSmall, width, e.config.InitialLength)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized && e.width == width && e.height == height {
		return nil
	}

	e.width = width
	e.height = height
	e.spawn()
	e.initialized = true
	return nil
}

// GridSize returns the grid dimensions in cells
func (e *GameEngine) GridSize() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width, e.height
}

// Tick advances the simulation by one step
func (e *GameEngine) Tick() Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ticks++
	ev := e.advance()
	ev.Tick = e.ticks
	ev.Score = e.score()
	ev.At = time.Now()

	if ev.Terminal() {
		e.lastEvent = &ev
		e.publish(ev)
	}
	return ev
}

// Subscribe returns a stream of terminal events and a function that ends the
// subscription. Events are dropped when the buffer is full.
func (e *GameEngine) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = ch
	e.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subscribers, id)
			e.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// publish must be called with e.mu held
func (e *GameEngine) publish(ev Event) {
	for _, ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Body returns a copy of the snake body, head first
func (e *GameEngine) Body() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Position(nil), e.body...)
}

// Food returns the food positions sorted row by row
func (e *GameEngine) Food() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortedFood()
}

// Score returns the number of segments grown since spawn
func (e *GameEngine) Score() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score()
}

func (e *GameEngine) score() int {
	if len(e.body) == 0 {
		return 0
	}
	return len(e.body) - e.config.InitialLength
}

// Heading returns the current direction of motion
func (e *GameEngine) Heading() Direction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heading
}

// Ticks returns how many times Tick has been called
func (e *GameEngine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

// Speed returns the speed in [0,1]
func (e *GameEngine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed sets the speed, clamped into [0,1]. It applies from the next tick interval.
func (e *GameEngine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = clamp01(speed)
}

// TickInterval returns the delay before the next tick at the current speed
func (e *GameEngine) TickInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return TickIntervalForSpeed(e.speed)
}

// Snapshot returns a read-only view of the engine
func (e *GameEngine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Width:          e.width,
		Height:         e.height,
		Body:           append([]Position(nil), e.body...),
		Food:           e.sortedFood(),
		Heading:        e.heading,
		Score:          e.score(),
		Length:         len(e.body),
		Speed:          e.speed,
		TickIntervalMS: TickIntervalForSpeed(e.speed).Milliseconds(),
		Ticks:          e.ticks,
		Message:        e.message,
	}
	if e.lastEvent != nil {
		ev := *e.lastEvent
		snap.LastEvent = &ev
	}
	return snap
}

// GetState returns a copy of the complete game state
func (e *GameEngine) GetState() *GameState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return &GameState{
		Width:       e.width,
		Height:      e.height,
		Body:        append([]Position(nil), e.body...),
		Food:        e.sortedFood(),
		Heading:     e.heading,
		Speed:       e.speed,
		Ticks:       e.ticks,
		Initialized: e.initialized,
	}
}

// SetState replaces the game state (used for restores and engineered states)
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("%w: state cannot be nil", ErrInvalidState)
	}
	if state.Initialized {
		if state.Width <= 0 || state.Height <= 0 {
			return fmt.Errorf("%w: %dx%d", ErrInvalidGridSize, state.Width, state.Height)
		}
		if len(state.Body) == 0 {
			return fmt.Errorf("%w: body cannot be empty", ErrInvalidState)
		}
		for _, p := range append(append([]Position(nil), state.Body...), state.Food...) {
			if !inBounds(p, state.Width, state.Height) {
				return fmt.Errorf("%w: %s is outside %dx%d", ErrInvalidState, p, state.Width, state.Height)
			}
		}
	}
	if _, ok := directionNames[state.Heading]; !ok {
		return fmt.Errorf("%w: heading %d", ErrInvalidDirection, int(state.Heading))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.width = state.Width
	e.height = state.Height
	e.initialized = state.Initialized
	e.body = append([]Position(nil), state.Body...)
	e.food = make(map[Position]struct{}, len(state.Food))
	for _, p := range state.Food {
		e.food[p] = struct{}{}
	}
	e.heading = state.Heading
	e.speed = clamp01(state.Speed)
	e.ticks = state.Ticks
	e.lastEvent = nil
	return nil
}

// GetConfig returns the current game configuration
func (e *GameEngine) GetConfig() *GameConfig {
	return e.config
}

// sortedFood must be called with e.mu held
func (e *GameEngine) sortedFood() []Position {
	food := make([]Position, 0, len(e.food))
	for p := range e.food {
		food = append(food, p)
	}
	sort.Slice(food, func(i, j int) bool {
		if food[i].Y != food[j].Y {
			return food[i].Y < food[j].Y
		}
		return food[i].X < food[j].X
	})
	return food
}
