package engine

import "log"

// placementAttempts bounds random probing before falling back to a scan of free cells
const placementAttempts = 32

// Turn requests a new heading. A request along the axis the snake is already
// moving on is ignored, so the snake can never reverse into its own neck.
func (e *GameEngine) Turn(d Direction) bool {
	if d.Axis() == AxisNone {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.heading != None && e.heading.Axis() == d.Axis() {
		return false
	}
	e.heading = d
	return true
}

func (e *GameEngine) RequestUp() bool    { return e.Turn(Up) }
func (e *GameEngine) RequestDown() bool  { return e.Turn(Down) }
func (e *GameEngine) RequestLeft() bool  { return e.Turn(Left) }
func (e *GameEngine) RequestRight() bool { return e.Turn(Right) }

// advance runs exactly one branch of the tick: wall, food, self-bite or move.
// Must be called with e.mu held.
func (e *GameEngine) advance() Event {
	if e.heading == None || len(e.body) == 0 {
		return Event{Type: EventNone}
	}

	head := e.body[0]
	candidate := head.Add(e.heading)

	// Wall: the candidate leaves the grid
	if !inBounds(candidate, e.width, e.height) {
		e.heading = None
		e.message = e.config.Messages.HitWall
		log.Printf("[TICK] wall at %s (head %s)", candidate, head)
		return Event{Type: WallCollision, Head: candidate}
	}

	// Food: grow by one and replenish the pool
	if _, ok := e.food[candidate]; ok {
		delete(e.food, candidate)
		e.body = append([]Position{candidate}, e.body...)
		e.replenishFood(candidate)
		return Event{Type: EventNone, Head: candidate}
	}

	// Self-bite
	if e.bites(candidate) {
		e.heading = None
		e.message = e.config.Messages.BitItself
		log.Printf("[TICK] self-bite at %s", head)
		return Event{Type: SelfBite, Head: head}
	}

	// Default move
	e.body = append([]Position{candidate}, e.body[:len(e.body)-1]...)
	return Event{Type: EventNone, Head: candidate}
}

// bites reports a self-collision. By default the current head is compared
// against the rest of the body. In predictive mode the candidate is compared
// against every segment except the tail, which moves away this tick.
func (e *GameEngine) bites(candidate Position) bool {
	if e.config.PredictiveSelfBite {
		for _, seg := range e.body[:len(e.body)-1] {
			if seg == candidate {
				return true
			}
		}
		return false
	}

	head := e.body[0]
	for _, seg := range e.body[1:] {
		if seg == head {
			return true
		}
	}
	return false
}

// spawn resets food and body for the current grid. Must be called with e.mu held.
func (e *GameEngine) spawn() {
	length := e.config.InitialLength
	start := Position{X: (e.width - length) / 2, Y: e.height / 2}

	e.body = make([]Position, length)
	for i := range e.body {
		e.body[i] = Position{X: start.X + i, Y: start.Y}
	}

	e.food = make(map[Position]struct{}, e.config.FoodPool)
	var avoid func(Position) bool
	if e.config.StrictFoodPlacement {
		avoid = e.onBody
	}
	for i := 0; i < e.config.FoodPool; i++ {
		if _, ok := e.placeFood(avoid); !ok {
			break
		}
	}

	e.heading = Left
	e.message = e.config.Messages.Welcome
	e.lastEvent = nil
	log.Printf("[SPAWN] %dx%d grid, head %s, %d food", e.width, e.height, start, len(e.food))
}

// replenishFood places one food item after a meal. Only the cell just eaten
// is avoided unless strict placement is enabled.
func (e *GameEngine) replenishFood(eaten Position) {
	avoid := func(p Position) bool { return p == eaten }
	if e.config.StrictFoodPlacement {
		avoid = e.onBody
	}
	e.placeFood(avoid)
}

// placeFood adds one food item on a random free cell. It reports false when
// no free cell exists.
func (e *GameEngine) placeFood(avoid func(Position) bool) (Position, bool) {
	free := func(p Position) bool {
		if _, taken := e.food[p]; taken {
			return false
		}
		return avoid == nil || !avoid(p)
	}

	for i := 0; i < placementAttempts; i++ {
		p := Position{X: e.rng.Intn(e.width), Y: e.rng.Intn(e.height)}
		if free(p) {
			e.food[p] = struct{}{}
			return p, true
		}
	}

	// Dense grid: pick uniformly among the remaining free cells
	var cells []Position
	for y := 0; y < e.height; y++ {
		for x := 0; x < e.width; x++ {
			if p := (Position{X: x, Y: y}); free(p) {
				cells = append(cells, p)
			}
		}
	}
	if len(cells) == 0 {
		return Position{}, false
	}
	p := cells[e.rng.Intn(len(cells))]
	e.food[p] = struct{}{}
	return p, true
}

func (e *GameEngine) onBody(p Position) bool {
	for _, seg := range e.body {
		if seg == p {
			return true
		}
	}
	return false
}

func inBounds(p Position, width, height int) bool {
	return p.X >= 0 && p.X < width && p.Y >= 0 && p.Y < height
}
