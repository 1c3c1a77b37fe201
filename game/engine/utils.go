package engine

import "time"

// Lerp linearly interpolates between a and b by t
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// TickIntervalForSpeed maps a speed in [0,1] onto the tick interval bounds
func TickIntervalForSpeed(speed float64) time.Duration {
	return time.Duration(Lerp(float64(SlowTickInterval), float64(FastTickInterval), clamp01(speed)))
}

// GridFromPixels converts a drawing surface in pixels into grid cells
func GridFromPixels(widthPx, heightPx, unitScale int) (int, int) {
	if unitScale <= 0 {
		unitScale = DefaultUnitScale
	}
	return widthPx / unitScale, heightPx / unitScale
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// NearestFood finds the closest food item to the given position and returns its position and distance
func NearestFood(from Position, food []Position) (Position, int, bool) {
	minDistance := -1
	var nearest Position
	for _, p := range food {
		if d := ManhattanDistance(from, p); minDistance == -1 || d < minDistance {
			minDistance = d
			nearest = p
		}
	}
	return nearest, minDistance, minDistance >= 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
