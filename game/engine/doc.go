// Package engine provides the core simulation for the snake game.
//
// The engine package implements the game mechanics including:
//   - Grid sizing and spawning of the snake and the food pool
//   - Heading requests guarded by the reverse-lock rule
//   - The tick: wall, food, self-bite and move, one branch per tick
//   - Score derivation, speed and tick interval mapping
//   - Configuration loading and validation
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. GameState is the serialisable engine state,
// Snapshot is a read-only view for presenters and GameConfig defines the
// rules loaded from JSON files.
//
// Usage:
//
//	gameEngine, err := engine.NewEngine(engine.DefaultConfig(), engine.WithSeed(42))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := gameEngine.SetGridSize(40, 30); err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine.RequestUp()
//	ev := gameEngine.Tick()
//	if ev.Terminal() {
//		// game over
//	}
//
// The engine never stops itself. Callers stop ticking after a WallCollision
// or SelfBite event.
package engine
