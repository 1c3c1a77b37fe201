// Package loop schedules engine ticks for a single game session.
//
// A Loop waits the target's current tick interval, calls Tick, hands the
// event to an optional handler and starts over. The interval is read once at
// the start of every iteration, so speed changes apply from the next tick.
// Pausing cancels the outstanding wait; a tick that already started always
// finishes. The loop stops itself after a terminal event.
//
// Usage:
//
//	l := loop.New(gameEngine, loop.WithTickHandler(func(ev engine.Event) {
//		if ev.Terminal() {
//			log.Printf("game over: %s", ev.Type)
//		}
//	}))
//	l.Resume(ctx)
//	defer l.Pause()
package loop
