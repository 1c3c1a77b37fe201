// Package service is the host layer of snek: it owns sessions, drives their
// game loops and connects them to high score storage and transports.
//
// Each session holds one engine, one loop and a phase:
//
//	start -> playing <-> paused -> game_over -> playing (replay)
//	                                         -> start   (exit)
//
// The loop ticks on its own goroutine. After every tick the service pushes a
// GameView to the Notifier; a wall collision or self-bite moves the session to
// game_over and the score is written to the score.Store in the background.
// Close waits for those writes.
//
// Usage:
//
//	svc := service.NewGameService(sessionMgr, configMgr,
//		service.WithScoreStore(store, "snek"),
//		service.WithNotifier(hub),
//	)
//
//	info, err := svc.CreateSession(ctx, "classic")
//	if err != nil {
//		log.Fatal(err)
//	}
//	view, err := svc.StartGame(ctx, info.ID, 72, 128)
//	_, err = svc.Turn(ctx, info.ID, engine.Up)
//
// Operations that do not fit the current phase fail with ErrInvalidPhase;
// unknown sessions fail with ErrSessionNotFound.
package service
