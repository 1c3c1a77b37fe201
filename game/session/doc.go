// Package session keeps the live game sessions of a snek server in memory.
//
// Sessions use 4-character hex IDs generated from crypto/rand and are looked
// up case-insensitively. A session owns a running game loop, so removing it,
// explicitly or through CleanupExpiredSessions, stops that loop before the
// session is dropped.
//
// Usage:
//
//	manager := session.NewManager()
//
//	sess, err := manager.Create("", config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	removed := manager.CleanupExpiredSessions(30 * time.Minute)
//
// Nothing here is written to disk; the only persisted value in snek is the
// high score, see package score.
package session
