// Package websocket streams live snek games to browser and device clients.
//
// A central Hub owns all connections, grouped by session ID. Clients join with
// /ws?session=ID and then receive one JSON document per frame:
//
//	{"session_id":"ab12","event":"state_update","state":{...}}
//	{"session_id":"ab12","event":"game_over","state":{...}}
//
// Clients may steer over the same socket by sending {"action":"up"}. Valid
// actions are up, down, left, right, pause and resume; the hub hands them to
// the CommandHandler registered by the HTTP server.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Stop()
//
//	svc := service.NewGameService(sessions, configs, service.WithNotifier(hub))
//
// Broadcasts never block the caller. The game loop publishes a snapshot on
// every tick, so a full queue drops messages and a client that cannot keep up
// is disconnected.
package websocket
