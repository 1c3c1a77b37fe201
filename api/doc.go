// Package api provides the HTTP REST API for snek game sessions.
//
// Every session hosts one game. A game is started on a grid, then runs on its
// own tick loop until the snake hits a wall or bites itself. Clients steer it
// with turn requests and watch it either by polling the state endpoint or by
// subscribing to the session's WebSocket.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create new session ({"config_id": "classic"})
//   - GET /api/sessions - List sessions (?sort=accessed|created|score&order=desc|asc&limit=N)
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Record the current score and delete the session
//
// Game Lifecycle:
//   - POST /api/sessions/{id}/start - Start a run ({"width":40,"height":20} or {"width_px":600,"height_px":300})
//   - POST /api/sessions/{id}/resize - Change the grid of a running or paused game
//   - POST /api/sessions/{id}/pause - Pause the loop
//   - POST /api/sessions/{id}/resume - Resume the loop
//   - POST /api/sessions/{id}/step - Advance a paused game by one tick
//   - POST /api/sessions/{id}/exit - Leave the run and record the score
//
// Input and State:
//   - POST /api/sessions/{id}/turn - Request a heading ({"direction":"up"})
//   - PUT /api/sessions/{id}/speed - Set speed in [0,1] ({"speed":0.7})
//   - GET /api/sessions/{id}/state - Current snapshot
//   - GET /api/highscore - Persisted high score
//   - GET /api/health - Liveness probe
//
// Configuration:
//   - GET /api/configs - List available configurations
//   - GET /api/configs/{name} - Get a configuration
//   - POST /api/configs - Save a configuration
//
// WebSocket:
//   - GET /ws?session={id} - Stream state_update and game_over events.
//     Clients may send {"action":"up|down|left|right|pause|resume"}.
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status derived from the error:
//
//	{"error": "operation not allowed in current phase: ..."}
//
// Unknown sessions and configurations map to 404, phase violations to 409,
// bad grids or directions to 400.
package api
