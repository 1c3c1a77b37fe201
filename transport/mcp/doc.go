// Package mcp exposes snek to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool call becomes a request against the
// REST API, and the answer is rendered as text, including an ASCII board
// (@ head, o body, * food, # border).
//
// MCP Tools:
//   - create_session, get_session, list_sessions
//   - start_game, pause_game, resume_game, step, exit_game
//   - turn, set_speed
//   - game_state, high_score, list_configs, game_instructions
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: POST /mcp forwards the JSON-RPC body to HandleMessage
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
// Agents that want deterministic play pause the game and alternate turn and
// step, one tick at a time.
package mcp
