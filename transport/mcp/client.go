package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/snek/game/engine"
	"github.com/wricardo/snek/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Snek",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Snek - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Steer the snake (@ is the head, o the body) to eat food (*). Every meal grows
the snake by one segment. The game ends when the head leaves the grid or
bites the body. Score is the length gained since the start of the run.

AVAILABLE TOOLS:
- create_session: Create a new game session
- start_game: Start a run on a grid of the given size
- turn: Request a new heading (up/down/left/right)
- pause_game / resume_game: Stop or restart the tick loop
- step: Advance a paused game by exactly one tick
- set_speed: Change the tick rate (0 slowest, 1 fastest)
- game_state: Render the board
- exit_game: Leave the run and record the score
- high_score: Read the persisted high score
- get_session / list_sessions: Inspect sessions
- list_configs: List available rule sets
- game_instructions: Full rules

TIP: Pause the game and use turn + step to play one tick at a time.`),
	)

	// Register all tools
	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func sessionOnlyTool(name, description string) mcp.Tool {
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the config to use, e.g. classic or speedy (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(sessionOnlyTool("get_session", "Get details of a specific session"), c.handleGetSession)

	// Game lifecycle
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_game",
		Description: "Start a new run on a grid of width x height cells. Allowed from the start screen or after game over.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"width": map[string]interface{}{
					"type":        "integer",
					"description": "Grid width in cells (defaults to 40)",
				},
				"height": map[string]interface{}{
					"type":        "integer",
					"description": "Grid height in cells (defaults to 20)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleStartGame)

	c.mcpServer.AddTool(sessionOnlyTool("pause_game", "Pause the tick loop"), c.handlePause)
	c.mcpServer.AddTool(sessionOnlyTool("resume_game", "Resume a paused game"), c.handleResume)
	c.mcpServer.AddTool(sessionOnlyTool("step", "Advance a paused game by one tick and report what happened"), c.handleStep)
	c.mcpServer.AddTool(sessionOnlyTool("exit_game", "Leave the current run, record its score and return to the start screen"), c.handleExitGame)

	// Input
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "turn",
		Description: "Request a new heading. Turns along the current axis (reversals) are rejected.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"up", "down", "left", "right"},
					"description": "New heading",
				},
			},
			Required: []string{"session_id", "direction"},
		},
	}, c.handleTurn)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_speed",
		Description: "Set the game speed between 0 (300ms per tick) and 1 (10ms per tick)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"speed": map[string]interface{}{
					"type":        "number",
					"minimum":     0,
					"maximum":     1,
					"description": "Speed in [0,1]",
				},
			},
			Required: []string{"session_id", "speed"},
		},
	}, c.handleSetSpeed)

	// Game state
	c.mcpServer.AddTool(sessionOnlyTool("game_state", "Render the current board and score"), c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "high_score",
		Description: "Get the persisted high score",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleHighScore)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available game configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get comprehensive game instructions and rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func sessionPath(args map[string]interface{}, suffix string) (string, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix, nil
}

func intArg(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok && v > 0 {
		return int(v)
	}
	return def
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\nHigh score: %d\n\nCall start_game to begin.",
		session.ID, session.ConfigName, highScoreOf(&session))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		phase, score := service.PhaseStart, 0
		if s.State != nil {
			phase, score = s.State.Phase, s.State.Score
		}
		fmt.Fprintf(&result, "- %s (Config: %s, Phase: %s, Score: %d, Created: %s)\n",
			s.ID, s.ConfigName, phase, score, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", path, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]int{
		"width":  intArg(args, "width", 40),
		"height": intArg(args, "height", 20),
	}

	var view service.GameView
	if err := c.apiCall(ctx, "POST", path, body, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Game started.\n\n" + formatGameView(&view)), nil
}

// viewCall runs a session operation that answers with a game view
func (c *Client) viewCall(ctx context.Context, request mcp.CallToolRequest, method, suffix, title string) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), suffix)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var view service.GameView
	if err := c.apiCall(ctx, method, path, nil, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := formatGameView(&view)
	if title != "" {
		text = title + "\n\n" + text
	}
	return mcp.NewToolResultText(text), nil
}

func (c *Client) handlePause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.viewCall(ctx, request, "POST", "/pause", "Game paused.")
}

func (c *Client) handleResume(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.viewCall(ctx, request, "POST", "/resume", "Game resumed.")
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.viewCall(ctx, request, "GET", "/state", "")
}

func (c *Client) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/step")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.StepResult
	if err := c.apiCall(ctx, "POST", path, nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStepResult(&result)), nil
}

func (c *Client) handleExitGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/exit")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.ExitResult
	if err := c.apiCall(ctx, "POST", path, nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Run ended with score %d (high score %d).", result.Score, result.HighScore)
	if result.NewRecord {
		text += "\nNew high score!"
	}
	return mcp.NewToolResultText(text), nil
}

func (c *Client) handleTurn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/turn")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	direction, _ := args["direction"].(string)

	var result service.TurnResult
	if err := c.apiCall(ctx, "POST", path, map[string]string{"direction": direction}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatTurnResult(&result)), nil
}

func (c *Client) handleSetSpeed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/speed")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	speed, ok := args["speed"].(float64)
	if !ok {
		return mcp.NewToolResultError("speed is required"), nil
	}

	var view service.GameView
	if err := c.apiCall(ctx, "PUT", path, map[string]float64{"speed": speed}, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Speed set to %.2f (%dms per tick)", view.Speed, view.TickIntervalMS)), nil
}

func (c *Client) handleHighScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var info service.HighScoreInfo
	if err := c.apiCall(ctx, "GET", "/api/highscore", nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("High score: %d", info.HighScore)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	result.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&result, "• %s (%s)\n  %s\n  Length: %d, Food: %d, Speed: %.2f\n\n",
			config.Name, config.ConfigID, config.Description,
			config.InitialLength, config.FoodPool, config.DefaultSpeed)
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Snek - Complete Instructions

GAME OBJECTIVE:
Grow the snake as long as possible. Score is the number of segments gained
since the run started.

BOARD:
  @  snake head
  o  snake body
  *  food
  .  empty cell
  #  border (outside the grid)
Coordinates are (x,y) with (0,0) in the top-left corner; y grows downward.

RULES:
• The snake moves one cell per tick in its current heading
• Eating food grows the snake by one segment and a new food item appears
• Leaving the grid ends the game (wall collision)
• Moving the head onto the body ends the game (self bite)
• A turn along the current axis is rejected: the snake cannot reverse
• Only the last accepted turn before a tick takes effect

PHASES:
  start → playing ⇄ paused → game_over → playing (replay) ...
  exit_game returns to the start screen from any run.

SPEED:
Speed runs from 0 (300ms per tick) to 1 (10ms per tick).

PLAYING TURN BY TURN:
1. create_session, then start_game
2. pause_game
3. turn (optional) then step, repeat
4. resume_game to let the loop run again`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func highScoreOf(session *service.SessionInfo) int {
	if session.State == nil {
		return 0
	}
	return session.State.HighScore
}

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatGameView(session.State))
}

// formatGameView renders the board as text with a status header
func formatGameView(view *service.GameView) string {
	if view == nil {
		return "No game state available"
	}

	var result strings.Builder

	fmt.Fprintf(&result, "Phase: %s | Score: %d | High: %d | Length: %d | Heading: %s | Speed: %.2f | Tick: %d\n",
		view.Phase, view.Score, view.HighScore, view.Length, view.Heading, view.Speed, view.Ticks)

	if len(view.Body) > 0 {
		head := view.Body[0]
		fmt.Fprintf(&result, "Head: %s", head)
		if food, dist, ok := engine.NearestFood(head, view.Food); ok {
			fmt.Fprintf(&result, " | Nearest food: %s (%d away)", food, dist)
		}
		result.WriteString("\n")
	}
	result.WriteString("\n")

	if view.Width > 0 && view.Height > 0 {
		result.WriteString(renderBoard(view))
	}

	switch view.Phase {
	case service.PhaseGameOver:
		result.WriteString("\nGAME OVER")
	case service.PhasePaused:
		result.WriteString("\nPAUSED")
	}

	if view.Notice != "" {
		fmt.Fprintf(&result, "\nNotice: %s", view.Notice)
	}
	if view.Message != "" {
		fmt.Fprintf(&result, "\nMessage: %s", view.Message)
	}

	return result.String()
}

// renderBoard draws the grid inside a # border
func renderBoard(view *service.GameView) string {
	rows := make([][]byte, view.Height)
	for y := range rows {
		rows[y] = bytes.Repeat([]byte{'.'}, view.Width)
	}
	set := func(p engine.Position, ch byte) {
		if p.X >= 0 && p.X < view.Width && p.Y >= 0 && p.Y < view.Height {
			rows[p.Y][p.X] = ch
		}
	}

	for _, p := range view.Food {
		set(p, '*')
	}
	for i := len(view.Body) - 1; i >= 0; i-- {
		if i == 0 {
			set(view.Body[i], '@')
		} else {
			set(view.Body[i], 'o')
		}
	}

	var b strings.Builder
	border := strings.Repeat("#", view.Width+2)
	b.WriteString(border + "\n")
	for _, row := range rows {
		b.WriteString("#")
		b.Write(row)
		b.WriteString("#\n")
	}
	b.WriteString(border + "\n")
	return b.String()
}

func formatTurnResult(result *service.TurnResult) string {
	heading := engine.None
	if result.State != nil {
		heading = result.State.Heading
	}
	if result.Accepted {
		return fmt.Sprintf("✓ Turned %s", result.Direction)
	}
	return fmt.Sprintf("✗ Turn %s rejected: the snake is already moving along that axis (heading %s)",
		result.Direction, heading)
}

func formatStepResult(result *service.StepResult) string {
	var b strings.Builder

	switch result.Event.Type {
	case engine.WallCollision:
		fmt.Fprintf(&b, "💀 Hit the wall at %s\n\n", result.Event.Head)
	case engine.SelfBite:
		fmt.Fprintf(&b, "💀 Bit itself at %s\n\n", result.Event.Head)
	default:
		fmt.Fprintf(&b, "Tick %d\n\n", result.Event.Tick)
	}

	b.WriteString(formatGameView(result.State))
	return b.String()
}
