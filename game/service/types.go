package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/wricardo/snek/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	State          *GameView          `json:"state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
}

// GameView is the engine snapshot plus what the host knows about the session
type GameView struct {
	engine.Snapshot
	SessionID string    `json:"session_id"`
	Phase     Phase     `json:"phase"`
	RunID     uuid.UUID `json:"run_id"`
	HighScore int       `json:"high_score"`
	Running   bool      `json:"running"`
	Notice    string    `json:"notice,omitempty"`
}

// TurnResult reports whether a turn request was accepted
type TurnResult struct {
	Accepted  bool             `json:"accepted"`
	Direction engine.Direction `json:"direction"`
	State     *GameView        `json:"state"`
}

// StepResult contains the event produced by a single manual tick
type StepResult struct {
	Event engine.Event `json:"event"`
	State *GameView    `json:"state"`
}

// ExitResult summarises a run that was left for the start screen
type ExitResult struct {
	Score     int       `json:"score"`
	HighScore int       `json:"high_score"`
	NewRecord bool      `json:"new_record"`
	State     *GameView `json:"state"`
}

// HighScoreInfo is the persisted best score for this application
type HighScoreInfo struct {
	AppID     string `json:"app_id"`
	HighScore int    `json:"high_score"`
}

// ConfigInfo provides information about a game configuration
type ConfigInfo struct {
	Filename            string  `json:"filename"`
	ConfigID            string  `json:"config_id"` // The identifier to use for session creation
	Name                string  `json:"name"`      // Display name
	Description         string  `json:"description"`
	InitialLength       int     `json:"initial_length"`
	FoodPool            int     `json:"food_pool"`
	DefaultSpeed        float64 `json:"default_speed"`
	UnitScale           int     `json:"unit_scale"`
	StrictFoodPlacement bool    `json:"strict_food_placement"`
	PredictiveSelfBite  bool    `json:"predictive_self_bite"`
}
