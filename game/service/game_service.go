package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wricardo/snek/game/engine"
	"github.com/wricardo/snek/game/loop"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrConfigNotFound  = errors.New("configuration not found")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidPhase    = errors.New("operation not allowed in current phase")
)

// Phase is the screen a session is on
type Phase string

const (
	PhaseStart    Phase = "start"
	PhasePlaying  Phase = "playing"
	PhasePaused   Phase = "paused"
	PhaseGameOver Phase = "game_over"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Lifecycle
	StartGame(ctx context.Context, sessionID string, width, height int) (*GameView, error)
	Resize(ctx context.Context, sessionID string, width, height int) (*GameView, error)
	Pause(ctx context.Context, sessionID string) (*GameView, error)
	Resume(ctx context.Context, sessionID string) (*GameView, error)
	Step(ctx context.Context, sessionID string) (*StepResult, error)
	ExitGame(ctx context.Context, sessionID string) (*ExitResult, error)

	// Input
	Turn(ctx context.Context, sessionID string, direction engine.Direction) (*TurnResult, error)
	SetSpeed(ctx context.Context, sessionID string, speed float64) (*GameView, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*GameView, error)
	GetHighScore(ctx context.Context) (*HighScoreInfo, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error

	// Close stops every running game and waits for pending score writes
	Close(ctx context.Context) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.GameConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, config *engine.GameConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// ConfigManager handles game configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}

// Notifier receives state pushed by running games
type Notifier interface {
	BroadcastToSession(sessionID string, view *GameView)
	BroadcastEvent(sessionID string, event string, data interface{})
}

// Session represents one game host: an engine, its loop and the current phase
type Session struct {
	ID        string
	Config    *engine.GameConfig
	CreatedAt time.Time

	// Guarded by mu
	LastAccessedAt time.Time
	Engine         engine.Engine
	Loop           *loop.Loop
	ConfigID       string
	Phase          Phase
	RunID          uuid.UUID
	Speed          float64
	HighScore      int
	Notice         string
	recorded       bool
	newRecord      bool

	mu   sync.Mutex
	opMu sync.Mutex // serialises control operations, never held by tick handlers
}

// NewSession creates a session on the start screen
func NewSession(id string, config *engine.GameConfig, eng engine.Engine) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		Config:         config,
		CreatedAt:      now,
		LastAccessedAt: now,
		Engine:         eng,
		Phase:          PhaseStart,
		Speed:          config.DefaultSpeed,
	}
}

// CurrentPhase returns the session phase
func (s *Session) CurrentPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Phase
}

// Touch records an access for expiry bookkeeping
func (s *Session) Touch() {
	s.mu.Lock()
	s.LastAccessedAt = time.Now()
	s.mu.Unlock()
}

// LastAccessed returns the time of the last recorded access
func (s *Session) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastAccessedAt
}

// Close stops the session's loop if it is running
func (s *Session) Close() {
	s.mu.Lock()
	l := s.Loop
	s.mu.Unlock()

	if l != nil {
		l.Pause()
	}
}
