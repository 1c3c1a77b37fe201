package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wricardo/snek/game/engine"
	"github.com/wricardo/snek/game/loop"
	"github.com/wricardo/snek/game/score"
	"github.com/wricardo/snek/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultAppID identifies this application in the score store
const DefaultAppID = "snek"

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	scores   score.Store
	appID    string
	notifier Notifier
	tracer   trace.Tracer
	seed     uint64

	// Loops run on this context so they outlive the request that started them
	runCtx   context.Context
	stopRuns context.CancelFunc
	pending  sync.WaitGroup

	mu sync.RWMutex
}

// Option configures the game service
type Option func(*gameServiceImpl)

// WithScoreStore sets where high scores are kept and the identity they are kept under
func WithScoreStore(store score.Store, appID string) Option {
	return func(s *gameServiceImpl) {
		s.scores = store
		if appID != "" {
			s.appID = appID
		}
	}
}

// WithNotifier sets the receiver for per-tick snapshots and game over events
func WithNotifier(n Notifier) Option {
	return func(s *gameServiceImpl) {
		s.notifier = n
	}
}

// WithTracer sets the tracer used for lifecycle spans
func WithTracer(t trace.Tracer) Option {
	return func(s *gameServiceImpl) {
		s.tracer = t
	}
}

// WithSeed makes every run's food placement deterministic
func WithSeed(seed uint64) Option {
	return func(s *gameServiceImpl) {
		s.seed = seed
	}
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		scores:   score.NewMemoryStore(),
		appID:    DefaultAppID,
		tracer:   telemetry.NoopTracer(),
		runCtx:   ctx,
		stopRuns: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

// CreateSession creates a new game session on the start screen
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	_, span := s.tracer.Start(ctx, "session.create")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	var config *engine.GameConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			// Provide helpful error message with available options
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: '%s'. Available configs: %v", ErrConfigNotFound, configName, configIDs)
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	configID := configName
	if configID == "" {
		configID = s.getConfigID(config.Name)
	}

	best := s.loadHighScore()

	sess.mu.Lock()
	sess.ConfigID = configID
	sess.HighScore = best
	info := s.infoLocked(sess)
	sess.mu.Unlock()

	span.SetAttributes(attribute.String("session.id", sess.ID), attribute.String("config.id", configID))
	log.Printf("[SESSION] created %s with config %s", sess.ID, configID)
	return info, nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.infoLocked(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))

	for _, sess := range sessions {
		sess.mu.Lock()
		result = append(result, s.infoLocked(sess))
		sess.mu.Unlock()
	}

	return result, nil
}

// DeleteSession records any run in progress and removes the session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.ExitGame(ctx, sessionID); err != nil && !errors.Is(err, ErrInvalidPhase) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	return nil
}

// StartGame begins a fresh run from the start or game over screen
func (s *gameServiceImpl) StartGame(ctx context.Context, sessionID string, width, height int) (*GameView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()

	phase := sess.CurrentPhase()
	if phase != PhaseStart && phase != PhaseGameOver {
		return nil, fmt.Errorf("%w: cannot start a game while %s", ErrInvalidPhase, phase)
	}

	_, span := s.tracer.Start(ctx, "game.start")
	defer span.End()

	var opts []engine.Option
	if s.seed != 0 {
		opts = append(opts, engine.WithSeed(s.seed))
	}
	eng, err := engine.NewEngine(sess.Config, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if err := eng.SetGridSize(width, height); err != nil {
		return nil, err
	}

	best := s.loadHighScore()
	runID := uuid.New()
	l := loop.New(eng, loop.WithTickHandler(s.tickHandler(sess, runID)))

	sess.mu.Lock()
	eng.SetSpeed(sess.Speed)
	sess.Engine = eng
	sess.Loop = l
	sess.RunID = runID
	sess.Phase = PhasePlaying
	// A write from the previous run may still be in flight
	sess.HighScore = max(best, sess.HighScore)
	sess.Notice = ""
	sess.recorded = false
	sess.newRecord = false
	sess.mu.Unlock()

	l.Resume(s.runCtx)
	view := s.view(sess)

	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("run.id", runID.String()),
		attribute.Int("grid.width", width),
		attribute.Int("grid.height", height),
	)
	log.Printf("[GAME] session %s started run %s on %dx%d", sessionID, runID, width, height)
	return view, nil
}

// Resize forwards a new surface size to the running engine
func (s *gameServiceImpl) Resize(ctx context.Context, sessionID string, width, height int) (*GameView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()

	sess.mu.Lock()
	phase, eng := sess.Phase, sess.Engine
	sess.mu.Unlock()

	if phase != PhasePlaying && phase != PhasePaused {
		return nil, fmt.Errorf("%w: cannot resize while %s", ErrInvalidPhase, phase)
	}
	if err := eng.SetGridSize(width, height); err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// Pause stops the loop. Pausing a paused game is a no-op.
func (s *gameServiceImpl) Pause(ctx context.Context, sessionID string) (*GameView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()

	sess.mu.Lock()
	switch sess.Phase {
	case PhasePaused:
		view := sess.viewLocked()
		sess.mu.Unlock()
		return view, nil
	case PhasePlaying:
	default:
		phase := sess.Phase
		sess.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot pause while %s", ErrInvalidPhase, phase)
	}
	l := sess.Loop
	sess.mu.Unlock()

	// The loop may deliver a final tick while we wait for it
	l.Pause()

	sess.mu.Lock()
	if sess.Phase == PhasePlaying {
		sess.Phase = PhasePaused
		sess.Notice = sess.Config.Messages.Paused
	}
	view := sess.viewLocked()
	sess.mu.Unlock()

	s.notify(sessionID, view)
	return view, nil
}

// Resume restarts the loop. Resuming a running game is a no-op.
func (s *gameServiceImpl) Resume(ctx context.Context, sessionID string) (*GameView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()

	sess.mu.Lock()
	switch sess.Phase {
	case PhasePlaying:
		view := sess.viewLocked()
		sess.mu.Unlock()
		return view, nil
	case PhasePaused:
	default:
		phase := sess.Phase
		sess.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot resume while %s", ErrInvalidPhase, phase)
	}
	sess.Phase = PhasePlaying
	sess.Notice = ""
	l := sess.Loop
	view := sess.viewLocked()
	sess.mu.Unlock()

	l.Resume(s.runCtx)
	s.notify(sessionID, view)
	return view, nil
}

// Step advances a paused game by exactly one tick
func (s *gameServiceImpl) Step(ctx context.Context, sessionID string) (*StepResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()

	sess.mu.Lock()
	phase, eng, runID := sess.Phase, sess.Engine, sess.RunID
	sess.mu.Unlock()

	if phase != PhasePaused {
		return nil, fmt.Errorf("%w: step requires a paused game, not %s", ErrInvalidPhase, phase)
	}

	ev := eng.Tick()
	s.tickHandler(sess, runID)(ev)

	return &StepResult{Event: ev, State: s.view(sess)}, nil
}

// ExitGame stops the run, records its score and returns to the start screen
func (s *gameServiceImpl) ExitGame(ctx context.Context, sessionID string) (*ExitResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()

	sess.mu.Lock()
	phase, l := sess.Phase, sess.Loop
	sess.mu.Unlock()

	if phase == PhaseStart {
		return nil, fmt.Errorf("%w: no game to exit", ErrInvalidPhase)
	}
	if l != nil {
		l.Pause()
	}

	_, span := s.tracer.Start(ctx, "game.exit")
	defer span.End()

	sess.mu.Lock()
	result := s.closeRunLocked(sess, "exit")
	sess.Phase = PhaseStart
	view := sess.viewLocked()
	exit := &ExitResult{
		Score:     view.Score,
		HighScore: view.HighScore,
		NewRecord: sess.newRecord,
		State:     view,
	}
	sess.mu.Unlock()

	if result != nil {
		s.recordAsync(*result)
	}

	span.SetAttributes(attribute.String("session.id", sessionID), attribute.Int("score", exit.Score))
	log.Printf("[GAME] session %s exited with score %d", sessionID, exit.Score)
	s.notify(sessionID, view)
	return exit, nil
}

// Turn asks the engine for a new heading
func (s *gameServiceImpl) Turn(ctx context.Context, sessionID string, direction engine.Direction) (*TurnResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	phase, eng := sess.Phase, sess.Engine
	sess.mu.Unlock()

	if phase != PhasePlaying && phase != PhasePaused {
		return nil, fmt.Errorf("%w: cannot turn while %s", ErrInvalidPhase, phase)
	}

	accepted := eng.Turn(direction)
	if !accepted {
		log.Printf("[TURN] session %s rejected %s (heading %s)", sessionID, direction, eng.Heading())
	}
	return &TurnResult{Accepted: accepted, Direction: direction, State: s.view(sess)}, nil
}

// SetSpeed changes the tick rate, clamped to [0, 1]. It applies to later runs too.
func (s *gameServiceImpl) SetSpeed(ctx context.Context, sessionID string, speed float64) (*GameView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	sess.Engine.SetSpeed(speed)
	sess.Speed = sess.Engine.Speed()
	view := sess.viewLocked()
	sess.mu.Unlock()

	return view, nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*GameView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// GetHighScore returns the persisted best score
func (s *gameServiceImpl) GetHighScore(ctx context.Context) (*HighScoreInfo, error) {
	best, err := s.scores.HighScore(s.appID)
	if err != nil {
		return nil, fmt.Errorf("failed to read high score: %w", err)
	}
	return &HighScoreInfo{AppID: s.appID, HighScore: best}, nil
}

// ListConfigs returns available game configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific game configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a game configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configName, config)
}

// Close stops every loop and waits for score writes still in flight
func (s *gameServiceImpl) Close(ctx context.Context) error {
	s.stopRuns()
	for _, sess := range s.sessions.List() {
		sess.Close()
	}

	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for score writes: %w", ctx.Err())
	}
}

// tickHandler returns the per-run callback the loop invokes after every tick.
// Ticks from a run that has since been replaced are dropped.
func (s *gameServiceImpl) tickHandler(sess *Session, runID uuid.UUID) func(engine.Event) {
	return func(ev engine.Event) {
		sess.mu.Lock()
		if sess.RunID != runID {
			sess.mu.Unlock()
			return
		}
		var result *score.Result
		if ev.Terminal() {
			sess.Phase = PhaseGameOver
			result = s.closeRunLocked(sess, string(ev.Type))
		}
		view := sess.viewLocked()
		sess.mu.Unlock()

		s.notify(sess.ID, view)
		if !ev.Terminal() {
			return
		}

		_, span := s.tracer.Start(s.runCtx, "game.over")
		span.SetAttributes(
			attribute.String("session.id", sess.ID),
			attribute.String("run.id", runID.String()),
			attribute.String("reason", string(ev.Type)),
			attribute.Int("score", ev.Score),
		)
		span.End()

		log.Printf("[GAME] session %s over: %s at %s, score %d", sess.ID, ev.Type, ev.Head, ev.Score)
		if s.notifier != nil {
			s.notifier.BroadcastEvent(sess.ID, "game_over", view)
		}
		if result != nil {
			s.recordAsync(*result)
		}
	}
}

// closeRunLocked marks the current run as scored and returns the result to
// persist, or nil if the run was already scored. Must be called with sess.mu held.
func (s *gameServiceImpl) closeRunLocked(sess *Session, reason string) *score.Result {
	if sess.recorded || sess.RunID == uuid.Nil {
		return nil
	}
	sess.recorded = true

	result := &score.Result{
		RunID:     sess.RunID,
		SessionID: sess.ID,
		Score:     sess.Engine.Score(),
		Reason:    reason,
		At:        time.Now(),
	}
	if result.Score > sess.HighScore {
		sess.newRecord = true
		sess.HighScore = result.Score
		sess.Notice = fmt.Sprintf(sess.Config.Messages.NewHighScore, result.Score)
	}
	return result
}

// recordAsync writes the score without blocking the caller
func (s *gameServiceImpl) recordAsync(result score.Result) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ok, err := s.scores.Record(s.appID, result)
		if err != nil {
			log.Printf("[SCORE] Warning: failed to save score %d for session %s: %v", result.Score, result.SessionID, err)
			return
		}
		if ok {
			log.Printf("[SCORE] new high score %d (session %s, run %s)", result.Score, result.SessionID, result.RunID)
		}
	}()
}

func (s *gameServiceImpl) loadHighScore() int {
	best, err := s.scores.HighScore(s.appID)
	if err != nil {
		log.Printf("[SCORE] Warning: failed to load high score: %v", err)
		return 0
	}
	return best
}

func (s *gameServiceImpl) session(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

func (s *gameServiceImpl) notify(sessionID string, view *GameView) {
	if s.notifier != nil {
		s.notifier.BroadcastToSession(sessionID, view)
	}
}

func (s *gameServiceImpl) view(sess *Session) *GameView {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.viewLocked()
}

// infoLocked builds the session summary. Must be called with sess.mu held.
func (s *gameServiceImpl) infoLocked(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     sess.ConfigID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		State:          sess.viewLocked(),
		GameConfig:     sess.Config,
	}
}

// viewLocked builds the session view. Must be called with sess.mu held.
func (sess *Session) viewLocked() *GameView {
	running := false
	if sess.Loop != nil && sess.Phase == PhasePlaying {
		running = sess.Loop.Running()
	}
	return &GameView{
		Snapshot:  sess.Engine.Snapshot(),
		SessionID: sess.ID,
		Phase:     sess.Phase,
		RunID:     sess.RunID,
		HighScore: sess.HighScore,
		Running:   running,
		Notice:    sess.Notice,
	}
}
