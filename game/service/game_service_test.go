package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/wricardo/snek/game/engine"
	"github.com/wricardo/snek/game/score"
	"github.com/wricardo/snek/game/service"
)

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	mu       sync.Mutex
	sessions map[string]*service.Session
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions: make(map[string]*service.Session),
	}
}

func (m *MockSessionManager) Create(id string, config *engine.GameConfig) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Generate ID if empty (mimics real session manager behavior)
	if id == "" {
		id = fmt.Sprintf("t%03d", len(m.sessions)+1)
	}
	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}

	eng, err := engine.NewEngine(config)
	if err != nil {
		return nil, err
	}
	session := service.NewSession(id, config, eng)
	m.sessions[id] = session
	return session, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, service.ErrSessionNotFound
	}
	return session, nil
}

func (m *MockSessionManager) GetOrCreate(id string, config *engine.GameConfig) (*service.Session, error) {
	if session, err := m.Get(id); err == nil {
		return session, nil
	}
	return m.Create(id, config)
}

func (m *MockSessionManager) List() []*service.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	m.mu.Lock()
	session, exists := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !exists {
		return service.ErrSessionNotFound
	}
	session.Close()
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}
	session.Touch()
	return nil
}

// MockConfigManager implements service.ConfigManager for testing
type MockConfigManager struct {
	configs map[string]*engine.GameConfig
}

func testConfig(name string) *engine.GameConfig {
	config := engine.DefaultConfig()
	config.Name = name
	config.Description = name + " rules"
	config.InitialLength = 3
	config.FoodPool = 4
	config.DefaultSpeed = 0
	return config
}

func NewMockConfigManager() *MockConfigManager {
	return &MockConfigManager{
		configs: map[string]*engine.GameConfig{
			"classic": testConfig("Classic"),
			"tiny":    testConfig("Tiny"),
		},
	}
}

func (m *MockConfigManager) LoadConfig(name string) (*engine.GameConfig, error) {
	config, exists := m.configs[name]
	if !exists {
		return nil, service.ErrConfigNotFound
	}
	return config, nil
}

func (m *MockConfigManager) ListConfigs() ([]*service.ConfigInfo, error) {
	var result []*service.ConfigInfo
	for id, config := range m.configs {
		result = append(result, &service.ConfigInfo{ConfigID: id, Name: config.Name})
	}
	return result, nil
}

func (m *MockConfigManager) GetDefault() *engine.GameConfig {
	return m.configs["classic"]
}

func (m *MockConfigManager) SaveConfig(name string, config *engine.GameConfig) error {
	m.configs[name] = config
	return nil
}

// MockNotifier records everything the service pushes
type MockNotifier struct {
	mu     sync.Mutex
	views  []*service.GameView
	events []string
}

func (n *MockNotifier) BroadcastToSession(sessionID string, view *service.GameView) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.views = append(n.views, view)
}

func (n *MockNotifier) BroadcastEvent(sessionID string, event string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sessionID+":"+event)
}

func (n *MockNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func (n *MockNotifier) ViewCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.views)
}

// MockStore implements score.Store with function fields
type MockStore struct {
	HighScoreFunc func(appID string) (int, error)
	RecordFunc    func(appID string, result score.Result) (bool, error)
}

func (s *MockStore) HighScore(appID string) (int, error) {
	if s.HighScoreFunc != nil {
		return s.HighScoreFunc(appID)
	}
	return 0, nil
}

func (s *MockStore) Record(appID string, result score.Result) (bool, error) {
	if s.RecordFunc != nil {
		return s.RecordFunc(appID, result)
	}
	return false, nil
}

type fixture struct {
	svc      service.GameService
	sessions *MockSessionManager
	notifier *MockNotifier
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	f := &fixture{
		sessions: NewMockSessionManager(),
		notifier: &MockNotifier{},
	}
	opts = append([]service.Option{service.WithNotifier(f.notifier), service.WithSeed(7)}, opts...)
	f.svc = service.NewGameService(f.sessions, NewMockConfigManager(), opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		f.svc.Close(ctx)
	})
	return f
}

// startPaused starts a slow game and pauses it before the first tick
func (f *fixture) startPaused(t *testing.T, id string, width, height int) *service.GameView {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.StartGame(ctx, id, width, height); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	view, err := f.svc.Pause(ctx, id)
	if err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	return view
}

// engineFor returns the engine of a paused session
func (f *fixture) engineFor(t *testing.T, id string) engine.Engine {
	t.Helper()
	sess, err := f.sessions.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	return sess.Engine
}

func waitForPhase(t *testing.T, svc service.GameService, id string, want service.Phase) *service.GameView {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view, err := svc.GetGameState(context.Background(), id)
		if err != nil {
			t.Fatalf("GetGameState failed: %v", err)
		}
		if view.Phase == want {
			return view
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for phase %s", want)
	return nil
}

func TestGameService_CreateSession(t *testing.T) {
	store := score.NewMemoryStore()
	store.Record("snek", score.Result{Score: 12})
	f := newFixture(t, service.WithScoreStore(store, "snek"))
	ctx := context.Background()

	t.Run("default config", func(t *testing.T) {
		info, err := f.svc.CreateSession(ctx, "")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if info.ConfigName != "classic" {
			t.Errorf("Expected config id classic, got %s", info.ConfigName)
		}
		if info.State.Phase != service.PhaseStart {
			t.Errorf("Expected phase start, got %s", info.State.Phase)
		}
		if info.State.HighScore != 12 {
			t.Errorf("Expected high score 12 from store, got %d", info.State.HighScore)
		}
	})

	t.Run("named config", func(t *testing.T) {
		info, err := f.svc.CreateSession(ctx, "tiny")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if info.ConfigName != "tiny" || info.GameConfig.Name != "Tiny" {
			t.Errorf("Unexpected config: %s / %s", info.ConfigName, info.GameConfig.Name)
		}
	})

	t.Run("unknown config", func(t *testing.T) {
		_, err := f.svc.CreateSession(ctx, "nope")
		if !errors.Is(err, service.ErrConfigNotFound) {
			t.Fatalf("Expected ErrConfigNotFound, got %v", err)
		}
		if !strings.Contains(err.Error(), "Available configs") {
			t.Errorf("Expected available configs in error, got %q", err)
		}
	})
}

func TestGameService_PhaseGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "")

	tests := []struct {
		name string
		call func() error
	}{
		{"pause", func() error { _, err := f.svc.Pause(ctx, info.ID); return err }},
		{"resume", func() error { _, err := f.svc.Resume(ctx, info.ID); return err }},
		{"step", func() error { _, err := f.svc.Step(ctx, info.ID); return err }},
		{"resize", func() error { _, err := f.svc.Resize(ctx, info.ID, 20, 20); return err }},
		{"turn", func() error { _, err := f.svc.Turn(ctx, info.ID, engine.Up); return err }},
		{"exit", func() error { _, err := f.svc.ExitGame(ctx, info.ID); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, service.ErrInvalidPhase) {
				t.Errorf("Expected ErrInvalidPhase on start screen, got %v", err)
			}
		})
	}

	t.Run("unknown session", func(t *testing.T) {
		if _, err := f.svc.StartGame(ctx, "zzzz", 20, 20); !errors.Is(err, service.ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
		if _, err := f.svc.GetGameState(ctx, "zzzz"); !errors.Is(err, service.ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestGameService_StartGame_InvalidGrid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "")

	if _, err := f.svc.StartGame(ctx, info.ID, 0, 10); !errors.Is(err, engine.ErrInvalidGridSize) {
		t.Errorf("Expected ErrInvalidGridSize, got %v", err)
	}
	if _, err := f.svc.StartGame(ctx, info.ID, 2, 10); !errors.Is(err, engine.ErrGridTooSmall) {
		t.Errorf("Expected ErrGridTooSmall, got %v", err)
	}

	view, _ := f.svc.GetGameState(ctx, info.ID)
	if view.Phase != service.PhaseStart {
		t.Errorf("Expected failed start to stay on start screen, got %s", view.Phase)
	}
}

func TestGameService_PauseResumeStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "")

	view := f.startPaused(t, info.ID, 20, 10)
	if view.Phase != service.PhasePaused || view.Running {
		t.Fatalf("Expected paused and not running, got %s running=%v", view.Phase, view.Running)
	}
	if view.Notice != "Paused" {
		t.Errorf("Expected paused notice, got %q", view.Notice)
	}
	if view.RunID == uuid.Nil || view.Width != 20 || view.Height != 10 {
		t.Errorf("Unexpected view after start: %+v", view)
	}

	// Pausing twice is a no-op
	if again, err := f.svc.Pause(ctx, info.ID); err != nil || again.Phase != service.PhasePaused {
		t.Errorf("Expected idempotent pause, got %v / %v", again, err)
	}

	// Starting again needs the game to be over first
	if _, err := f.svc.StartGame(ctx, info.ID, 20, 10); !errors.Is(err, service.ErrInvalidPhase) {
		t.Errorf("Expected ErrInvalidPhase for start while paused, got %v", err)
	}

	before := view.Ticks
	head := view.Body[0]
	step, err := f.svc.Step(ctx, info.ID)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if step.State.Ticks != before+1 {
		t.Errorf("Expected exactly one tick, got %d -> %d", before, step.State.Ticks)
	}
	if step.State.Body[0] != (engine.Position{X: head.X - 1, Y: head.Y}) {
		t.Errorf("Expected head to move left from %v, got %v", head, step.State.Body[0])
	}
	if step.Event.Type != engine.EventNone {
		t.Errorf("Expected no event, got %s", step.Event.Type)
	}

	// Heading rules apply while paused
	turn, err := f.svc.Turn(ctx, info.ID, engine.Right)
	if err != nil || turn.Accepted {
		t.Errorf("Expected reverse turn to be rejected, got %+v / %v", turn, err)
	}
	turn, err = f.svc.Turn(ctx, info.ID, engine.Up)
	if err != nil || !turn.Accepted || turn.State.Heading != engine.Up {
		t.Errorf("Expected up turn to be accepted, got %+v / %v", turn, err)
	}

	resumed, err := f.svc.Resume(ctx, info.ID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.Phase != service.PhasePlaying || resumed.Notice != "" {
		t.Errorf("Expected playing without notice, got %s %q", resumed.Phase, resumed.Notice)
	}
	if _, err := f.svc.Step(ctx, info.ID); !errors.Is(err, service.ErrInvalidPhase) {
		t.Errorf("Expected step to require pause, got %v", err)
	}
	if again, err := f.svc.Resume(ctx, info.ID); err != nil || again.Phase != service.PhasePlaying {
		t.Errorf("Expected idempotent resume, got %v", err)
	}
}

func TestGameService_StepIntoWall(t *testing.T) {
	var (
		mu       sync.Mutex
		recorded []score.Result
	)
	store := &MockStore{
		RecordFunc: func(appID string, result score.Result) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			recorded = append(recorded, result)
			return true, nil
		},
	}
	f := newFixture(t, service.WithScoreStore(store, "snek"))
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "")
	paused := f.startPaused(t, info.ID, 20, 10)

	// Head on the left edge, body of four, heading left
	err := f.engineFor(t, info.ID).SetState(&engine.GameState{
		Width:       20,
		Height:      10,
		Body:        []engine.Position{{X: 0, Y: 5}, {X: 1, Y: 5}, {X: 2, Y: 5}, {X: 3, Y: 5}},
		Heading:     engine.Left,
		Initialized: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	step, err := f.svc.Step(ctx, info.ID)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if step.Event.Type != engine.WallCollision {
		t.Fatalf("Expected wall collision, got %s", step.Event.Type)
	}
	if step.State.Phase != service.PhaseGameOver {
		t.Errorf("Expected game_over, got %s", step.State.Phase)
	}
	if step.State.Score != 1 || step.State.HighScore != 1 {
		t.Errorf("Expected score and high score 1, got %d / %d", step.State.Score, step.State.HighScore)
	}
	if step.State.Notice != "New high score: 1!" {
		t.Errorf("Expected new high score notice, got %q", step.State.Notice)
	}

	events := f.notifier.Events()
	if len(events) == 0 || events[len(events)-1] != info.ID+":game_over" {
		t.Errorf("Expected game_over broadcast, got %v", events)
	}

	// Flush the background write
	if err := f.svc.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(recorded) != 1 {
		t.Fatalf("Expected one recorded score, got %d", len(recorded))
	}
	if r := recorded[0]; r.Score != 1 || r.Reason != "wall_collision" || r.RunID != paused.RunID || r.SessionID != info.ID {
		t.Errorf("Unexpected recorded result: %+v", r)
	}
}

func TestGameService_LoopEndsGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "")

	if _, err := f.svc.SetSpeed(ctx, info.ID, 1); err != nil {
		t.Fatal(err)
	}

	// A 3-wide grid spawns the head on the left edge, the first tick hits the wall
	first, err := f.svc.StartGame(ctx, info.ID, 3, 3)
	if err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	over := waitForPhase(t, f.svc, info.ID, service.PhaseGameOver)
	if over.LastEvent == nil || over.LastEvent.Type != engine.WallCollision {
		t.Errorf("Expected wall collision as last event, got %+v", over.LastEvent)
	}
	if over.Running {
		t.Error("Expected loop to be stopped after game over")
	}
	if f.notifier.ViewCount() == 0 {
		t.Error("Expected tick snapshots to be broadcast")
	}

	// Replay starts a fresh run from game over
	replay, err := f.svc.StartGame(ctx, info.ID, 3, 3)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if replay.RunID == first.RunID {
		t.Error("Expected a new run ID for the replay")
	}
	if replay.Speed != 1 {
		t.Errorf("Expected session speed to carry over, got %v", replay.Speed)
	}
}

func TestGameService_ExitGame(t *testing.T) {
	store := score.NewMemoryStore()
	f := newFixture(t, service.WithScoreStore(store, "snek"))
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "")
	f.startPaused(t, info.ID, 20, 10)

	err := f.engineFor(t, info.ID).SetState(&engine.GameState{
		Width:       20,
		Height:      10,
		Body:        []engine.Position{{X: 5, Y: 5}, {X: 6, Y: 5}, {X: 7, Y: 5}, {X: 8, Y: 5}, {X: 9, Y: 5}, {X: 10, Y: 5}},
		Heading:     engine.Left,
		Initialized: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	exit, err := f.svc.ExitGame(ctx, info.ID)
	if err != nil {
		t.Fatalf("ExitGame failed: %v", err)
	}
	if exit.Score != 3 || !exit.NewRecord || exit.HighScore != 3 {
		t.Errorf("Unexpected exit result: %+v", exit)
	}
	if exit.State.Phase != service.PhaseStart {
		t.Errorf("Expected start phase after exit, got %s", exit.State.Phase)
	}

	if err := f.svc.Close(ctx); err != nil {
		t.Fatal(err)
	}
	best, _ := store.HighScore("snek")
	if best != 3 {
		t.Errorf("Expected stored high score 3, got %d", best)
	}

	hs, err := f.svc.GetHighScore(ctx)
	if err != nil || hs.HighScore != 3 || hs.AppID != "snek" {
		t.Errorf("Unexpected high score info: %+v / %v", hs, err)
	}
}

func TestGameService_SetSpeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "")

	tests := []struct {
		speed      float64
		wantSpeed  float64
		intervalMS int64
	}{
		{0.5, 0.5, 155},
		{5, 1, 10},
		{-1, 0, 300},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.speed), func(t *testing.T) {
			view, err := f.svc.SetSpeed(ctx, info.ID, tt.speed)
			if err != nil {
				t.Fatal(err)
			}
			if view.Speed != tt.wantSpeed || view.TickIntervalMS != tt.intervalMS {
				t.Errorf("Expected speed %v (%dms), got %v (%dms)", tt.wantSpeed, tt.intervalMS, view.Speed, view.TickIntervalMS)
			}
		})
	}
}

func TestGameService_ResizeAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "")
	f.startPaused(t, info.ID, 20, 10)

	view, err := f.svc.Resize(ctx, info.ID, 30, 12)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if view.Width != 30 || view.Height != 12 {
		t.Errorf("Expected 30x12, got %dx%d", view.Width, view.Height)
	}
	if _, err := f.svc.Resize(ctx, info.ID, 2, 12); !errors.Is(err, engine.ErrGridTooSmall) {
		t.Errorf("Expected ErrGridTooSmall, got %v", err)
	}

	if _, err := f.svc.Resume(ctx, info.ID); err != nil {
		t.Fatal(err)
	}
	sess, _ := f.sessions.Get(info.ID)
	if err := f.svc.DeleteSession(ctx, info.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if sess.Loop.Running() {
		t.Error("Expected loop to stop when the session is deleted")
	}
	if _, err := f.svc.GetSession(ctx, info.ID); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := f.svc.DeleteSession(ctx, info.ID); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestGameService_ListSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.svc.CreateSession(ctx, "tiny"); err != nil {
			t.Fatal(err)
		}
	}
	sessions, err := f.svc.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 3 {
		t.Errorf("Expected 3 sessions, got %d", len(sessions))
	}
	for _, s := range sessions {
		if s.ConfigName != "tiny" || s.State == nil {
			t.Errorf("Unexpected session info: %+v", s)
		}
	}
}

func TestGameService_CloseTimesOut(t *testing.T) {
	release := make(chan struct{})
	store := &MockStore{
		RecordFunc: func(appID string, result score.Result) (bool, error) {
			<-release
			return true, nil
		},
	}
	f := newFixture(t, service.WithScoreStore(store, "snek"))
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "")
	f.startPaused(t, info.ID, 20, 10)
	if _, err := f.svc.ExitGame(ctx, info.ID); err != nil {
		t.Fatal(err)
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := f.svc.Close(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded while a write is pending, got %v", err)
	}

	close(release)
	if err := f.svc.Close(ctx); err != nil {
		t.Errorf("Expected Close to succeed once writes finish, got %v", err)
	}
}
