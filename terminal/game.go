package terminal

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/wricardo/snek/game/engine"
	"github.com/wricardo/snek/game/service"
)

// speedStep is the change applied by a single +/- key press
const speedStep = 0.1

// Notifier forwards service updates to the screen as interrupt events, so
// the event loop redraws on every tick.
type Notifier struct {
	screen *Screen
}

// NewNotifier creates a notifier that posts to screen
func NewNotifier(screen *Screen) *Notifier {
	return &Notifier{screen: screen}
}

// BroadcastToSession implements service.Notifier
func (n *Notifier) BroadcastToSession(sessionID string, view *service.GameView) {
	// A full queue drops the frame; the next tick carries a fresh one
	n.screen.Interrupt(view)
}

// BroadcastEvent implements service.Notifier
func (n *Notifier) BroadcastEvent(sessionID string, event string, data interface{}) {
	if view, ok := data.(*service.GameView); ok {
		n.screen.Interrupt(view)
	}
}

type quitSignal struct{}

// Game drives one session from the keyboard.
type Game struct {
	screen   *Screen
	renderer *Renderer
	service  service.GameService
	configID string

	sessionID string
	title     string
	welcome   string
	view      *service.GameView
	flash     string
	running   bool
}

// NewGame creates a terminal game for a session using the given config.
func NewGame(screen *Screen, svc service.GameService, configID string) *Game {
	return &Game{
		screen:   screen,
		renderer: NewRenderer(screen),
		service:  svc,
		configID: configID,
	}
}

// Run creates the session and processes events until the player quits or ctx
// is cancelled. Leaving records the score of an unfinished run.
func (g *Game) Run(ctx context.Context) error {
	if err := g.open(ctx); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { g.screen.Interrupt(quitSignal{}) })
	defer stop()

	g.running = true
	for g.running {
		g.render()

		ev := g.screen.PollEvent()
		if ev == nil {
			break
		}
		g.handleEvent(ctx, ev)
	}

	return g.leave()
}

func (g *Game) open(ctx context.Context) error {
	info, err := g.service.CreateSession(ctx, g.configID)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	g.sessionID = info.ID
	g.view = info.State
	if info.GameConfig != nil {
		g.title = info.GameConfig.Name
		g.welcome = info.GameConfig.Messages.Welcome
	}
	return nil
}

// SessionID returns the session the game plays in
func (g *Game) SessionID() string {
	return g.sessionID
}

func (g *Game) render() {
	g.renderer.Render(Frame{View: g.view, Title: g.title, Welcome: g.welcome, Flash: g.flash})
}

// handleEvent processes a single event.
func (g *Game) handleEvent(ctx context.Context, ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		g.flash = ""
		g.handleKeyEvent(ctx, ev)
	case *tcell.EventResize:
		g.screen.Sync()
		g.resize(ctx)
	case *tcell.EventInterrupt:
		switch data := ev.Data().(type) {
		case quitSignal:
			g.running = false
		case *service.GameView:
			if data.SessionID == g.sessionID && !g.stale(data) {
				g.view = data
			}
		}
	}
}

// handleKeyEvent processes keyboard input.
func (g *Game) handleKeyEvent(ctx context.Context, ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		g.running = false
	case tcell.KeyUp:
		g.turn(ctx, engine.Up)
	case tcell.KeyDown:
		g.turn(ctx, engine.Down)
	case tcell.KeyLeft:
		g.turn(ctx, engine.Left)
	case tcell.KeyRight:
		g.turn(ctx, engine.Right)
	case tcell.KeyEnter:
		g.startOrToggle(ctx)

	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			g.running = false
		case 'w', 'W':
			g.turn(ctx, engine.Up)
		case 's', 'S':
			g.turn(ctx, engine.Down)
		case 'a', 'A':
			g.turn(ctx, engine.Left)
		case 'd', 'D':
			g.turn(ctx, engine.Right)
		case ' ', 'p', 'P':
			g.startOrToggle(ctx)
		case 'r', 'R':
			if g.phase() == service.PhaseGameOver {
				g.start(ctx)
			}
		case '.':
			g.step(ctx)
		case '+', '=':
			g.changeSpeed(ctx, speedStep)
		case '-', '_':
			g.changeSpeed(ctx, -speedStep)
		}
	}
}

// stale reports whether a queued update is older than the view already shown
func (g *Game) stale(view *service.GameView) bool {
	return g.view != nil && view.RunID == g.view.RunID && view.Ticks < g.view.Ticks
}

func (g *Game) phase() service.Phase {
	if g.view == nil {
		return service.PhaseStart
	}
	return g.view.Phase
}

func (g *Game) startOrToggle(ctx context.Context) {
	switch g.phase() {
	case service.PhaseStart, service.PhaseGameOver:
		g.start(ctx)
	case service.PhasePlaying:
		g.apply(g.service.Pause(ctx, g.sessionID))
	case service.PhasePaused:
		g.apply(g.service.Resume(ctx, g.sessionID))
	}
}

func (g *Game) start(ctx context.Context) {
	width, height := GridFor(g.screen.Size())
	g.apply(g.service.StartGame(ctx, g.sessionID, width, height))
}

func (g *Game) resize(ctx context.Context) {
	switch g.phase() {
	case service.PhasePlaying, service.PhasePaused:
		width, height := GridFor(g.screen.Size())
		if g.view != nil && g.view.Width == width && g.view.Height == height {
			return
		}
		g.apply(g.service.Resize(ctx, g.sessionID, width, height))
	}
}

func (g *Game) turn(ctx context.Context, d engine.Direction) {
	switch g.phase() {
	case service.PhasePlaying, service.PhasePaused:
	default:
		return
	}
	result, err := g.service.Turn(ctx, g.sessionID, d)
	if err != nil {
		g.showError(err)
		return
	}
	g.view = result.State
}

func (g *Game) step(ctx context.Context) {
	if g.phase() != service.PhasePaused {
		return
	}
	result, err := g.service.Step(ctx, g.sessionID)
	if err != nil {
		g.showError(err)
		return
	}
	g.view = result.State
}

func (g *Game) changeSpeed(ctx context.Context, delta float64) {
	speed := 0.0
	if g.view != nil {
		speed = g.view.Speed
	}
	// Round to the step grid so repeated presses land on 0 and 1 exactly
	speed = math.Round((speed+delta)*10) / 10
	g.apply(g.service.SetSpeed(ctx, g.sessionID, speed))
}

func (g *Game) apply(view *service.GameView, err error) {
	if err != nil {
		g.showError(err)
		return
	}
	g.view = view
}

func (g *Game) showError(err error) {
	switch {
	case errors.Is(err, engine.ErrGridTooSmall), errors.Is(err, engine.ErrInvalidGridSize):
		g.flash = "terminal too small"
	default:
		g.flash = err.Error()
	}
}

// leave ends an unfinished run so its score is recorded
func (g *Game) leave() error {
	if g.sessionID == "" {
		return nil
	}
	_, err := g.service.ExitGame(context.Background(), g.sessionID)
	if err != nil && !errors.Is(err, service.ErrInvalidPhase) {
		return fmt.Errorf("leaving game: %w", err)
	}
	return nil
}
