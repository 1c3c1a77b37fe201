package terminal

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/wricardo/snek/game/service"
)

const (
	statusRows = 1
	boardTop   = statusRows

	headRune   = '@'
	bodyRune   = 'o'
	foodRune   = '*'
	borderRune = '#'
)

var (
	statusStyle  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	borderStyle  = tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	headStyle    = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	bodyStyle    = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	foodStyle    = tcell.StyleDefault.Foreground(tcell.ColorRed)
	overlayStyle = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	flashStyle   = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// GridFor returns the largest grid that fits a terminal of the given size
// below the status line and inside the border.
func GridFor(screenWidth, screenHeight int) (int, int) {
	return screenWidth - 2, screenHeight - statusRows - 2
}

// Frame is everything the renderer draws in one pass
type Frame struct {
	View    *service.GameView
	Title   string
	Welcome string
	Flash   string
}

// Renderer handles drawing the game to the screen.
type Renderer struct {
	screen *Screen
}

// NewRenderer creates a new renderer for the given screen.
func NewRenderer(screen *Screen) *Renderer {
	return &Renderer{screen: screen}
}

// Render draws the status line, the board and the phase overlay.
func (r *Renderer) Render(f Frame) {
	r.screen.Clear()

	view := f.View
	if view == nil {
		view = &service.GameView{Phase: service.PhaseStart}
	}

	r.renderStatus(view, f.Title)
	if view.Phase != service.PhaseStart && view.Width > 0 && view.Height > 0 {
		r.renderBoard(view)
	}
	r.renderOverlay(view, f.Welcome)

	if f.Flash != "" {
		_, height := r.screen.Size()
		r.screen.DrawText(0, height-1, f.Flash, flashStyle)
	}

	r.screen.Show()
}

func (r *Renderer) renderStatus(view *service.GameView, title string) {
	status := fmt.Sprintf("Score %d | High %d | Speed %.2f | %s", view.Score, view.HighScore, view.Speed, view.Phase)
	r.screen.DrawText(0, 0, status, statusStyle)

	width, _ := r.screen.Size()
	if x := width - len(title); title != "" && x > len(status)+1 {
		r.screen.DrawText(x, 0, title, borderStyle)
	}
}

func (r *Renderer) renderBoard(view *service.GameView) {
	right, bottom := view.Width+1, boardTop+view.Height+1
	for x := 0; x <= right; x++ {
		r.screen.SetContent(x, boardTop, borderRune, borderStyle)
		r.screen.SetContent(x, bottom, borderRune, borderStyle)
	}
	for y := boardTop; y <= bottom; y++ {
		r.screen.SetContent(0, y, borderRune, borderStyle)
		r.screen.SetContent(right, y, borderRune, borderStyle)
	}

	cell := func(x, y int, ch rune, style tcell.Style) {
		if x < 0 || x >= view.Width || y < 0 || y >= view.Height {
			return
		}
		r.screen.SetContent(x+1, boardTop+1+y, ch, style)
	}

	for _, p := range view.Food {
		cell(p.X, p.Y, foodRune, foodStyle)
	}
	// Tail first so the head wins on overlap
	for i := len(view.Body) - 1; i > 0; i-- {
		cell(view.Body[i].X, view.Body[i].Y, bodyRune, bodyStyle)
	}
	if len(view.Body) > 0 {
		cell(view.Body[0].X, view.Body[0].Y, headRune, headStyle)
	}
}

func (r *Renderer) renderOverlay(view *service.GameView, welcome string) {
	var lines []string
	switch view.Phase {
	case service.PhaseStart:
		if welcome == "" {
			welcome = "snek"
		}
		lines = []string{welcome, "", "space to start | q to quit"}
		if view.HighScore > 0 {
			lines = append(lines, fmt.Sprintf("high score %d", view.HighScore))
		}
	case service.PhasePaused:
		lines = []string{"PAUSED", "space to resume | . to step"}
	case service.PhaseGameOver:
		lines = []string{"GAME OVER", fmt.Sprintf("score %d", view.Score), "r to replay | q to quit"}
	}
	if view.Notice != "" && view.Phase != service.PhasePaused {
		lines = append(lines, view.Notice)
	}
	if len(lines) == 0 {
		return
	}

	width, height := r.screen.Size()
	top := (height - len(lines)) / 2
	for i, line := range lines {
		x := (width - len([]rune(line))) / 2
		if x < 0 {
			x = 0
		}
		r.screen.DrawText(x, top+i, line, overlayStyle)
	}
}
