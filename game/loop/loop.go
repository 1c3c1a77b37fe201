package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wricardo/snek/game/engine"
)

// Target is what the loop drives
type Target interface {
	Tick() engine.Event
	TickInterval() time.Duration
}

// Loop runs ticks on a timer until paused or a terminal event occurs
type Loop struct {
	target Target
	onTick func(engine.Event)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	ticks atomic.Uint64
}

// Option configures a Loop
type Option func(*Loop)

// WithTickHandler registers a callback invoked after every tick from the loop
// goroutine. The handler must not call Pause.
func WithTickHandler(fn func(engine.Event)) Option {
	return func(l *Loop) {
		l.onTick = fn
	}
}

// New creates a paused loop for the target
func New(target Target, opts ...Option) *Loop {
	l := &Loop{target: target}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resume starts the schedule. It returns false if a schedule is already active.
func (l *Loop) Resume(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	go l.run(runCtx, done)
	return true
}

// Pause cancels the outstanding wait and blocks until the schedule goroutine
// has exited. It returns false if the loop was not running.
func (l *Loop) Pause() bool {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// Running reports whether a schedule is active
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Ticks returns the number of ticks this loop has executed
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer func() {
		l.mu.Lock()
		if l.done == done {
			l.cancel()
			l.cancel, l.done = nil, nil
		}
		l.mu.Unlock()
		close(done)
	}()

	for {
		timer := time.NewTimer(l.target.TickInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		ev := l.target.Tick()
		l.ticks.Add(1)
		if l.onTick != nil {
			l.onTick(ev)
		}
		if ev.Terminal() {
			return
		}
	}
}
