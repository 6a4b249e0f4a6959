// Package evloop implements the single-goroutine event loop that drives
// asyncurl sessions.
//
// A [Loop] runs callbacks, one-shot timers and socket watchers on one
// goroutine. Everything scheduled on a loop executes on the goroutine that
// called [Loop.Run]; the only entry points safe to use from other goroutines
// are [Loop.Post], [Loop.Stop], [Timer.Arm], [Timer.Cancel] and
// [Watcher.Signal], which marshal onto the loop.
//
// The loop has no poller of its own: socket readiness is injected by the
// embedding program through [Watcher.Signal]. This keeps the package free of
// platform selectors and makes loops fully deterministic under test.
package evloop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunning is returned by [Loop.Run] when the loop is already running.
var ErrRunning = errors.New("loop already running")

// Loop is a single-goroutine scheduler for callbacks, timers and watchers.
// The zero value is not usable; create loops with [New].
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	timers  map[*Timer]struct{}
	running bool
	stopped bool

	wakeCh chan struct{}
}

// New creates an idle loop. Start it with [Loop.Run].
func New() *Loop {
	return &Loop{
		timers: make(map[*Timer]struct{}),
		wakeCh: make(chan struct{}, 1),
	}
}

// Run executes the loop on the calling goroutine until [Loop.Stop] is called
// or ctx is cancelled. It returns nil on Stop and the context's error on
// cancellation. A stopped loop can be run again.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrRunning
	}
	l.running = true
	l.stopped = false
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		for {
			fn, ok := l.pop()
			if !ok {
				break
			}
			fn()
			if l.isStopped() {
				return nil
			}
		}

		l.fireDue(time.Now())
		if l.isStopped() {
			return nil
		}
		if l.hasPending() {
			continue
		}

		var (
			tm     *time.Timer
			timerC <-chan time.Time
		)
		if next, ok := l.nextDeadline(); ok {
			d := time.Until(next)
			if d < 0 {
				d = 0
			}
			tm = time.NewTimer(d)
			timerC = tm.C
		}

		select {
		case <-ctx.Done():
			if tm != nil {
				tm.Stop()
			}
			return ctx.Err()
		case <-l.wakeCh:
		case <-timerC:
		}
		if tm != nil {
			tm.Stop()
		}
	}
}

// Stop makes Run return after the currently executing callback. Safe to call
// from any goroutine, including loop callbacks.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.wake()
}

// Post schedules fn to run on the loop goroutine. Safe to call from any
// goroutine; posting from a loop callback never blocks.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.wake()
}

// Tick runs queued callbacks and due timers until the loop is idle, without
// blocking. It lets tests and embedders drive the loop one pass at a time
// instead of dedicating a goroutine to [Loop.Run].
func (l *Loop) Tick() {
	now := time.Now()
	for {
		ran := false
		for {
			fn, ok := l.pop()
			if !ok {
				break
			}
			fn()
			ran = true
		}
		if l.fireDue(now) {
			ran = true
		}
		if !ran {
			return
		}
	}
}

func (l *Loop) wake() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) hasPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) > 0
}

func (l *Loop) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}
