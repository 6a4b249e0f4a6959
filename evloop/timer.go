package evloop

import (
	"sync"
	"time"
)

// Timer is a one-shot timer bound to a loop. Arming it replaces any pending
// deadline, so a timer has at most one expiry outstanding. The callback runs
// on the loop goroutine.
type Timer struct {
	loop *Loop
	fn   func()

	mu     sync.Mutex
	when   time.Time
	gen    uint64
	armed  bool
	closed bool
}

// NewTimer registers a one-shot timer on the loop. The returned timer is
// disarmed; schedule it with [Timer.Arm].
func (l *Loop) NewTimer(fn func()) *Timer {
	t := &Timer{loop: l, fn: fn}
	l.mu.Lock()
	l.timers[t] = struct{}{}
	l.mu.Unlock()
	return t
}

// Arm schedules the timer to fire after d, replacing any pending deadline.
// A non-positive duration fires on the next loop pass.
func (t *Timer) Arm(d time.Duration) {
	if d < 0 {
		d = 0
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.gen++
	t.armed = true
	t.when = time.Now().Add(d)
	t.mu.Unlock()
	t.loop.wake()
}

// Cancel disarms the timer. A deadline already collected by the loop but not
// yet delivered is suppressed.
func (t *Timer) Cancel() {
	t.mu.Lock()
	t.gen++
	t.armed = false
	t.mu.Unlock()
}

// Armed reports whether a deadline is pending.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Close disarms the timer and removes it from the loop. A closed timer
// ignores further Arm calls.
func (t *Timer) Close() {
	t.mu.Lock()
	t.gen++
	t.armed = false
	t.closed = true
	t.mu.Unlock()

	t.loop.mu.Lock()
	delete(t.loop.timers, t)
	t.loop.mu.Unlock()
}

// fireDue runs the callback of every timer due at now. Timers rearmed or
// cancelled between collection and delivery are skipped via their
// generation counter.
func (l *Loop) fireDue(now time.Time) bool {
	type due struct {
		t   *Timer
		gen uint64
	}

	l.mu.Lock()
	var dues []due
	for t := range l.timers {
		t.mu.Lock()
		if t.armed && !t.when.After(now) {
			dues = append(dues, due{t, t.gen})
		}
		t.mu.Unlock()
	}
	l.mu.Unlock()

	fired := false
	for _, d := range dues {
		d.t.mu.Lock()
		if !d.t.armed || d.t.gen != d.gen {
			d.t.mu.Unlock()
			continue
		}
		d.t.armed = false
		d.t.mu.Unlock()

		d.t.fn()
		fired = true
	}
	return fired
}

// nextDeadline reports the earliest pending timer deadline.
func (l *Loop) nextDeadline() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		next  time.Time
		found bool
	)
	for t := range l.timers {
		t.mu.Lock()
		if t.armed && (!found || t.when.Before(next)) {
			next = t.when
			found = true
		}
		t.mu.Unlock()
	}
	return next, found
}
