package evloop

import (
	"strings"
	"sync"
)

// Events is a bitmask of socket readiness directions.
type Events uint8

const (
	Readable Events = 1 << iota
	Writable
)

func (e Events) String() string {
	var parts []string
	if e&Readable != 0 {
		parts = append(parts, "readable")
	}
	if e&Writable != 0 {
		parts = append(parts, "writable")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Watcher delivers readiness events for one file descriptor to a callback on
// the loop goroutine. Events are injected with [Watcher.Signal] and filtered
// against the current interest mask at delivery time, so raising events for
// a direction nobody asked for is harmless.
type Watcher struct {
	loop *Loop
	fn   func(Events)

	mu       sync.Mutex
	fd       int
	interest Events
	closed   bool
}

// NewWatcher creates a watcher for fd. The watcher starts with an empty
// interest mask and delivers nothing until [Watcher.SetInterest] is called.
func (l *Loop) NewWatcher(fd int, fn func(Events)) *Watcher {
	return &Watcher{loop: l, fn: fn, fd: fd}
}

// SetFD re-points the watcher at a different file descriptor.
func (w *Watcher) SetFD(fd int) {
	w.mu.Lock()
	w.fd = fd
	w.mu.Unlock()
}

// FD reports the watched file descriptor.
func (w *Watcher) FD() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fd
}

// SetInterest replaces the interest mask. Zero suspends delivery without
// closing the watcher.
func (w *Watcher) SetInterest(ev Events) {
	w.mu.Lock()
	w.interest = ev
	w.mu.Unlock()
}

// Interest reports the current interest mask.
func (w *Watcher) Interest() Events {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.interest
}

// Signal injects readiness for the watched descriptor. The callback is
// invoked on the loop goroutine with the subset of ev that is still of
// interest by then; a disjoint or closed signal is dropped.
func (w *Watcher) Signal(ev Events) {
	w.loop.Post(func() {
		w.mu.Lock()
		deliver := ev & w.interest
		closed := w.closed
		w.mu.Unlock()

		if closed || deliver == 0 || w.fn == nil {
			return
		}
		w.fn(deliver)
	})
}

// Close permanently disables the watcher. Signals already posted but not yet
// delivered are dropped.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	w.interest = 0
	w.mu.Unlock()
}

// Closed reports whether the watcher has been closed.
func (w *Watcher) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
