package asyncurl

import (
	"github.com/MericLuc/asyncurl/engine"
	"github.com/MericLuc/asyncurl/evloop"
)

// socketRegistry owns the loop watchers bridging engine socket interest to
// loop readiness. Watchers are created lazily on first interest, keyed by
// socket, and closed either on an explicit release or wholesale when the
// session stops.
type socketRegistry struct {
	loop     *evloop.Loop
	onEvent  func(engine.Socket, engine.ReadyOps)
	watchers map[engine.Socket]*evloop.Watcher
}

func newSocketRegistry(loop *evloop.Loop, onEvent func(engine.Socket, engine.ReadyOps)) *socketRegistry {
	return &socketRegistry{
		loop:     loop,
		onEvent:  onEvent,
		watchers: make(map[engine.Socket]*evloop.Watcher),
	}
}

// update applies an interest change for a socket, creating its watcher on
// first use. The fd and interest mask are refreshed on every call, whether
// or not they changed. slot short-circuits the lookup when the engine hands
// the watcher back.
func (r *socketRegistry) update(s engine.Socket, what engine.PollOps, slot any) *evloop.Watcher {
	w, ok := slot.(*evloop.Watcher)
	if !ok || w == nil {
		if w, ok = r.watchers[s]; !ok {
			w = r.loop.NewWatcher(int(s), func(ev evloop.Events) {
				r.onEvent(s, readyOps(ev))
			})
		}
	}
	r.watchers[s] = w

	w.SetFD(int(s))
	w.SetInterest(pollEvents(what))
	return w
}

// dispose closes the watcher of a socket the engine is done with. Closing
// before the next loop pass guarantees no stale readiness reaches the
// session.
func (r *socketRegistry) dispose(s engine.Socket) {
	if w, ok := r.watchers[s]; ok {
		w.Close()
		delete(r.watchers, s)
	}
}

// closeAll closes every watcher. Used when the session stops.
func (r *socketRegistry) closeAll() {
	for s, w := range r.watchers {
		w.Close()
		delete(r.watchers, s)
	}
}

// pollEvents translates engine socket interest into loop readiness
// interest.
func pollEvents(what engine.PollOps) evloop.Events {
	var ev evloop.Events
	switch what {
	case engine.PollIn:
		ev = evloop.Readable
	case engine.PollOut:
		ev = evloop.Writable
	case engine.PollInOut:
		ev = evloop.Readable | evloop.Writable
	}
	return ev
}

// readyOps translates loop readiness into the engine's event vocabulary.
func readyOps(ev evloop.Events) engine.ReadyOps {
	var ops engine.ReadyOps
	if ev&evloop.Readable != 0 {
		ops |= engine.ReadyIn
	}
	if ev&evloop.Writable != 0 {
		ops |= engine.ReadyOut
	}
	return ops
}
