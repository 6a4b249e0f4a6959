package asyncurl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/MericLuc/asyncurl/engine"
	"github.com/MericLuc/asyncurl/evloop"
)

// Session drives a set of transfers concurrently from an event loop,
// without ever blocking. It wraps exactly one engine multi context and
// bridges the engine's scheduling requests to loop timers and watchers.
//
// A session belongs to its loop goroutine: every method must be called from
// there, and all callbacks are delivered there. The loop must outlive the
// session.
//
// A session that stops, through [Session.Close] or an engine failure, is
// permanently unusable; create a new one.
type Session struct {
	loop   *evloop.Loop
	mctx   engine.MultiContext
	logger *slog.Logger
	tracer trace.Tracer
	errCb  func(error)

	timer     *evloop.Timer
	sockets   *socketRegistry
	transfers map[engine.TransferHandle]*Transfer
	spans     map[engine.TransferHandle]trace.Span

	// running mirrors the engine's count of in-flight transfers. It only
	// decides whether Add must kick the engine; completion delivery never
	// depends on it.
	running int
	stopped bool
}

// NewSession creates a session scheduling its transfers on loop, backed by
// eng. The session registers its scheduling hooks with the engine before
// returning, so the engine can request timers and socket interest from the
// first Add on.
func NewSession(loop *evloop.Loop, eng engine.Engine, optFns ...SessionOption) (*Session, error) {
	if loop == nil {
		return nil, fmt.Errorf("loop: %w", ErrBadParam)
	}
	if eng == nil {
		return nil, fmt.Errorf("engine: %w", ErrBadParam)
	}

	var opts sessionOptions
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying session option: %w", err)
		}
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.tracer == nil {
		opts.tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}

	mctx, err := eng.NewMulti()
	if err != nil {
		return nil, engineErr("new multi", err)
	}

	s := &Session{
		loop:      loop,
		mctx:      mctx,
		logger:    opts.logger.With("session", uuid.NewString()),
		tracer:    opts.tracer,
		transfers: make(map[engine.TransferHandle]*Transfer),
		spans:     make(map[engine.TransferHandle]trace.Span),
	}
	s.timer = loop.NewTimer(s.onTimer)
	s.sockets = newSocketRegistry(loop, s.onSocketEvent)
	mctx.SetHooks(sessionHooks{s})

	return s, nil
}

// Add hands control of the transfer over to the session. The session
// schedules it concurrently with its other transfers and releases it
// through the done callback when it finishes.
//
// A transfer can only be added once, and only while unowned; a stopped
// session accepts nothing. Adding the first transfer to an idle session
// kicks the engine once so it can announce its initial timer and socket
// interest.
func (s *Session) Add(t *Transfer) error {
	if t == nil {
		return fmt.Errorf("transfer: %w", ErrBadParam)
	}
	if s.stopped {
		return ErrSessionStopped
	}
	if t.owner == s {
		return ErrAlreadyAdded
	}
	if t.owner != nil {
		return ErrOwnedElsewhere
	}

	if err := s.mctx.Add(t.handle); err != nil {
		return engineErr("add", err)
	}
	t.owner = s
	s.transfers[t.handle] = t
	s.startSpan(t)

	s.logger.Debug("transfer added", "transfer", t.id, "owned", len(s.transfers))

	if s.running == 0 {
		if err := s.action(engine.TimeoutSocket, 0); err != nil {
			return err
		}
	}
	return nil
}

// Remove takes the transfer back from the session without finishing it. The
// done callback is not invoked, and the transfer can immediately be reused,
// including on another session.
func (s *Session) Remove(t *Transfer) error {
	if t == nil {
		return fmt.Errorf("transfer: %w", ErrBadParam)
	}
	if t.owner == nil {
		return ErrNotOwned
	}
	if t.owner != s {
		return ErrOwnedElsewhere
	}

	if err := s.mctx.Remove(t.handle); err != nil {
		return engineErr("remove", err)
	}
	t.owner = nil
	delete(s.transfers, t.handle)
	s.endSpan(t.handle, nil)

	s.logger.Debug("transfer removed", "transfer", t.id, "owned", len(s.transfers))
	return nil
}

// Close stops the session: every owned transfer is detached and its done
// callback invoked once with [ErrSessionStopped], the loop timer and all
// watchers are released, and the engine context is closed. Close is
// idempotent and always succeeds.
func (s *Session) Close() error {
	s.stop(nil)
	return nil
}

// Len reports the number of transfers currently owned by the session.
func (s *Session) Len() int {
	return len(s.transfers)
}

// Context exposes the underlying engine context. Reach for it only when an
// engine feature has no wrapper equivalent.
func (s *Session) Context() engine.MultiContext {
	return s.mctx
}

// OnError replaces the session error callback. It is invoked after an
// abnormal stop, when every transfer has been notified, with the failure
// that brought the session down.
func (s *Session) OnError(fn func(error)) {
	s.errCb = fn
}

// SetMaxConcurrentStreams caps concurrent streams per multiplexed
// connection.
func (s *Session) SetMaxConcurrentStreams(max int64) error {
	return s.setLong(engine.MultiMaxConcurrentStreams, max)
}

// SetMaxHostConnections caps simultaneously open connections to a single
// host.
func (s *Session) SetMaxHostConnections(max int64) error {
	return s.setLong(engine.MultiMaxHostConnections, max)
}

// SetMaxTotalConnections caps simultaneously open connections overall.
// Transfers beyond the cap wait for a free slot.
func (s *Session) SetMaxTotalConnections(max int64) error {
	return s.setLong(engine.MultiMaxTotalConnections, max)
}

// SetMaxConnects bounds the cache of finished connections kept around for
// reuse.
func (s *Session) SetMaxConnects(max int64) error {
	return s.setLong(engine.MultiMaxConnects, max)
}

// SetMaxPipelineLength caps queued requests on one pipelined connection
// before a new connection is opened.
func (s *Session) SetMaxPipelineLength(max int64) error {
	return s.setLong(engine.MultiMaxPipelineLength, max)
}

// SetPipelining selects the engine's connection multiplexing strategy.
func (s *Session) SetPipelining(mask int64) error {
	return s.setLong(engine.MultiPipelining, mask)
}

func (s *Session) setLong(opt engine.MultiOption, val int64) error {
	if s.stopped {
		return ErrSessionStopped
	}
	if err := s.mctx.SetLong(opt, val); err != nil {
		return engineErr("set option", err)
	}
	return nil
}

// action drives the engine with a readiness or timeout report and delivers
// whatever completions it produced. An engine failure here is fatal to the
// session.
func (s *Session) action(sock engine.Socket, ready engine.ReadyOps) error {
	running, err := s.mctx.Action(sock, ready)
	if err != nil {
		s.stop(err)
		return engineErr("action", err)
	}
	if running != s.running {
		s.logger.Debug("running transfers", "count", running)
	}
	s.running = running

	// Completions can be pending even when the running count did not
	// move, so drain after every action.
	s.drain()
	return nil
}

// drain pops completion messages and releases the finished transfers. A
// message for an unknown handle is discarded. The done callback runs after
// the transfer has been released, so it may immediately re-add it.
func (s *Session) drain() {
	for {
		msg, ok := s.mctx.PollMessage()
		if !ok {
			return
		}

		t, ok := s.transfers[msg.Handle]
		if !ok {
			continue
		}

		s.endSpan(msg.Handle, msg.Result)
		if err := s.Remove(t); err != nil {
			s.logger.Error("releasing finished transfer", "transfer", t.id, "error", err)
		}
		s.logger.Debug("transfer finished", "transfer", t.id, "result", msg.Result)

		if t.cbs.done != nil {
			t.cbs.done(t, msg.Result)
		}
	}
}

// stop detaches every owned transfer, notifying each exactly once, then
// releases the timer, the watchers and the engine context. cause is nil
// for a normal close; otherwise the error callback fires last.
func (s *Session) stop(cause error) {
	if s.stopped {
		return
	}
	s.stopped = true
	s.running = 0

	for h, t := range s.transfers {
		delete(s.transfers, h)
		t.owner = nil
		s.endSpan(h, ErrSessionStopped)

		if t.cbs.done != nil {
			t.cbs.done(t, ErrSessionStopped)
		}
	}

	s.timer.Close()
	s.sockets.closeAll()

	if err := s.mctx.Close(); err != nil {
		s.logger.Error("closing engine context", "error", err)
	}

	if cause == nil {
		s.logger.Debug("session stopped")
		return
	}
	s.logger.Error("session stopped", "error", cause)
	if s.errCb != nil {
		s.errCb(cause)
	}
}

// onSocketEvent receives watcher readiness from the loop.
func (s *Session) onSocketEvent(sock engine.Socket, ready engine.ReadyOps) {
	if s.stopped {
		return
	}
	_ = s.action(sock, ready)
}

// onTimer receives the loop timer expiry requested by the engine.
func (s *Session) onTimer() {
	if s.stopped {
		return
	}
	_ = s.action(engine.TimeoutSocket, 0)
}

func (s *Session) startSpan(t *Transfer) {
	attrs := []attribute.KeyValue{
		attribute.String("transfer.id", t.id.String()),
	}
	if url, ok := t.strings[engine.OptURL]; ok {
		attrs = append(attrs, attribute.String("transfer.url", url))
	}

	_, span := s.tracer.Start(context.Background(), "asyncurl.transfer", trace.WithAttributes(attrs...))
	s.spans[t.handle] = span
}

func (s *Session) endSpan(h engine.TransferHandle, result error) {
	span, ok := s.spans[h]
	if !ok {
		return
	}
	delete(s.spans, h)

	if result != nil {
		span.RecordError(result)
		span.SetStatus(codes.Error, result.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// sessionHooks adapts the session to the engine hook contract without
// exporting hook methods on Session itself.
type sessionHooks struct {
	s *Session
}

// SocketInterest creates, retargets or releases the watcher of a socket.
// The watcher is stored in the engine's socket slot so subsequent calls
// skip the registry lookup.
func (h sessionHooks) SocketInterest(_ engine.TransferHandle, sock engine.Socket, what engine.PollOps, slot any) {
	s := h.s

	if what == engine.PollRemove {
		s.sockets.dispose(sock)
		_ = s.mctx.AssignSocket(sock, nil)
		s.logger.Debug("socket released", "socket", sock)
		return
	}

	w := s.sockets.update(sock, what, slot)
	if slot == nil {
		_ = s.mctx.AssignSocket(sock, w)
	}
	s.logger.Debug("socket interest", "socket", sock, "events", what)
}

// TimerRequest arms or cancels the session's single loop timer.
func (h sessionHooks) TimerRequest(timeoutMS int64) {
	if timeoutMS < 0 {
		h.s.timer.Cancel()
		return
	}
	h.s.timer.Arm(time.Duration(timeoutMS) * time.Millisecond)
}
