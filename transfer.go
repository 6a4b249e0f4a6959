package asyncurl

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/MericLuc/asyncurl/engine"
)

// Transfer is one configurable exchange with a peer. It wraps exactly one
// engine handle for its whole lifetime.
//
// A transfer runs either standalone through [Transfer.Perform], or under a
// [Session] that schedules it concurrently with others. At most one session
// owns a transfer at a time; ownership moves only through [Session.Add] and
// [Session.Remove].
//
// Reuse transfers instead of recreating them: a finished transfer keeps its
// engine-side caches and can be re-added or re-performed immediately.
type Transfer struct {
	id     uuid.UUID
	handle engine.TransferHandle
	owner  *Session

	cbs   callbackSet
	pause engine.PauseOps

	// Caches replayed by Clone.
	strings map[engine.Option]string
	lists   map[engine.Option]*List
}

// New allocates a transfer backed by eng. The fresh transfer discards
// response data until a write callback is installed, so it is safe to run
// with no callbacks configured.
func New(eng engine.Engine) (*Transfer, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine: %w", ErrBadParam)
	}
	h, err := eng.NewTransfer()
	if err != nil {
		return nil, engineErr("new transfer", err)
	}
	return newTransfer(h), nil
}

func newTransfer(h engine.TransferHandle) *Transfer {
	t := &Transfer{
		id:      uuid.New(),
		handle:  h,
		strings: make(map[engine.Option]string),
		lists:   make(map[engine.Option]*List),
	}
	t.cbs.write = func(p []byte) (int, error) { return len(p), nil }
	h.SetCallbacks(t.engineCallbacks())
	return t
}

// ID is the stable identity token of the transfer, used in session logs and
// trace spans.
func (t *Transfer) ID() uuid.UUID {
	return t.id
}

// Session reports the session currently owning the transfer, nil if none.
func (t *Transfer) Session() *Session {
	return t.owner
}

// Handle exposes the underlying engine handle. Reach for it only when an
// engine feature has no wrapper equivalent.
func (t *Transfer) Handle() engine.TransferHandle {
	return t.handle
}

// Close detaches the transfer from its session, if any, and releases the
// engine handle. The done callback is not invoked.
func (t *Transfer) Close() error {
	if t.owner != nil {
		_ = t.owner.Remove(t)
	}
	return t.handle.Close()
}

// Clone duplicates the transfer and its configuration, replaying the cached
// string and list options onto the copy. Callbacks are not cloned; install
// the ones the copy needs.
func (t *Transfer) Clone() (*Transfer, error) {
	h, err := t.handle.Dup()
	if err != nil {
		return nil, engineErr("dup", err)
	}
	c := newTransfer(h)
	for opt, l := range t.lists {
		if err := c.SetList(opt, l); err != nil {
			_ = h.Close()
			return nil, err
		}
	}
	for opt, s := range t.strings {
		if err := c.SetString(opt, s); err != nil {
			_ = h.Close()
			return nil, err
		}
	}
	return c, nil
}

// Reset detaches the transfer from its session and returns it to its
// freshly created state: options, callbacks and pause flags are cleared,
// while engine-internal caches (connections, cookies) survive.
func (t *Transfer) Reset() {
	if t.owner != nil {
		_ = t.owner.Remove(t)
	}
	t.handle.Reset()

	t.cbs = callbackSet{}
	t.cbs.write = func(p []byte) (int, error) { return len(p), nil }
	t.pause = engine.PauseNone
	clear(t.strings)
	clear(t.lists)

	t.handle.SetCallbacks(t.engineCallbacks())
}

// Perform runs the transfer to completion on the calling goroutine.
//
// A transfer owned by a session cannot perform on its own: ErrBadFunction
// is returned and the engine is not touched. Otherwise the done callback,
// if any, observes the outcome before Perform returns it.
func (t *Transfer) Perform() error {
	if t.owner != nil {
		return fmt.Errorf("transfer owned by a session: %w", ErrBadFunction)
	}

	var res error
	if err := t.handle.Perform(); err != nil {
		res = engineErr("perform", err)
	}
	if t.cbs.done != nil {
		t.cbs.done(t, res)
	}
	return res
}

// SetLong sets a long-kind option. Boolean switches are long options with
// values 0 and 1; [Transfer.SetBool] spares the conversion.
func (t *Transfer) SetLong(opt engine.Option, val int64) error {
	if opt.Kind() != engine.KindLong {
		return &OptionError{Opt: opt, Reason: "not a long option", Err: ErrBadParam}
	}
	if err := t.handle.SetLong(opt, val); err != nil {
		return engineErr("set option", err)
	}
	return nil
}

// SetBool sets a long-kind switch option.
func (t *Transfer) SetBool(opt engine.Option, val bool) error {
	var v int64
	if val {
		v = 1
	}
	return t.SetLong(opt, v)
}

// SetOffset sets an offset-kind option.
func (t *Transfer) SetOffset(opt engine.Option, val int64) error {
	if opt.Kind() != engine.KindOffset {
		return &OptionError{Opt: opt, Reason: "not an offset option", Err: ErrBadParam}
	}
	if err := t.handle.SetOffset(opt, val); err != nil {
		return engineErr("set option", err)
	}
	return nil
}

// SetString sets a string-kind option.
func (t *Transfer) SetString(opt engine.Option, val string) error {
	if opt.Kind() != engine.KindString {
		return &OptionError{Opt: opt, Reason: "not a string option", Err: ErrBadParam}
	}
	if err := t.handle.SetString(opt, val); err != nil {
		return engineErr("set option", err)
	}
	t.strings[opt] = val
	return nil
}

// SetList sets a list-kind option. The transfer stores a deep copy, so the
// caller may keep mutating l.
func (t *Transfer) SetList(opt engine.Option, l *List) error {
	if opt.Kind() != engine.KindList {
		return &OptionError{Opt: opt, Reason: "not a list option", Err: ErrBadParam}
	}
	if l == nil {
		return &OptionError{Opt: opt, Reason: "nil list", Err: ErrBadParam}
	}
	if err := t.handle.SetList(opt, l.Strings()); err != nil {
		return engineErr("set option", err)
	}
	t.lists[opt] = l.Clone()
	return nil
}

// SetPointer sets a pointer-kind option to an arbitrary value the engine
// stores opaquely.
func (t *Transfer) SetPointer(opt engine.Option, val any) error {
	if opt.Kind() != engine.KindPointer {
		return &OptionError{Opt: opt, Reason: "not a pointer option", Err: ErrBadParam}
	}
	if err := t.handle.SetPointer(opt, val); err != nil {
		return engineErr("set option", err)
	}
	return nil
}

// SetOption applies a value to an option of any kind, dispatching on the
// option's kind and the value's dynamic type.
func (t *Transfer) SetOption(opt engine.Option, val any) error {
	if val == nil {
		return &OptionError{Opt: opt, Reason: "nil value", Err: ErrBadParam}
	}

	switch opt.Kind() {
	case engine.KindLong:
		switch v := val.(type) {
		case bool:
			return t.SetBool(opt, v)
		case int:
			return t.SetLong(opt, int64(v))
		case int64:
			return t.SetLong(opt, v)
		}
	case engine.KindOffset:
		switch v := val.(type) {
		case int:
			return t.SetOffset(opt, int64(v))
		case int64:
			return t.SetOffset(opt, v)
		}
	case engine.KindString:
		if v, ok := val.(string); ok {
			return t.SetString(opt, v)
		}
	case engine.KindList:
		switch v := val.(type) {
		case *List:
			return t.SetList(opt, v)
		case []string:
			return t.SetList(opt, NewList(v...))
		}
	case engine.KindPointer:
		return t.SetPointer(opt, val)
	}

	return &OptionError{
		Opt:    opt,
		Reason: fmt.Sprintf("value type %T does not match the option kind", val),
		Err:    ErrBadParam,
	}
}

// LongInfo reads a long-kind transfer property.
func (t *Transfer) LongInfo(id engine.Info) (int64, error) {
	if id.Kind() != engine.InfoKindLong {
		return 0, &InfoError{ID: id, Reason: "not a long property", Err: ErrBadParam}
	}
	v, err := t.handle.LongInfo(id)
	if err != nil {
		return 0, engineErr("get info", err)
	}
	return v, nil
}

// StringInfo reads a string-kind transfer property.
func (t *Transfer) StringInfo(id engine.Info) (string, error) {
	if id.Kind() != engine.InfoKindString {
		return "", &InfoError{ID: id, Reason: "not a string property", Err: ErrBadParam}
	}
	v, err := t.handle.StringInfo(id)
	if err != nil {
		return "", engineErr("get info", err)
	}
	return v, nil
}

// DoubleInfo reads a double-kind transfer property.
func (t *Transfer) DoubleInfo(id engine.Info) (float64, error) {
	if id.Kind() != engine.InfoKindDouble {
		return 0, &InfoError{ID: id, Reason: "not a double property", Err: ErrBadParam}
	}
	v, err := t.handle.DoubleInfo(id)
	if err != nil {
		return 0, engineErr("get info", err)
	}
	return v, nil
}

// SocketInfo reads a socket-kind transfer property.
func (t *Transfer) SocketInfo(id engine.Info) (engine.Socket, error) {
	if id.Kind() != engine.InfoKindSocket {
		return -1, &InfoError{ID: id, Reason: "not a socket property", Err: ErrBadParam}
	}
	v, err := t.handle.SocketInfo(id)
	if err != nil {
		return -1, engineErr("get info", err)
	}
	return v, nil
}

// Info reads a property of any kind, dispatching on the identifier's kind.
func (t *Transfer) Info(id engine.Info) (any, error) {
	switch id.Kind() {
	case engine.InfoKindLong:
		return t.LongInfo(id)
	case engine.InfoKindString:
		return t.StringInfo(id)
	case engine.InfoKindDouble:
		return t.DoubleInfo(id)
	case engine.InfoKindSocket:
		return t.SocketInfo(id)
	}
	return nil, &InfoError{ID: id, Reason: "unknown property kind", Err: ErrBadParam}
}

// OnWrite replaces the write callback receiving response body data.
func (t *Transfer) OnWrite(fn WriteFunc) {
	t.cbs.write = fn
}

// OnRead replaces the read callback producing upload data.
func (t *Transfer) OnRead(fn ReadFunc) {
	t.cbs.read = fn
}

// OnProgress replaces the progress callback.
func (t *Transfer) OnProgress(fn ProgressFunc) {
	t.cbs.progress = fn
}

// OnHeader replaces the callback receiving response header lines.
func (t *Transfer) OnHeader(fn HeaderFunc) {
	t.cbs.header = fn
}

// OnDebug replaces the callback receiving engine diagnostics.
func (t *Transfer) OnDebug(fn DebugFunc) {
	t.cbs.debug = fn
}

// OnDone replaces the completion callback.
//
// Under a session, the transfer has already been released when the callback
// runs, so it may immediately be added again. When result is
// [ErrSessionStopped] the session that delivered it is no longer usable.
func (t *Transfer) OnDone(fn DoneFunc) {
	t.cbs.done = fn
}

// Pause suspends the transfer in the directions of mask. Pausing an already
// paused direction is a no-op that does not touch the engine.
func (t *Transfer) Pause(mask engine.PauseOps) error {
	next := t.pause | mask&engine.PauseAll
	if next == t.pause {
		return nil
	}
	if err := t.handle.SetPause(next); err != nil {
		return engineErr("pause", err)
	}
	t.pause = next
	return nil
}

// Unpause resumes the transfer in the directions of mask. Resuming may
// immediately redeliver data a callback refused earlier.
func (t *Transfer) Unpause(mask engine.PauseOps) error {
	next := t.pause &^ (mask & engine.PauseAll)
	if next == t.pause {
		return nil
	}
	if err := t.handle.SetPause(next); err != nil {
		return engineErr("unpause", err)
	}
	t.pause = next
	return nil
}

// IsPaused reports whether the transfer is paused in any direction of mask.
func (t *Transfer) IsPaused(mask engine.PauseOps) bool {
	return t.pause&mask != 0
}
