// Package engine defines the contract between the asyncurl transfer types
// and the pluggable engine that actually moves bytes.
//
// An [Engine] produces the two handle flavors of the stack: a
// [TransferHandle] describing a single exchange, and a [MultiContext]
// coordinating many of them from event-loop callbacks. The asyncurl package
// owns exactly one handle per Transfer and one context per Session; engines
// never retain ownership of either.
//
// All methods are invoked from a single goroutine, the loop goroutine of the
// owning session, and implementations may rely on that. Handles must be
// comparable and unique per allocation; sessions use them as map keys.
package engine

import "errors"

// Control errors returned by transfer callbacks to steer an in-flight
// transfer. Engines detect them with [errors.Is].
var (
	// ErrPauseTransfer pauses the affected direction when returned from a
	// write or read callback. The chunk the callback was invoked with is
	// not consumed and is redelivered once the transfer is unpaused.
	ErrPauseTransfer = errors.New("pause transfer")

	// ErrAbortTransfer aborts the transfer. It surfaces as the transfer's
	// completion result.
	ErrAbortTransfer = errors.New("abort transfer")
)

// ErrOutOfMemory is reported by an engine that fails to allocate internal
// resources.
var ErrOutOfMemory = errors.New("out of memory")

// Engine allocates transfer handles and multi contexts.
type Engine interface {
	// NewTransfer allocates a handle describing a single exchange.
	NewTransfer() (TransferHandle, error)

	// NewMulti allocates a context coordinating concurrent transfers.
	NewMulti() (MultiContext, error)
}

// TransferHandle is the engine side of one configurable exchange.
//
// The typed setters reject an identifier whose [Option.Kind] does not match
// the method. List values are copied by the engine; later mutation of the
// caller's slice has no effect.
type TransferHandle interface {
	SetLong(opt Option, val int64) error
	SetOffset(opt Option, val int64) error
	SetString(opt Option, val string) error
	SetList(opt Option, vals []string) error
	SetPointer(opt Option, val any) error

	LongInfo(id Info) (int64, error)
	StringInfo(id Info) (string, error)
	DoubleInfo(id Info) (float64, error)
	SocketInfo(id Info) (Socket, error)

	// SetCallbacks replaces the full callback set. Nil members disable the
	// matching callback; with a nil Write the response body is discarded.
	SetCallbacks(cbs TransferCallbacks)

	// Perform runs the exchange to completion on the calling goroutine.
	// The handle must not be attached to a MultiContext.
	Perform() error

	// SetPause replaces the pause mask of the transfer. Clearing a
	// direction resumes it, which may redeliver previously refused data.
	SetPause(mask PauseOps) error

	// Reset returns the handle to its freshly allocated state without
	// dropping engine-internal caches (connections, cookies).
	Reset()

	// Dup clones the handle and its configuration. Callbacks are not
	// carried over.
	Dup() (TransferHandle, error)

	Close() error
}

// MultiContext coordinates concurrent transfers. It never blocks: instead it
// asks its [Hooks] for socket readiness and timer wake-ups, and advances
// when the owner calls [MultiContext.Action].
type MultiContext interface {
	// SetHooks registers the owner's scheduling callbacks. It must be
	// called once, before the first Add.
	SetHooks(h Hooks)

	Add(t TransferHandle) error
	Remove(t TransferHandle) error

	// Action reports readiness on a socket, or a timer expiry when s is
	// TimeoutSocket. It returns the number of still-running transfers.
	// Completion messages produced by the call are queued for
	// PollMessage.
	Action(s Socket, ready ReadyOps) (running int, err error)

	// PollMessage pops the next completion message, if any.
	PollMessage() (Message, bool)

	// AssignSocket attaches an opaque slot value to a socket. The slot is
	// handed back on every SocketInterest call for that socket, nil after
	// being cleared.
	AssignSocket(s Socket, slot any) error

	// SetLong tunes a context-wide limit.
	SetLong(opt MultiOption, val int64) error

	Close() error
}

// Hooks is implemented by the session owning a [MultiContext]. Hooks are
// invoked synchronously from within context calls; the only context method
// a hook may call is AssignSocket.
type Hooks interface {
	// SocketInterest reports the events the context wants for a socket,
	// or PollRemove when it is done with it. slot carries the value
	// attached with AssignSocket.
	SocketInterest(t TransferHandle, s Socket, what PollOps, slot any)

	// TimerRequest schedules the single pending timeout of the context,
	// in milliseconds, replacing any previous request. A negative value
	// cancels it.
	TimerRequest(timeoutMS int64)
}

// Message reports a finished transfer.
type Message struct {
	Handle TransferHandle
	Result error // nil on success
}

// TransferCallbacks bundles the data callbacks of one transfer. Every member
// is optional.
type TransferCallbacks struct {
	// Write consumes a chunk of response body. Consuming fewer bytes than
	// delivered aborts the transfer; returning ErrPauseTransfer pauses
	// receiving and leaves the chunk unconsumed.
	Write func(p []byte) (int, error)

	// Read produces upload data into p. Returning io.EOF ends the upload,
	// ErrPauseTransfer pauses sending.
	Read func(p []byte) (int, error)

	// Progress is invoked periodically with transfer counters. A non-nil
	// return aborts the transfer.
	Progress func(downTotal, downNow, upTotal, upNow int64) error

	// Header receives one response header line per call. A non-nil return
	// aborts the transfer.
	Header func(line []byte) error

	// Debug receives engine diagnostics.
	Debug func(kind DebugType, data []byte)
}

// DebugType classifies the data handed to the Debug callback.
type DebugType int

const (
	DebugText DebugType = iota
	DebugHeaderIn
	DebugHeaderOut
	DebugDataIn
	DebugDataOut
)
