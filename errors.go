package asyncurl

import (
	"errors"
	"fmt"

	"github.com/MericLuc/asyncurl/engine"
)

var (
	// ErrBadParam reports an argument or identifier that does not fit the
	// operation, such as a setter invoked with a mismatched option kind.
	ErrBadParam = errors.New("bad parameter")

	// ErrBadFunction reports an operation that is not legal in the
	// transfer's current state, such as a blocking perform on a transfer
	// owned by a session.
	ErrBadFunction = errors.New("bad function call")

	// ErrAlreadyAdded is returned by [Session.Add] when the session
	// already owns the transfer.
	ErrAlreadyAdded = errors.New("transfer already owned by this session")

	// ErrOwnedElsewhere is returned when another session owns the
	// transfer. Remove a transfer from its session before moving it.
	ErrOwnedElsewhere = errors.New("transfer owned by another session")

	// ErrNotOwned is returned by [Session.Remove] when the transfer is
	// not owned by any session.
	ErrNotOwned = errors.New("transfer not owned by any session")

	// ErrSessionStopped marks a stopped session. Completion callbacks
	// receive it when a stop detaches their transfer; operations on a
	// stopped session fail with it.
	ErrSessionStopped = errors.New("session stopped")

	// ErrInternal is the sentinel wrapped by [EngineError] when the
	// engine reports a failure.
	ErrInternal = errors.New("internal error")
)

// Engine control errors, re-exported so user callbacks can be written
// without importing the engine package.
var (
	// ErrPauseTransfer pauses the affected direction when returned from a
	// write or read callback.
	ErrPauseTransfer = engine.ErrPauseTransfer
	// ErrAbortTransfer aborts the transfer from any data callback.
	ErrAbortTransfer = engine.ErrAbortTransfer
	// ErrOutOfMemory is reported by an engine that failed to allocate.
	ErrOutOfMemory = engine.ErrOutOfMemory
)

// OptionError reports a transfer option that could not be applied.
type OptionError struct {
	Opt    engine.Option
	Reason string
	Err    error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("%v: option %d: %s", e.Err, e.Opt, e.Reason)
}

func (e *OptionError) Unwrap() error {
	return e.Err
}

// InfoError reports a transfer property that could not be read.
type InfoError struct {
	ID     engine.Info
	Reason string
	Err    error
}

func (e *InfoError) Error() string {
	return fmt.Sprintf("%v: info %#x: %s", e.Err, int(e.ID), e.Reason)
}

func (e *InfoError) Unwrap() error {
	return e.Err
}

// EngineError carries the detail of a failure reported by the underlying
// engine. It wraps [ErrInternal], or [ErrOutOfMemory] when the engine ran
// out of resources.
type EngineError struct {
	Op     string
	Detail error
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%v: engine %s: %v", e.Err, e.Op, e.Detail)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// engineErr wraps an engine failure, promoting an out-of-memory report to
// its own sentinel.
func engineErr(op string, detail error) error {
	sentinel := ErrInternal
	if errors.Is(detail, engine.ErrOutOfMemory) {
		sentinel = ErrOutOfMemory
	}
	return &EngineError{Op: op, Detail: detail, Err: sentinel}
}
