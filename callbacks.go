package asyncurl

import (
	"errors"
	"io"

	"github.com/MericLuc/asyncurl/engine"
)

// WriteFunc consumes a chunk of response body and returns the number of
// bytes it accepted. Accepting fewer bytes than delivered aborts the
// transfer. Returning [ErrPauseTransfer] pauses receiving; the chunk is
// redelivered after the transfer is unpaused.
type WriteFunc func(p []byte) (int, error)

// ReadFunc fills p with upload data and returns the number of bytes
// produced. Returning [io.EOF] ends the upload body; [ErrPauseTransfer]
// pauses sending; any other error aborts the transfer.
type ReadFunc func(p []byte) (int, error)

// ProgressFunc receives periodic byte counters for both directions. A
// non-nil return aborts the transfer with that error as its result.
type ProgressFunc func(downTotal, downNow, upTotal, upNow int64) error

// HeaderFunc receives one response header line per call. A non-nil return
// aborts the transfer.
type HeaderFunc func(line []byte) error

// DebugFunc receives engine diagnostics classified by kind.
type DebugFunc func(kind engine.DebugType, data []byte)

// DoneFunc is invoked exactly once per finished transfer with its outcome:
// nil on success, [ErrSessionStopped] when a stopping session detached the
// transfer, or the failure reported by the engine.
type DoneFunc func(t *Transfer, result error)

// callbackSet is the replaceable user callbacks of one transfer.
type callbackSet struct {
	write    WriteFunc
	read     ReadFunc
	progress ProgressFunc
	header   HeaderFunc
	debug    DebugFunc
	done     DoneFunc
}

// engineCallbacks builds the engine-facing callback set of the transfer.
// The engine captures the set once, so every member dereferences t at call
// time; later [Transfer.OnWrite] style replacements stay visible. Pause
// sentinels returned by user callbacks are mirrored into the transfer's
// pause flags on the way through.
func (t *Transfer) engineCallbacks() engine.TransferCallbacks {
	return engine.TransferCallbacks{
		Write: func(p []byte) (int, error) {
			cb := t.cbs.write
			if cb == nil {
				return len(p), nil
			}
			n, err := cb(p)
			if errors.Is(err, ErrPauseTransfer) {
				t.pause |= engine.PauseRecv
			}
			return n, err
		},
		Read: func(p []byte) (int, error) {
			cb := t.cbs.read
			if cb == nil {
				return 0, io.EOF
			}
			n, err := cb(p)
			if errors.Is(err, ErrPauseTransfer) {
				t.pause |= engine.PauseSend
			}
			return n, err
		},
		Progress: func(downTotal, downNow, upTotal, upNow int64) error {
			if cb := t.cbs.progress; cb != nil {
				return cb(downTotal, downNow, upTotal, upNow)
			}
			return nil
		},
		Header: func(line []byte) error {
			if cb := t.cbs.header; cb != nil {
				return cb(line)
			}
			return nil
		},
		Debug: func(kind engine.DebugType, data []byte) {
			if cb := t.cbs.debug; cb != nil {
				cb(kind, data)
			}
		},
	}
}
