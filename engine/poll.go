package engine

// Socket identifies an engine-side socket. Values are opaque to the session,
// which only forwards them between hooks, watchers and Action calls.
type Socket int64

// TimeoutSocket marks an Action call triggered by timer expiry rather than
// by socket readiness.
const TimeoutSocket Socket = -1

// PollOps describes the readiness events a context wants for a socket.
type PollOps int

const (
	PollNone PollOps = iota
	PollIn
	PollOut
	PollInOut
	PollRemove
)

func (p PollOps) String() string {
	switch p {
	case PollNone:
		return "none"
	case PollIn:
		return "in"
	case PollOut:
		return "out"
	case PollInOut:
		return "inout"
	case PollRemove:
		return "remove"
	}
	return "invalid"
}

// ReadyOps reports the events that fired on a socket.
type ReadyOps int

const (
	ReadyIn ReadyOps = 1 << iota
	ReadyOut
	ReadyErr
)

// PauseOps selects the transfer directions affected by a pause mask.
type PauseOps int

const (
	PauseRecv PauseOps = 1 << iota
	PauseSend

	PauseNone PauseOps = 0
	PauseAll          = PauseRecv | PauseSend
)
