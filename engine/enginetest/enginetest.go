// Package enginetest provides a scripted, fully observable engine for
// exercising transfers and sessions without a real backend.
//
// Every recorded field is exported and every failure is injectable, so a
// test can both assert what the wrapper asked of the engine and script how
// the engine answers. Like real engines, the fake expects single-goroutine
// use and takes no locks.
package enginetest

import (
	"maps"
	"slices"

	"github.com/MericLuc/asyncurl/engine"
)

// Engine hands out fake handles and contexts, recording each allocation.
type Engine struct {
	// NewTransferErr and NewMultiErr, when non-nil, fail the matching
	// constructor.
	NewTransferErr error
	NewMultiErr    error

	Handles []*Handle
	Multis  []*Multi
}

// New creates an empty fake engine.
func New() *Engine {
	return &Engine{}
}

func (e *Engine) NewTransfer() (engine.TransferHandle, error) {
	if e.NewTransferErr != nil {
		return nil, e.NewTransferErr
	}
	h := NewHandle()
	e.Handles = append(e.Handles, h)
	return h, nil
}

func (e *Engine) NewMulti() (engine.MultiContext, error) {
	if e.NewMultiErr != nil {
		return nil, e.NewMultiErr
	}
	m := &Multi{
		Added: make(map[engine.TransferHandle]bool),
		Slots: make(map[engine.Socket]any),
		Longs: make(map[engine.MultiOption]int64),
	}
	e.Multis = append(e.Multis, m)
	return m, nil
}

// Handle records everything configured on it and performs nothing.
type Handle struct {
	Longs    map[engine.Option]int64
	Offsets  map[engine.Option]int64
	Strings  map[engine.Option]string
	Lists    map[engine.Option][]string
	Pointers map[engine.Option]any

	// Callbacks is the set registered with SetCallbacks. Tests invoke its
	// members directly to play the engine's side of a transfer.
	Callbacks engine.TransferCallbacks

	// SetErr fails every option setter; InfoErr fails every info getter.
	SetErr  error
	InfoErr error

	// Info values served by the getters.
	InfoLongs   map[engine.Info]int64
	InfoStrings map[engine.Info]string
	InfoDoubles map[engine.Info]float64
	InfoSockets map[engine.Info]engine.Socket

	// PerformFunc, when set, supplies the result of Perform; otherwise
	// PerformErr is returned.
	PerformFunc func() error
	PerformErr  error
	Performs    int

	Pause      engine.PauseOps
	PauseCalls int
	PauseErr   error

	DupErr error

	Resets int
	Closed bool
}

// NewHandle creates a detached fake handle. Handles allocated through
// [Engine.NewTransfer] are also recorded on the engine.
func NewHandle() *Handle {
	return &Handle{
		Longs:       make(map[engine.Option]int64),
		Offsets:     make(map[engine.Option]int64),
		Strings:     make(map[engine.Option]string),
		Lists:       make(map[engine.Option][]string),
		Pointers:    make(map[engine.Option]any),
		InfoLongs:   make(map[engine.Info]int64),
		InfoStrings: make(map[engine.Info]string),
		InfoDoubles: make(map[engine.Info]float64),
		InfoSockets: make(map[engine.Info]engine.Socket),
	}
}

func (h *Handle) SetLong(opt engine.Option, val int64) error {
	if h.SetErr != nil {
		return h.SetErr
	}
	h.Longs[opt] = val
	return nil
}

func (h *Handle) SetOffset(opt engine.Option, val int64) error {
	if h.SetErr != nil {
		return h.SetErr
	}
	h.Offsets[opt] = val
	return nil
}

func (h *Handle) SetString(opt engine.Option, val string) error {
	if h.SetErr != nil {
		return h.SetErr
	}
	h.Strings[opt] = val
	return nil
}

func (h *Handle) SetList(opt engine.Option, vals []string) error {
	if h.SetErr != nil {
		return h.SetErr
	}
	h.Lists[opt] = slices.Clone(vals)
	return nil
}

func (h *Handle) SetPointer(opt engine.Option, val any) error {
	if h.SetErr != nil {
		return h.SetErr
	}
	h.Pointers[opt] = val
	return nil
}

func (h *Handle) LongInfo(id engine.Info) (int64, error) {
	if h.InfoErr != nil {
		return 0, h.InfoErr
	}
	return h.InfoLongs[id], nil
}

func (h *Handle) StringInfo(id engine.Info) (string, error) {
	if h.InfoErr != nil {
		return "", h.InfoErr
	}
	return h.InfoStrings[id], nil
}

func (h *Handle) DoubleInfo(id engine.Info) (float64, error) {
	if h.InfoErr != nil {
		return 0, h.InfoErr
	}
	return h.InfoDoubles[id], nil
}

func (h *Handle) SocketInfo(id engine.Info) (engine.Socket, error) {
	if h.InfoErr != nil {
		return 0, h.InfoErr
	}
	return h.InfoSockets[id], nil
}

func (h *Handle) SetCallbacks(cbs engine.TransferCallbacks) {
	h.Callbacks = cbs
}

func (h *Handle) Perform() error {
	h.Performs++
	if h.PerformFunc != nil {
		return h.PerformFunc()
	}
	return h.PerformErr
}

func (h *Handle) SetPause(mask engine.PauseOps) error {
	h.PauseCalls++
	if h.PauseErr != nil {
		return h.PauseErr
	}
	h.Pause = mask
	return nil
}

func (h *Handle) Reset() {
	h.Resets++
	clear(h.Longs)
	clear(h.Offsets)
	clear(h.Strings)
	clear(h.Lists)
	clear(h.Pointers)
	h.Callbacks = engine.TransferCallbacks{}
	h.Pause = 0
}

func (h *Handle) Dup() (engine.TransferHandle, error) {
	if h.DupErr != nil {
		return nil, h.DupErr
	}
	dup := NewHandle()
	maps.Copy(dup.Longs, h.Longs)
	maps.Copy(dup.Offsets, h.Offsets)
	maps.Copy(dup.Strings, h.Strings)
	for opt, vals := range h.Lists {
		dup.Lists[opt] = slices.Clone(vals)
	}
	maps.Copy(dup.Pointers, h.Pointers)
	return dup, nil
}

func (h *Handle) Close() error {
	h.Closed = true
	return nil
}

// ActionCall records one Action invocation.
type ActionCall struct {
	Socket engine.Socket
	Ready  engine.ReadyOps
}

// Multi records membership, actions and socket slots, and lets a test
// script the engine's answers.
type Multi struct {
	hooks engine.Hooks

	Added map[engine.TransferHandle]bool
	Slots map[engine.Socket]any
	Longs map[engine.MultiOption]int64

	AddErr     error
	RemoveErr  error
	AssignErr  error
	SetLongErr error

	// Actions records every Action call in order.
	Actions []ActionCall

	// OnAction, when set, runs inside Action before it returns; it may
	// queue messages, adjust Running and invoke Hooks to mimic the
	// engine announcing its scheduling needs.
	OnAction func(m *Multi, s engine.Socket, ready engine.ReadyOps)

	// Running is the count Action reports; ActionErr, when non-nil, fails
	// it instead.
	Running   int
	ActionErr error

	msgs []engine.Message

	Closed bool
}

// Hooks returns the scheduling callbacks registered by the owning session,
// letting tests invoke them as the engine would.
func (m *Multi) Hooks() engine.Hooks {
	return m.hooks
}

// QueueMessage appends a completion message for PollMessage to hand out.
func (m *Multi) QueueMessage(h engine.TransferHandle, result error) {
	m.msgs = append(m.msgs, engine.Message{Handle: h, Result: result})
}

func (m *Multi) SetHooks(h engine.Hooks) {
	m.hooks = h
}

func (m *Multi) Add(t engine.TransferHandle) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.Added[t] = true
	return nil
}

func (m *Multi) Remove(t engine.TransferHandle) error {
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	delete(m.Added, t)
	return nil
}

func (m *Multi) Action(s engine.Socket, ready engine.ReadyOps) (int, error) {
	m.Actions = append(m.Actions, ActionCall{Socket: s, Ready: ready})
	if m.OnAction != nil {
		m.OnAction(m, s, ready)
	}
	if m.ActionErr != nil {
		return 0, m.ActionErr
	}
	return m.Running, nil
}

func (m *Multi) PollMessage() (engine.Message, bool) {
	if len(m.msgs) == 0 {
		return engine.Message{}, false
	}
	msg := m.msgs[0]
	m.msgs = m.msgs[1:]
	return msg, true
}

func (m *Multi) AssignSocket(s engine.Socket, slot any) error {
	if m.AssignErr != nil {
		return m.AssignErr
	}
	if slot == nil {
		delete(m.Slots, s)
		return nil
	}
	m.Slots[s] = slot
	return nil
}

func (m *Multi) SetLong(opt engine.MultiOption, val int64) error {
	if m.SetLongErr != nil {
		return m.SetLongErr
	}
	m.Longs[opt] = val
	return nil
}

func (m *Multi) Close() error {
	m.Closed = true
	return nil
}
