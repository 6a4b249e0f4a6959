// Package memengine implements the engine contract entirely in memory,
// serving scripted responses. It backs tests and examples that need real
// data flow through the callback chain without any network.
//
// The engine has no sockets: a multi context schedules itself purely
// through timer requests, so its hooks never receive SocketInterest calls.
// Latency and bandwidth options shape delivery timing; with both left at
// zero, transfers complete within the first Action call.
package memengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/MericLuc/asyncurl/engine"
)

var (
	// ErrNoResponse fails transfers whose URL has no scripted response.
	ErrNoResponse = errors.New("no response scripted")

	// ErrTimedOut fails transfers exceeding their configured timeout.
	ErrTimedOut = errors.New("transfer timed out")

	// ErrShortWrite fails transfers whose write callback consumed less
	// than it was handed without pausing.
	ErrShortWrite = errors.New("write callback consumed short")
)

const defaultChunkSize = 16 * 1024

// Engine serves scripted responses from memory. One engine may back any
// number of handles and contexts owned by the same loop goroutine.
type Engine struct {
	responses map[string]Response
	fallback  *Response
	chunkSize int
	latency   time.Duration
	limiter   *rate.Limiter
}

// New creates an engine configured with the given options.
func New(optFns ...Option) (*Engine, error) {
	opts := options{
		responses: make(map[string]Response),
		chunkSize: defaultChunkSize,
	}
	for _, optFn := range optFns {
		if err := optFn(&opts); err != nil {
			return nil, fmt.Errorf("applying memengine option: %w", err)
		}
	}

	e := &Engine{
		responses: opts.responses,
		fallback:  opts.fallback,
		chunkSize: opts.chunkSize,
		latency:   opts.latency,
		limiter:   opts.limiter,
	}
	if e.limiter != nil && e.chunkSize > e.limiter.Burst() {
		e.chunkSize = e.limiter.Burst()
	}
	return e, nil
}

func (e *Engine) NewTransfer() (engine.TransferHandle, error) {
	return newHandle(e), nil
}

func (e *Engine) NewMulti() (engine.MultiContext, error) {
	return &multi{
		eng:     e,
		members: make(map[*handle]struct{}),
		slots:   make(map[engine.Socket]any),
		longs:   make(map[engine.MultiOption]int64),
	}, nil
}

func (e *Engine) lookup(url string) (Response, error) {
	if resp, ok := e.responses[url]; ok {
		return resp, nil
	}
	if e.fallback != nil {
		return *e.fallback, nil
	}
	return Response{}, fmt.Errorf("%w for %q", ErrNoResponse, url)
}

// handle is one exchange. The pause mask is atomic because clearing it
// from another goroutine is the one cross-goroutine access the engine
// supports, to release a paused blocking Perform.
type handle struct {
	eng *Engine

	longs    map[engine.Option]int64
	offsets  map[engine.Option]int64
	strings  map[engine.Option]string
	lists    map[engine.Option][]string
	pointers map[engine.Option]any

	cbs   engine.TransferCallbacks
	pause atomic.Int32

	owner *multi
	st    *state
}

func newHandle(e *Engine) *handle {
	return &handle{
		eng:      e,
		longs:    make(map[engine.Option]int64),
		offsets:  make(map[engine.Option]int64),
		strings:  make(map[engine.Option]string),
		lists:    make(map[engine.Option][]string),
		pointers: make(map[engine.Option]any),
	}
}

func errOptionKind(opt engine.Option) error {
	return fmt.Errorf("option %d does not take this value kind", int(opt))
}

func errInfoKind(id engine.Info) error {
	return fmt.Errorf("info %#x does not have this value kind", int(id))
}

func (h *handle) SetLong(opt engine.Option, val int64) error {
	if opt.Kind() != engine.KindLong {
		return errOptionKind(opt)
	}
	h.longs[opt] = val
	return nil
}

func (h *handle) SetOffset(opt engine.Option, val int64) error {
	if opt.Kind() != engine.KindOffset {
		return errOptionKind(opt)
	}
	h.offsets[opt] = val
	return nil
}

func (h *handle) SetString(opt engine.Option, val string) error {
	if opt.Kind() != engine.KindString {
		return errOptionKind(opt)
	}
	h.strings[opt] = val
	return nil
}

func (h *handle) SetList(opt engine.Option, vals []string) error {
	if opt.Kind() != engine.KindList {
		return errOptionKind(opt)
	}
	h.lists[opt] = slices.Clone(vals)
	return nil
}

func (h *handle) SetPointer(opt engine.Option, val any) error {
	if opt.Kind() != engine.KindPointer {
		return errOptionKind(opt)
	}
	h.pointers[opt] = val
	return nil
}

func (h *handle) LongInfo(id engine.Info) (int64, error) {
	if id.Kind() != engine.InfoKindLong {
		return 0, errInfoKind(id)
	}
	switch id {
	case engine.InfoResponseCode:
		return h.statusCode(), nil
	case engine.InfoNumConnects:
		if h.st != nil {
			return 1, nil
		}
	}
	return 0, nil
}

func (h *handle) StringInfo(id engine.Info) (string, error) {
	if id.Kind() != engine.InfoKindString {
		return "", errInfoKind(id)
	}
	st := h.st
	if st == nil {
		return "", nil
	}
	switch id {
	case engine.InfoEffectiveURL:
		return st.effURL, nil
	case engine.InfoContentType:
		if st.hdrNext > 0 {
			return st.resp.ContentType, nil
		}
	}
	return "", nil
}

func (h *handle) DoubleInfo(id engine.Info) (float64, error) {
	if id.Kind() != engine.InfoKindDouble {
		return 0, errInfoKind(id)
	}
	st := h.st
	if st == nil {
		return 0, nil
	}
	now := time.Now()
	switch id {
	case engine.InfoTotalTime:
		return st.elapsed(now).Seconds(), nil
	case engine.InfoSizeUpload:
		return float64(st.uploaded), nil
	case engine.InfoSizeDownload:
		return float64(st.off), nil
	case engine.InfoSpeedDownload:
		if secs := st.elapsed(now).Seconds(); secs > 0 {
			return float64(st.off) / secs, nil
		}
	}
	return 0, nil
}

func (h *handle) SocketInfo(id engine.Info) (engine.Socket, error) {
	if id.Kind() != engine.InfoKindSocket {
		return 0, errInfoKind(id)
	}
	// No sockets to report.
	return engine.Socket(-1), nil
}

func (h *handle) SetCallbacks(cbs engine.TransferCallbacks) {
	h.cbs = cbs
}

func (h *handle) pauseMask() engine.PauseOps {
	return engine.PauseOps(h.pause.Load())
}

func (h *handle) orPause(p engine.PauseOps) {
	h.pause.Or(int32(p))
}

func (h *handle) SetPause(mask engine.PauseOps) error {
	old := engine.PauseOps(h.pause.Swap(int32(mask & engine.PauseAll)))
	if old&^mask != 0 && h.owner != nil {
		h.owner.wake()
	}
	return nil
}

// uploadActive reports whether the transfer sends a read-callback body.
func (h *handle) uploadActive() bool {
	return h.longs[engine.OptUpload] != 0 && h.cbs.Read != nil
}

// waitUnpaused spins a blocking Perform while the direction is paused.
// Only another goroutine clearing the mask can release it, like a threaded
// unpause against a blocking transfer.
func (h *handle) waitUnpaused(dir engine.PauseOps) {
	for h.pauseMask()&dir != 0 {
		time.Sleep(time.Millisecond)
	}
}

func (h *handle) finishBlocking(result error) error {
	h.st.done = true
	h.st.finished = time.Now()
	h.st.result = result
	return result
}

func (h *handle) Perform() error {
	if h.owner != nil {
		return errors.New("transfer attached to a context")
	}
	h.prepare(time.Now())
	st := h.st

	if d := time.Until(st.notBefore); d > 0 {
		time.Sleep(d)
	}
	if !st.deadline.IsZero() && time.Now().After(st.deadline) {
		return h.finishBlocking(ErrTimedOut)
	}
	if st.resp.Err != nil {
		return h.finishBlocking(st.resp.Err)
	}

	if err := h.uploadBlocking(); err != nil {
		return h.finishBlocking(err)
	}

	for st.hdrNext < len(st.header) {
		h.waitUnpaused(engine.PauseRecv)
		line := st.header[st.hdrNext]
		st.hdrNext++
		if h.cbs.Header != nil {
			if err := h.cbs.Header(line); err != nil {
				return h.finishBlocking(err)
			}
		}
	}

	ctx := context.Background()
	if !st.deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, st.deadline)
		defer cancel()
	}

	body := h.respBody()
	for st.off < len(body) {
		h.waitUnpaused(engine.PauseRecv)
		if !st.deadline.IsZero() && time.Now().After(st.deadline) {
			return h.finishBlocking(ErrTimedOut)
		}

		n := min(h.eng.chunkSize, len(body)-st.off)
		if lim := h.eng.limiter; lim != nil {
			if err := lim.WaitN(ctx, n); err != nil {
				if ctx.Err() != nil {
					return h.finishBlocking(ErrTimedOut)
				}
				return h.finishBlocking(err)
			}
		}

		if h.cbs.Progress != nil {
			err := h.cbs.Progress(int64(len(body)), int64(st.off), h.offsets[engine.OptUploadSize], st.uploaded)
			if err != nil {
				return h.finishBlocking(err)
			}
		}

		nw := n
		var err error
		if h.cbs.Write != nil {
			nw, err = h.cbs.Write(body[st.off : st.off+n])
		}
		if errors.Is(err, engine.ErrPauseTransfer) {
			h.orPause(engine.PauseRecv)
			continue // chunk stays unconsumed, redelivered on unpause
		}
		if err != nil {
			return h.finishBlocking(err)
		}
		if nw != n {
			return h.finishBlocking(ErrShortWrite)
		}
		st.off += n
	}

	if h.cbs.Progress != nil {
		total := int64(len(body))
		if err := h.cbs.Progress(total, total, h.offsets[engine.OptUploadSize], st.uploaded); err != nil {
			return h.finishBlocking(err)
		}
	}
	return h.finishBlocking(nil)
}

// uploadBlocking drains the read callback before the response is served.
func (h *handle) uploadBlocking() error {
	st := h.st
	if !h.uploadActive() {
		if pf, ok := h.strings[engine.OptPostFields]; ok {
			st.uploaded = int64(len(pf))
		}
		st.upDone = true
		return nil
	}

	buf := make([]byte, h.eng.chunkSize)
	for {
		h.waitUnpaused(engine.PauseSend)
		n, err := h.cbs.Read(buf)
		if n > 0 {
			st.uploaded += int64(n)
		}
		switch {
		case errors.Is(err, engine.ErrPauseTransfer):
			h.orPause(engine.PauseSend)
		case err == io.EOF, err == nil && n == 0:
			st.upDone = true
			return nil
		case err != nil:
			return err
		}
	}
}

func (h *handle) Reset() {
	clear(h.longs)
	clear(h.offsets)
	clear(h.strings)
	clear(h.lists)
	clear(h.pointers)
	h.cbs = engine.TransferCallbacks{}
	h.pause.Store(0)
	h.st = nil
}

func (h *handle) Dup() (engine.TransferHandle, error) {
	dup := newHandle(h.eng)
	maps.Copy(dup.longs, h.longs)
	maps.Copy(dup.offsets, h.offsets)
	maps.Copy(dup.strings, h.strings)
	for opt, vals := range h.lists {
		dup.lists[opt] = slices.Clone(vals)
	}
	maps.Copy(dup.pointers, h.pointers)
	return dup, nil
}

func (h *handle) Close() error {
	if h.owner != nil {
		delete(h.owner.members, h)
		h.owner = nil
	}
	return nil
}

// blocked reports whether the transfer cannot progress until its pause
// mask changes.
func (h *handle) blocked() bool {
	st := h.st
	if st == nil || st.done || st.resp.Err != nil {
		return false
	}
	if !st.upDone && h.uploadActive() {
		return h.pauseMask()&engine.PauseSend != 0
	}
	return h.pauseMask()&engine.PauseRecv != 0
}

// multi advances its members on every Action call and reports the next
// due wake-up through the timer hook.
type multi struct {
	eng   *Engine
	hooks engine.Hooks

	members map[*handle]struct{}
	msgs    []engine.Message
	slots   map[engine.Socket]any
	longs   map[engine.MultiOption]int64

	closed bool
}

func (m *multi) SetHooks(h engine.Hooks) {
	m.hooks = h
}

func (m *multi) Add(t engine.TransferHandle) error {
	if m.closed {
		return errors.New("context closed")
	}
	h, ok := t.(*handle)
	if !ok {
		return errors.New("foreign transfer handle")
	}
	if h.eng != m.eng {
		return errors.New("transfer from a different engine")
	}
	if _, ok := m.members[h]; ok {
		return errors.New("transfer already added")
	}

	// A finished handle restarts from scratch; a handle removed
	// mid-transfer resumes where it left off.
	if h.st != nil && h.st.done {
		h.st = nil
	}
	now := time.Now()
	if h.st == nil {
		h.prepare(now)
	}

	h.owner = m
	m.members[h] = struct{}{}
	m.schedule(now)
	return nil
}

func (m *multi) Remove(t engine.TransferHandle) error {
	h, ok := t.(*handle)
	if !ok {
		return errors.New("foreign transfer handle")
	}
	if _, ok := m.members[h]; !ok {
		return errors.New("transfer not added")
	}
	delete(m.members, h)
	h.owner = nil
	m.msgs = slices.DeleteFunc(m.msgs, func(msg engine.Message) bool {
		return msg.Handle == t
	})
	m.schedule(time.Now())
	return nil
}

func (m *multi) Action(s engine.Socket, ready engine.ReadyOps) (int, error) {
	if m.closed {
		return 0, errors.New("context closed")
	}

	now := time.Now()
	for h := range m.members {
		m.step(h, now)
	}

	running := 0
	for h := range m.members {
		if h.st != nil && !h.st.done {
			running++
		}
	}
	m.schedule(now)
	return running, nil
}

func (m *multi) PollMessage() (engine.Message, bool) {
	if len(m.msgs) == 0 {
		return engine.Message{}, false
	}
	msg := m.msgs[0]
	m.msgs = m.msgs[1:]
	return msg, true
}

func (m *multi) AssignSocket(s engine.Socket, slot any) error {
	if slot == nil {
		delete(m.slots, s)
		return nil
	}
	m.slots[s] = slot
	return nil
}

func (m *multi) SetLong(opt engine.MultiOption, val int64) error {
	m.longs[opt] = val
	return nil
}

func (m *multi) Close() error {
	if m.closed {
		return nil
	}
	for h := range m.members {
		h.owner = nil
		delete(m.members, h)
	}
	m.msgs = nil
	m.closed = true
	return nil
}

// wake asks for an immediate Action, used when an unpause makes a member
// runnable again.
func (m *multi) wake() {
	if m.hooks != nil && !m.closed {
		m.hooks.TimerRequest(0)
	}
}

// finish completes a member and queues its message.
func (m *multi) finish(h *handle, now time.Time, result error) {
	st := h.st
	st.done = true
	st.finished = now
	st.result = result
	m.msgs = append(m.msgs, engine.Message{Handle: h, Result: result})
}

// step advances one member as far as its pacing, pauses and scripted
// timing allow.
func (m *multi) step(h *handle, now time.Time) {
	st := h.st
	if st == nil || st.done {
		return
	}
	if now.Before(st.notBefore) {
		return
	}
	if !st.deadline.IsZero() && now.After(st.deadline) {
		m.finish(h, now, ErrTimedOut)
		return
	}
	if st.resp.Err != nil {
		m.finish(h, now, st.resp.Err)
		return
	}

	// The request body goes out before the response comes back.
	if !st.upDone {
		if !h.uploadActive() {
			if pf, ok := h.strings[engine.OptPostFields]; ok {
				st.uploaded = int64(len(pf))
			}
			st.upDone = true
		} else {
			if h.pauseMask()&engine.PauseSend != 0 {
				return
			}
			if !m.stepUpload(h, now) {
				return
			}
		}
	}

	for st.hdrNext < len(st.header) {
		if h.pauseMask()&engine.PauseRecv != 0 {
			return
		}
		line := st.header[st.hdrNext]
		st.hdrNext++
		if h.cbs.Header != nil {
			if err := h.cbs.Header(line); err != nil {
				m.finish(h, now, err)
				return
			}
		}
	}

	body := h.respBody()
	for st.off < len(body) {
		if h.pauseMask()&engine.PauseRecv != 0 {
			return
		}

		n := min(m.eng.chunkSize, len(body)-st.off)
		var res *rate.Reservation
		if lim := m.eng.limiter; lim != nil {
			res = lim.ReserveN(now, n)
			if d := res.DelayFrom(now); d > 0 {
				res.CancelAt(now)
				st.notBefore = now.Add(d)
				return
			}
		}

		if h.cbs.Progress != nil {
			err := h.cbs.Progress(int64(len(body)), int64(st.off), h.offsets[engine.OptUploadSize], st.uploaded)
			if err != nil {
				m.finish(h, now, err)
				return
			}
		}

		nw := n
		var err error
		if h.cbs.Write != nil {
			nw, err = h.cbs.Write(body[st.off : st.off+n])
		}
		if errors.Is(err, engine.ErrPauseTransfer) {
			if res != nil {
				res.CancelAt(now)
			}
			h.orPause(engine.PauseRecv)
			return // chunk stays unconsumed, redelivered on unpause
		}
		if err != nil {
			m.finish(h, now, err)
			return
		}
		if nw != n {
			m.finish(h, now, ErrShortWrite)
			return
		}
		st.off += n
	}

	if h.cbs.Progress != nil {
		total := int64(len(body))
		if err := h.cbs.Progress(total, total, h.offsets[engine.OptUploadSize], st.uploaded); err != nil {
			m.finish(h, now, err)
			return
		}
	}
	m.finish(h, now, nil)
}

// stepUpload drains the read callback, reporting whether the request body
// finished.
func (m *multi) stepUpload(h *handle, now time.Time) bool {
	st := h.st
	buf := make([]byte, m.eng.chunkSize)
	for {
		if h.pauseMask()&engine.PauseSend != 0 {
			return false
		}
		n, err := h.cbs.Read(buf)
		if n > 0 {
			st.uploaded += int64(n)
		}
		switch {
		case errors.Is(err, engine.ErrPauseTransfer):
			h.orPause(engine.PauseSend)
			return false
		case err == io.EOF, err == nil && n == 0:
			st.upDone = true
			return true
		case err != nil:
			m.finish(h, now, err)
			return false
		}
	}
}

// schedule announces the earliest pending wake-up, or cancels the timer
// when no member can make timed progress.
func (m *multi) schedule(now time.Time) {
	if m.hooks == nil || m.closed {
		return
	}

	var next time.Time
	for h := range m.members {
		st := h.st
		if st == nil || st.done || h.blocked() {
			continue
		}
		due := st.notBefore
		if due.Before(now) {
			due = now
		}
		if next.IsZero() || due.Before(next) {
			next = due
		}
	}

	if next.IsZero() {
		m.hooks.TimerRequest(-1)
		return
	}
	ms := next.Sub(now).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	m.hooks.TimerRequest(ms)
}
