package evloop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MericLuc/asyncurl/evloop"
)

func TestLoop_RunExecutesPostedCallbacks(t *testing.T) {
	loop := evloop.New()

	var order []int
	loop.Post(func() { order = append(order, 1) })
	loop.Post(func() { order = append(order, 2) })
	loop.Post(func() {
		order = append(order, 3)
		loop.Stop()
	})

	if err := loop.Run(t.Context()); err != nil {
		t.Fatalf("expected nil from stopped run, got: %v", err)
	}

	if len(order) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(order))
	}
	for i, v := range order {
		if v != i+1 {
			t.Errorf("callback %d ran out of order: got %d", i, v)
		}
	}
}

func TestLoop_StopHaltsBeforeLaterCallbacks(t *testing.T) {
	loop := evloop.New()

	var ranAfterStop bool
	loop.Post(func() { loop.Stop() })
	loop.Post(func() { ranAfterStop = true })

	if err := loop.Run(t.Context()); err != nil {
		t.Fatalf("expected nil from stopped run, got: %v", err)
	}
	if ranAfterStop {
		t.Error("callback queued behind Stop should not have run")
	}
}

func TestLoop_RunTwiceRejected(t *testing.T) {
	loop := evloop.New()

	started := make(chan struct{})
	loop.Post(func() { close(started) })

	runDone := make(chan error, 1)
	go func() {
		runDone <- loop.Run(t.Context())
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not start within timeout")
	}

	if err := loop.Run(t.Context()); !errors.Is(err, evloop.ErrRunning) {
		t.Errorf("expected ErrRunning from second Run, got: %v", err)
	}

	loop.Stop()
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("expected nil from stopped run, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop within timeout")
	}
}

func TestLoop_ContextCancellation(t *testing.T) {
	loop := evloop.New()

	ctx, cancel := context.WithCancel(t.Context())

	runDone := make(chan error, 1)
	go func() {
		runDone <- loop.Run(ctx)
	}()

	cancel()
	select {
	case err := <-runDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not observe cancellation within timeout")
	}
}

func TestLoop_RunAgainAfterStop(t *testing.T) {
	loop := evloop.New()

	var runs int
	loop.Post(func() {
		runs++
		loop.Stop()
	})
	if err := loop.Run(t.Context()); err != nil {
		t.Fatalf("first run: expected nil, got: %v", err)
	}

	loop.Post(func() {
		runs++
		loop.Stop()
	})
	if err := loop.Run(t.Context()); err != nil {
		t.Fatalf("second run: expected nil, got: %v", err)
	}

	if runs != 2 {
		t.Errorf("expected both runs to execute their callback, got %d", runs)
	}
}

func TestLoop_PostFromAnotherGoroutine(t *testing.T) {
	loop := evloop.New()

	delivered := make(chan struct{})
	go func() {
		loop.Post(func() {
			close(delivered)
			loop.Stop()
		})
	}()

	runDone := make(chan error, 1)
	go func() {
		runDone <- loop.Run(t.Context())
	}()

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("posted callback was not delivered within timeout")
	}
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("expected nil from stopped run, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop within timeout")
	}
}

func TestLoop_TickDrainsUntilIdle(t *testing.T) {
	loop := evloop.New()

	var ran []string
	loop.Post(func() {
		ran = append(ran, "first")
		// A callback scheduling more work keeps the tick going.
		loop.Post(func() { ran = append(ran, "chained") })
	})

	loop.Tick()

	if len(ran) != 2 || ran[0] != "first" || ran[1] != "chained" {
		t.Errorf("expected [first chained], got %v", ran)
	}

	// An idle tick is a no-op.
	loop.Tick()
	if len(ran) != 2 {
		t.Errorf("expected idle tick to run nothing, got %v", ran)
	}
}

func TestLoop_TickFiresDueTimers(t *testing.T) {
	loop := evloop.New()

	var fired bool
	tm := loop.NewTimer(func() { fired = true })
	tm.Arm(0)

	loop.Tick()

	if !fired {
		t.Error("expected due timer to fire during tick")
	}
	if tm.Armed() {
		t.Error("expected one-shot timer to be disarmed after firing")
	}
}
