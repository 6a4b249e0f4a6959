package asyncurl_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MericLuc/asyncurl"
	"github.com/MericLuc/asyncurl/engine"
	"github.com/MericLuc/asyncurl/engine/memengine"
	"github.com/MericLuc/asyncurl/evloop"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runLoop drives the loop with a deadline so a wedged flow fails instead of
// hanging the test.
func runLoop(t *testing.T, loop *evloop.Loop) {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	if err := loop.Run(ctx); err != nil {
		t.Fatalf("loop ended abnormally: %v", err)
	}
}

func TestBlockingTransfer(t *testing.T) {
	const url = "https://unit.test/report"
	payload := []byte(`{"rows":128}`)

	mem, err := memengine.New(memengine.WithResponse(url, memengine.Response{
		Status:      200,
		ContentType: "application/json",
		Body:        payload,
	}))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	tr, err := asyncurl.New(mem)
	if err != nil {
		t.Fatalf("failed to create transfer: %v", err)
	}
	defer tr.Close()

	if err := tr.SetString(engine.OptURL, url); err != nil {
		t.Fatalf("failed to set url: %v", err)
	}

	var body bytes.Buffer
	var headerLines int
	tr.OnWrite(func(p []byte) (int, error) { return body.Write(p) })
	tr.OnHeader(func([]byte) error { headerLines++; return nil })

	var doneResult error
	var doneCalls int
	tr.OnDone(func(_ *asyncurl.Transfer, result error) {
		doneCalls++
		doneResult = result
	})

	if err := tr.Perform(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if doneCalls != 1 || doneResult != nil {
		t.Errorf("expected one successful done callback, got %d with %v", doneCalls, doneResult)
	}
	if !bytes.Equal(body.Bytes(), payload) {
		t.Errorf("expected body %q, got %q", payload, body.Bytes())
	}
	if headerLines == 0 {
		t.Error("expected header lines delivered")
	}

	code, err := tr.LongInfo(engine.InfoResponseCode)
	if err != nil || code != 200 {
		t.Errorf("expected status 200, got (%d, %v)", code, err)
	}
	effURL, err := tr.StringInfo(engine.InfoEffectiveURL)
	if err != nil || effURL != url {
		t.Errorf("expected effective url %q, got (%q, %v)", url, effURL, err)
	}
	down, err := tr.DoubleInfo(engine.InfoSizeDownload)
	if err != nil || down != float64(len(payload)) {
		t.Errorf("expected %d bytes downloaded, got (%v, %v)", len(payload), down, err)
	}
}

func TestNonBlockingTransfer(t *testing.T) {
	const url = "https://unit.test/data"
	payload := []byte("payload")

	mem, err := memengine.New(
		memengine.WithResponse(url, memengine.Response{Body: payload}),
		memengine.WithLatency(10*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	loop := evloop.New()
	sess, err := asyncurl.NewSession(loop, mem, asyncurl.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer sess.Close()

	tr, err := asyncurl.New(mem)
	if err != nil {
		t.Fatalf("failed to create transfer: %v", err)
	}
	defer tr.Close()
	if err := tr.SetString(engine.OptURL, url); err != nil {
		t.Fatalf("failed to set url: %v", err)
	}

	var body bytes.Buffer
	tr.OnWrite(func(p []byte) (int, error) { return body.Write(p) })

	var doneResult error
	tr.OnDone(func(_ *asyncurl.Transfer, result error) {
		doneResult = result
		loop.Stop()
	})

	if err := sess.Add(tr); err != nil {
		t.Fatalf("add: %v", err)
	}
	runLoop(t, loop)

	if doneResult != nil {
		t.Errorf("expected a successful completion, got: %v", doneResult)
	}
	if !bytes.Equal(body.Bytes(), payload) {
		t.Errorf("expected body %q, got %q", payload, body.Bytes())
	}
	if sess.Len() != 0 {
		t.Errorf("expected the session empty, got %d", sess.Len())
	}
	if tr.Session() != nil {
		t.Error("expected the transfer released")
	}

	// The released transfer keeps serving its outcome.
	code, err := tr.LongInfo(engine.InfoResponseCode)
	if err != nil || code != 200 {
		t.Errorf("expected status 200, got (%d, %v)", code, err)
	}
}

func TestConcurrentTransfers(t *testing.T) {
	urls := map[string][]byte{
		"https://unit.test/a": []byte("alpha"),
		"https://unit.test/b": []byte("bravo"),
		"https://unit.test/c": []byte("charlie"),
	}

	opts := []memengine.Option{memengine.WithLatency(10 * time.Millisecond)}
	for url, body := range urls {
		opts = append(opts, memengine.WithResponse(url, memengine.Response{Body: body}))
	}
	mem, err := memengine.New(opts...)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	loop := evloop.New()
	sess, err := asyncurl.NewSession(loop, mem, asyncurl.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer sess.Close()

	bodies := make(map[string]*bytes.Buffer, len(urls))
	var finished int
	for url := range urls {
		buf := &bytes.Buffer{}
		bodies[url] = buf

		tr, err := asyncurl.New(mem)
		if err != nil {
			t.Fatalf("failed to create transfer: %v", err)
		}
		defer tr.Close()
		if err := tr.SetString(engine.OptURL, url); err != nil {
			t.Fatalf("failed to set url: %v", err)
		}

		tr.OnWrite(func(p []byte) (int, error) { return buf.Write(p) })
		tr.OnDone(func(_ *asyncurl.Transfer, result error) {
			if result != nil {
				t.Errorf("transfer %s: expected no error, got: %v", url, result)
			}
			finished++
			if finished == len(urls) {
				loop.Stop()
			}
		})

		if err := sess.Add(tr); err != nil {
			t.Fatalf("add %s: %v", url, err)
		}
	}

	if sess.Len() != len(urls) {
		t.Fatalf("expected %d owned transfers, got %d", len(urls), sess.Len())
	}
	runLoop(t, loop)

	if finished != len(urls) {
		t.Errorf("expected %d completions, got %d", len(urls), finished)
	}
	for url, exp := range urls {
		if got := bodies[url].Bytes(); !bytes.Equal(got, exp) {
			t.Errorf("transfer %s: expected body %q, got %q", url, exp, got)
		}
	}
	if sess.Len() != 0 {
		t.Errorf("expected the session empty, got %d", sess.Len())
	}
}

func TestFailedTransferReportsResult(t *testing.T) {
	mem, err := memengine.New(memengine.WithLatency(5 * time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	loop := evloop.New()
	sess, err := asyncurl.NewSession(loop, mem, asyncurl.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer sess.Close()

	tr, err := asyncurl.New(mem)
	if err != nil {
		t.Fatalf("failed to create transfer: %v", err)
	}
	defer tr.Close()
	if err := tr.SetString(engine.OptURL, "https://unit.test/nowhere"); err != nil {
		t.Fatalf("failed to set url: %v", err)
	}

	var doneResult error
	tr.OnDone(func(_ *asyncurl.Transfer, result error) {
		doneResult = result
		loop.Stop()
	})

	if err := sess.Add(tr); err != nil {
		t.Fatalf("add: %v", err)
	}
	runLoop(t, loop)

	if !errors.Is(doneResult, memengine.ErrNoResponse) {
		t.Errorf("expected the engine failure as result, got: %v", doneResult)
	}
	if tr.Session() != nil {
		t.Error("expected the failed transfer released")
	}
}

func TestPauseAndResumeUnderSession(t *testing.T) {
	const url = "https://unit.test/data"

	mem, err := memengine.New(
		memengine.WithResponse(url, memengine.Response{Body: []byte("abcdefgh")}),
		memengine.WithChunkSize(4),
		memengine.WithLatency(10*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	loop := evloop.New()
	sess, err := asyncurl.NewSession(loop, mem, asyncurl.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer sess.Close()

	tr, err := asyncurl.New(mem)
	if err != nil {
		t.Fatalf("failed to create transfer: %v", err)
	}
	defer tr.Close()
	if err := tr.SetString(engine.OptURL, url); err != nil {
		t.Fatalf("failed to set url: %v", err)
	}

	var body bytes.Buffer
	var calls int
	var refused, redelivered string
	tr.OnWrite(func(p []byte) (int, error) {
		calls++
		if calls == 2 {
			refused = string(p)
			// Resume once the engine has parked the transfer.
			loop.Post(func() {
				if err := tr.Unpause(engine.PauseRecv); err != nil {
					t.Errorf("unpause: %v", err)
				}
			})
			return 0, asyncurl.ErrPauseTransfer
		}
		if calls == 3 {
			redelivered = string(p)
		}
		return body.Write(p)
	})

	var doneResult error
	tr.OnDone(func(_ *asyncurl.Transfer, result error) {
		doneResult = result
		loop.Stop()
	})

	if err := sess.Add(tr); err != nil {
		t.Fatalf("add: %v", err)
	}
	runLoop(t, loop)

	if doneResult != nil {
		t.Errorf("expected a successful completion, got: %v", doneResult)
	}
	if body.String() != "abcdefgh" {
		t.Errorf("expected the full body, got %q", body.String())
	}
	if refused != redelivered {
		t.Errorf("expected the refused chunk redelivered, got %q then %q", refused, redelivered)
	}
	if tr.IsPaused(engine.PauseAll) {
		t.Error("expected nothing paused after completion")
	}
}

func TestTransferReuseAcrossCompletions(t *testing.T) {
	const url = "https://unit.test/data"
	const rounds = 3
	payload := []byte("payload")

	mem, err := memengine.New(
		memengine.WithResponse(url, memengine.Response{Body: payload}),
		memengine.WithLatency(5*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	loop := evloop.New()
	sess, err := asyncurl.NewSession(loop, mem, asyncurl.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer sess.Close()

	tr, err := asyncurl.New(mem)
	if err != nil {
		t.Fatalf("failed to create transfer: %v", err)
	}
	defer tr.Close()
	if err := tr.SetString(engine.OptURL, url); err != nil {
		t.Fatalf("failed to set url: %v", err)
	}

	var body bytes.Buffer
	tr.OnWrite(func(p []byte) (int, error) { return body.Write(p) })

	var round int
	tr.OnDone(func(got *asyncurl.Transfer, result error) {
		if result != nil {
			t.Errorf("round %d: expected no error, got: %v", round, result)
		}
		round++
		if round < rounds {
			if err := sess.Add(got); err != nil {
				t.Errorf("round %d: re-add: %v", round, err)
			}
			return
		}
		loop.Stop()
	})

	if err := sess.Add(tr); err != nil {
		t.Fatalf("add: %v", err)
	}
	runLoop(t, loop)

	if round != rounds {
		t.Errorf("expected %d completions, got %d", rounds, round)
	}
	if got := body.Len(); got != rounds*len(payload) {
		t.Errorf("expected %d bytes over all rounds, got %d", rounds*len(payload), got)
	}
}
