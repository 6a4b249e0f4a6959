// Package asyncurl provides a callback-driven wrapper around a pluggable
// transfer engine, with a blocking path for one-shot transfers and a
// non-blocking session for running many transfers concurrently from a
// single event loop goroutine.
//
// # Performing a Transfer
//
// Create a [Transfer] on an [engine.Engine], configure it with typed
// setters or [Transfer.Configure], and run it to completion with
// [Transfer.Perform]:
//
//	t, err := asyncurl.New(eng)
//	err = t.SetString(engine.OptURL, "https://example.com/data")
//	t.OnWrite(func(p []byte) (int, error) {
//		return file.Write(p)
//	})
//	err = t.Perform()
//
// # Running Transfers Concurrently
//
// A [Session] owns an [evloop.Loop] timer and one watcher per engine
// socket, and never blocks. Hand it transfers with [Session.Add]; each
// one is released through its done callback when it finishes:
//
//	s, err := asyncurl.NewSession(loop, eng)
//	t.OnDone(func(t *asyncurl.Transfer, result error) {
//		fmt.Println("finished:", result)
//	})
//	err = s.Add(t)
//	err = loop.Run(ctx)
//
// All session methods and callbacks belong to the loop goroutine. A
// transfer owned by a session cannot Perform; remove it first or wait for
// the done callback.
//
// # Pausing
//
// Returning [ErrPauseTransfer] from a write or read callback pauses that
// direction of the transfer. Resume with [Transfer.Unpause]. Returning
// [ErrAbortTransfer] from any data callback fails the transfer.
//
// # Engines
//
// The engine contract lives in the
// [github.com/MericLuc/asyncurl/engine] package. The in-memory engine in
// [github.com/MericLuc/asyncurl/engine/memengine] serves tests and
// examples without touching the network.
package asyncurl
