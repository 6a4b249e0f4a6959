package asyncurl_test

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/MericLuc/asyncurl"
	"github.com/MericLuc/asyncurl/engine"
	"github.com/MericLuc/asyncurl/engine/memengine"
	"github.com/MericLuc/asyncurl/evloop"
)

func ExampleNew() {
	mem, err := memengine.New(memengine.WithResponse("https://example.com/greeting", memengine.Response{
		ContentType: "text/plain",
		Body:        []byte("hello"),
	}))
	if err != nil {
		fmt.Println("engine error:", err)
		return
	}

	tr, err := asyncurl.New(mem)
	if err != nil {
		fmt.Println("transfer error:", err)
		return
	}
	defer tr.Close()

	if err := tr.SetString(engine.OptURL, "https://example.com/greeting"); err != nil {
		fmt.Println("option error:", err)
		return
	}

	var body bytes.Buffer
	tr.OnWrite(func(p []byte) (int, error) { return body.Write(p) })

	if err := tr.Perform(); err != nil {
		fmt.Println("perform error:", err)
		return
	}

	code, _ := tr.LongInfo(engine.InfoResponseCode)
	fmt.Printf("%d: %s\n", code, body.String())
	// Output: 200: hello
}

func ExampleNewSession() {
	mem, err := memengine.New(
		memengine.WithResponse("https://example.com/data", memengine.Response{Body: []byte("hello")}),
		memengine.WithLatency(10*time.Millisecond))
	if err != nil {
		fmt.Println("engine error:", err)
		return
	}

	loop := evloop.New()
	sess, err := asyncurl.NewSession(loop, mem)
	if err != nil {
		fmt.Println("session error:", err)
		return
	}
	defer sess.Close()

	tr, err := asyncurl.New(mem)
	if err != nil {
		fmt.Println("transfer error:", err)
		return
	}
	defer tr.Close()

	if err := tr.SetString(engine.OptURL, "https://example.com/data"); err != nil {
		fmt.Println("option error:", err)
		return
	}

	var body bytes.Buffer
	tr.OnWrite(func(p []byte) (int, error) { return body.Write(p) })
	tr.OnDone(func(_ *asyncurl.Transfer, _ error) {
		fmt.Printf("finished with %d bytes\n", body.Len())
		loop.Stop()
	})

	if err := sess.Add(tr); err != nil {
		fmt.Println("add error:", err)
		return
	}
	if err := loop.Run(context.Background()); err != nil {
		fmt.Println("loop error:", err)
	}
	// Output: finished with 5 bytes
}
