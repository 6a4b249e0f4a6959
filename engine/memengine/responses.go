package memengine

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MericLuc/asyncurl/engine"
)

// Response scripts what the engine serves for a URL.
type Response struct {
	// Status is the HTTP status code, 200 when zero.
	Status int

	// ContentType is served as the Content-Type header when non-empty.
	ContentType string

	// Headers holds extra header lines, without line endings.
	Headers []string

	// Body is the response payload.
	Body []byte

	// Err, when non-nil, fails the transfer with this result instead of
	// serving the response.
	Err error
}

// headerLines renders the response head the way a wire engine hands it to
// the header callback: one CRLF-terminated line per call, closed by the
// blank separator line.
func headerLines(r Response) [][]byte {
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	lines := [][]byte{
		fmt.Appendf(nil, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status)),
	}
	if r.ContentType != "" {
		lines = append(lines, fmt.Appendf(nil, "Content-Type: %s\r\n", r.ContentType))
	}
	lines = append(lines, fmt.Appendf(nil, "Content-Length: %d\r\n", len(r.Body)))
	for _, h := range r.Headers {
		lines = append(lines, []byte(h+"\r\n"))
	}
	return append(lines, []byte("\r\n"))
}

// state tracks one exchange on a handle, from preparation to completion.
// It survives until the next Perform, Add or Reset so the info getters can
// keep serving the finished transfer.
type state struct {
	resp   Response
	effURL string

	header  [][]byte
	hdrNext int

	off      int
	uploaded int64
	upDone   bool

	started   time.Time
	notBefore time.Time
	deadline  time.Time

	done     bool
	finished time.Time
	result   error
}

// prepare resolves the scripted response and stages delivery state on the
// handle. Resolution failures surface through the completion result, never
// here, matching a wire engine that only fails once the transfer runs.
func (h *handle) prepare(now time.Time) {
	url := h.strings[engine.OptURL]
	st := &state{
		effURL:    url,
		started:   now,
		notBefore: now.Add(h.eng.latency),
	}

	if url == "" {
		st.resp.Err = errors.New("no url configured")
	} else {
		resp, err := h.eng.lookup(url)
		if err != nil {
			st.resp.Err = err
		} else {
			st.resp = resp
		}
	}
	if st.resp.Err == nil {
		st.header = headerLines(st.resp)
	}

	if ms := h.longs[engine.OptTimeoutMS]; ms > 0 {
		st.deadline = now.Add(time.Duration(ms) * time.Millisecond)
	}
	h.st = st
}

// respBody is the body left to serve, empty under OptNoBody.
func (h *handle) respBody() []byte {
	if h.longs[engine.OptNoBody] != 0 {
		return nil
	}
	return h.st.resp.Body
}

func (h *handle) statusCode() int64 {
	st := h.st
	if st == nil || st.hdrNext == 0 {
		return 0
	}
	if st.resp.Status == 0 {
		return http.StatusOK
	}
	return int64(st.resp.Status)
}

// elapsed is the transfer duration so far, frozen at completion.
func (st *state) elapsed(now time.Time) time.Duration {
	if st.done {
		return st.finished.Sub(st.started)
	}
	return now.Sub(st.started)
}
