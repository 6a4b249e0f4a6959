package memengine

import (
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Option defines a function type for configuring the engine.
type Option func(*options) error

// options contains all optional engine parameters.
type options struct {
	responses map[string]Response
	fallback  *Response
	chunkSize int
	latency   time.Duration
	limiter   *rate.Limiter
}

// WithResponse scripts the response served for an exact URL.
func WithResponse(url string, resp Response) Option {
	return func(o *options) error {
		if url == "" {
			return errors.New("url must not be empty")
		}
		o.responses[url] = resp
		return nil
	}
}

// WithDefault scripts the response served for URLs without one of their
// own. Without it, transfers to unscripted URLs fail with [ErrNoResponse].
func WithDefault(resp Response) Option {
	return func(o *options) error {
		o.fallback = &resp
		return nil
	}
}

// WithChunkSize caps the bytes handed to the write callback per call.
func WithChunkSize(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return errors.New("chunk size must be positive")
		}
		o.chunkSize = n
		return nil
	}
}

// WithLatency delays the first byte of every transfer.
func WithLatency(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("latency must not be negative")
		}
		o.latency = d
		return nil
	}
}

// WithBandwidth paces download delivery across all transfers of the engine
// to bytesPerSec, allowing bursts of up to burst bytes.
func WithBandwidth(bytesPerSec float64, burst int) Option {
	return func(o *options) error {
		if bytesPerSec <= 0 {
			return errors.New("bandwidth must be positive")
		}
		if burst <= 0 {
			return errors.New("burst must be positive")
		}
		o.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
		return nil
	}
}
