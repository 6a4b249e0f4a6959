package asyncurl

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// SessionOption is a functional option for configuring a [Session] via
// [NewSession].
type SessionOption func(*sessionOptions) error

type sessionOptions struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// WithLogger injects a custom [slog.Logger] into the [Session].
func WithLogger(logger *slog.Logger) SessionOption {
	return func(o *sessionOptions) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTracer records one span per owned transfer on the given tracer,
// opened at add and closed with the transfer's outcome. Without it a no-op
// tracer is used.
func WithTracer(tracer trace.Tracer) SessionOption {
	return func(o *sessionOptions) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}
