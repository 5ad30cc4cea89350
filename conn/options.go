package conn

import (
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpbridge/bridge"
	"github.com/adamwoolhether/httpbridge/engine"
)

// Option is a functional option for configuring a [Conn] via [New].
type Option func(*options) error

type options struct {
	eng     engine.Engine
	rt      *bridge.Runtime
	logger  *slog.Logger
	tracer  trace.Tracer
	timeout time.Duration
}

// settings aggregates the numeric knobs for validation.
type settings struct {
	RequestTimeout time.Duration `json:"request_timeout" validate:"gte=0"`
}

// WithEngine replaces the default [net/http]-backed engine.
func WithEngine(eng engine.Engine) Option {
	return func(o *options) error {
		if eng == nil {
			return errors.New("engine must not be nil")
		}
		o.eng = eng

		return nil
	}
}

// WithRuntime shares rt instead of building an owned runtime. The
// connection retains its own reference and releases it on Close, so
// the runtime stays alive until every holder has closed.
func WithRuntime(rt *bridge.Runtime) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("runtime must not be nil")
		}
		o.rt = rt

		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Conn].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger

		return nil
	}
}

// WithTracer records a span per submitted request on tr. The default
// tracer is a no-op.
func WithTracer(tr trace.Tracer) Option {
	return func(o *options) error {
		if tr == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tr

		return nil
	}
}

// WithRequestTimeout bounds each request cycle: the clock starts at
// Submit and covers dispatch plus every body read. Zero, the default,
// means no deadline; a hung exchange then blocks its caller for as
// long as the server stalls.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.timeout = d
		return nil
	}
}
