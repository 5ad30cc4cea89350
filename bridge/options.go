package bridge

import (
	"errors"
	"log/slog"
)

// Option is a functional option for configuring a [Runtime] via [New].
type Option func(*options) error

type options struct {
	workers *int
	logger  *slog.Logger
}

// WithWorkers bounds the number of tasks the runtime executes
// concurrently.
func WithWorkers(n int) Option {
	return func(o *options) error {
		o.workers = &n
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Runtime].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger

		return nil
	}
}
