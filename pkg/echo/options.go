package echo

import (
	"log/slog"

	"github.com/itohio/rangeled/pkg/clock"
)

type options struct {
	clock  clock.Clock
	logger *slog.Logger
}

// Option configures a transducer backend.
type Option func(*options)

// WithClock sets the clock used to timestamp edges on backends without
// hardware timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.Monotonic()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
