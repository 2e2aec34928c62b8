package ranging

import (
	"log/slog"

	"github.com/itohio/rangeled/pkg/clock"
)

type options struct {
	clock  clock.Clock
	logger *slog.Logger

	sweepMinMM  uint16
	sweepMaxMM  uint16
	sweepStepMM uint16
}

// Option configures a Driver or Simulator.
type Option func(*options)

// WithClock sets the clock used for measurement timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSweep sets the Simulator's triangle sweep. Ignored by Driver.
func WithSweep(minMM, maxMM, stepMM uint16) Option {
	return func(o *options) {
		o.sweepMinMM = minMM
		o.sweepMaxMM = maxMM
		o.sweepStepMM = stepMM
	}
}

func buildOptions(opts []Option) options {
	o := options{
		sweepMinMM:  DefaultSweepMinMM,
		sweepMaxMM:  DefaultSweepMaxMM,
		sweepStepMM: DefaultSweepStepMM,
	}
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
