package ranging

import (
	"context"
	"fmt"
)

// Default triangle sweep of the Simulator.
const (
	DefaultSweepMinMM  = 50
	DefaultSweepMaxMM  = 600
	DefaultSweepStepMM = 5
)

// Simulator is a drop-in Sensor that needs no hardware: it publishes a
// triangle wave of distances bouncing between two limits, one step per
// cycle, always with StatusOK.
type Simulator struct {
	pipeline
	opts options
}

// NewSimulator creates a simulator. Use WithSweep to change the wave.
func NewSimulator(opts ...Option) *Simulator {
	o := buildOptions(opts)
	return &Simulator{
		pipeline: pipeline{logger: o.logger},
		opts:     o,
	}
}

// Init validates cfg the same way Driver does; only the measurement interval
// is used.
func (s *Simulator) Init(cfg *Config) error {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	c, err := c.normalize(s.logger)
	if err != nil {
		return err
	}

	sw, err := newSweep(s.opts.sweepMinMM, s.opts.sweepMaxMM, s.opts.sweepStepMM)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return fmt.Errorf("%w: cannot initialize while running", ErrInvalidState)
	}

	clk := s.opts.clock
	s.reset(c.MeasurementInterval, func(context.Context) (Measurement, bool) {
		return Measurement{
			DistanceMM:  sw.next(),
			TimestampUS: clk.NowUS(),
			Status:      StatusOK,
		}, true
	})

	s.logger.Info("ultrasonic simulator initialized",
		"interval", c.MeasurementInterval,
		"min_mm", sw.min,
		"max_mm", sw.max,
		"step_mm", sw.step,
	)
	return nil
}

// Monitor logs new overflows and fails when the simulator is not running.
func (s *Simulator) Monitor() error {
	return s.monitor()
}

// Close stops the simulator and drops its channel.
func (s *Simulator) Close() error {
	s.shutdown()
	return nil
}

// sweep is the triangle wave generator. The first value is min+step.
type sweep struct {
	min, max, step uint16
	current        uint16
	rising         bool
}

func newSweep(minMM, maxMM, stepMM uint16) (*sweep, error) {
	if stepMM == 0 || minMM >= maxMM {
		return nil, fmt.Errorf("%w: bad sweep %d..%d step %d", ErrInvalidConfig, minMM, maxMM, stepMM)
	}
	return &sweep{min: minMM, max: maxMM, step: stepMM, current: minMM, rising: true}, nil
}

func (s *sweep) next() uint16 {
	if s.rising {
		if s.max-s.current > s.step {
			s.current += s.step
		} else {
			s.current = s.max
		}
	} else {
		if s.current-s.min > s.step {
			s.current -= s.step
		} else {
			s.current = s.min
		}
	}

	if s.current >= s.max {
		s.rising = false
	} else if s.current <= s.min {
		s.rising = true
	}
	return s.current
}
