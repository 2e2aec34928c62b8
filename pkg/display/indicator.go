// Package display turns processed measurements into indicator positions on
// an LED strip. It only decides which LED is lit and why; colours and the
// strip driver live elsewhere.
package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/itohio/rangeled/pkg/ranging"
)

// State describes why an LED is lit.
type State uint8

const (
	Normal   State = iota // Target inside the display range
	TooClose              // Target nearer than MinMM, first LED
	TooFar                // Target beyond MaxMM or out of sensor range, last LED
	Off                   // Sensor timed out, strip dark
	Fault                 // Sensor error, first LED
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case TooClose:
		return "too_close"
	case TooFar:
		return "too_far"
	case Off:
		return "off"
	case Fault:
		return "fault"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Frame is one display update.
type Frame struct {
	Index       int // Lit LED, -1 when State is Off
	State       State
	Measurement ranging.Measurement
}

// Config maps the distance range onto the strip.
type Config struct {
	LEDCount int
	MinMM    uint16
	MaxMM    uint16
}

// DefaultConfig returns a 30 LED strip covering 10 cm to 4 m.
func DefaultConfig() Config {
	return Config{LEDCount: 30, MinMM: 100, MaxMM: 4000}
}

// Validate checks that the range and strip length are usable.
func (c Config) Validate() error {
	if c.LEDCount < 1 {
		return fmt.Errorf("led count must be positive, got %d", c.LEDCount)
	}
	if c.MinMM >= c.MaxMM {
		return fmt.Errorf("min distance %d mm must be below max distance %d mm", c.MinMM, c.MaxMM)
	}
	return nil
}

// Source supplies measurements; ranging.Sensor satisfies it.
type Source interface {
	Latest(ctx context.Context) (ranging.Measurement, error)
}

// Indicator consumes measurements and keeps the current frame.
type Indicator struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	frame    Frame
	hasFrame bool
	shutdown bool

	callbacks []func(Frame)
	cbMu      sync.RWMutex
}

// New creates an indicator. A nil logger means slog.Default().
func New(cfg Config, logger *slog.Logger) (*Indicator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indicator{
		cfg:    cfg,
		logger: logger.With("component", "display"),
	}, nil
}

// Map computes the frame for m without touching indicator state.
func (i *Indicator) Map(m ranging.Measurement) Frame {
	last := i.cfg.LEDCount - 1

	switch m.Status {
	case ranging.StatusOK:
		switch {
		case m.DistanceMM < i.cfg.MinMM:
			return Frame{Index: 0, State: TooClose, Measurement: m}
		case m.DistanceMM > i.cfg.MaxMM:
			return Frame{Index: last, State: TooFar, Measurement: m}
		}
		span := uint64(i.cfg.MaxMM - i.cfg.MinMM)
		idx := uint64(m.DistanceMM-i.cfg.MinMM) * uint64(last) / span
		return Frame{Index: int(idx), State: Normal, Measurement: m}
	case ranging.StatusTimeout:
		return Frame{Index: -1, State: Off, Measurement: m}
	case ranging.StatusOutOfRange:
		return Frame{Index: last, State: TooFar, Measurement: m}
	default:
		return Frame{Index: 0, State: Fault, Measurement: m}
	}
}

// Update maps m, stores the frame and notifies callbacks. After Run has
// returned, updates are ignored.
func (i *Indicator) Update(m ranging.Measurement) {
	f := i.Map(m)

	i.mu.Lock()
	if i.shutdown {
		i.mu.Unlock()
		return
	}
	i.frame = f
	i.hasFrame = true
	i.mu.Unlock()

	i.logger.Debug("display update", "index", f.Index, "state", f.State, "distance_mm", m.DistanceMM, "status", m.Status)
	i.notifyCallbacks(f)
}

// Run blocks on src and updates the display for every measurement until
// ctx is done. Errors other than cancellation end the loop.
func (i *Indicator) Run(ctx context.Context, src Source) error {
	defer func() {
		i.mu.Lock()
		i.shutdown = true
		i.mu.Unlock()
	}()

	i.logger.Info("display started", "leds", i.cfg.LEDCount, "min_mm", i.cfg.MinMM, "max_mm", i.cfg.MaxMM)
	for {
		m, err := src.Latest(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed to read measurement: %w", err)
		}
		i.Update(m)
	}
}

// Frame returns the current frame, if any.
func (i *Indicator) Frame() (Frame, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.frame, i.hasFrame
}

// Config returns the indicator configuration.
func (i *Indicator) Config() Config {
	return i.cfg
}

// OnUpdate registers a callback invoked with every new frame.
func (i *Indicator) OnUpdate(callback func(Frame)) {
	i.cbMu.Lock()
	defer i.cbMu.Unlock()
	i.callbacks = append(i.callbacks, callback)
}

func (i *Indicator) notifyCallbacks(f Frame) {
	i.cbMu.RLock()
	callbacks := make([]func(Frame), len(i.callbacks))
	copy(callbacks, i.callbacks)
	i.cbMu.RUnlock()

	for _, cb := range callbacks {
		cb(f)
	}
}
