package echo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/itohio/rangeled/pkg/acoustic"
	"github.com/itohio/rangeled/pkg/clock"
)

// MockConfig describes the simulated target and sensor.
type MockConfig struct {
	DistanceMM      uint16        `yaml:"distance_mm"`       // Target distance
	TemperatureCx10 int16         `yaml:"temperature_c_x10"` // Air temperature in tenths of °C
	BurstDelay      time.Duration `yaml:"burst_delay"`       // Trigger to echo rising edge
}

// DefaultMockConfig returns a target at 50 cm in 20 °C air.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		DistanceMM:      500,
		TemperatureCx10: 200,
		BurstDelay:      200 * time.Microsecond,
	}
}

// Mock simulates an HC-SR04 for testing and development.
//
// Each trigger produces a rising edge after the burst delay and a falling
// edge one echo duration later. Edge timestamps are derived from the clock
// reading at trigger time, so with a manual clock the reported pulse width
// is exact.
type Mock struct {
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.RWMutex
	cfg      MockConfig
	silent   bool
	onEdge   EdgeFunc
	ctx      context.Context
	cancel   context.CancelFunc
	open     bool
	triggers int
}

// NewMock creates a new mocked transducer instance.
func NewMock(cfg *MockConfig, opts ...Option) *Mock {
	c := DefaultMockConfig()
	if cfg != nil {
		c = *cfg
	}
	o := buildOptions(opts)

	return &Mock{
		cfg:    c,
		clock:  o.clock,
		logger: o.logger.With("transducer", "mock"),
	}
}

// Open starts accepting triggers.
func (m *Mock) Open(onEdge EdgeFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.open {
		return ErrAlreadyOpen
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.onEdge = onEdge
	m.open = true
	return nil
}

// Close stops the mock; echoes still in flight are discarded.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return nil
	}

	m.cancel()
	m.open = false
	return nil
}

// IsOpen returns whether the mock is open.
func (m *Mock) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open
}

// SetDistance moves the simulated target.
func (m *Mock) SetDistance(mm uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.DistanceMM = mm
}

// SetSilent makes the mock swallow triggers without echoing, like a sensor
// pointed at open space or with a broken echo line.
func (m *Mock) SetSilent(silent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.silent = silent
}

// Triggers returns the number of trigger pulses received.
func (m *Mock) Triggers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.triggers
}

// InjectEdge delivers a single edge immediately, e.g. a spurious falling
// edge caused by line noise.
func (m *Mock) InjectEdge(rising bool) error {
	m.mu.RLock()
	onEdge, open := m.onEdge, m.open
	m.mu.RUnlock()

	if !open {
		return ErrNotOpen
	}
	onEdge(rising, m.clock.NowUS())
	return nil
}

// Trigger schedules the echo for the current target.
func (m *Mock) Trigger(width time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return ErrNotOpen
	}
	if width <= 0 {
		return fmt.Errorf("invalid trigger width %v", width)
	}
	m.triggers++

	if m.silent {
		return nil
	}

	speed := acoustic.SpeedOfSoundScaled(m.cfg.TemperatureCx10)
	echoUS := acoustic.EchoDurationUS(uint64(m.cfg.DistanceMM), speed)
	riseUS := m.clock.NowUS() + uint64(width.Microseconds()) + uint64(m.cfg.BurstDelay.Microseconds())
	fallUS := riseUS + echoUS

	ctx, onEdge := m.ctx, m.onEdge
	echoWidth := time.Duration(echoUS) * time.Microsecond

	time.AfterFunc(m.cfg.BurstDelay, func() {
		if ctx.Err() != nil {
			return
		}
		onEdge(true, riseUS)

		select {
		case <-time.After(echoWidth):
		case <-ctx.Done():
			return
		}
		onEdge(false, fallUS)
	})

	return nil
}
