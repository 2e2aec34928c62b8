package ranging

import (
	"fmt"
	"sync/atomic"

	"github.com/itohio/rangeled/pkg/echo"
)

// Driver measures distance with a real (or mocked) ultrasonic transducer.
//
// Typical use:
//
//	d := ranging.NewDriver(echo.NewSerial("/dev/ttyUSB0", 0))
//	if err := d.Init(nil); err != nil { ... }
//	if err := d.Start(); err != nil { ... }
//	m, err := d.Latest(ctx)
type Driver struct {
	pipeline

	transducer echo.Transducer
	opts       options

	// Guarded by pipeline.mu.
	cfg     Config
	raw     *queue[RawEdgeEvent]
	capture *capture

	lastRawDrops atomic.Uint32
}

// NewDriver creates a driver around t. Nothing touches the hardware until
// Init.
func NewDriver(t echo.Transducer, opts ...Option) *Driver {
	o := buildOptions(opts)
	return &Driver{
		pipeline:   pipeline{logger: o.logger},
		transducer: t,
		opts:       o,
	}
}

// Init validates cfg (nil means DefaultConfig), creates both channels and
// attaches the capture handler to the transducer. Re-initializing a stopped
// driver starts over with empty channels, counters and filter.
func (d *Driver) Init(cfg *Config) error {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	c, err := c.normalize(d.logger)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return fmt.Errorf("%w: cannot initialize while running", ErrInvalidState)
	}

	d.initialized = false
	if d.transducer.IsOpen() {
		if err := d.transducer.Close(); err != nil {
			return fmt.Errorf("failed to release transducer: %w", err)
		}
	}

	raw := newQueue[RawEdgeEvent](RawQueueSize)
	capt := newCapture(raw)
	if err := d.transducer.Open(capt.onEdge); err != nil {
		return fmt.Errorf("failed to open transducer: %w", err)
	}

	d.cfg = c
	d.raw = raw
	d.capture = capt
	d.lastRawDrops.Store(0)
	d.reset(c.MeasurementInterval, newProcessor(c, d.transducer, raw, d.opts).measure)

	d.logger.Info("ultrasonic sensor initialized",
		"trigger_pin", c.TriggerPin,
		"echo_pin", c.EchoPin,
		"interval", c.MeasurementInterval,
		"timeout", c.Timeout,
		"temperature_cx10", c.TemperatureCx10,
		"smoothing_factor", c.SmoothingFactor,
	)
	return nil
}

// Config returns the effective configuration after Init.
func (d *Driver) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// RawDrops counts echo events lost because the processor was not keeping up.
func (d *Driver) RawDrops() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.raw == nil {
		return 0
	}
	return d.raw.drops()
}

// SpuriousEdges counts falling edges seen without a preceding rising edge.
func (d *Driver) SpuriousEdges() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture == nil {
		return 0
	}
	return d.capture.spurious.Load()
}

// Monitor logs new processed queue overflows and raw channel drops, and
// fails when the measurement task is not running.
func (d *Driver) Monitor() error {
	if total := d.RawDrops(); total > 0 {
		if prev := d.lastRawDrops.Swap(total); total > prev {
			d.logger.Warn("raw echo events dropped", "new", total-prev, "total", total)
		}
	}
	return d.monitor()
}

// Close stops measuring and releases the transducer.
func (d *Driver) Close() error {
	d.shutdown()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.raw = nil
	d.capture = nil

	if !d.transducer.IsOpen() {
		return nil
	}
	if err := d.transducer.Close(); err != nil {
		return fmt.Errorf("failed to close transducer: %w", err)
	}
	return nil
}
