package ranging

import (
	"fmt"
	"log/slog"
	"time"
)

// Config parameterizes the measurement pipeline. It is immutable once
// passed to Init.
type Config struct {
	TriggerPin          int
	EchoPin             int
	MeasurementInterval time.Duration // Processor cycle period
	Timeout             time.Duration // Max wait for an echo
	TemperatureCx10     int16         // Air temperature in tenths of °C
	SmoothingFactor     uint16        // EMA weight of the new sample, 0..1000
}

// DefaultConfig returns the stock HC-SR04 wiring and timing.
func DefaultConfig() Config {
	return Config{
		TriggerPin:          14,
		EchoPin:             15,
		MeasurementInterval: 100 * time.Millisecond,
		Timeout:             30 * time.Millisecond,
		TemperatureCx10:     200, // 20.0 °C
		SmoothingFactor:     300, // 30% new, 70% previous
	}
}

// normalize validates c and clamps the smoothing factor.
func (c Config) normalize(logger *slog.Logger) (Config, error) {
	if c.MeasurementInterval <= 0 {
		return c, fmt.Errorf("%w: measurement interval must be > 0, got %v", ErrInvalidConfig, c.MeasurementInterval)
	}
	if c.Timeout <= 0 {
		return c, fmt.Errorf("%w: timeout must be > 0, got %v", ErrInvalidConfig, c.Timeout)
	}
	if c.TriggerPin == c.EchoPin {
		return c, fmt.Errorf("%w: trigger and echo share pin %d", ErrInvalidConfig, c.TriggerPin)
	}
	if c.SmoothingFactor > SmoothingScale {
		logger.Warn("smoothing factor cannot exceed 1000, using 1000 (no smoothing)", "smoothing_factor", c.SmoothingFactor)
		c.SmoothingFactor = SmoothingScale
	}
	return c, nil
}
