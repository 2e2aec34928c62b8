package ranging

import "context"

// Sensor is the contract shared by Driver and Simulator. Display and
// telemetry code depend on this rather than on a concrete source.
type Sensor interface {
	Init(cfg *Config) error
	Start() error
	Stop() error
	Close() error

	Latest(ctx context.Context) (Measurement, error)
	TryLatest() (Measurement, error)
	HasNewMeasurement() bool
	Last() (Measurement, bool)

	QueueOverflows() uint32
	IsRunning() bool
	Monitor() error
}

var (
	_ Sensor = (*Driver)(nil)
	_ Sensor = (*Simulator)(nil)
)
