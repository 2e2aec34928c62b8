package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/itohio/rangeled/pkg/config"
	"github.com/itohio/rangeled/pkg/echo"
	"github.com/itohio/rangeled/pkg/ranging"
)

// newSensor builds the simulator or a driver over the configured backend.
func newSensor(cfg *config.Config, logger *slog.Logger) (ranging.Sensor, error) {
	if cfg.Simulator.Enabled {
		logger.Info("using sweep simulator")
		return ranging.NewSimulator(
			ranging.WithLogger(logger),
			ranging.WithSweep(cfg.Simulator.MinMM, cfg.Simulator.MaxMM, cfg.Simulator.StepMM),
		), nil
	}

	t, err := newTransducer(cfg.Sensor, logger)
	if err != nil {
		return nil, err
	}
	return ranging.NewDriver(t, ranging.WithLogger(logger)), nil
}

func newTransducer(sc config.SensorConfig, logger *slog.Logger) (echo.Transducer, error) {
	opts := []echo.Option{echo.WithLogger(logger)}

	switch sc.Backend {
	case config.BackendSerial:
		return echo.NewSerial(sc.Serial.Port, sc.Serial.Baud, opts...), nil
	case config.BackendCdev:
		return echo.NewCdev(sc.Chip, sc.TriggerPin, sc.EchoPin, opts...), nil
	case config.BackendPeriph:
		p, err := echo.NewPeriphByName(strconv.Itoa(sc.TriggerPin), strconv.Itoa(sc.EchoPin), opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to set up periph pins: %w", err)
		}
		return p, nil
	case config.BackendMock:
		mc := sc.Mock
		return echo.NewMock(&mc, opts...), nil
	default:
		return nil, fmt.Errorf("unknown sensor backend %q", sc.Backend)
	}
}
