package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/itohio/rangeled/pkg/config"
	"github.com/itohio/rangeled/pkg/display"
	"github.com/itohio/rangeled/pkg/echo"
	"github.com/itohio/rangeled/pkg/telemetry"
)

func main() {
	var (
		configFlag    = flag.String("config", "config.yaml", "Configuration file path")
		backendFlag   = flag.String("backend", "", "Transducer backend override: serial, cdev, periph or mock")
		portFlag      = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		simFlag       = flag.Bool("sim", false, "Use the sweep simulator instead of a sensor")
		listPortsFlag = flag.Bool("list-ports", false, "List serial ports and exit")
		logLevelFlag  = flag.String("log-level", "", "Log level override: debug, info, warn, error")
	)
	flag.Parse()

	if *listPortsFlag {
		ports, err := echo.Ports()
		if err != nil {
			log.Fatalf("Failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p.Name)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line overrides
	if *backendFlag != "" {
		cfg.Sensor.Backend = *backendFlag
	}
	if *portFlag != "" {
		cfg.Sensor.Serial.Port = *portFlag
	}
	if *simFlag {
		cfg.Simulator.Enabled = true
	}
	if *logLevelFlag != "" {
		cfg.Log.Level = *logLevelFlag
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("rangeled stopped", "err", err)
		os.Exit(1)
	}
}

// run wires sensor, display and telemetry together and blocks until ctx is
// done or the display loop fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sensor, err := newSensor(cfg, logger)
	if err != nil {
		return err
	}
	defer sensor.Close()

	rc := cfg.Ranging()
	if err := sensor.Init(&rc); err != nil {
		return fmt.Errorf("failed to initialize sensor: %w", err)
	}

	indicator, err := display.New(cfg.Indicator(), logger)
	if err != nil {
		return fmt.Errorf("failed to create display: %w", err)
	}
	ledCount := cfg.Display.LEDCount
	indicator.OnUpdate(func(f display.Frame) {
		fmt.Printf("\r%s", display.Bar(f, ledCount))
	})

	if tc := cfg.Telemetry(); tc.Enabled() {
		pub, err := telemetry.Dial(ctx, tc, logger)
		if err != nil {
			// Telemetry is optional; keep measuring without it.
			logger.Warn("telemetry disabled", "err", err)
		} else {
			defer pub.Close()
			indicator.OnUpdate(func(f display.Frame) { pub.Observe(f.Measurement) })
			go pub.Run(ctx)
		}
	}

	if err := sensor.Start(); err != nil {
		return fmt.Errorf("failed to start sensor: %w", err)
	}
	defer sensor.Stop()

	go monitor(ctx, sensor, cfg.Monitor.Interval)

	err = indicator.Run(ctx, sensor)
	fmt.Println()
	return err
}

func monitor(ctx context.Context, sensor interface{ Monitor() error }, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Monitor logs its own findings.
			_ = sensor.Monitor()
		}
	}
}
