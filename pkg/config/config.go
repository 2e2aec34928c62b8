package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/rangeled/pkg/display"
	"github.com/itohio/rangeled/pkg/echo"
	"github.com/itohio/rangeled/pkg/ranging"
	"github.com/itohio/rangeled/pkg/telemetry"
)

// Transducer backends selectable in SensorConfig.Backend.
const (
	BackendSerial = "serial"
	BackendCdev   = "cdev"
	BackendPeriph = "periph"
	BackendMock   = "mock"
)

// Config represents the application configuration.
type Config struct {
	Sensor      SensorConfig      `yaml:"sensor"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Simulator   SimulatorConfig   `yaml:"simulator"`
	Display     DisplayConfig     `yaml:"display"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Log         LogConfig         `yaml:"log"`
}

// SensorConfig selects and wires the ultrasonic transducer.
type SensorConfig struct {
	Backend    string          `yaml:"backend"`     // serial, cdev, periph or mock
	TriggerPin int             `yaml:"trigger_pin"` // GPIO line offset / pin number
	EchoPin    int             `yaml:"echo_pin"`
	Chip       string          `yaml:"chip"` // GPIO character device, cdev backend only
	Serial     SerialConfig    `yaml:"serial"`
	Mock       echo.MockConfig `yaml:"mock"`
}

// SerialConfig contains serial port configuration for the edge forwarder.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// MeasurementConfig contains measurement parameters.
type MeasurementConfig struct {
	Interval        time.Duration `yaml:"interval"`
	Timeout         time.Duration `yaml:"timeout"`
	TemperatureCx10 int16         `yaml:"temperature_c_x10"` // 200 = 20.0 °C
	SmoothingFactor uint16        `yaml:"smoothing_factor"`  // 1000 = no smoothing
}

// SimulatorConfig replaces the sensor with a triangle sweep.
type SimulatorConfig struct {
	Enabled bool   `yaml:"enabled"`
	MinMM   uint16 `yaml:"min_mm"`
	MaxMM   uint16 `yaml:"max_mm"`
	StepMM  uint16 `yaml:"step_mm"`
}

// DisplayConfig maps distance onto the LED strip.
type DisplayConfig struct {
	LEDCount int    `yaml:"led_count"`
	MinMM    uint16 `yaml:"min_mm"`
	MaxMM    uint16 `yaml:"max_mm"`
}

// MonitorConfig controls the periodic health check.
type MonitorConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// MQTTConfig enables telemetry when Broker is set.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"` // host:port
	Topic     string        `yaml:"topic"`
	ClientID  string        `yaml:"client_id"`
	QoS       byte          `yaml:"qos"`
	KeepAlive time.Duration `yaml:"keep_alive"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	rc := ranging.DefaultConfig()
	dc := display.DefaultConfig()
	tc := telemetry.DefaultConfig()

	return &Config{
		Sensor: SensorConfig{
			Backend:    BackendSerial,
			TriggerPin: rc.TriggerPin,
			EchoPin:    rc.EchoPin,
			Chip:       "gpiochip0",
			Serial: SerialConfig{
				Port: "/dev/ttyACM0",
				Baud: echo.DefaultBaudRate,
			},
			Mock: echo.DefaultMockConfig(),
		},
		Measurement: MeasurementConfig{
			Interval:        rc.MeasurementInterval,
			Timeout:         rc.Timeout,
			TemperatureCx10: rc.TemperatureCx10,
			SmoothingFactor: rc.SmoothingFactor,
		},
		Simulator: SimulatorConfig{
			MinMM:  ranging.DefaultSweepMinMM,
			MaxMM:  ranging.DefaultSweepMaxMM,
			StepMM: ranging.DefaultSweepStepMM,
		},
		Display: DisplayConfig{
			LEDCount: dc.LEDCount,
			MinMM:    dc.MinMM,
			MaxMM:    dc.MaxMM,
		},
		Monitor: MonitorConfig{
			Interval: 5 * time.Second,
		},
		MQTT: MQTTConfig{
			Topic:     tc.Topic,
			ClientID:  tc.ClientID,
			KeepAlive: tc.KeepAlive,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills fields whose zero value is never valid. Zero is a
// legitimate temperature, so that one is left alone.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Sensor.Backend == "" {
		c.Sensor.Backend = def.Sensor.Backend
	}
	if c.Sensor.Chip == "" {
		c.Sensor.Chip = def.Sensor.Chip
	}
	if c.Sensor.Serial.Port == "" {
		c.Sensor.Serial.Port = def.Sensor.Serial.Port
	}
	if c.Sensor.Serial.Baud == 0 {
		c.Sensor.Serial.Baud = def.Sensor.Serial.Baud
	}
	if c.Sensor.Mock.DistanceMM == 0 {
		c.Sensor.Mock.DistanceMM = def.Sensor.Mock.DistanceMM
	}
	if c.Sensor.Mock.BurstDelay == 0 {
		c.Sensor.Mock.BurstDelay = def.Sensor.Mock.BurstDelay
	}

	if c.Measurement.Interval == 0 {
		c.Measurement.Interval = def.Measurement.Interval
	}
	if c.Measurement.Timeout == 0 {
		c.Measurement.Timeout = def.Measurement.Timeout
	}
	if c.Measurement.SmoothingFactor == 0 {
		c.Measurement.SmoothingFactor = def.Measurement.SmoothingFactor
	}

	if c.Simulator.MaxMM == 0 {
		c.Simulator.MaxMM = def.Simulator.MaxMM
	}
	if c.Simulator.StepMM == 0 {
		c.Simulator.StepMM = def.Simulator.StepMM
	}

	if c.Display.LEDCount == 0 {
		c.Display.LEDCount = def.Display.LEDCount
	}
	if c.Display.MaxMM == 0 {
		c.Display.MaxMM = def.Display.MaxMM
	}

	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = def.Monitor.Interval
	}

	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = def.MQTT.KeepAlive
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Validate checks every parameter against the limits the hardware and the
// display logic can handle.
func (c *Config) Validate() error {
	switch c.Sensor.Backend {
	case BackendSerial, BackendCdev, BackendPeriph, BackendMock:
	default:
		return fmt.Errorf("sensor.backend: unknown backend %q", c.Sensor.Backend)
	}
	if c.Sensor.TriggerPin == c.Sensor.EchoPin {
		return fmt.Errorf("sensor: trigger and echo share pin %d", c.Sensor.TriggerPin)
	}
	if c.Sensor.Serial.Baud <= 0 {
		return fmt.Errorf("sensor.serial.baud must be positive, got %d", c.Sensor.Serial.Baud)
	}

	m := c.Measurement
	if err := checkDuration("measurement.interval", m.Interval, 50*time.Millisecond, time.Second); err != nil {
		return err
	}
	if err := checkDuration("measurement.timeout", m.Timeout, 10*time.Millisecond, 50*time.Millisecond); err != nil {
		return err
	}
	if m.Timeout >= m.Interval {
		return fmt.Errorf("measurement.timeout (%v) must be shorter than measurement.interval (%v)", m.Timeout, m.Interval)
	}
	if err := checkRange("measurement.temperature_c_x10", int(m.TemperatureCx10), -200, 600); err != nil {
		return err
	}
	if err := checkRange("measurement.smoothing_factor", int(m.SmoothingFactor), 100, ranging.SmoothingScale); err != nil {
		return err
	}

	if c.Simulator.StepMM == 0 || c.Simulator.MinMM >= c.Simulator.MaxMM {
		return fmt.Errorf("simulator: bad sweep %d..%d step %d", c.Simulator.MinMM, c.Simulator.MaxMM, c.Simulator.StepMM)
	}

	d := c.Display
	if err := checkRange("display.led_count", d.LEDCount, 1, 100); err != nil {
		return err
	}
	if err := checkRange("display.min_mm", int(d.MinMM), 50, 1000); err != nil {
		return err
	}
	if err := checkRange("display.max_mm", int(d.MaxMM), 200, 4000); err != nil {
		return err
	}
	if d.MinMM >= d.MaxMM {
		return fmt.Errorf("display.max_mm (%d) must be greater than display.min_mm (%d)", d.MaxMM, d.MinMM)
	}

	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %v", c.Monitor.Interval)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Ranging converts the sensor and measurement sections for ranging.Driver.
func (c *Config) Ranging() ranging.Config {
	return ranging.Config{
		TriggerPin:          c.Sensor.TriggerPin,
		EchoPin:             c.Sensor.EchoPin,
		MeasurementInterval: c.Measurement.Interval,
		Timeout:             c.Measurement.Timeout,
		TemperatureCx10:     c.Measurement.TemperatureCx10,
		SmoothingFactor:     c.Measurement.SmoothingFactor,
	}
}

// Indicator converts the display section.
func (c *Config) Indicator() display.Config {
	return display.Config{
		LEDCount: c.Display.LEDCount,
		MinMM:    c.Display.MinMM,
		MaxMM:    c.Display.MaxMM,
	}
}

// Telemetry converts the mqtt section.
func (c *Config) Telemetry() telemetry.Config {
	return telemetry.Config{
		Broker:    c.MQTT.Broker,
		Topic:     c.MQTT.Topic,
		ClientID:  c.MQTT.ClientID,
		QoS:       c.MQTT.QoS,
		KeepAlive: c.MQTT.KeepAlive,
	}
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func checkRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s must be within %d..%d, got %d", name, lo, hi, v)
	}
	return nil
}

func checkDuration(name string, v, lo, hi time.Duration) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s must be within %v..%v, got %v", name, lo, hi, v)
	}
	return nil
}
