// Package telemetry forwards processed measurements to an MQTT broker as
// small JSON documents. Publishing is best effort: failures are logged and
// never reach the measurement pipeline.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/packets"
	"github.com/eclipse/paho.golang/paho"

	"github.com/itohio/rangeled/pkg/ranging"
)

const backlogSize = 16

// Config describes the broker connection.
type Config struct {
	Broker    string        // host:port, empty disables telemetry
	Topic     string
	ClientID  string
	QoS       byte
	KeepAlive time.Duration
}

// DefaultConfig returns a disabled configuration with sensible topic names.
func DefaultConfig() Config {
	return Config{
		Topic:     "rangeled/distance",
		ClientID:  "rangeled",
		KeepAlive: 30 * time.Second,
	}
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool {
	return c.Broker != ""
}

// Payload is the JSON document published per measurement.
type Payload struct {
	DistanceMM  uint16 `json:"distance_mm"`
	TimestampUS uint64 `json:"timestamp_us"`
	Status      string `json:"status"`
}

// Encode renders m as a JSON payload.
func Encode(m ranging.Measurement) ([]byte, error) {
	return json.Marshal(Payload{
		DistanceMM:  m.DistanceMM,
		TimestampUS: m.TimestampUS,
		Status:      m.Status.String(),
	})
}

// client is the part of *paho.Client the publisher uses.
type client interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
	Disconnect(d *paho.Disconnect) error
}

// Publisher queues measurements and publishes them from Run.
type Publisher struct {
	cfg    Config
	client client
	logger *slog.Logger

	backlog   chan ranging.Measurement
	dropped   atomic.Uint32
	published atomic.Uint32
}

// Dial connects to cfg.Broker over TCP and performs the MQTT handshake.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, errors.New("no MQTT broker configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "telemetry")

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker %s: %w", cfg.Broker, err)
	}

	c := paho.NewClient(paho.ClientConfig{
		Conn:     packets.NewThreadSafeConn(conn),
		ClientID: cfg.ClientID,
		OnClientError: func(err error) {
			logger.Warn("mqtt client error", "err", err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			logger.Warn("mqtt server disconnected", "reason_code", d.ReasonCode)
		},
	})

	ack, err := c.Connect(ctx, &paho.Connect{
		ClientID:   cfg.ClientID,
		CleanStart: true,
		KeepAlive:  uint16(cfg.KeepAlive.Seconds()),
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to broker %s: %w", cfg.Broker, err)
	}
	if ack.ReasonCode != 0 {
		conn.Close()
		return nil, fmt.Errorf("broker %s refused connection: reason code %d", cfg.Broker, ack.ReasonCode)
	}

	logger.Info("connected to mqtt broker", "broker", cfg.Broker, "topic", cfg.Topic)
	return newPublisher(cfg, c, logger), nil
}

func newPublisher(cfg Config, c client, logger *slog.Logger) *Publisher {
	return &Publisher{
		cfg:     cfg,
		client:  c,
		logger:  logger,
		backlog: make(chan ranging.Measurement, backlogSize),
	}
}

// Observe queues m for publication without blocking. When the broker is
// slower than the sensor, new measurements are dropped.
func (p *Publisher) Observe(m ranging.Measurement) {
	select {
	case p.backlog <- m:
	default:
		p.dropped.Add(1)
	}
}

// Run publishes queued measurements until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-p.backlog:
			if err := p.Publish(ctx, m); err != nil {
				p.logger.Warn("failed to publish measurement", "err", err)
			}
		}
	}
}

// Publish sends m right away.
func (p *Publisher) Publish(ctx context.Context, m ranging.Measurement) error {
	payload, err := Encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode measurement: %w", err)
	}

	_, err = p.client.Publish(ctx, &paho.Publish{
		Topic:   p.cfg.Topic,
		QoS:     p.cfg.QoS,
		Payload: payload,
		Properties: &paho.PublishProperties{
			ContentType: "application/json",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.cfg.Topic, err)
	}
	p.published.Add(1)
	return nil
}

// Stats returns how many measurements were published and dropped.
func (p *Publisher) Stats() (published, dropped uint32) {
	return p.published.Load(), p.dropped.Load()
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	if err := p.client.Disconnect(&paho.Disconnect{ReasonCode: 0}); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}
