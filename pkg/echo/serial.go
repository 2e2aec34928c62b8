package echo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/rangeled/pkg/clock"
)

const (
	// DefaultBaudRate matches the firmware UART configuration.
	DefaultBaudRate = 115200

	triggerCommand = "T\n"
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial talks to the edge-forwarding firmware over a serial line.
//
// The firmware timestamps echo edges in its own microsecond timer and sends
// one line per edge:
//
//	R,<mcu_us>   rising edge
//	F,<mcu_us>   falling edge
//
// Writing "T\n" asks the firmware for a trigger pulse; its width is fixed
// by the firmware.
type Serial struct {
	port     string
	baudRate int
	clock    clock.Clock
	logger   *slog.Logger

	conn   serial.Port
	mu     sync.RWMutex
	cancel context.CancelFunc
	done   chan struct{}
	open   bool
}

// NewSerial creates a new Serial instance with the specified port and baud rate.
func NewSerial(port string, baudRate int, opts ...Option) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	o := buildOptions(opts)

	return &Serial{
		port:     port,
		baudRate: baudRate,
		clock:    o.clock,
		logger:   o.logger.With("transducer", "serial", "port", port),
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Open opens the serial port and starts forwarding edges to onEdge.
func (s *Serial) Open(onEdge EdgeFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return ErrAlreadyOpen
	}

	port, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.conn = port
	s.cancel = cancel
	s.done = make(chan struct{})
	s.open = true

	go s.readEdges(ctx, port, onEdge, s.done)

	return nil
}

// Close closes the port and stops forwarding edges.
func (s *Serial) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	err := s.conn.Close()
	s.conn = nil
	s.open = false
	done := s.done
	s.mu.Unlock()

	<-done

	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", s.port, err)
	}
	return nil
}

// Trigger asks the firmware for a trigger pulse.
func (s *Serial) Trigger(time.Duration) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.open {
		return ErrNotOpen
	}

	if _, err := s.conn.Write([]byte(triggerCommand)); err != nil {
		return fmt.Errorf("failed to send trigger command: %w", err)
	}
	return nil
}

// IsOpen returns whether the port is currently open.
func (s *Serial) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// readEdges reads lines from r until it fails or ctx is cancelled.
func (s *Serial) readEdges(ctx context.Context, r io.Reader, onEdge EdgeFunc, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in edge reader", "panic", r)
		}
	}()

	var rb rebaser
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rising, mcuUS, err := parseLine(line)
		if err != nil {
			s.logger.Warn("failed to parse line", "line", line, "err", err)
			continue
		}

		onEdge(rising, rb.edge(rising, mcuUS, s.clock.NowUS()))
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.logger.Error("error reading from serial port", "err", err)
	}
}

// parseLine parses one edge line.
// Format: R|F,mcu_micros
// Example: R,1234567890
func parseLine(line string) (rising bool, mcuUS uint64, err error) {
	kind, value, ok := strings.Cut(line, ",")
	if !ok {
		return false, 0, fmt.Errorf("invalid line format: expected 2 comma-separated values")
	}

	switch kind {
	case "R":
		rising = true
	case "F":
		rising = false
	default:
		return false, 0, fmt.Errorf("invalid edge kind %q", kind)
	}

	mcuUS, err = strconv.ParseUint(value, 10, 64)
	if err != nil {
		return false, 0, fmt.Errorf("invalid timestamp: %w", err)
	}
	return rising, mcuUS, nil
}

// rebaser moves firmware timestamps onto the host clock. Rising edges are
// stamped with the host time they arrived at; a falling edge is stamped with
// the rising host time plus the pulse width measured by the firmware, so
// the host sees the firmware's precision without mixing time bases.
type rebaser struct {
	mcuRise  uint64
	hostRise uint64
	armed    bool
}

func (r *rebaser) edge(rising bool, mcuUS, hostNowUS uint64) uint64 {
	if rising {
		r.mcuRise = mcuUS
		r.hostRise = hostNowUS
		r.armed = true
		return hostNowUS
	}

	if !r.armed {
		return hostNowUS
	}
	r.armed = false

	if mcuUS < r.mcuRise {
		// Firmware clock went backwards; keep the inversion visible.
		back := r.mcuRise - mcuUS
		if back > r.hostRise {
			return 0
		}
		return r.hostRise - back
	}
	return r.hostRise + (mcuUS - r.mcuRise)
}
