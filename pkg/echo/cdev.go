//go:build linux

package echo

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Consumer is the label the lines are requested under.
const Consumer = "rangeled"

// Cdev drives an HC-SR04 through the Linux GPIO character device. Echo
// edges are delivered by the kernel with monotonic timestamps, which is the
// closest a Linux host gets to a pin interrupt.
type Cdev struct {
	chip          string
	triggerOffset int
	echoOffset    int
	logger        *slog.Logger

	mu      sync.RWMutex
	trigger *gpiocdev.Line
	echo    *gpiocdev.Line
	open    bool
}

// NewCdev creates a transducer on the given chip (e.g. "gpiochip0") and
// line offsets.
func NewCdev(chip string, trigger, echo int, opts ...Option) *Cdev {
	o := buildOptions(opts)
	return &Cdev{
		chip:          chip,
		triggerOffset: trigger,
		echoOffset:    echo,
		logger:        o.logger.With("transducer", "cdev", "chip", chip),
	}
}

// Open requests both lines.
func (c *Cdev) Open(onEdge EdgeFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return ErrAlreadyOpen
	}

	trigger, err := gpiocdev.RequestLine(c.chip, c.triggerOffset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return fmt.Errorf("failed to request trigger line %d: %w", c.triggerOffset, err)
	}

	echo, err := gpiocdev.RequestLine(c.chip, c.echoOffset,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithConsumer(Consumer),
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			onEdge(edgeFromEvent(evt))
		}))
	if err != nil {
		trigger.Close()
		return fmt.Errorf("failed to request echo line %d: %w", c.echoOffset, err)
	}

	c.trigger = trigger
	c.echo = echo
	c.open = true

	c.logger.Info("lines requested", "trigger", c.triggerOffset, "echo", c.echoOffset)
	return nil
}

// Close releases both lines.
func (c *Cdev) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil
	}

	var firstErr error
	if err := c.echo.Close(); err != nil {
		firstErr = fmt.Errorf("failed to release echo line: %w", err)
	}
	if err := c.trigger.Reconfigure(gpiocdev.AsInput); err != nil {
		c.logger.Warn("failed to revert trigger line to input", "err", err)
	}
	if err := c.trigger.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to release trigger line: %w", err)
	}

	c.trigger = nil
	c.echo = nil
	c.open = false
	return firstErr
}

// Trigger emits the trigger pulse.
func (c *Cdev) Trigger(width time.Duration) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.open {
		return ErrNotOpen
	}
	return pulse(
		func() error { return c.trigger.SetValue(1) },
		func() error { return c.trigger.SetValue(0) },
		width,
	)
}

// IsOpen returns whether the lines are held.
func (c *Cdev) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// edgeFromEvent translates a kernel line event. Event timestamps come from
// CLOCK_MONOTONIC unless the line was requested otherwise.
func edgeFromEvent(evt gpiocdev.LineEvent) (rising bool, atUS uint64) {
	return evt.Type == gpiocdev.LineEventRisingEdge, uint64(evt.Timestamp.Microseconds())
}
