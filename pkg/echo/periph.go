package echo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/itohio/rangeled/pkg/clock"
)

// edgePoll bounds how long the watcher blocks in WaitForEdge so Close is
// noticed promptly.
const edgePoll = 50 * time.Millisecond

// Periph drives an HC-SR04 through periph.io GPIO pins. A dedicated
// goroutine waits for echo edges and stamps them with the clock.
type Periph struct {
	trigger gpio.PinIO
	echo    gpio.PinIO
	clock   clock.Clock
	logger  *slog.Logger

	mu     sync.RWMutex
	cancel context.CancelFunc
	done   chan struct{}
	open   bool
}

// NewPeriph wraps already resolved pins.
func NewPeriph(trigger, echo gpio.PinIO, opts ...Option) *Periph {
	o := buildOptions(opts)
	return &Periph{
		trigger: trigger,
		echo:    echo,
		clock:   o.clock,
		logger:  o.logger.With("transducer", "periph"),
	}
}

// NewPeriphByName initializes the periph host drivers and resolves pins by
// name, in the format expected by gpioreg.ByName. On a Raspberry Pi that is
// the BCM number as a string.
func NewPeriphByName(trigger, echo string, opts ...Option) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	tp := gpioreg.ByName(trigger)
	if tp == nil {
		return nil, fmt.Errorf("no GPIO trigger pin named: %s", trigger)
	}
	ep := gpioreg.ByName(echo)
	if ep == nil {
		return nil, fmt.Errorf("no GPIO echo pin named: %s", echo)
	}
	return NewPeriph(tp, ep, opts...), nil
}

// Open configures the pins and starts watching the echo line.
func (p *Periph) Open(onEdge EdgeFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		return ErrAlreadyOpen
	}

	if err := p.trigger.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to configure trigger pin %s: %w", p.trigger, err)
	}
	if err := p.echo.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return fmt.Errorf("failed to configure echo pin %s: %w", p.echo, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.open = true

	go p.watch(ctx, onEdge, p.done)

	return nil
}

// Close stops the watcher and halts the echo pin.
func (p *Periph) Close() error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return nil
	}
	p.cancel()
	p.open = false
	done := p.done
	p.mu.Unlock()

	<-done

	if err := p.echo.Halt(); err != nil {
		return fmt.Errorf("failed to halt echo pin %s: %w", p.echo, err)
	}
	return nil
}

// Trigger emits the trigger pulse.
func (p *Periph) Trigger(width time.Duration) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.open {
		return ErrNotOpen
	}
	return pulse(
		func() error { return p.trigger.Out(gpio.High) },
		func() error { return p.trigger.Out(gpio.Low) },
		width,
	)
}

// IsOpen returns whether the pins are configured and watched.
func (p *Periph) IsOpen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.open
}

func (p *Periph) watch(ctx context.Context, onEdge EdgeFunc, done chan<- struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		if !p.echo.WaitForEdge(edgePoll) {
			continue
		}
		onEdge(p.echo.Read() == gpio.High, p.clock.NowUS())
	}
}
