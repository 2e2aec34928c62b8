package ranging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// stepFunc produces one measurement per cycle. It reports false when ctx was
// cancelled mid-cycle and nothing should be published.
type stepFunc func(ctx context.Context) (Measurement, bool)

// pipeline is the lifecycle and accessor half shared by Driver and
// Simulator: a fixed-rate producer goroutine feeding an evict-oldest
// channel of processed measurements.
type pipeline struct {
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	interval    time.Duration
	step        stepFunc
	processed   *queue[Measurement]
	cancel      context.CancelFunc
	done        chan struct{}

	running       atomic.Bool
	last          atomic.Pointer[Measurement]
	lastOverflows atomic.Uint32
}

// reset installs a fresh processed channel. Caller holds mu and has checked
// the pipeline is not running.
func (p *pipeline) reset(interval time.Duration, step stepFunc) {
	p.interval = interval
	p.step = step
	p.processed = newQueue[Measurement](ProcessedQueueSize)
	p.last.Store(nil)
	p.lastOverflows.Store(0)
	p.initialized = true
}

// Start launches the producer. Starting a running pipeline is an error.
func (p *pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return ErrNotInitialized
	}
	if p.running.Load() {
		return fmt.Errorf("%w: already running", ErrInvalidState)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running.Store(true)

	go p.run(ctx, p.step, p.processed, p.interval, p.done)

	p.logger.Info("measurement started", "interval", p.interval)
	return nil
}

// Stop cancels the producer and waits for it to exit. Queued measurements
// and counters survive; stopping a stopped pipeline is an error.
func (p *pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() {
		return fmt.Errorf("%w: not running", ErrInvalidState)
	}

	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
	p.running.Store(false)

	p.logger.Info("measurement stopped")
	return nil
}

func (p *pipeline) run(ctx context.Context, step stepFunc, out *queue[Measurement], interval time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		m, ok := step(ctx)
		if !ok {
			return
		}
		p.publish(out, m)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *pipeline) publish(out *queue[Measurement], m Measurement) {
	if out.publish(m) {
		p.logger.Warn("measurement queue full, dropped oldest", "overflows", out.drops())
	}
	p.last.Store(&m)
}

func (p *pipeline) output() (*queue[Measurement], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil, ErrNotInitialized
	}
	return p.processed, nil
}

// Latest blocks until a measurement is available or ctx is done, and removes
// it from the channel.
func (p *pipeline) Latest(ctx context.Context) (Measurement, error) {
	q, err := p.output()
	if err != nil {
		return Measurement{}, err
	}

	select {
	case m := <-q.ch:
		return m, nil
	case <-ctx.Done():
		return Measurement{}, ctx.Err()
	}
}

// TryLatest is the non-blocking form of Latest. It returns ErrNotAvailable
// when the channel is empty.
func (p *pipeline) TryLatest() (Measurement, error) {
	q, err := p.output()
	if err != nil {
		return Measurement{}, err
	}
	m, ok := q.tryReceive()
	if !ok {
		return Measurement{}, ErrNotAvailable
	}
	return m, nil
}

// HasNewMeasurement reports whether Latest would return immediately.
func (p *pipeline) HasNewMeasurement() bool {
	q, err := p.output()
	if err != nil {
		return false
	}
	return q.len() > 0
}

// QueueOverflows returns how many measurements were evicted unread since
// Init. It is 0 before Init.
func (p *pipeline) QueueOverflows() uint32 {
	q, err := p.output()
	if err != nil {
		return 0
	}
	return q.drops()
}

// IsRunning reports whether the producer goroutine is active.
func (p *pipeline) IsRunning() bool {
	return p.running.Load()
}

// Last returns the most recently published measurement without consuming
// anything from the channel.
func (p *pipeline) Last() (Measurement, bool) {
	m := p.last.Load()
	if m == nil {
		return Measurement{}, false
	}
	return *m, true
}

// monitor logs overflows accumulated since the previous call and reports an
// error when the producer is not running.
func (p *pipeline) monitor() error {
	q, err := p.output()
	if err != nil {
		return err
	}

	total := q.drops()
	if prev := p.lastOverflows.Swap(total); total > prev {
		p.logger.Warn("measurement queue overflows", "new", total-prev, "total", total)
	}

	if !p.running.Load() {
		p.logger.Warn("measurement task is not running")
		return fmt.Errorf("%w: not running", ErrInvalidState)
	}
	return nil
}

// shutdown stops the producer if needed and forgets the channel. Caller
// must not hold mu.
func (p *pipeline) shutdown() {
	if p.running.Load() {
		if err := p.Stop(); err != nil {
			p.logger.Debug("stop during close", "err", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized = false
	p.processed = nil
	p.step = nil
}
