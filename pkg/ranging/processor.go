package ranging

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/itohio/rangeled/pkg/acoustic"
	"github.com/itohio/rangeled/pkg/clock"
	"github.com/itohio/rangeled/pkg/echo"
)

// Classify maps a computed distance to StatusOK or StatusOutOfRange.
func Classify(distanceMM uint64) Status {
	if acoustic.InRange(distanceMM) {
		return StatusOK
	}
	return StatusOutOfRange
}

// processor runs one trigger, wait and convert cycle. All of its state is
// owned by the producer goroutine.
type processor struct {
	transducer echo.Transducer
	clock      clock.Clock
	logger     *slog.Logger

	raw     *queue[RawEdgeEvent]
	timeout time.Duration
	speed   uint64
	filter  *Filter
}

func newProcessor(cfg Config, t echo.Transducer, raw *queue[RawEdgeEvent], o options) *processor {
	return &processor{
		transducer: t,
		clock:      o.clock,
		logger:     o.logger,
		raw:        raw,
		timeout:    cfg.Timeout,
		speed:      acoustic.SpeedOfSoundScaled(cfg.TemperatureCx10),
		filter:     NewFilter(cfg.SmoothingFactor),
	}
}

// measure is a stepFunc.
func (p *processor) measure(ctx context.Context) (Measurement, bool) {
	// Leftovers belong to an earlier cycle that already timed out.
	if n := p.raw.drain(); n > 0 {
		p.logger.Debug("discarded stale echo events", "count", n)
	}

	triggeredUS := p.clock.NowUS()
	if err := p.transducer.Trigger(echo.TriggerWidth); err != nil {
		p.logger.Warn("failed to trigger sensor", "err", err)
		return Measurement{TimestampUS: p.clock.NowUS(), Status: StatusNoEcho}, true
	}

	deadline := p.clock.After(p.timeout)
	for {
		select {
		case ev := <-p.raw.ch:
			// A late echo from an earlier cycle can land between the drain
			// and this cycle's echo. It started before our trigger.
			if ev.StartUS < triggeredUS {
				p.logger.Debug("discarded echo that predates the trigger", "start_us", ev.StartUS, "trigger_us", triggeredUS)
				continue
			}
			return p.process(ev), true
		case <-deadline:
			p.logger.Warn("distance measurement timeout", "timeout", p.timeout)
			return Measurement{TimestampUS: p.clock.NowUS(), Status: StatusTimeout}, true
		case <-ctx.Done():
			return Measurement{}, false
		}
	}
}

// process converts one echo pulse. Only in range readings touch the filter.
func (p *processor) process(ev RawEdgeEvent) Measurement {
	if ev.EndUS < ev.StartUS {
		p.logger.Warn("echo ended before it started", "start_us", ev.StartUS, "end_us", ev.EndUS)
		return Measurement{TimestampUS: ev.EndUS, Status: StatusInvalidReading}
	}

	durationUS := ev.EndUS - ev.StartUS
	distance := acoustic.DistanceMM(durationUS, p.speed)

	if status := Classify(distance); status != StatusOK {
		p.logger.Warn("distance out of range", "distance_mm", distance, "echo_us", durationUS)
		return Measurement{DistanceMM: saturate16(distance), TimestampUS: ev.EndUS, Status: status}
	}

	smoothed := p.filter.Apply(uint16(distance))
	p.logger.Debug("distance", "raw_mm", distance, "smoothed_mm", smoothed, "echo_us", durationUS)
	return Measurement{DistanceMM: smoothed, TimestampUS: ev.EndUS, Status: StatusOK}
}

func saturate16(v uint64) uint16 {
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}
