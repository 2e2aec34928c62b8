package ranging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/rangeled/pkg/acoustic"
	"github.com/itohio/rangeled/pkg/clock"
	"github.com/itohio/rangeled/pkg/echo"
)

func newTestProcessor(t *testing.T, cfg Config, tr *stubTransducer, clk clock.Clock) *processor {
	t.Helper()
	raw := newQueue[RawEdgeEvent](RawQueueSize)
	if tr != nil {
		require.NoError(t, tr.Open(newCapture(raw).onEdge))
	}
	return newProcessor(cfg, tr, raw, buildOptions([]Option{WithClock(clk)}))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		distance uint64
		want     Status
	}{
		{0, StatusOutOfRange},
		{19, StatusOutOfRange},
		{20, StatusOK},
		{995, StatusOK},
		{4000, StatusOK},
		{4001, StatusOutOfRange},
		{1 << 40, StatusOutOfRange},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.distance), "distance %d", tt.distance)
	}
}

func TestProcessor_Process(t *testing.T) {
	speed := acoustic.SpeedOfSoundScaled(200)

	tests := []struct {
		name string
		ev   RawEdgeEvent
		want Measurement
	}{
		{
			name: "reference echo",
			ev:   RawEdgeEvent{StartUS: 1000, EndUS: 6800},
			want: Measurement{DistanceMM: 995, TimestampUS: 6800, Status: StatusOK},
		},
		{
			name: "lower bound",
			ev:   RawEdgeEvent{StartUS: 0, EndUS: acoustic.EchoDurationUS(20, speed)},
			want: Measurement{DistanceMM: 20, TimestampUS: acoustic.EchoDurationUS(20, speed), Status: StatusOK},
		},
		{
			name: "below lower bound",
			ev:   RawEdgeEvent{StartUS: 0, EndUS: acoustic.EchoDurationUS(19, speed)},
			want: Measurement{DistanceMM: 19, TimestampUS: acoustic.EchoDurationUS(19, speed), Status: StatusOutOfRange},
		},
		{
			name: "upper bound",
			ev:   RawEdgeEvent{StartUS: 0, EndUS: acoustic.EchoDurationUS(4000, speed)},
			want: Measurement{DistanceMM: 4000, TimestampUS: acoustic.EchoDurationUS(4000, speed), Status: StatusOK},
		},
		{
			name: "above upper bound",
			ev:   RawEdgeEvent{StartUS: 0, EndUS: acoustic.EchoDurationUS(4001, speed)},
			want: Measurement{DistanceMM: 4001, TimestampUS: acoustic.EchoDurationUS(4001, speed), Status: StatusOutOfRange},
		},
		{
			name: "saturates huge distance",
			ev:   RawEdgeEvent{StartUS: 0, EndUS: 1_000_000_000},
			want: Measurement{DistanceMM: 65535, TimestampUS: 1_000_000_000, Status: StatusOutOfRange},
		},
		{
			name: "zero width",
			ev:   RawEdgeEvent{StartUS: 500, EndUS: 500},
			want: Measurement{DistanceMM: 0, TimestampUS: 500, Status: StatusOutOfRange},
		},
		{
			name: "end before start",
			ev:   RawEdgeEvent{StartUS: 900, EndUS: 100},
			want: Measurement{DistanceMM: 0, TimestampUS: 100, Status: StatusInvalidReading},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(t, DefaultConfig(), nil, clock.NewManual(0))
			assert.Equal(t, tt.want, p.process(tt.ev))
			assert.Equal(t, tt.want.Status == StatusOK, p.filter.State().Initialized,
				"only valid readings initialize the filter")
		})
	}
}

func TestProcessor_TemperatureCompensation(t *testing.T) {
	cold := DefaultConfig()
	cold.TemperatureCx10 = -100
	hot := DefaultConfig()
	hot.TemperatureCx10 = 400

	ev := RawEdgeEvent{StartUS: 0, EndUS: 5800}
	c := newTestProcessor(t, cold, nil, clock.NewManual(0)).process(ev)
	h := newTestProcessor(t, hot, nil, clock.NewManual(0)).process(ev)

	assert.Less(t, c.DistanceMM, h.DistanceMM, "sound travels faster in warm air")
}

func TestProcessor_InvalidReadingsSkipFilter(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig(), nil, clock.NewManual(0))
	speed := acoustic.SpeedOfSoundScaled(200)
	echoFor := func(mm uint64) RawEdgeEvent {
		return RawEdgeEvent{StartUS: 0, EndUS: acoustic.EchoDurationUS(mm, speed)}
	}

	assert.Equal(t, uint16(1000), p.process(echoFor(1000)).DistanceMM)
	assert.Equal(t, StatusOutOfRange, p.process(echoFor(5000)).Status)
	assert.Equal(t, StatusInvalidReading, p.process(RawEdgeEvent{StartUS: 10, EndUS: 1}).Status)
	assert.Equal(t, FilterState{PreviousMM: 1000, Initialized: true}, p.filter.State())

	assert.Equal(t, uint16(1300), p.process(echoFor(2000)).DistanceMM)
}

func TestProcessor_MeasureEcho(t *testing.T) {
	tr := &stubTransducer{onTrigger: echoAfter(1000, 5800)}
	p := newTestProcessor(t, DefaultConfig(), tr, clock.NewManual(0))

	m, ok := p.measure(context.Background())
	require.True(t, ok)
	assert.Equal(t, Measurement{DistanceMM: 995, TimestampUS: 6800, Status: StatusOK}, m)
	assert.Equal(t, 1, tr.triggerCount())
}

func TestProcessor_MeasureDiscardsStaleEvents(t *testing.T) {
	tr := &stubTransducer{onTrigger: echoAfter(1000, 5800)}
	p := newTestProcessor(t, DefaultConfig(), tr, clock.NewManual(0))

	// Late echo from a previous, timed out cycle.
	p.raw.offer(RawEdgeEvent{StartUS: 0, EndUS: 100})

	m, ok := p.measure(context.Background())
	require.True(t, ok)
	assert.Equal(t, uint16(995), m.DistanceMM)
	assert.Equal(t, 0, p.raw.len())
}

func TestProcessor_MeasureSkipsEchoThatPredatesTrigger(t *testing.T) {
	late := echoAfter(9000, 500)
	current := echoAfter(10_200, 5800)
	tr := &stubTransducer{onTrigger: func(edge echo.EdgeFunc) {
		// The previous cycle's echo lands after the drain.
		late(edge)
		current(edge)
	}}
	p := newTestProcessor(t, DefaultConfig(), tr, clock.NewManual(10_000))

	m, ok := p.measure(context.Background())
	require.True(t, ok)
	assert.Equal(t, StatusOK, m.Status)
	assert.Equal(t, uint16(995), m.DistanceMM)
	assert.Equal(t, uint64(16_000), m.TimestampUS)
	assert.Equal(t, 0, p.raw.len())
}

func TestProcessor_MeasureOnlyLateEchoTimesOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Millisecond
	tr := &stubTransducer{onTrigger: echoAfter(9000, 500)}
	p := newTestProcessor(t, cfg, tr, clock.NewManual(10_000))

	m, ok := p.measure(context.Background())
	require.True(t, ok)
	assert.Equal(t, StatusTimeout, m.Status)
	assert.False(t, p.filter.State().Initialized)
}

func TestProcessor_MeasureTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Millisecond
	clk := clock.NewManual(42_000)
	p := newTestProcessor(t, cfg, &stubTransducer{}, clk)

	start := time.Now()
	m, ok := p.measure(context.Background())
	require.True(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), cfg.Timeout)
	assert.Equal(t, Measurement{DistanceMM: 0, TimestampUS: 42_000, Status: StatusTimeout}, m)
	assert.False(t, p.filter.State().Initialized)
}

func TestProcessor_MeasureTriggerFailure(t *testing.T) {
	tr := &stubTransducer{triggerErr: errStubTrigger}
	p := newTestProcessor(t, DefaultConfig(), tr, clock.NewManual(7))

	m, ok := p.measure(context.Background())
	require.True(t, ok)
	assert.Equal(t, Measurement{DistanceMM: 0, TimestampUS: 7, Status: StatusNoEcho}, m)
}

func TestProcessor_MeasureCancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = time.Hour
	p := newTestProcessor(t, cfg, &stubTransducer{}, clock.NewManual(0))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, ok := p.measure(ctx)
	assert.False(t, ok)
}
