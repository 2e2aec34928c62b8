package echo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"

	"github.com/itohio/rangeled/pkg/clock"
)

func newTestPins() (*gpiotest.Pin, *gpiotest.Pin) {
	trigger := &gpiotest.Pin{N: "TestTriggerPin", L: gpio.Low, EdgesChan: make(chan gpio.Level, 2)}
	echo := &gpiotest.Pin{N: "TestEchoPin", L: gpio.Low, EdgesChan: make(chan gpio.Level, 2)}
	return trigger, echo
}

func TestPeriph_ForwardsEdges(t *testing.T) {
	trigger, echo := newTestPins()
	clk := clock.NewManual(500)
	p := NewPeriph(trigger, echo, WithClock(clk))
	sink := newEdgeSink()

	require.NoError(t, p.Open(sink.onEdge))
	defer p.Close()

	echo.EdgesChan <- gpio.High
	assert.Equal(t, edgeRecord{true, 500}, sink.next(t))

	clk.Advance(5800 * time.Microsecond)
	echo.EdgesChan <- gpio.Low
	assert.Equal(t, edgeRecord{false, 6300}, sink.next(t))
}

func TestPeriph_Trigger(t *testing.T) {
	trigger, echo := newTestPins()
	p := NewPeriph(trigger, echo)

	assert.ErrorIs(t, p.Trigger(TriggerWidth), ErrNotOpen)

	require.NoError(t, p.Open(func(bool, uint64) {}))
	defer p.Close()

	require.NoError(t, p.Trigger(TriggerWidth))
	assert.Equal(t, gpio.Low, trigger.Read(), "trigger must return low after the pulse")
}

func TestPeriph_OpenTwice(t *testing.T) {
	trigger, echo := newTestPins()
	p := NewPeriph(trigger, echo)

	require.NoError(t, p.Open(func(bool, uint64) {}))
	assert.ErrorIs(t, p.Open(func(bool, uint64) {}), ErrAlreadyOpen)
	assert.True(t, p.IsOpen())

	require.NoError(t, p.Close())
	assert.False(t, p.IsOpen())
	assert.NoError(t, p.Close())
}

// TestPeriph_GracefulShutdown tests that Close returns once the watcher
// goroutine has exited.
func TestPeriph_GracefulShutdown(t *testing.T) {
	trigger, echo := newTestPins()
	p := NewPeriph(trigger, echo)
	require.NoError(t, p.Open(func(bool, uint64) {}))

	closed := make(chan error, 1)
	go func() { closed <- p.Close() }()

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not return within timeout")
	}
}
