package ranging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itohio/rangeled/pkg/echo"
)

// stubTransducer lets tests decide what happens on each trigger.
type stubTransducer struct {
	mu         sync.Mutex
	onEdge     echo.EdgeFunc
	open       bool
	triggers   int
	triggerErr error
	openErr    error
	onTrigger  func(edge echo.EdgeFunc)
}

func (s *stubTransducer) Open(onEdge echo.EdgeFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	if s.open {
		return echo.ErrAlreadyOpen
	}
	s.onEdge = onEdge
	s.open = true
	return nil
}

func (s *stubTransducer) Trigger(time.Duration) error {
	s.mu.Lock()
	s.triggers++
	err, fn, edge := s.triggerErr, s.onTrigger, s.onEdge
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if fn != nil {
		fn(edge)
	}
	return nil
}

func (s *stubTransducer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *stubTransducer) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *stubTransducer) triggerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}

var errStubTrigger = errors.New("stub trigger failure")

// echoAfter returns an onTrigger hook that reports a pulse of durationUS
// starting at startUS.
func echoAfter(startUS, durationUS uint64) func(echo.EdgeFunc) {
	return func(edge echo.EdgeFunc) {
		edge(true, startUS)
		edge(false, startUS+durationUS)
	}
}

// fastConfig keeps cycles short so lifecycle tests finish quickly.
func fastConfig() *Config {
	c := DefaultConfig()
	c.MeasurementInterval = 20 * time.Millisecond
	c.Timeout = 10 * time.Millisecond
	return &c
}

func latest(t *testing.T, s Sensor) Measurement {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m, err := s.Latest(ctx)
	require.NoError(t, err)
	return m
}
