package echo

import (
	"errors"
	"time"
)

// EdgeFunc receives echo line transitions. It runs in the backend's event
// context and must return within microseconds: no blocking, no allocation,
// no locks.
type EdgeFunc func(rising bool, atUS uint64)

// Transducer defines the interface for ultrasonic ranging front ends (real or mocked).
type Transducer interface {
	Open(onEdge EdgeFunc) error
	Trigger(width time.Duration) error
	Close() error
	IsOpen() bool
}

var (
	ErrAlreadyOpen = errors.New("echo: already open")
	ErrNotOpen     = errors.New("echo: not open")
)

var (
	_ Transducer = (*Serial)(nil)
	_ Transducer = (*Mock)(nil)
	_ Transducer = (*Periph)(nil)
	_ Transducer = (*Cdev)(nil)
)
