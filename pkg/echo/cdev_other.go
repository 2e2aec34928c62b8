//go:build !linux

package echo

import (
	"errors"
	"time"
)

var errCdevUnsupported = errors.New("echo: GPIO character device is only available on Linux")

// Cdev is unavailable off Linux; every operation fails.
type Cdev struct{}

// NewCdev returns a transducer that always fails to open.
func NewCdev(string, int, int, ...Option) *Cdev { return &Cdev{} }

func (*Cdev) Open(EdgeFunc) error { return errCdevUnsupported }
func (*Cdev) Trigger(time.Duration) error { return ErrNotOpen }
func (*Cdev) Close() error { return nil }
func (*Cdev) IsOpen() bool { return false }
