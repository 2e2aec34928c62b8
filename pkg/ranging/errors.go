package ranging

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation does not fit the current
	// lifecycle state, e.g. starting twice or stopping a stopped sensor.
	ErrInvalidState = errors.New("ranging: invalid state")
	// ErrNotInitialized is an ErrInvalidState for use before Init.
	ErrNotInitialized = fmt.Errorf("%w: not initialized", ErrInvalidState)
	// ErrNotAvailable is returned by TryLatest when the channel is empty.
	ErrNotAvailable = errors.New("ranging: no measurement available")
	// ErrInvalidConfig wraps configuration problems found at Init.
	ErrInvalidConfig = errors.New("ranging: invalid config")
)
