package echo

import "time"

// TriggerWidth is the HC-SR04 trigger pulse width.
const TriggerWidth = 10 * time.Microsecond

// pulse drives a line high for width. time.Sleep cannot resolve tens of
// microseconds, so the high phase is spun out.
func pulse(high, low func() error, width time.Duration) error {
	if err := high(); err != nil {
		return err
	}
	deadline := time.Now().Add(width)
	for time.Now().Before(deadline) {
	}
	return low()
}
