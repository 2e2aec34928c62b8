//go:build linux

package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

// NowUS reads CLOCK_MONOTONIC, the same base the kernel uses for GPIO line
// event timestamps.
func (m monotonic) NowUS() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return uint64(time.Since(m.start).Microseconds())
	}
	return uint64(ts.Nano() / 1000)
}
