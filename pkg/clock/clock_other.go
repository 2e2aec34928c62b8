//go:build !linux

package clock

import "time"

// NowUS counts microseconds since the clock was created.
func (m monotonic) NowUS() uint64 {
	return uint64(time.Since(m.start).Microseconds())
}
