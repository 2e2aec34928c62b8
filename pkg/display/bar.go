package display

import (
	"fmt"
	"strings"
)

// Bar renders a frame as a one-line text strip, e.g.
//
//	[....#.........]  512 mm normal
//
// Off frames render an empty strip.
func Bar(f Frame, ledCount int) string {
	var b strings.Builder
	b.Grow(ledCount + 32)

	b.WriteByte('[')
	for i := 0; i < ledCount; i++ {
		switch {
		case i != f.Index:
			b.WriteByte('.')
		case f.State == Normal:
			b.WriteByte('#')
		default:
			b.WriteByte('!')
		}
	}
	b.WriteByte(']')

	fmt.Fprintf(&b, " %5d mm %s", f.Measurement.DistanceMM, f.State)
	return b.String()
}
