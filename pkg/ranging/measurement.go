// Package ranging implements the ultrasonic measurement pipeline: edge
// capture, the raw and processed measurement channels, the measurement
// processor with its smoothing filter, and the accessor consumed by the
// display logic.
//
//	echo backend --OnEdge--> capture --raw(2)--> processor --processed(5)--> Latest()
//
// The capture side runs in the backend's event context and never blocks.
// The processor is the only writer of processed measurements and the only
// owner of the filter state.
package ranging

import "fmt"

// Status classifies a single measurement cycle.
type Status uint8

const (
	StatusOK Status = iota
	StatusTimeout
	StatusOutOfRange
	StatusNoEcho
	StatusInvalidReading
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusOutOfRange:
		return "out_of_range"
	case StatusNoEcho:
		return "no_echo"
	case StatusInvalidReading:
		return "invalid_reading"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// RawEdgeEvent is one echo pulse as seen by the capture handler.
type RawEdgeEvent struct {
	StartUS uint64 // Rising edge timestamp (µs)
	EndUS   uint64 // Falling edge timestamp (µs)
}

// Measurement is a processed distance reading.
//
// DistanceMM is smoothed only when Status is StatusOK. Out of range readings
// carry the unsmoothed distance (saturated to 65535); timeouts and other
// failures carry 0.
type Measurement struct {
	DistanceMM  uint16
	TimestampUS uint64
	Status      Status
}

// Valid reports whether the reading can be trusted.
func (m Measurement) Valid() bool {
	return m.Status == StatusOK
}
