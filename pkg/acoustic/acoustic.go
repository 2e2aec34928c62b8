// Package acoustic holds the fixed-point time-of-flight math for HC-SR04
// style ultrasonic rangers. Everything is integer arithmetic so results are
// bit-for-bit reproducible.
package acoustic

const (
	// speedBaseScaled is 331.3 m/s scaled by 1e6.
	speedBaseScaled = 331_300_000
	// speedSlopeScaled is 0.606 m/s per °C scaled by 1e6 and divided by 10
	// because temperatures arrive in tenths of a degree.
	speedSlopeScaled = 60_600

	// roundTripScale undoes the 1e6 speed scale and halves the round trip.
	roundTripScale = 2_000_000

	// MinRangeMM and MaxRangeMM bound a valid reading (2 cm .. 400 cm).
	MinRangeMM = 20
	MaxRangeMM = 4000
)

// SpeedOfSoundScaled returns the speed of sound in mm/µs scaled by 1e6 for
// a temperature given in tenths of a degree Celsius (200 = 20.0 °C).
//
//	331_300_000 + 60_600*t  is m/s * 1e6
//	divide by 1000          is mm/µs * 1e6
func SpeedOfSoundScaled(temperatureCx10 int16) uint64 {
	speed := int64(speedBaseScaled) + int64(speedSlopeScaled)*int64(temperatureCx10)
	if speed < 0 {
		return 0
	}
	return uint64(speed / 1000)
}

// DistanceMM converts an echo pulse width into a one-way distance. The
// product is kept in 64 bits; echoes of tens of milliseconds fit easily.
// Division truncates.
func DistanceMM(echoDurationUS, speedScaled uint64) uint64 {
	return echoDurationUS * speedScaled / roundTripScale
}

// EchoDurationUS is the inverse of DistanceMM: the shortest echo pulse that
// DistanceMM maps back to exactly distanceMM.
func EchoDurationUS(distanceMM, speedScaled uint64) uint64 {
	if speedScaled == 0 {
		return 0
	}
	return (distanceMM*roundTripScale + speedScaled - 1) / speedScaled
}

// InRange reports whether distanceMM lies within the sensor's valid range,
// bounds inclusive.
func InRange(distanceMM uint64) bool {
	return distanceMM >= MinRangeMM && distanceMM <= MaxRangeMM
}
