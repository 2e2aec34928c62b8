package ranging

// SmoothingScale is the fixed-point scale of the smoothing factor: 1000
// means 1.0 (no smoothing), 0 freezes the output at the first sample.
const SmoothingScale = 1000

// FilterState is the memory of the EMA filter.
type FilterState struct {
	PreviousMM  uint16
	Initialized bool
}

// Filter is an integer exponential moving average:
//
//	smoothed = (factor*new + (1000-factor)*previous) / 1000
//
// The first sample initializes the filter and passes through unchanged.
// Products stay below 1000*65535, well inside uint32.
type Filter struct {
	factor uint32
	state  FilterState
}

// NewFilter creates a filter. Factors above SmoothingScale are clamped.
func NewFilter(factor uint16) *Filter {
	if factor > SmoothingScale {
		factor = SmoothingScale
	}
	return &Filter{factor: uint32(factor)}
}

// Apply feeds a valid sample and returns the smoothed value.
func (f *Filter) Apply(mm uint16) uint16 {
	if !f.state.Initialized {
		f.state = FilterState{PreviousMM: mm, Initialized: true}
		return mm
	}

	scaled := f.factor*uint32(mm) + (SmoothingScale-f.factor)*uint32(f.state.PreviousMM)
	smoothed := uint16(scaled / SmoothingScale)
	f.state.PreviousMM = smoothed
	return smoothed
}

// Reset forgets all history.
func (f *Filter) Reset() {
	f.state = FilterState{}
}

// State returns a copy of the filter memory.
func (f *Filter) State() FilterState {
	return f.state
}

// Factor returns the effective smoothing factor.
func (f *Filter) Factor() uint16 {
	return uint16(f.factor)
}
