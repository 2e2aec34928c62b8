package ranging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_FirstSamplePassesThrough(t *testing.T) {
	f := NewFilter(300)
	assert.Equal(t, uint16(1000), f.Apply(1000))
	assert.Equal(t, FilterState{PreviousMM: 1000, Initialized: true}, f.State())
}

func TestFilter_Apply(t *testing.T) {
	tests := []struct {
		name    string
		factor  uint16
		samples []uint16
		want    []uint16
	}{
		{"default weight", 300, []uint16{1000, 2000}, []uint16{1000, 1300}},
		{"no smoothing", 1000, []uint16{1000, 2000, 37}, []uint16{1000, 2000, 37}},
		{"frozen", 0, []uint16{1000, 2000, 3000}, []uint16{1000, 1000, 1000}},
		{"truncates", 300, []uint16{100, 101}, []uint16{100, 100}},
		{"clamped factor", 5000, []uint16{10, 20}, []uint16{10, 20}},
		{"largest values", 500, []uint16{65535, 65535}, []uint16{65535, 65535}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(tt.factor)
			for i, s := range tt.samples {
				assert.Equal(t, tt.want[i], f.Apply(s), "sample %d", i)
			}
		})
	}
}

func TestFilter_ConvergesToConstantInput(t *testing.T) {
	f := NewFilter(300)
	f.Apply(0)

	prev := uint16(0)
	for i := 0; i < 100; i++ {
		got := f.Apply(1000)
		assert.GreaterOrEqual(t, got, prev, "output must not move away from the input")
		assert.LessOrEqual(t, got, uint16(1000))
		prev = got
	}
	// Integer truncation stalls a few counts short of the target.
	assert.InDelta(t, 1000, prev, 3)
}

func TestFilter_Reset(t *testing.T) {
	f := NewFilter(300)
	f.Apply(1000)
	f.Apply(2000)
	f.Reset()

	assert.False(t, f.State().Initialized)
	assert.Equal(t, uint16(400), f.Apply(400))
}

func TestFilter_Factor(t *testing.T) {
	assert.Equal(t, uint16(300), NewFilter(300).Factor())
	assert.Equal(t, uint16(SmoothingScale), NewFilter(1001).Factor())
}
