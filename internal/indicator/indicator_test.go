package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow_EvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
	}

	assert.True(t, w.Full())
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, []float64{3, 4, 5}, w.Values())
	assert.Equal(t, 5.0, w.Last())
	assert.Equal(t, []float64{4, 5}, w.Tail(2))

	w.Reset()
	assert.Equal(t, 0, w.Len())
	assert.True(t, math.IsNaN(w.Last()))
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}

	assert.InDelta(t, 5.5, SMA(values, 2), 1e-12)
	assert.InDelta(t, 3.5, SMA(values, 6), 1e-12)
	assert.InDelta(t, 3.5, SMA(values, 10), 1e-12)
	assert.InDelta(t, 6.0, SMA(values, 1), 1e-12)
	assert.Equal(t, 0.0, SMA(nil, 3))
}

func TestSampleStdDev_UsesBesselCorrection(t *testing.T) {
	mean, sd := SampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7.0), sd, 1e-12)

	_, sd = SampleStdDev([]float64{3, 3, 3})
	assert.Equal(t, 0.0, sd)

	_, sd = SampleStdDev([]float64{3})
	assert.Equal(t, 0.0, sd)
}
