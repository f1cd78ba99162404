package portfolio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocate_SplitsByNormalizedWeights(t *testing.T) {
	alloc := Allocate(100, Weights{Trend: 0.35, Pairs: 0.35, Funding: 0.30})

	assert.InDelta(t, 35.0, alloc[StrategyTrend], 1e-9)
	assert.InDelta(t, 35.0, alloc[StrategyPairs], 1e-9)
	assert.InDelta(t, 30.0, alloc[StrategyFunding], 1e-9)
	assert.InDelta(t, 100.0, alloc.Total(), 1e-9)
}

func TestAllocate_UnnormalizedWeights(t *testing.T) {
	alloc := Allocate(90, Weights{Trend: 2, Pairs: 1, Funding: 0})

	assert.InDelta(t, 60.0, alloc[StrategyTrend], 1e-9)
	assert.InDelta(t, 30.0, alloc[StrategyPairs], 1e-9)
	assert.Equal(t, 0.0, alloc[StrategyFunding])
	assert.LessOrEqual(t, alloc.Total(), 90.0+1e-9)
}

func TestAllocate_ZeroWeightsDoNotDivideByZero(t *testing.T) {
	alloc := Allocate(100, Weights{})

	for name, v := range alloc {
		assert.False(t, math.IsNaN(v), name)
		assert.Equal(t, 0.0, v, name)
	}
	assert.Len(t, alloc, 3)
}

func TestAllocate_Deterministic(t *testing.T) {
	w := Weights{Trend: 0.1, Pairs: 0.7, Funding: 0.2}
	assert.Equal(t, Allocate(42, w), Allocate(42, w))
}
