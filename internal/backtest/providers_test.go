package backtest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVProvider_ParsesHeaderAndTimestamps(t *testing.T) {
	data := strings.Join([]string{
		"ts,spot,pair_a,pair_b,funding",
		"2024-03-01T00:00:00Z,100,20,5,0.0001",
		"# 注释行",
		"1709254800,101,21,5.5",
		"1709258400000,102,22,6,",
	}, "\n")

	p := NewCSVProvider(strings.NewReader(data))
	ctx := context.Background()

	bar, ok, err := p.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Bar{TS: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Spot: 100, PairA: 20, PairB: 5, Funding: 0.0001}, bar)

	bar, ok, err = p.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC), bar.TS)
	assert.Equal(t, 0.0, bar.Funding)

	bar, ok, err = p.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC), bar.TS)
	assert.Equal(t, 6.0, bar.PairB)

	_, ok, err = p.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCSVProvider_RejectsBadRows(t *testing.T) {
	tests := map[string]string{
		"too few fields": "2024-03-01T00:00:00Z,100,20",
		"bad number":     "2024-03-01T00:00:00Z,abc,20,5",
		"zero price":     "2024-03-01T00:00:00Z,100,0,5",
	}
	for name, row := range tests {
		t.Run(name, func(t *testing.T) {
			// 首行若无法解析时间会被视为表头，故先放一行合法数据
			data := "2024-03-01T00:00:00Z,100,20,5\n" + row
			p := NewCSVProvider(strings.NewReader(data))
			_, _, err := p.Next(context.Background())
			require.NoError(t, err)
			_, _, err = p.Next(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestSliceProvider_HonoursContext(t *testing.T) {
	p := NewSliceProvider([]Bar{{Spot: 1, PairA: 1, PairB: 1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := p.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)

	_, ok, err = p.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = p.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
