package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrices struct {
	mu     sync.Mutex
	prices map[string]float64
	lat    map[string]time.Duration
	calls  map[string]int
	err    error
}

func (s *stubPrices) Price(_ context.Context, symbol string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[symbol]++
	if s.err != nil {
		return Quote{}, s.err
	}
	return Quote{Symbol: symbol, Price: s.prices[symbol], Latency: s.lat[symbol]}, nil
}

type stubFunding struct{ rate float64 }

func (s stubFunding) FundingRate(_ context.Context, symbol string) (FundingRate, error) {
	return FundingRate{Symbol: symbol, Rate: s.rate}, nil
}

func TestGetSnapshot_DeduplicatesSymbols(t *testing.T) {
	prices := &stubPrices{
		prices: map[string]float64{"BTC/USDT": 100, "ETH/USDT": 5},
		lat:    map[string]time.Duration{"BTC/USDT": 20 * time.Millisecond, "ETH/USDT": 90 * time.Millisecond},
	}
	svc := NewMarketDataService(prices, stubFunding{rate: 0.001}, nil)

	snap, err := svc.GetSnapshot(context.Background(), SnapshotRequest{
		Spot: "BTC/USDT", PairA: "BTC/USDT", PairB: "ETH/USDT", Perp: "BTC/USDT:USDT",
	})
	require.NoError(t, err)

	assert.Equal(t, 100.0, snap.Spot.Price)
	assert.Equal(t, 100.0, snap.PairA.Price)
	assert.Equal(t, 5.0, snap.PairB.Price)
	assert.Equal(t, 0.001, snap.Funding)
	assert.True(t, snap.HasFunding)
	assert.Equal(t, 90*time.Millisecond, snap.Latency)
	assert.Equal(t, 1, prices.calls["BTC/USDT"])
}

func TestGetSnapshot_WithoutFunding(t *testing.T) {
	prices := &stubPrices{prices: map[string]float64{"BTC/USDT": 100, "ETH/USDT": 5}}
	svc := NewMarketDataService(prices, nil, nil)

	snap, err := svc.GetSnapshot(context.Background(), SnapshotRequest{
		Spot: "BTC/USDT", PairA: "BTC/USDT", PairB: "ETH/USDT", Perp: "BTC/USDT:USDT",
	})
	require.NoError(t, err)
	assert.False(t, snap.HasFunding)
	assert.Zero(t, snap.Funding)
}

func TestGetSnapshot_PropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	svc := NewMarketDataService(&stubPrices{err: boom}, nil, nil)

	_, err := svc.GetSnapshot(context.Background(), SnapshotRequest{Spot: "BTC/USDT", PairA: "BTC/USDT", PairB: "ETH/USDT"})
	assert.ErrorIs(t, err, boom)
}

func TestUniqueSymbols(t *testing.T) {
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, UniqueSymbols("BTC/USDT", "", "BTC/USDT", "ETH/USDT"))
	assert.Empty(t, UniqueSymbols("", ""))
}
