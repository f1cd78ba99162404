package exchange

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MarketDataService 并发拉取一个决策周期所需的全部行情。
type MarketDataService struct {
	prices  PriceSource
	funding FundingSource
	logger  *zap.Logger
}

// NewMarketDataService 创建市场数据服务，funding 可以为 nil。
func NewMarketDataService(prices PriceSource, funding FundingSource, logger *zap.Logger) *MarketDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketDataService{
		prices:  prices,
		funding: funding,
		logger:  logger,
	}
}

// GetSnapshot 拉取行情快照，任意一项失败则整体失败。相同交易对只查询一次。
func (s *MarketDataService) GetSnapshot(ctx context.Context, req SnapshotRequest) (MarketSnapshot, error) {
	symbols := UniqueSymbols(req.Spot, req.PairA, req.PairB)

	var (
		mu      sync.Mutex
		quotes  = make(map[string]Quote, len(symbols))
		funding FundingRate
	)

	group, groupCtx := errgroup.WithContext(ctx)

	for _, symbol := range symbols {
		group.Go(func() error {
			q, err := s.prices.Price(groupCtx, symbol)
			if err != nil {
				return err
			}
			mu.Lock()
			quotes[symbol] = q
			mu.Unlock()
			return nil
		})
	}

	withFunding := req.Perp != "" && s.funding != nil
	if withFunding {
		group.Go(func() error {
			fr, err := s.funding.FundingRate(groupCtx, req.Perp)
			if err != nil {
				return err
			}
			funding = fr
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return MarketSnapshot{}, err
	}

	snapshot := MarketSnapshot{
		Spot:        quotes[req.Spot],
		PairA:       quotes[req.PairA],
		PairB:       quotes[req.PairB],
		Funding:     funding.Rate,
		HasFunding:  withFunding,
		RetrievedAt: time.Now().UTC(),
	}
	for _, q := range quotes {
		if q.Latency > snapshot.Latency {
			snapshot.Latency = q.Latency
		}
	}

	s.logger.Debug("市场数据快照获取完成",
		zap.Float64("spot", snapshot.Spot.Price),
		zap.Float64("pair_a", snapshot.PairA.Price),
		zap.Float64("pair_b", snapshot.PairB.Price),
		zap.Float64("funding", snapshot.Funding),
		zap.Duration("latency", snapshot.Latency),
	)

	return snapshot, nil
}

// UniqueSymbols 按出现顺序去重并忽略空串。
func UniqueSymbols(symbols ...string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
