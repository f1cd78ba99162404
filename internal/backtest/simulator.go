package backtest

import "rqe/internal/execution"

// Simulator 按已实现盈亏与持仓浮动盈亏记录权益曲线。
type Simulator struct {
	initialEquity float64
	equity        float64

	equityHistory []float64
	returnHistory []float64
}

func NewSimulator(initialEquity float64) *Simulator {
	if initialEquity <= 0 {
		initialEquity = 1000
	}
	return &Simulator{
		initialEquity: initialEquity,
		equity:        initialEquity,
		equityHistory: []float64{initialEquity},
	}
}

// Mark 以最新价格对持仓估值并追加一个权益点。
func (s *Simulator) Mark(realized float64, positions []execution.Position, prices map[string]float64) {
	unrealized := 0.0
	for _, pos := range positions {
		px, ok := prices[pos.Symbol]
		if !ok || pos.Qty <= 0 || px <= 0 {
			continue
		}
		unrealized += (px - pos.AvgCost) * pos.Qty
	}

	prev := s.equity
	s.equity = s.initialEquity + realized + unrealized
	if prev != 0 {
		s.returnHistory = append(s.returnHistory, s.equity/prev-1)
	}
	s.equityHistory = append(s.equityHistory, s.equity)
}

func (s *Simulator) Equity() float64 {
	return s.equity
}

func (s *Simulator) EquityHistory() []float64 {
	return append([]float64(nil), s.equityHistory...)
}

func (s *Simulator) ReturnHistory() []float64 {
	return append([]float64(nil), s.returnHistory...)
}
