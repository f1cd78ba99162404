package strategy

import (
	"math"
	"time"

	"rqe/internal/indicator"
)

const minLegPrice = 1e-9

type spreadSide int

const (
	spreadFlat spreadSide = iota
	spreadLong
	spreadShort
)

// PairsSignal 为价差均值回归信号，Z 为当前价差的 z-score。
type PairsSignal struct {
	Action Action  `json:"action"`
	Z      float64 `json:"z"`
}

// PairsConfig 为配对策略参数。
type PairsConfig struct {
	Lookback int
	ZEnter   float64
	ZExit    float64
	MaxHold  time.Duration
}

// Pairs 基于对数价差 z-score 的均值回归状态机。
type Pairs struct {
	cfg     PairsConfig
	spread  *indicator.Window
	side    spreadSide
	enterAt time.Time
	now     Clock
}

// NewPairs 创建配对策略，clock 为空时使用系统时间。
func NewPairs(cfg PairsConfig, clock Clock) *Pairs {
	if clock == nil {
		clock = systemClock
	}
	return &Pairs{
		cfg:    cfg,
		spread: indicator.NewWindow(cfg.Lookback),
		now:    clock,
	}
}

// OnPrices 输入两条腿的最新价格并返回信号。
func (p *Pairs) OnPrices(a, b float64) PairsSignal {
	s := math.Log(math.Max(minLegPrice, a)) - math.Log(math.Max(minLegPrice, b))
	p.spread.Push(s)

	if !p.spread.Full() {
		return PairsSignal{Action: ActionHold}
	}

	mean, sd := indicator.SampleStdDev(p.spread.Values())
	if sd == 0 {
		return PairsSignal{Action: ActionHold}
	}

	z := (s - mean) / sd
	now := p.now()

	if p.side != spreadFlat && now.Sub(p.enterAt) > p.cfg.MaxHold {
		p.reset()
		return PairsSignal{Action: ActionExit, Z: z}
	}

	switch p.side {
	case spreadFlat:
		if z >= p.cfg.ZEnter {
			p.enter(spreadShort, now)
			return PairsSignal{Action: ActionEnterShortSpread, Z: z}
		}
		if z <= -p.cfg.ZEnter {
			p.enter(spreadLong, now)
			return PairsSignal{Action: ActionEnterLongSpread, Z: z}
		}
	case spreadLong:
		if z >= -p.cfg.ZExit {
			p.reset()
			return PairsSignal{Action: ActionExit, Z: z}
		}
	case spreadShort:
		if z <= p.cfg.ZExit {
			p.reset()
			return PairsSignal{Action: ActionExit, Z: z}
		}
	}

	return PairsSignal{Action: ActionHold, Z: z}
}

// InPosition 返回是否持有价差仓位。
func (p *Pairs) InPosition() bool {
	return p.side != spreadFlat
}

func (p *Pairs) enter(side spreadSide, now time.Time) {
	p.side = side
	p.enterAt = now
}

func (p *Pairs) reset() {
	p.side = spreadFlat
	p.enterAt = time.Time{}
}
