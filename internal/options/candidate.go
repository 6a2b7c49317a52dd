package options

import (
	"github.com/shopspring/decimal"

	"scalpel/internal/market"
)

// 中文说明：
// 候选合约：从期权链过滤出的单个合约，带有打分所需的派生字段。
// 派生计算（价差比例、流动性分类）使用 decimal 避免报价层面的
// 浮点误差。

// Side 合约方向：CE=认购（看涨），PE=认沽（看跌）。
type Side string

const (
	SideCall Side = "CE"
	SidePut  Side = "PE"
)

// Moneyness 相对现价的虚实分类。
type Moneyness string

const (
	MoneyATM Moneyness = "ATM"
	MoneyITM Moneyness = "ITM"
	MoneyOTM Moneyness = "OTM"
)

type Liquidity string

const (
	LiquidityGood Liquidity = "good"
	LiquidityPoor Liquidity = "poor"
)

type Candidate struct {
	InstrumentKey string    `json:"instrument_key"`
	Strike        float64   `json:"strike"`
	Side          Side      `json:"side"`
	Moneyness     Moneyness `json:"moneyness"`

	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Last float64 `json:"last"`

	Greeks      market.Greeks `json:"greeks"`
	IV          float64       `json:"iv"`
	IVChange    float64       `json:"iv_change"`
	OIChangePct float64       `json:"oi_change_pct"`

	SpreadPct float64   `json:"spread_pct"`
	ThetaRisk bool      `json:"theta_risk"`
	Liquidity Liquidity `json:"liquidity"`

	Score float64 `json:"score"`
}

// thetaRiskThreshold：日衰减绝对值超过该值的合约标记高时间损耗。
const thetaRiskThreshold = 10.0

// newCandidate 从链上一行报价构建候选并计算派生字段（不打分）。
func newCandidate(strike float64, side Side, q market.OptionQuote, spot float64) Candidate {
	c := Candidate{
		InstrumentKey: q.InstrumentKey,
		Strike:        strike,
		Side:          side,
		Moneyness:     classifyMoneyness(strike, spot, side),
		Bid:           q.Bid,
		Ask:           q.Ask,
		Last:          q.Last,
		Greeks:        q.Greeks,
		IV:            q.IV,
		IVChange:      q.IV - q.PrevIV,
	}
	if q.PrevOI > 0 {
		c.OIChangePct = (q.OpenInterest - q.PrevOI) / q.PrevOI
	}
	c.SpreadPct = spreadPct(q.Bid, q.Ask)
	c.ThetaRisk = abs(q.Greeks.Theta) > thetaRiskThreshold
	if c.SpreadPct < 1.0 {
		c.Liquidity = LiquidityGood
	} else {
		c.Liquidity = LiquidityPoor
	}
	return c
}

// spreadPct = |ask-bid| / midpoint * 100
func spreadPct(bid, ask float64) float64 {
	b := decimal.NewFromFloat(bid)
	a := decimal.NewFromFloat(ask)
	mid := a.Add(b).Div(decimal.NewFromInt(2))
	if mid.IsZero() {
		return 0
	}
	pct := a.Sub(b).Abs().Div(mid).Mul(decimal.NewFromInt(100))
	out, _ := pct.Round(4).Float64()
	return out
}

func classifyMoneyness(strike, spot float64, side Side) Moneyness {
	if spot <= 0 {
		return MoneyOTM
	}
	if abs(strike-spot)/spot < 0.0025 {
		return MoneyATM
	}
	inMoney := strike < spot
	if side == SidePut {
		inMoney = strike > spot
	}
	if inMoney {
		return MoneyITM
	}
	return MoneyOTM
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
