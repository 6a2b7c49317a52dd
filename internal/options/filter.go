package options

import (
	"sort"

	"scalpel/internal/market"
	"scalpel/internal/timeframe"
)

// FilterConfig 过滤规则参数。
type FilterConfig struct {
	MinScore     float64 // 低于该分的候选被淘汰
	MaxSpreadPct float64 // 价差比例上限
	MaxSurvivors int     // 进入 brief 的最大数量
	StrikeWindow int     // 现价上下各取多少个行权价
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinScore:     5,
		MaxSpreadPct: 3.0,
		MaxSurvivors: 2,
		StrikeWindow: 3,
	}
}

// SelectCandidates 按方向从期权链筛选、打分并排序候选。
// bullish 取 CE，bearish 取 PE；返回分数降序的前 MaxSurvivors 个。
func SelectCandidates(chain *market.OptionChain, bias timeframe.Bias, cfg FilterConfig) []Candidate {
	if chain == nil || len(chain.Strikes) == 0 || bias == timeframe.BiasNeutral {
		return nil
	}
	side := SideCall
	if bias == timeframe.BiasBearish {
		side = SidePut
	}
	rows := nearestStrikes(chain, cfg.StrikeWindow)

	out := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		quote := row.Call
		if side == SidePut {
			quote = row.Put
		}
		c := newCandidate(row.Strike, side, quote, chain.Spot)
		if !tradeable(c, cfg) {
			continue
		}
		c.Score = Score(c)
		if c.Score < cfg.MinScore {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	max := cfg.MaxSurvivors
	if max <= 0 {
		max = 2
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// tradeable 基础可交易性检查：报价有效、价差可接受、delta 在可用区间。
func tradeable(c Candidate, cfg FilterConfig) bool {
	if c.Bid <= 0 || c.Ask <= 0 || c.Last <= 0 {
		return false
	}
	if cfg.MaxSpreadPct > 0 && c.SpreadPct > cfg.MaxSpreadPct {
		return false
	}
	d := abs(c.Greeks.Delta)
	return d >= 0.1 && d <= 0.8
}

// nearestStrikes 取现价附近 window 上下档的行权价。
func nearestStrikes(chain *market.OptionChain, window int) []market.StrikeRow {
	if window <= 0 {
		window = 3
	}
	rows := make([]market.StrikeRow, len(chain.Strikes))
	copy(rows, chain.Strikes)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Strike < rows[j].Strike })

	// 找到首个 >= spot 的位置
	at := sort.Search(len(rows), func(i int) bool { return rows[i].Strike >= chain.Spot })
	lo := at - window
	if lo < 0 {
		lo = 0
	}
	hi := at + window
	if hi > len(rows) {
		hi = len(rows)
	}
	return rows[lo:hi]
}
