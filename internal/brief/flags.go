package brief

import (
	"time"

	"scalpel/internal/indicator"
)

// Session 时段划分参数（交易所本地时间）。
type SessionConfig struct {
	Location  *time.Location
	OpenHour  int
	OpenMin   int
	CloseHour int
	CloseMin  int
}

// ClassifySession 按交易所时钟划分时段：开盘后 30 分钟为 opening，
// 收盘前 45 分钟为 closing，盘中为 midday。
func ClassifySession(now time.Time, cfg SessionConfig) SessionPhase {
	if cfg.Location != nil {
		now = now.In(cfg.Location)
	}
	open := time.Date(now.Year(), now.Month(), now.Day(), cfg.OpenHour, cfg.OpenMin, 0, 0, now.Location())
	close := time.Date(now.Year(), now.Month(), now.Day(), cfg.CloseHour, cfg.CloseMin, 0, 0, now.Location())
	switch {
	case now.Before(open.Add(-30 * time.Minute)):
		return PhaseClosed
	case now.Before(open):
		return PhasePreOpen
	case now.After(close):
		return PhaseClosed
	case now.After(close.Add(-45 * time.Minute)):
		return PhaseClosing
	case now.Before(open.Add(30 * time.Minute)):
		return PhaseOpening
	default:
		return PhaseMidday
	}
}

// ClassifyVolatility 用 ATR 与现价的比值划分波动区间。
// 阈值经验取值：<0.15% 低，>0.45% 高。
func ClassifyVolatility(atr indicator.Value, lastClose float64) VolatilityRegime {
	if !atr.Present || lastClose <= 0 {
		return VolNormal
	}
	ratio := atr.Val / lastClose
	switch {
	case ratio < 0.0015:
		return VolLow
	case ratio > 0.0045:
		return VolHigh
	default:
		return VolNormal
	}
}
