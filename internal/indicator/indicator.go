package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"scalpel/internal/market"
)

// 中文说明：
// 指标计算的统一出口。所有函数都是纯函数：输入 K线序列与周期，
// 输出 (最新值, 是否有效)。数据不足或计算出 NaN 时返回 ok=false，
// 由上层把"缺失"映射为 unknown 状态，而不是报错。

// Value 单个指标的取值；Present=false 表示数据不足以计算。
type Value struct {
	Val     float64
	Present bool
}

func present(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{Val: v, Present: true}
}

func absent() Value { return Value{} }

// EMA 指数移动平均的最新值。
func EMA(closes []float64, period int) Value {
	if period <= 0 || len(closes) < period {
		return absent()
	}
	series := talib.Ema(closes, period)
	return lastValid(series)
}

// ADX 平均趋向指数（需要 2*period 根以上才稳定）。
func ADX(highs, lows, closes []float64, period int) Value {
	if period <= 0 || len(closes) < 2*period {
		return absent()
	}
	series := talib.Adx(highs, lows, closes, period)
	return lastValid(series)
}

// ATR 平均真实波幅。
func ATR(highs, lows, closes []float64, period int) Value {
	if period <= 0 || len(closes) <= period {
		return absent()
	}
	series := talib.Atr(highs, lows, closes, period)
	return lastValid(series)
}

// RSI 相对强弱指数。
func RSI(closes []float64, period int) Value {
	if period <= 0 || len(closes) <= period {
		return absent()
	}
	series := talib.Rsi(closes, period)
	return lastValid(series)
}

// VWAP 成交量加权均价（talib 未提供，按典型价×量累计）。
func VWAP(candles []market.Candle) Value {
	if len(candles) == 0 {
		return absent()
	}
	var pv, vol float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		vol += c.Volume
	}
	if vol <= 0 {
		return absent()
	}
	return present(pv / vol)
}

// lastValid 返回序列末尾最后一个非零有效值。
// talib 对 warm-up 区间填 0，直接取末位即可，但序列可能整体无效。
func lastValid(series []float64) Value {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return Value{Val: v, Present: true}
		}
	}
	return absent()
}
