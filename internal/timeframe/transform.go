package timeframe

import (
	"fmt"
	"math"

	"scalpel/internal/indicator"
)

// 中文说明：
// 本文件是确定性内核与推理层之间的边界：把"接近原始"的事实
// 变换为可交给模型的有界上下文，并在这里落实准入规则。
// 全部为纯函数，不做任何 I/O。指标缺失一律降级为 unknown，
// 不向外传播错误。

// Indicators 命名指标集合（缺失用 Present=false 表达）。
type Indicators struct {
	EMAFast indicator.Value
	EMASlow indicator.Value
	ADX     indicator.Value
	ATR     indicator.Value
	VWAP    indicator.Value
	RSI     indicator.Value
}

// BuildPrimary 构建 15 分钟主时间框架上下文。
// 准入规则：状态 complete、方向非中性、ADX（若存在）不低于门槛。
func BuildPrimary(facts Facts, ind Indicators, th Thresholds) Context {
	ctx := baseContext(TF15m, facts, ind, th)
	if ctx.Status != StatusComplete {
		ctx.Reason = fmt.Sprintf("15m context %s", ctx.Status)
		return ctx
	}
	allowed, reason := permission(ctx.Bias, ind.ADX, th)
	ctx.Allowed = allowed
	ctx.Reason = reason
	return ctx
}

// BuildSetup 构建 5 分钟入场形态上下文。在主时间框架方向上
// 识别 pullback/breakout，并检查无效化条件。
func BuildSetup(facts Facts, ind Indicators, primaryBias Bias, th Thresholds) Context {
	ctx := baseContext(TF5m, facts, ind, th)
	if ctx.Status != StatusComplete {
		ctx.Reason = fmt.Sprintf("5m context %s", ctx.Status)
		return ctx
	}
	if allowed, reason := permission(primaryBias, ind.ADX, th); !allowed {
		ctx.Reason = reason
		return ctx
	}
	ctx.Setup = classifySetup(facts, ind, primaryBias)
	if ctx.Setup == SetupNone {
		ctx.Reason = "no actionable setup"
		return ctx
	}
	if reason, invalidated := setupInvalidated(facts, ind, primaryBias, th); invalidated {
		ctx.Reason = reason
		return ctx
	}
	ctx.Allowed = true
	ctx.Reason = fmt.Sprintf("%s setup in %s trend", ctx.Setup, primaryBias)
	return ctx
}

// BuildTrigger 构建 1 分钟触发上下文：价格需站上（或跌破）VWAP
// 且与主方向一致。
func BuildTrigger(facts Facts, ind Indicators, primaryBias Bias, th Thresholds) Context {
	ctx := baseContext(TF1m, facts, ind, th)
	if ctx.Status != StatusComplete {
		ctx.Reason = fmt.Sprintf("1m context %s", ctx.Status)
		return ctx
	}
	if primaryBias == BiasNeutral {
		ctx.Reason = "no directional bias to trigger against"
		return ctx
	}
	confirmed := triggerConfirmed(facts, ind, primaryBias)
	ctx.Allowed = confirmed
	if confirmed {
		ctx.Reason = "entry trigger confirmed"
	} else {
		ctx.Reason = "entry trigger not confirmed"
	}
	return ctx
}

func baseContext(tf string, facts Facts, ind Indicators, th Thresholds) Context {
	ctx := Context{
		Timeframe: tf,
		Status:    facts.Status,
		Bias:      classifyBias(ind),
		Strength:  classifyStrength(ind.ADX, th),
		Setup:     SetupNone,
		Values:    namedValues(facts, ind),
	}
	return ctx
}

// classifyBias 用快慢 EMA 相对位置判方向；任一缺失则中性。
func classifyBias(ind Indicators) Bias {
	if !ind.EMAFast.Present || !ind.EMASlow.Present {
		return BiasNeutral
	}
	switch {
	case ind.EMAFast.Val > ind.EMASlow.Val:
		return BiasBullish
	case ind.EMAFast.Val < ind.EMASlow.Val:
		return BiasBearish
	default:
		return BiasNeutral
	}
}

// classifyStrength ADX 阶梯：>=strong 强，>=moderate 中，其余弱；缺失 unknown。
func classifyStrength(adx indicator.Value, th Thresholds) Strength {
	if !adx.Present {
		return StrengthUnknown
	}
	switch {
	case adx.Val >= th.ADXStrong:
		return StrengthStrong
	case adx.Val >= th.ADXModerate:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

func permission(bias Bias, adx indicator.Value, th Thresholds) (bool, string) {
	if bias == BiasNeutral {
		return false, "bias is neutral"
	}
	if adx.Present && adx.Val < th.ADXMin {
		return false, fmt.Sprintf("trend strength %.1f below minimum %.1f", adx.Val, th.ADXMin)
	}
	return true, fmt.Sprintf("%s trend confirmed", bias)
}

func classifySetup(facts Facts, ind Indicators, bias Bias) Setup {
	if facts.RecentHigh > 0 && bias == BiasBullish && facts.LastClose >= facts.RecentHigh {
		return SetupBreakout
	}
	if facts.RecentLow > 0 && bias == BiasBearish && facts.LastClose <= facts.RecentLow {
		return SetupBreakout
	}
	if !ind.EMAFast.Present || !ind.EMASlow.Present {
		return SetupNone
	}
	// 回踩：价格回落到快慢均线之间，趋势结构未破坏
	if bias == BiasBullish && facts.LastClose <= ind.EMAFast.Val && facts.LastClose > ind.EMASlow.Val {
		return SetupPullback
	}
	if bias == BiasBearish && facts.LastClose >= ind.EMAFast.Val && facts.LastClose < ind.EMASlow.Val {
		return SetupPullback
	}
	return SetupNone
}

func setupInvalidated(facts Facts, ind Indicators, bias Bias, th Thresholds) (string, bool) {
	if ind.EMASlow.Present {
		if bias == BiasBullish && facts.LastClose < ind.EMASlow.Val {
			return "price closed below slow average against bias", true
		}
		if bias == BiasBearish && facts.LastClose > ind.EMASlow.Val {
			return "price closed above slow average against bias", true
		}
	}
	if ind.RSI.Present {
		if bias == BiasBullish && ind.RSI.Val >= th.RSIOverheat {
			return fmt.Sprintf("rsi overheated (%.1f)", ind.RSI.Val), true
		}
		if bias == BiasBearish && ind.RSI.Val <= th.RSIOversold {
			return fmt.Sprintf("rsi oversold (%.1f)", ind.RSI.Val), true
		}
	}
	return "", false
}

func triggerConfirmed(facts Facts, ind Indicators, bias Bias) bool {
	// VWAP 缺失时退化为快均线条件
	anchor, anchored := ind.VWAP, ind.VWAP.Present
	if !anchored {
		anchor, anchored = ind.EMAFast, ind.EMAFast.Present
	}
	if !anchored {
		return false
	}
	if bias == BiasBullish {
		return facts.LastClose > anchor.Val && facts.LastClose >= facts.PrevClose
	}
	return facts.LastClose < anchor.Val && facts.LastClose <= facts.PrevClose
}

func namedValues(facts Facts, ind Indicators) map[string]float64 {
	out := make(map[string]float64)
	put := func(name string, v indicator.Value) {
		if v.Present {
			out[name] = round2(v.Val)
		}
	}
	put("ema_fast", ind.EMAFast)
	put("ema_slow", ind.EMASlow)
	put("adx", ind.ADX)
	put("atr", ind.ATR)
	put("vwap", ind.VWAP)
	put("rsi", ind.RSI)
	if facts.LastClose > 0 {
		out["close"] = round2(facts.LastClose)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
