package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scalpel/internal/indicator"
	"scalpel/internal/market"
	"scalpel/internal/pkg/maputil"
)

// Alerter 最小告警接口，避免绑定具体通知实现。
type Alerter interface {
	SendText(text string) error
}

// 中文说明：
// 内置工具：推理循环可按需补充的行情查询。所有查询走同一
// market.Source（通常带缓存层），输出做了体积裁剪，避免把原始
// 序列灌回模型上下文。

// BuiltinConfig 内置工具的依赖。
type BuiltinConfig struct {
	Source   market.Source
	Notifier Alerter
	// 各时间框架抓取上限，防止模型请求超长窗口
	MaxLookback int
	// Allowed 非空时按名过滤，未放行的工具不注册（档案白名单）
	Allowed func(name string) bool
}

// RegisterBuiltins 注册全部内置工具。
func RegisterBuiltins(r *Registry, cfg BuiltinConfig) error {
	if cfg.Source == nil {
		return fmt.Errorf("builtin tools require a market source")
	}
	maxLookback := cfg.MaxLookback
	if maxLookback <= 0 {
		maxLookback = 300
	}

	defs := []Definition{
		{
			Name:        "get_candles",
			Description: "Fetch recent OHLCV candles for a symbol. Returns a compact summary, not the raw series.",
			Params: map[string]ParamSpec{
				"symbol":   {Type: TypeString, Required: true, Description: "instrument symbol, e.g. NIFTY"},
				"interval": {Type: TypeString, Required: true, Description: "candle interval: 1m, 5m or 15m"},
				"lookback": {Type: TypeInteger, Description: "number of candles, default 50"},
			},
			Handler: candlesHandler(cfg.Source, maxLookback),
		},
		{
			Name:        "get_option_chain",
			Description: "Fetch the option chain snapshot near spot for a symbol.",
			Params: map[string]ParamSpec{
				"symbol": {Type: TypeString, Required: true, Description: "underlying symbol"},
				"window": {Type: TypeInteger, Description: "strikes above/below spot, default 3"},
			},
			Handler: chainHandler(cfg.Source),
		},
		{
			Name:        "get_ltp",
			Description: "Fetch the latest traded price for a symbol.",
			Params: map[string]ParamSpec{
				"symbol": {Type: TypeString, Required: true, Description: "instrument symbol"},
			},
			Handler: ltpHandler(cfg.Source),
		},
		{
			Name:        "compute_indicator",
			Description: "Compute a technical indicator (ema, adx, atr, rsi, vwap) on recent candles.",
			Params: map[string]ParamSpec{
				"symbol":    {Type: TypeString, Required: true, Description: "instrument symbol"},
				"interval":  {Type: TypeString, Required: true, Description: "candle interval"},
				"indicator": {Type: TypeString, Required: true, Description: "one of: ema, adx, atr, rsi, vwap"},
				"period":    {Type: TypeInteger, Description: "indicator period, default 14"},
			},
			Handler: indicatorHandler(cfg.Source, maxLookback),
		},
	}
	if cfg.Notifier != nil {
		defs = append(defs, Definition{
			Name:        "send_alert",
			Description: "Push an alert message to the configured notification channel.",
			Params: map[string]ParamSpec{
				"message": {Type: TypeString, Required: true, Description: "alert text"},
			},
			Execution: true,
			Handler:   alertHandler(cfg.Notifier),
		})
	}

	for _, def := range defs {
		if cfg.Allowed != nil && !cfg.Allowed(def.Name) {
			continue
		}
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func candlesHandler(source market.Source, maxLookback int) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		symbol := strings.ToUpper(maputil.String(args, "symbol"))
		interval := strings.ToLower(maputil.String(args, "interval"))
		lookback := maputil.Int(args, "lookback")
		if lookback <= 0 {
			lookback = 50
		}
		if lookback > maxLookback {
			lookback = maxLookback
		}
		candles, err := fetchWindow(ctx, source, symbol, interval, lookback)
		if err != nil {
			return nil, err
		}
		if len(candles) == 0 {
			return nil, fmt.Errorf("no candles for %s %s", symbol, interval)
		}
		tail := candles
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
		high, low := candles[0].High, candles[0].Low
		for _, c := range candles {
			if c.High > high {
				high = c.High
			}
			if c.Low < low {
				low = c.Low
			}
		}
		return map[string]any{
			"symbol":     symbol,
			"interval":   interval,
			"count":      len(candles),
			"last_close": market.LastClose(candles),
			"high":       high,
			"low":        low,
			"recent":     tail,
		}, nil
	}
}

func chainHandler(source market.Source) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		symbol := strings.ToUpper(maputil.String(args, "symbol"))
		window := maputil.Int(args, "window")
		if window <= 0 {
			window = 3
		}
		chain, err := source.FetchOptionChain(ctx, symbol)
		if err != nil {
			return nil, err
		}
		rows := chain.Strikes
		if len(rows) > 2*window+1 {
			// 以现价为中心裁剪
			center := 0
			for i, row := range rows {
				if row.Strike >= chain.Spot {
					center = i
					break
				}
			}
			lo := center - window
			if lo < 0 {
				lo = 0
			}
			hi := center + window + 1
			if hi > len(rows) {
				hi = len(rows)
			}
			rows = rows[lo:hi]
		}
		return map[string]any{
			"symbol":  chain.Symbol,
			"spot":    chain.Spot,
			"expiry":  chain.Expiry,
			"strikes": rows,
		}, nil
	}
}

func ltpHandler(source market.Source) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		symbol := strings.ToUpper(maputil.String(args, "symbol"))
		price, err := source.LatestPrice(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return map[string]any{"symbol": symbol, "ltp": price}, nil
	}
}

func indicatorHandler(source market.Source, maxLookback int) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		symbol := strings.ToUpper(maputil.String(args, "symbol"))
		interval := strings.ToLower(maputil.String(args, "interval"))
		name := strings.ToLower(maputil.String(args, "indicator"))
		period := maputil.Int(args, "period")
		if period <= 0 {
			period = 14
		}
		candles, err := fetchWindow(ctx, source, symbol, interval, maxLookback)
		if err != nil {
			return nil, err
		}
		closes := market.Closes(candles)
		highs := market.Highs(candles)
		lows := market.Lows(candles)

		var val indicator.Value
		switch name {
		case "ema":
			val = indicator.EMA(closes, period)
		case "adx":
			val = indicator.ADX(highs, lows, closes, period)
		case "atr":
			val = indicator.ATR(highs, lows, closes, period)
		case "rsi":
			val = indicator.RSI(closes, period)
		case "vwap":
			val = indicator.VWAP(candles)
		default:
			return nil, fmt.Errorf("unknown indicator %q", name)
		}
		if !val.Present {
			return nil, fmt.Errorf("%s unavailable for %s %s (insufficient data)", name, symbol, interval)
		}
		return map[string]any{
			"symbol":    symbol,
			"interval":  interval,
			"indicator": name,
			"period":    period,
			"value":     val.Val,
		}, nil
	}
}

func alertHandler(n Alerter) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		message := strings.TrimSpace(maputil.String(args, "message"))
		if message == "" {
			return nil, fmt.Errorf("message is required")
		}
		if err := n.SendText(message); err != nil {
			return nil, err
		}
		return map[string]any{"sent": true}, nil
	}
}

func fetchWindow(ctx context.Context, source market.Source, symbol, interval string, lookback int) ([]market.Candle, error) {
	dur := time.Minute
	switch interval {
	case "5m":
		dur = 5 * time.Minute
	case "15m":
		dur = 15 * time.Minute
	}
	to := time.Now()
	from := to.Add(-time.Duration(lookback) * dur)
	return source.FetchCandles(ctx, symbol, interval, from, to)
}
