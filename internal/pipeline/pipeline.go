package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"scalpel/internal/brief"
	"scalpel/internal/indicator"
	"scalpel/internal/logger"
	"scalpel/internal/market"
	"scalpel/internal/options"
	"scalpel/internal/react"
	"scalpel/internal/timeframe"
)

// 中文说明：
// 四段式闸门流水线：15m 环境 -> 5m 形态 -> 期权链可行性 -> 1m 触发。
// 严格顺序、逐门早退；任一数据失败按该段失败处理（fail-closed）。
// Run 永远返回完整结果，不向调用方抛出任何异常。

// Config 流水线参数。
type Config struct {
	Thresholds timeframe.Thresholds
	Filter     options.FilterConfig

	// 保底建议的权利金止损/目标比例
	StopPct   float64
	TargetPct float64

	// 各时间框架抓取的回看根数
	Lookback15m int
	Lookback5m  int
	Lookback1m  int

	Session   brief.SessionConfig
	EventRisk bool

	// Goal 传给推理循环的目标语句；空则由循环自拟
	Goal string
}

func DefaultConfig() Config {
	return Config{
		Thresholds:  timeframe.DefaultThresholds(),
		Filter:      options.DefaultFilterConfig(),
		StopPct:     0.25,
		TargetPct:   0.35,
		Lookback15m: 120,
		Lookback5m:  120,
		Lookback1m:  60,
	}
}

// Reasoner 推理环节的抽象（react.Engine 满足）。
type Reasoner interface {
	Run(ctx context.Context, goal string, b brief.Brief) (react.Outcome, error)
}

// Result 一次完整运行的产物；Errors 收集各阶段被吞掉的错误文本。
type Result struct {
	TraceID        string              `json:"trace_id"`
	Symbol         string              `json:"symbol"`
	StartedAt      time.Time           `json:"started_at"`
	Recommendation Recommendation      `json:"recommendation"`
	Contexts       []timeframe.Context `json:"contexts"`
	Candidates     []options.Candidate `json:"candidates"`
	GatesPassed    []string            `json:"gates_passed"`
	Errors         []string            `json:"errors,omitempty"`
}

type Runner struct {
	source   market.Source
	reasoner Reasoner // nil 表示推理关闭
	cfg      Config
	now      func() time.Time

	goalMu sync.RWMutex
	goal   string
}

func NewRunner(source market.Source, reasoner Reasoner, cfg Config) *Runner {
	if cfg.Lookback15m <= 0 {
		cfg.Lookback15m = 120
	}
	if cfg.Lookback5m <= 0 {
		cfg.Lookback5m = 120
	}
	if cfg.Lookback1m <= 0 {
		cfg.Lookback1m = 60
	}
	if cfg.StopPct <= 0 {
		cfg.StopPct = 0.25
	}
	if cfg.TargetPct <= 0 {
		cfg.TargetPct = 0.35
	}
	return &Runner{source: source, reasoner: reasoner, cfg: cfg, now: time.Now, goal: cfg.Goal}
}

// SetGoal 替换后续运行使用的推理目标；档案热更新时调用。
func (r *Runner) SetGoal(goal string) {
	r.goalMu.Lock()
	r.goal = goal
	r.goalMu.Unlock()
}

func (r *Runner) currentGoal() string {
	r.goalMu.RLock()
	defer r.goalMu.RUnlock()
	return r.goal
}

// Run 产出且仅产出一份 Recommendation（或带原因的 noTrade）。
func (r *Runner) Run(ctx context.Context, symbol string) (res Result) {
	res = Result{
		TraceID:   uuid.NewString(),
		Symbol:    symbol,
		StartedAt: r.now(),
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("[pipeline] %s panicked: %v", symbol, rec)
			res.Errors = append(res.Errors, fmt.Sprintf("unexpected: %v", rec))
			res.Recommendation = noTradeRecommendation("internal error during analysis", res.GatesPassed)
		}
	}()

	// 阶段一：15 分钟环境
	primary, candles15 := r.buildStage(ctx, symbol, timeframe.TF15m, r.cfg.Lookback15m, timeframe.BiasNeutral, &res)
	res.Contexts = append(res.Contexts, primary)
	if !primary.Allowed {
		res.Recommendation = noTradeRecommendation("15m: trade not allowed ("+primary.Reason+")", res.GatesPassed)
		return res
	}
	res.GatesPassed = append(res.GatesPassed, "15m")

	// 阶段二：5 分钟形态
	setup, _ := r.buildStage(ctx, symbol, timeframe.TF5m, r.cfg.Lookback5m, primary.Bias, &res)
	res.Contexts = append(res.Contexts, setup)
	if !setup.Allowed {
		res.Recommendation = noTradeRecommendation("5m: no entry setup ("+setup.Reason+")", res.GatesPassed)
		return res
	}
	res.GatesPassed = append(res.GatesPassed, "5m")

	// 阶段三：期权链可行性
	chain, err := r.source.FetchOptionChain(ctx, symbol)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		res.Recommendation = noTradeRecommendation("options: chain unavailable", res.GatesPassed)
		return res
	}
	res.Candidates = options.SelectCandidates(chain, primary.Bias, r.cfg.Filter)
	if len(res.Candidates) == 0 {
		res.Recommendation = noTradeRecommendation("options: no tradeable candidate", res.GatesPassed)
		return res
	}
	res.GatesPassed = append(res.GatesPassed, "options")

	// 阶段四：1 分钟触发
	trigger, candles1 := r.buildStage(ctx, symbol, timeframe.TF1m, r.cfg.Lookback1m, primary.Bias, &res)
	res.Contexts = append(res.Contexts, trigger)
	if !trigger.Allowed {
		res.Recommendation = noTradeRecommendation("1m: entry trigger not confirmed", res.GatesPassed)
		return res
	}
	res.GatesPassed = append(res.GatesPassed, "1m")

	// 全部通过：装配 brief，走推理或保底
	br := r.assembleBrief(symbol, primary, setup, trigger, res.Candidates, candles15, candles1)
	res.Recommendation = r.decide(ctx, br, primary.Bias, res.Candidates[0], res.GatesPassed, &res)
	return res
}

// buildStage 抓取该时间框架的 K线并构建结构化上下文。
// 数据失败被转换为 status=error 的上下文（fail-closed），错误文本入账。
func (r *Runner) buildStage(ctx context.Context, symbol, tf string, lookback int, primaryBias timeframe.Bias, res *Result) (timeframe.Context, []market.Candle) {
	to := r.now()
	from := to.Add(-time.Duration(lookback) * intervalDuration(tf))
	candles, err := r.source.FetchCandles(ctx, symbol, tf, from, to)

	facts := timeframe.Facts{Status: timeframe.StatusComplete}
	var ind timeframe.Indicators
	switch {
	case err != nil:
		res.Errors = append(res.Errors, err.Error())
		facts.Status = timeframe.StatusError
	case len(candles) == 0:
		facts.Status = timeframe.StatusNoData
	default:
		facts = buildFacts(candles)
		ind = buildIndicators(tf, candles)
	}

	switch tf {
	case timeframe.TF5m:
		return timeframe.BuildSetup(facts, ind, primaryBias, r.cfg.Thresholds), candles
	case timeframe.TF1m:
		return timeframe.BuildTrigger(facts, ind, primaryBias, r.cfg.Thresholds), candles
	default:
		return timeframe.BuildPrimary(facts, ind, r.cfg.Thresholds), candles
	}
}

func buildFacts(candles []market.Candle) timeframe.Facts {
	facts := timeframe.Facts{
		Status:    timeframe.StatusComplete,
		LastClose: market.LastClose(candles),
	}
	if len(candles) >= 2 {
		facts.PrevClose = candles[len(candles)-2].Close
	}
	// 近端高低点：不含当前未完成的一根
	window := candles
	if len(window) > 1 {
		window = window[:len(window)-1]
	}
	if len(window) > 10 {
		window = window[len(window)-10:]
	}
	for _, c := range window {
		if c.High > facts.RecentHigh {
			facts.RecentHigh = c.High
		}
		if facts.RecentLow == 0 || c.Low < facts.RecentLow {
			facts.RecentLow = c.Low
		}
	}
	return facts
}

func buildIndicators(tf string, candles []market.Candle) timeframe.Indicators {
	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)
	ind := timeframe.Indicators{
		EMAFast: indicator.EMA(closes, 9),
		EMASlow: indicator.EMA(closes, 21),
		RSI:     indicator.RSI(closes, 14),
	}
	switch tf {
	case timeframe.TF1m:
		ind.VWAP = indicator.VWAP(candles)
	default:
		ind.ADX = indicator.ADX(highs, lows, closes, 14)
		ind.ATR = indicator.ATR(highs, lows, closes, 14)
	}
	return ind
}

func (r *Runner) assembleBrief(symbol string, primary, setup, trigger timeframe.Context, candidates []options.Candidate, candles15, candles1 []market.Candle) brief.Brief {
	closes := market.Closes(candles15)
	highs := market.Highs(candles15)
	lows := market.Lows(candles15)
	atr := indicator.ATR(highs, lows, closes, 14)
	return brief.Brief{
		Symbol:     symbol,
		Generated:  r.now(),
		Primary:    primary,
		Setup:      setup,
		Trigger:    trigger,
		Candidates: candidates,
		Flags: brief.ConditionFlags{
			Session:    brief.ClassifySession(r.now(), r.cfg.Session),
			Volatility: brief.ClassifyVolatility(atr, market.LastClose(candles15)),
			EventRisk:  r.cfg.EventRisk,
		},
	}
}

// decide 推理可用则交由模型裁决，失败回退确定性建议。
func (r *Runner) decide(ctx context.Context, br brief.Brief, bias timeframe.Bias, best options.Candidate, gates []string, res *Result) Recommendation {
	if r.reasoner == nil {
		return deterministicRecommendation(bias, best, gates, r.cfg.StopPct, r.cfg.TargetPct)
	}
	outcome, err := r.reasoner.Run(ctx, r.currentGoal(), br)
	if err != nil {
		logger.Warnf("[pipeline] reasoning failed, using deterministic fallback: %v", err)
		res.Errors = append(res.Errors, err.Error())
		return deterministicRecommendation(bias, best, gates, r.cfg.StopPct, r.cfg.TargetPct)
	}
	return reasonedRecommendation(outcome, best, gates, r.cfg.StopPct, r.cfg.TargetPct)
}

func intervalDuration(tf string) time.Duration {
	switch tf {
	case timeframe.TF1m:
		return time.Minute
	case timeframe.TF5m:
		return 5 * time.Minute
	default:
		return 15 * time.Minute
	}
}
