package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalpel/internal/brief"
	"scalpel/internal/market"
	"scalpel/internal/options"
	"scalpel/internal/react"
)

type fakeSource struct {
	candles    map[string][]market.Candle
	candleErr  map[string]error
	chain      *market.OptionChain
	chainErr   error
	chainPanic bool
	chainCalls int
}

func (f *fakeSource) FetchCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]market.Candle, error) {
	if err := f.candleErr[interval]; err != nil {
		return nil, err
	}
	return f.candles[interval], nil
}

func (f *fakeSource) FetchOptionChain(ctx context.Context, symbol string) (*market.OptionChain, error) {
	f.chainCalls++
	if f.chainPanic {
		panic("chain decoder blew up")
	}
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	return f.chain, nil
}

func (f *fakeSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	return market.LastClose(f.candles["1m"]), nil
}

type stubReasoner struct {
	outcome react.Outcome
	err     error
	calls   int
	goals   []string
}

func (s *stubReasoner) Run(ctx context.Context, goal string, b brief.Brief) (react.Outcome, error) {
	s.calls++
	s.goals = append(s.goals, goal)
	return s.outcome, s.err
}

// zigzag 产出带趋势的锯齿序列：偶数根 +up，奇数根 -down。
func zigzag(start float64, n int, up, down float64) []market.Candle {
	out := make([]market.Candle, 0, n)
	price := start
	for i := 0; i < n; i++ {
		open := price
		if i%2 == 0 {
			price += up
		} else {
			price -= down
		}
		out = append(out, market.Candle{Open: open, High: price + 3, Low: price - 3, Close: price, Volume: 1000})
	}
	return out
}

func rising(start float64, n int, step float64) []market.Candle {
	out := make([]market.Candle, 0, n)
	price := start
	for i := 0; i < n; i++ {
		open := price
		price += step
		out = append(out, market.Candle{Open: open, High: price + 1, Low: open - 1, Close: price, Volume: 1000})
	}
	return out
}

func liquidQuote(key string, delta float64) market.OptionQuote {
	return market.OptionQuote{
		InstrumentKey: key,
		Bid:           99.8,
		Ask:           100.2,
		Last:          100,
		OpenInterest:  115000,
		PrevOI:        100000,
		IV:            0.22,
		PrevIV:        0.16,
		Greeks:        market.Greeks{Delta: delta, Gamma: 0.02, Theta: -4},
	}
}

func liquidChain() *market.OptionChain {
	return &market.OptionChain{
		Symbol: "NIFTY",
		Spot:   22050,
		Expiry: "2026-09-03",
		Strikes: []market.StrikeRow{
			{Strike: 22000, Call: liquidQuote("C22000", 0.50), Put: liquidQuote("P22000", -0.50)},
			{Strike: 22100, Call: liquidQuote("C22100", 0.40), Put: liquidQuote("P22100", -0.60)},
		},
	}
}

// fullPassSource 三个时间框架全部放行：15m 上行趋势给出多头环境，
// 5m 末根突破近端高点，1m 收在 VWAP 之上。
func fullPassSource() *fakeSource {
	base5 := zigzag(22000, 24, 8, 6)
	var recentHigh float64
	for _, c := range base5[len(base5)-10:] {
		if c.High > recentHigh {
			recentHigh = c.High
		}
	}
	breakout := recentHigh + 5
	base5 = append(base5, market.Candle{
		Open:   base5[len(base5)-1].Close,
		High:   breakout + 3,
		Low:    base5[len(base5)-1].Close - 3,
		Close:  breakout,
		Volume: 1500,
	})
	return &fakeSource{
		candles: map[string][]market.Candle{
			"15m": zigzag(22000, 25, 10, 4),
			"5m":  base5,
			"1m":  rising(22000, 30, 1),
		},
		chain: liquidChain(),
	}
}

func TestRunFetchErrorFailsClosed(t *testing.T) {
	src := &fakeSource{
		candleErr: map[string]error{"15m": market.NewSourceError("candles", "NIFTY", errors.New("timeout"))},
	}
	runner := NewRunner(src, nil, DefaultConfig())
	res := runner.Run(context.Background(), "NIFTY")

	assert.Equal(t, DecisionNoTrade, res.Recommendation.Decision)
	assert.Equal(t, 0.0, res.Recommendation.Confidence)
	assert.Contains(t, res.Recommendation.Rationale, "15m: trade not allowed")
	assert.Empty(t, res.GatesPassed)
	assert.NotEmpty(t, res.Errors)
	assert.Zero(t, src.chainCalls, "option chain must not be fetched when an earlier gate fails")
}

func TestRunNoDataFailsClosed(t *testing.T) {
	src := &fakeSource{candles: map[string][]market.Candle{}}
	runner := NewRunner(src, nil, DefaultConfig())
	res := runner.Run(context.Background(), "NIFTY")

	assert.Equal(t, DecisionNoTrade, res.Recommendation.Decision)
	assert.Contains(t, res.Recommendation.Rationale, "noData")
	assert.Empty(t, res.GatesPassed)
}

func TestRunNeutralPrimaryBlocked(t *testing.T) {
	flat := make([]market.Candle, 25)
	for i := range flat {
		flat[i] = market.Candle{Open: 22000, High: 22001, Low: 21999, Close: 22000, Volume: 1000}
	}
	src := &fakeSource{candles: map[string][]market.Candle{"15m": flat}}
	runner := NewRunner(src, nil, DefaultConfig())
	res := runner.Run(context.Background(), "NIFTY")

	assert.Equal(t, DecisionNoTrade, res.Recommendation.Decision)
	assert.Contains(t, res.Recommendation.Rationale, "neutral")
	assert.Zero(t, src.chainCalls)
}

func TestRunSetupGateBlocks(t *testing.T) {
	src := fullPassSource()
	// 5m 改成横盘：无突破亦无回踩
	flat := make([]market.Candle, 25)
	for i := range flat {
		flat[i] = market.Candle{Open: 22000, High: 22001, Low: 21999, Close: 22000, Volume: 1000}
	}
	src.candles["5m"] = flat

	runner := NewRunner(src, nil, DefaultConfig())
	res := runner.Run(context.Background(), "NIFTY")

	assert.Equal(t, DecisionNoTrade, res.Recommendation.Decision)
	assert.Contains(t, res.Recommendation.Rationale, "5m: no entry setup")
	assert.Equal(t, []string{"15m"}, res.GatesPassed)
	assert.Zero(t, src.chainCalls)
}

func TestRunChainErrorFailsClosed(t *testing.T) {
	src := fullPassSource()
	src.chainErr = market.NewSourceError("chain", "NIFTY", errors.New("upstream 500"))

	runner := NewRunner(src, nil, DefaultConfig())
	res := runner.Run(context.Background(), "NIFTY")

	assert.Equal(t, DecisionNoTrade, res.Recommendation.Decision)
	assert.Contains(t, res.Recommendation.Rationale, "options: chain unavailable")
	assert.Equal(t, []string{"15m", "5m"}, res.GatesPassed)
	assert.NotEmpty(t, res.Errors)
}

func TestRunNoCandidateFailsClosed(t *testing.T) {
	src := fullPassSource()
	src.chain = &market.OptionChain{Symbol: "NIFTY", Spot: 22050}

	runner := NewRunner(src, nil, DefaultConfig())
	res := runner.Run(context.Background(), "NIFTY")

	assert.Equal(t, DecisionNoTrade, res.Recommendation.Decision)
	assert.Contains(t, res.Recommendation.Rationale, "no tradeable candidate")
	assert.Equal(t, []string{"15m", "5m"}, res.GatesPassed)
}

func TestRunTriggerGateBlocks(t *testing.T) {
	src := fullPassSource()
	// 1m 走弱：多头方向上收在 VWAP 之下
	fall := make([]market.Candle, 30)
	price := 22000.0
	for i := range fall {
		open := price
		price -= 1
		fall[i] = market.Candle{Open: open, High: open + 1, Low: price - 1, Close: price, Volume: 1000}
	}
	src.candles["1m"] = fall

	runner := NewRunner(src, nil, DefaultConfig())
	res := runner.Run(context.Background(), "NIFTY")

	assert.Equal(t, DecisionNoTrade, res.Recommendation.Decision)
	assert.Contains(t, res.Recommendation.Rationale, "1m: entry trigger not confirmed")
	assert.Equal(t, []string{"15m", "5m", "options"}, res.GatesPassed)
}

func TestRunFullPassDeterministic(t *testing.T) {
	src := fullPassSource()
	runner := NewRunner(src, nil, DefaultConfig())
	res := runner.Run(context.Background(), "NIFTY")

	require.Equal(t, []string{"15m", "5m", "options", "1m"}, res.GatesPassed)
	rec := res.Recommendation
	assert.Equal(t, DecisionWait, rec.Decision)
	assert.Equal(t, 0.6, rec.Confidence)
	assert.Equal(t, options.SideCall, rec.Direction)
	assert.Greater(t, rec.Entry, 0.0)
	assert.Less(t, rec.Stop, rec.Entry)
	require.Len(t, rec.Targets, 2)
	assert.Greater(t, rec.Targets[0], rec.Entry)
	assert.Greater(t, rec.Targets[1], rec.Targets[0])
	assert.NotEmpty(t, res.TraceID)
	assert.NotEmpty(t, res.Candidates)
	assert.Len(t, res.Contexts, 3)
}

func TestRunReasonedDecision(t *testing.T) {
	src := fullPassSource()
	reasoner := &stubReasoner{outcome: react.Outcome{
		FinalText:  "momentum and chain quality both support an entry",
		Confidence: 0.8,
		StopReason: react.StopFinalAnswer,
	}}
	runner := NewRunner(src, reasoner, DefaultConfig())
	res := runner.Run(context.Background(), "NIFTY")

	assert.Equal(t, 1, reasoner.calls)
	assert.Equal(t, DecisionEnter, res.Recommendation.Decision)
	assert.InDelta(t, 0.8, res.Recommendation.Confidence, 1e-9)
	assert.Equal(t, "momentum and chain quality both support an entry", res.Recommendation.Rationale)
}

func TestSetGoalSwapsGoalBetweenRuns(t *testing.T) {
	src := fullPassSource()
	reasoner := &stubReasoner{outcome: react.Outcome{
		FinalText:  "wait for the next pullback",
		Confidence: 0.6,
		StopReason: react.StopFinalAnswer,
	}}
	cfg := DefaultConfig()
	cfg.Goal = "scalp index momentum"
	runner := NewRunner(src, reasoner, cfg)

	runner.Run(context.Background(), "NIFTY")
	runner.SetGoal("expiry day: premium decay dominates")
	runner.Run(context.Background(), "NIFTY")

	require.Equal(t, 2, reasoner.calls)
	assert.Equal(t, "scalp index momentum", reasoner.goals[0])
	assert.Equal(t, "expiry day: premium decay dominates", reasoner.goals[1])
}

func TestRunUnreportedConfidenceMapsToWait(t *testing.T) {
	src := fullPassSource()
	reasoner := &stubReasoner{outcome: react.Outcome{FinalText: "inconclusive", Confidence: -1}}
	runner := NewRunner(src, reasoner, DefaultConfig())
	res := runner.Run(context.Background(), "NIFTY")

	assert.Equal(t, DecisionWait, res.Recommendation.Decision)
	assert.Equal(t, 0.5, res.Recommendation.Confidence)
}

func TestRunReasonerFailureFallsBack(t *testing.T) {
	src := fullPassSource()
	reasoner := &stubReasoner{err: errors.New("model endpoint circuit is open")}
	runner := NewRunner(src, reasoner, DefaultConfig())
	res := runner.Run(context.Background(), "NIFTY")

	assert.Equal(t, DecisionWait, res.Recommendation.Decision)
	assert.Equal(t, 0.6, res.Recommendation.Confidence)
	assert.Contains(t, res.Recommendation.Rationale, "deterministic fallback")
	assert.NotEmpty(t, res.Errors)
}

func TestRunRecoversFromPanic(t *testing.T) {
	src := fullPassSource()
	src.chainPanic = true
	runner := NewRunner(src, nil, DefaultConfig())

	var res Result
	assert.NotPanics(t, func() { res = runner.Run(context.Background(), "NIFTY") })
	assert.Equal(t, DecisionNoTrade, res.Recommendation.Decision)
	assert.Contains(t, res.Recommendation.Rationale, "internal error")
	assert.NotEmpty(t, res.Errors)
}
