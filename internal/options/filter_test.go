package options

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scalpel/internal/market"
	"scalpel/internal/timeframe"
)

func goodQuote(key string, delta float64) market.OptionQuote {
	return market.OptionQuote{
		InstrumentKey: key,
		Bid:           99.5,
		Ask:           100.5,
		Last:          100,
		OpenInterest:  115000,
		PrevOI:        100000,
		IV:            0.22,
		PrevIV:        0.16,
		Greeks:        market.Greeks{Delta: delta, Gamma: 0.02, Theta: -4},
	}
}

func testChain() *market.OptionChain {
	return &market.OptionChain{
		Symbol: "NIFTY",
		Spot:   22000,
		Expiry: "2026-09-03",
		Strikes: []market.StrikeRow{
			{Strike: 21900, Call: goodQuote("C21900", 0.55), Put: goodQuote("P21900", -0.45)},
			{Strike: 22000, Call: goodQuote("C22000", 0.50), Put: goodQuote("P22000", -0.50)},
			{Strike: 22100, Call: goodQuote("C22100", 0.40), Put: goodQuote("P22100", -0.60)},
		},
	}
}

func TestSelectCandidatesBullishTakesCalls(t *testing.T) {
	out := SelectCandidates(testChain(), timeframe.BiasBullish, DefaultFilterConfig())
	assert.NotEmpty(t, out)
	for _, c := range out {
		assert.Equal(t, SideCall, c.Side)
		assert.GreaterOrEqual(t, c.Score, 5.0)
	}
}

func TestSelectCandidatesBearishTakesPuts(t *testing.T) {
	out := SelectCandidates(testChain(), timeframe.BiasBearish, DefaultFilterConfig())
	assert.NotEmpty(t, out)
	for _, c := range out {
		assert.Equal(t, SidePut, c.Side)
	}
}

func TestSelectCandidatesNeutralReturnsNothing(t *testing.T) {
	assert.Nil(t, SelectCandidates(testChain(), timeframe.BiasNeutral, DefaultFilterConfig()))
}

func TestSelectCandidatesSortedAndCapped(t *testing.T) {
	out := SelectCandidates(testChain(), timeframe.BiasBullish, DefaultFilterConfig())
	assert.LessOrEqual(t, len(out), 2)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
	}
}

func TestSelectCandidatesDropsWideSpread(t *testing.T) {
	chain := testChain()
	for i := range chain.Strikes {
		chain.Strikes[i].Call.Bid = 80
		chain.Strikes[i].Call.Ask = 120
	}
	out := SelectCandidates(chain, timeframe.BiasBullish, DefaultFilterConfig())
	assert.Empty(t, out)
}

func TestSelectCandidatesDropsDeadQuotes(t *testing.T) {
	chain := testChain()
	for i := range chain.Strikes {
		chain.Strikes[i].Call.Bid = 0
	}
	out := SelectCandidates(chain, timeframe.BiasBullish, DefaultFilterConfig())
	assert.Empty(t, out)
}

func TestSpreadPct(t *testing.T) {
	// |100.5-99.5| / 100 * 100 = 1%
	assert.InDelta(t, 1.0, spreadPct(99.5, 100.5), 1e-9)
	assert.Equal(t, 0.0, spreadPct(0, 0))
}

func TestClassifyMoneyness(t *testing.T) {
	assert.Equal(t, MoneyATM, classifyMoneyness(22000, 22010, SideCall))
	assert.Equal(t, MoneyITM, classifyMoneyness(21800, 22000, SideCall))
	assert.Equal(t, MoneyOTM, classifyMoneyness(22200, 22000, SideCall))
	assert.Equal(t, MoneyITM, classifyMoneyness(22200, 22000, SidePut))
	assert.Equal(t, MoneyOTM, classifyMoneyness(21800, 22000, SidePut))
}

func TestNewCandidateDerivedFields(t *testing.T) {
	q := goodQuote("C22000", 0.5)
	c := newCandidate(22000, SideCall, q, 22000)
	assert.InDelta(t, 0.06, c.IVChange, 1e-9)
	assert.InDelta(t, 0.15, c.OIChangePct, 1e-9)
	assert.False(t, c.ThetaRisk)
	assert.Equal(t, LiquidityPoor, c.Liquidity) // 1% 价差在 good 阈值边界之上
}
