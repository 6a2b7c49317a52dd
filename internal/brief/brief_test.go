package brief

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalpel/internal/indicator"
	"scalpel/internal/options"
	"scalpel/internal/timeframe"
)

func nseSession(t *testing.T) SessionConfig {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return SessionConfig{Location: loc, OpenHour: 9, OpenMin: 15, CloseHour: 15, CloseMin: 30}
}

func TestClassifySession(t *testing.T) {
	cfg := nseSession(t)
	at := func(hour, min int) time.Time {
		return time.Date(2026, 8, 31, hour, min, 0, 0, cfg.Location)
	}
	cases := []struct {
		name string
		now  time.Time
		want SessionPhase
	}{
		{"before preopen window", at(8, 30), PhaseClosed},
		{"preopen", at(9, 0), PhasePreOpen},
		{"first half hour", at(9, 30), PhaseOpening},
		{"midday", at(12, 0), PhaseMidday},
		{"last 45 minutes", at(15, 0), PhaseClosing},
		{"after close", at(16, 0), PhaseClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySession(tc.now, cfg))
		})
	}
}

func TestClassifyVolatility(t *testing.T) {
	atr := func(v float64) indicator.Value { return indicator.Value{Val: v, Present: true} }

	assert.Equal(t, VolLow, ClassifyVolatility(atr(20), 22000))    // 0.09%
	assert.Equal(t, VolNormal, ClassifyVolatility(atr(60), 22000)) // 0.27%
	assert.Equal(t, VolHigh, ClassifyVolatility(atr(120), 22000))  // 0.55%
	assert.Equal(t, VolNormal, ClassifyVolatility(indicator.Value{}, 22000))
	assert.Equal(t, VolNormal, ClassifyVolatility(atr(60), 0))
}

func TestRenderCarriesNoRawSeries(t *testing.T) {
	b := Brief{
		Symbol:    "NIFTY",
		Generated: time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		Primary: timeframe.Context{
			Timeframe: timeframe.TF15m,
			Status:    timeframe.StatusComplete,
			Bias:      timeframe.BiasBullish,
			Strength:  timeframe.StrengthStrong,
			Values:    map[string]float64{"ema_fast": 22010.5, "close": 22030},
			Allowed:   true,
		},
		Candidates: []options.Candidate{{Strike: 22100, Side: options.SideCall, Last: 100, Score: 7}},
		Flags:      ConditionFlags{Session: PhaseMidday, Volatility: VolNormal},
	}
	out := b.Render()
	assert.Contains(t, out, `"symbol":"NIFTY"`)
	assert.Contains(t, out, `"bias":"bullish"`)
	assert.Contains(t, out, `"session":"midday"`)
	// 只允许命名标量，不允许 K线数组字段
	assert.NotContains(t, out, "open_time")
	assert.NotContains(t, out, "candles")
}
